// Package validator checks entity fields before they are written.
package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ValidationErrors maps field names to their failed rules.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		for _, err := range v[field] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s: %v", field, err)
		}
	}
	return sb.String()
}

// First returns the first error of field, or nil.
func (v ValidationErrors) First(field string) error {
	if errs := v[field]; len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Rule validates one field value. Rules are immutable; Msg, Optional and
// When return modified copies.
type Rule interface {
	Validate(value any) error
	Msg(msg string) Rule
	Optional() Rule
	When(fn func(value any) bool) Rule
}

// rule is the single Rule implementation; check holds the actual test.
type rule struct {
	check    func(v any) error
	msg      string
	optional bool
	when     func(v any) bool
}

func newRule(check func(v any) error) Rule { return &rule{check: check} }

func (r *rule) Validate(v any) error {
	v = deref(v)
	if r.when != nil && !r.when(v) {
		return nil
	}
	if r.optional && isZero(v) {
		return nil
	}
	err := r.check(v)
	if err != nil && r.msg != "" {
		return fmt.Errorf("%s", r.msg)
	}
	return err
}

func (r *rule) Msg(msg string) Rule           { nr := *r; nr.msg = msg; return &nr }
func (r *rule) Optional() Rule                { nr := *r; nr.optional = true; return &nr }
func (r *rule) When(fn func(v any) bool) Rule { nr := *r; nr.when = fn; return &nr }

// deref unwraps non-nil pointers so that rules see *string as string.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

// Rules maps struct field names to their rules.
type Rules map[string][]Rule

// Validate checks every field of value, a struct or pointer to struct, and
// returns ValidationErrors if any rule fails. Unknown field names are
// skipped.
func (r Rules) Validate(value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("validator: value must be a struct or pointer to struct, got %T", value)
	}

	errs := make(ValidationErrors)
	for name, rules := range r {
		field := rv.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() {
			continue
		}
		val := field.Interface()
		for _, rule := range rules {
			if err := rule.Validate(val); err != nil {
				errs[name] = append(errs[name], err)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validatable is implemented by entities that declare field rules. Tables
// validate such entities before inserting or updating them.
type Validatable interface {
	Rules() Rules
}

// Check validates v against its own rules if it declares any.
func Check(v any) error {
	if val, ok := v.(Validatable); ok {
		return val.Rules().Validate(v)
	}
	return nil
}
