package validator

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	numericRegex = regexp.MustCompile(`^[0-9]+$`)
)

// Required fails on nil pointers and zero values.
var Required = newRule(func(v any) error {
	if isZero(v) {
		return fmt.Errorf("is required")
	}
	return nil
})

// MinLen requires strings of at least n characters, or slices of n elements.
func MinLen(n int) Rule {
	return newRule(func(v any) error {
		if l, ok := length(v); ok && l < n {
			return fmt.Errorf("length must be at least %d", n)
		}
		return nil
	})
}

// MaxLen is the upper bound counterpart of MinLen.
func MaxLen(n int) Rule {
	return newRule(func(v any) error {
		if l, ok := length(v); ok && l > n {
			return fmt.Errorf("length must be at most %d", n)
		}
		return nil
	})
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len(), true
	}
	return 0, false
}

// Range requires numbers within [min, max]. Non-numeric values pass.
func Range(min, max float64) Rule {
	return newRule(func(v any) error {
		f, ok := toFloat(v)
		if ok && (f < min || f > max) {
			return fmt.Errorf("value must be between %v and %v", min, max)
		}
		return nil
	})
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// In requires the value to equal one of values.
func In(values ...any) Rule {
	return newRule(func(v any) error {
		for _, allowed := range values {
			if reflect.DeepEqual(v, allowed) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", values)
	})
}

// stringRule applies check to string values only.
func stringRule(check func(s string) error) Rule {
	return newRule(func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		return check(s)
	})
}

var Email = stringRule(func(s string) error {
	if !emailRegex.MatchString(s) {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
})

var URL = stringRule(func(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be a valid URL")
	}
	return nil
})

var UUID = stringRule(func(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("must be a valid UUID")
	}
	return nil
})

var JSON = stringRule(func(s string) error {
	if !json.Valid([]byte(s)) {
		return fmt.Errorf("must be valid JSON")
	}
	return nil
})

var Numeric = stringRule(func(s string) error {
	if !numericRegex.MatchString(s) {
		return fmt.Errorf("must contain only digits")
	}
	return nil
})

// Datetime requires strings parseable with layout.
func Datetime(layout string) Rule {
	return stringRule(func(s string) error {
		if _, err := time.Parse(layout, s); err != nil {
			return fmt.Errorf("must be a datetime in format %s", layout)
		}
		return nil
	})
}

// Regexp requires strings matching pattern. It panics if pattern does not
// compile.
func Regexp(pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return stringRule(func(s string) error {
		if !re.MatchString(s) {
			return fmt.Errorf("must match %s", pattern)
		}
		return nil
	})
}

func Contains(substr string) Rule {
	return stringRule(func(s string) error {
		if !strings.Contains(s, substr) {
			return fmt.Errorf("must contain %q", substr)
		}
		return nil
	})
}

func Excludes(substr string) Rule {
	return stringRule(func(s string) error {
		if strings.Contains(s, substr) {
			return fmt.Errorf("must not contain %q", substr)
		}
		return nil
	})
}
