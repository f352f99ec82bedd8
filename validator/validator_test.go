package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email   string
	Nick    *string
	Age     int
	Role    string
	Website string
	Token   string
	Tags    []string
	Born    string
	hidden  string
}

func (s *signup) Rules() Rules {
	return Rules{
		"Email":   {Required, Email},
		"Nick":    {MinLen(2).Optional(), MaxLen(8)},
		"Age":     {Range(18, 130).Msg("adults only")},
		"Role":    {In("admin", "member")},
		"Website": {URL.Optional()},
		"Token":   {UUID.When(func(v any) bool { return v != "" })},
		"Tags":    {MaxLen(2)},
		"Born":    {Datetime("2006-01-02").Optional()},
		"hidden":  {Required},
		"Missing": {Required},
	}
}

func TestValidRecord(t *testing.T) {
	nick := "neo"
	s := &signup{Email: "a@b.io", Nick: &nick, Age: 30, Role: "admin", Born: "1990-01-31"}
	assert.NoError(t, Check(s))
}

func TestInvalidRecord(t *testing.T) {
	nick := "morpheus-the-first"
	s := &signup{
		Email:   "not-an-email",
		Nick:    &nick,
		Age:     12,
		Role:    "root",
		Website: "example",
		Token:   "abc",
		Tags:    []string{"a", "b", "c"},
		Born:    "31.01.1990",
	}
	err := Check(s)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 8)
	assert.EqualError(t, verrs.First("Age"), "adults only")
	assert.EqualError(t, verrs.First("Nick"), "length must be at most 8")
	assert.EqualError(t, verrs.First("Role"), "must be one of [admin member]")
	assert.Nil(t, verrs.First("Email2"))
	assert.Contains(t, err.Error(), "Age: adults only; Born: must be a datetime")
}

func TestRequiredAndOptional(t *testing.T) {
	var nilNick *string
	empty := ""
	assert.Error(t, Required.Validate(nilNick))
	assert.Error(t, Required.Validate(&empty))
	assert.Error(t, Required.Validate([]int{}))
	assert.NoError(t, Required.Validate(0.5))

	assert.NoError(t, MinLen(3).Optional().Validate(""))
	assert.Error(t, MinLen(3).Validate("ab"))
	assert.NoError(t, MinLen(2).Validate("äö"))

	assert.NoError(t, Check(struct{ Name string }{}))
	assert.Error(t, Rules{}.Validate(42))
}

func TestStringRules(t *testing.T) {
	assert.NoError(t, Numeric.Validate("0123"))
	assert.Error(t, Numeric.Validate("12a"))
	assert.NoError(t, JSON.Validate(`{"a":[1,2]}`))
	assert.Error(t, JSON.Validate(`{"a":`))
	assert.NoError(t, Regexp(`^B-\d+$`).Validate("B-12"))
	assert.Error(t, Regexp(`^B-\d+$`).Validate("b-12"))
	assert.NoError(t, Contains("@").Validate("a@b"))
	assert.Error(t, Excludes("<").Validate("<b>"))
	assert.NoError(t, UUID.Validate("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	// Non-string values are not checked by string rules.
	assert.NoError(t, Email.Validate(42))
}
