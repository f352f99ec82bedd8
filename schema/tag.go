package schema

import (
	"strconv"
	"strings"
)

// TagName is the struct tag key read by Describe.
const TagName = "kormite"

// Tag represents parsed kormite tags
type Tag struct {
	Skip      bool
	Column    string
	Key       bool
	Auto      bool
	Unique    string
	NotNull   bool
	Null      bool
	Size      int
	Type      string
	Default   string
	Ref       bool
	JSON      bool
	Binary    bool
	Composite bool
}

// ParseTag parses the "kormite" tag string. Options are separated by spaces,
// commas or semicolons; separators inside parentheses are kept.
func ParseTag(tagStr string) *Tag {
	tag := &Tag{}
	if tagStr == "" {
		return tag
	}
	if strings.TrimSpace(tagStr) == "-" {
		tag.Skip = true
		return tag
	}

	var sb strings.Builder
	inParen := false
	for _, r := range tagStr {
		switch r {
		case '(':
			inParen = true
			sb.WriteRune(r)
		case ')':
			inParen = false
			sb.WriteRune(r)
		case ';', ',':
			if inParen {
				sb.WriteRune(r)
			} else {
				sb.WriteRune(' ')
			}
		default:
			sb.WriteRune(r)
		}
	}

	for _, part := range strings.Fields(sb.String()) {
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(kv[0])
		var val string
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "column":
			tag.Column = val
		case "key", "pk":
			tag.Key = true
		case "auto", "autoincrement":
			tag.Auto = true
		case "unique":
			tag.Unique = val
			if tag.Unique == "" {
				tag.Unique = "-"
			}
		case "notnull":
			tag.NotNull = true
		case "null", "nullable":
			tag.Null = true
		case "size":
			if n, err := strconv.Atoi(val); err == nil {
				tag.Size = n
			}
		case "type":
			tag.Type = val
		case "default":
			tag.Default = val
		case "ref", "fk":
			tag.Ref = true
		case "json":
			tag.JSON = true
		case "binary":
			tag.Binary = true
		case "composite":
			tag.Composite = true
		}
	}
	return tag
}
