package schema

import (
	"unicode"

	"github.com/go-openapi/inflect"
)

// NamingPolicy turns code-level names into storage names.
type NamingPolicy interface {
	Table(typeName string) string
	Column(fieldName string) string
}

// SnakeCase maps "AuthorID" to "author_id" for both tables and columns.
var SnakeCase NamingPolicy = snakeCase{}

// Pluralize is SnakeCase with pluralized table names ("Book" -> "books").
var Pluralize NamingPolicy = plural{}

type snakeCase struct{}

func (snakeCase) Table(name string) string  { return camelToSnake(name) }
func (snakeCase) Column(name string) string { return camelToSnake(name) }

type plural struct{}

func (plural) Table(name string) string  { return inflect.Pluralize(camelToSnake(name)) }
func (plural) Column(name string) string { return camelToSnake(name) }

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	rs := []rune(s)
	var res []rune
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
