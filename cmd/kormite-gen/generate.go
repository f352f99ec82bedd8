package main

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const corePkg = "github.com/MineKing9534/KORMite-sub000/core"

// generate renders the entity file of t.
func generate(pkg string, t *table) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by kormite-gen. DO NOT EDIT.")

	name := structName(t.Name)
	fields := make([]jen.Code, 0, len(t.Columns))
	props := make([]jen.Code, 0, len(t.Columns)+1)
	props = append(props, jen.Id(name+"Table").Op("=").Lit(t.Name))
	for _, c := range t.Columns {
		field := fieldName(c.Name)
		stmt := jen.Id(field).Add(goType(c)).Tag(map[string]string{"kormite": tag(c)})
		if c.Comment != "" {
			stmt.Comment(c.Comment)
		}
		fields = append(fields, stmt)
		props = append(props, jen.Id(name+field).Op("=").Lit(c.Name))
	}

	f.Commentf("%s maps table %s.", name, t.Name)
	f.Type().Id(name).Struct(fields...)

	f.Commentf("Property paths of %s.", name)
	f.Const().Defs(props...)

	f.Commentf("Register%s registers %s with db under its table name.", name, name)
	f.Func().Id("Register"+name).
		Params(jen.Id("db").Op("*").Qual(corePkg, "DB")).
		Params(jen.Op("*").Qual(corePkg, "Table").Types(jen.Id(name)), jen.Error()).
		Block(
			jen.Return(jen.Qual(corePkg, "Register").Types(jen.Id(name)).Call(
				jen.Id("db"),
				jen.Qual(corePkg, "Name").Call(jen.Id(name+"Table")),
			)),
		)
	return f
}

// goType maps a database column type to a Go type. Nullable columns become
// pointers.
func goType(c column) jen.Code {
	base := strings.ToUpper(c.DBType)
	if idx := strings.Index(base, "("); idx != -1 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(base), "UNSIGNED"))

	var t *jen.Statement
	slice := false
	switch {
	case base == "ARRAY":
		return jen.Index().Add(arrayElem(c.UDT))
	case base == "TINYINT" && strings.Contains(strings.ToUpper(c.DBType), "(1)"),
		base == "BOOLEAN" || base == "BOOL":
		t = jen.Bool()
	case base == "TINYINT":
		t = jen.Int8()
	case base == "SMALLINT":
		t = jen.Int16()
	case base == "MEDIUMINT" || base == "INT":
		t = jen.Int32()
	case base == "INTEGER" || base == "BIGINT" || base == "SERIAL" || base == "BIGSERIAL":
		t = jen.Int64()
	case strings.Contains(base, "CHAR") || strings.HasSuffix(base, "TEXT"):
		t = jen.String()
	case strings.HasSuffix(base, "BLOB") || strings.HasSuffix(base, "BINARY") || base == "BYTEA":
		t, slice = jen.Index().Byte(), true
	case base == "UUID":
		t = jen.Qual("github.com/google/uuid", "UUID")
	case base == "FLOAT" || base == "REAL":
		t = jen.Float32()
	case base == "DOUBLE" || base == "DOUBLE PRECISION" || base == "DECIMAL" || base == "NUMERIC":
		t = jen.Float64()
	case base == "JSON" || base == "JSONB":
		t = jen.String()
	case base == "DATE" || base == "TIME" || base == "DATETIME" || strings.HasPrefix(base, "TIMESTAMP"):
		t = jen.Qual("time", "Time")
	default:
		t = jen.String()
	}
	if c.Nullable && !c.Key && !slice {
		return jen.Op("*").Add(t)
	}
	return t
}

func arrayElem(udt string) jen.Code {
	switch strings.TrimPrefix(udt, "_") {
	case "int2":
		return jen.Int16()
	case "int4":
		return jen.Int32()
	case "int8":
		return jen.Int64()
	case "float4":
		return jen.Float32()
	case "float8", "numeric":
		return jen.Float64()
	case "bool":
		return jen.Bool()
	}
	return jen.String()
}

// tag renders the kormite struct tag of c.
func tag(c column) string {
	tags := []string{"column:" + c.Name}
	if c.Key {
		tags = append(tags, "key")
		if c.Auto {
			tags = append(tags, "auto")
		}
	}
	if c.Unique {
		tags = append(tags, "unique")
	}
	if !c.Nullable && !c.Key {
		tags = append(tags, "notnull")
	}
	if c.Default != "" && !c.Auto {
		tags = append(tags, "default:"+strings.ReplaceAll(c.Default, " ", ""))
	}
	upper := strings.ToUpper(c.DBType)
	if c.Size > 0 && strings.Contains(upper, "CHAR") {
		tags = append(tags, fmt.Sprintf("size:%d", c.Size))
	}
	// Keep the precision of decimals.
	if strings.HasPrefix(upper, "DECIMAL") || strings.HasPrefix(upper, "NUMERIC") {
		tags = append(tags, "type:"+strings.ToLower(strings.ReplaceAll(c.DBType, " ", "")))
	}
	return strings.Join(tags, ";")
}

// structName turns a table name into a singular exported type name.
func structName(table string) string {
	return fieldName(inflect.Singularize(table))
}

// fieldName converts snake_case and camelCase column names to exported Go
// names, upper-casing the ID initialism.
func fieldName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	title := cases.Title(language.English, cases.NoLower)
	var b strings.Builder
	for _, p := range parts {
		if strings.EqualFold(p, "id") {
			b.WriteString("ID")
			continue
		}
		runes := []rune(title.String(p))
		if n := len(runes); n > 2 && string(runes[n-2:]) == "Id" {
			runes[n-1] = 'D'
		}
		b.WriteString(string(runes))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}
