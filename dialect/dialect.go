package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// Dialect renders backend specific SQL text. Each supported database
// implements it and registers itself under its driver names.
type Dialect interface {
	Name() string
	// Quote wraps an identifier in database-specific quotes.
	Quote(name string) string
	// Placeholder returns the bind marker for the 1-based parameter index.
	Placeholder(index int) string
	// Features reports the storage capabilities mappers may rely on.
	Features() schema.Features
	// TypeName renders a data type for DDL.
	TypeName(c schema.Column, dt schema.DataType) string
	// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for a table.
	CreateTableSQL(t *schema.Table) (string, error)
	// ColumnsSQL returns the statement listing the live columns of a table.
	ColumnsSQL(table string) (string, []any)
	// ParseColumns reads the result of ColumnsSQL.
	ParseColumns(rows *sql.Rows) ([]string, error)
	// JSONExtract renders access to a path inside a JSON document column.
	JSONExtract(column string, path []string) string
	// ArrayContains renders a predicate testing array membership.
	ArrayContains(column, value string) string
	// Returning reports whether INSERT/UPDATE ... RETURNING is supported.
	Returning() bool
	// UpsertSQL renders the conflict clause appended to an INSERT.
	UpsertSQL(conflict, update []string) string
	// NoLimit is the LIMIT value meaning "all rows", used with OFFSET alone.
	NoLimit() string
	// MaxIdentifier is the longest identifier the backend keeps intact, in
	// bytes. 0 means no limit.
	MaxIdentifier() int
	// Classify maps an execution error to a constraint violation kind.
	Classify(err error) Violation
}

var dialects = make(map[string]Dialect)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

func init() {
	Register("postgres", &postgres{})
	Register("mysql", &mysql{})
	Register("sqlite3", &sqlite{})
	Register("sqlite", &sqlite{})
}

// createTable renders the statement shared by every backend. column renders
// one column definition and reports whether it already declared the primary
// key inline.
func createTable(d Dialect, t *schema.Table, column func(c schema.Column, dt schema.DataType) (string, bool)) (string, error) {
	var defs []string
	inlineKey := false
	for _, c := range t.StoredColumns() {
		dt, err := c.DataType()
		if err != nil {
			return "", fmt.Errorf("table %s column %s: %w", t.Name, c.Name(), err)
		}
		def, inline := column(c, dt)
		inlineKey = inlineKey || inline
		defs = append(defs, def)
	}

	if keys := t.Keys(); len(keys) > 0 && !inlineKey {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = d.Quote(k.Name())
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(names, ", ")))
	}
	for _, group := range t.UniqueGroups() {
		names := make([]string, len(group))
		for i, c := range group {
			names[i] = d.Quote(c.Name())
		}
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(names, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(t.Name), strings.Join(defs, ", ")), nil
}

// columnDef renders "name type [NOT NULL] [DEFAULT x]".
func columnDef(d Dialect, c schema.Column, typ string) string {
	def := d.Quote(c.Name()) + " " + typ
	f := c.Field()
	if !f.Nullable || c.IsKey() {
		def += " NOT NULL"
	}
	if f.Default != "" {
		def += " DEFAULT " + f.Default
	}
	return def
}

// typeOverride returns the raw DDL type declared on the field, if any.
func typeOverride(c schema.Column) (string, bool) {
	if t := c.Field().DBType; t != "" {
		return t, true
	}
	return "", false
}

func singleAutoKey(c schema.Column) bool {
	if !c.IsKey() || !c.Field().Auto {
		return false
	}
	return len(c.Table().Keys()) == 1
}

func quoteWith(q string, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func jsonPath(path []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, p := range path {
		b.WriteString(".")
		if strings.ContainsAny(p, ". \"'$[]") {
			b.WriteString(`"` + strings.ReplaceAll(p, `"`, `\"`) + `"`)
		} else {
			b.WriteString(p)
		}
	}
	return strings.ReplaceAll(b.String(), "'", "''")
}

func upsertAssignments(update []string, format string) string {
	sets := make([]string, len(update))
	for i, u := range update {
		sets[i] = fmt.Sprintf(format, u, u)
	}
	return strings.Join(sets, ", ")
}
