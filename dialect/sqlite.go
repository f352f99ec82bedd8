package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// SQLite dialect implementation, shared by the mattn ("sqlite3") and
// modernc ("sqlite") drivers.
type sqlite struct{}

func (d *sqlite) Name() string { return "sqlite" }

func (d *sqlite) Quote(name string) string {
	return quoteWith("`", name)
}

func (d *sqlite) Placeholder(int) string {
	return "?"
}

func (d *sqlite) Features() schema.Features {
	return schema.Features{}
}

func (d *sqlite) TypeName(c schema.Column, dt schema.DataType) string {
	if t, ok := typeOverride(c); ok {
		return t
	}
	if dt.IsArray() {
		return "text"
	}
	switch dt {
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeSmallInt, schema.TypeInteger, schema.TypeBigInt:
		return "integer"
	case schema.TypeReal, schema.TypeDouble:
		return "real"
	case schema.TypeBytes:
		return "blob"
	case schema.TypeTimestamp:
		return "datetime"
	}
	return "text"
}

func (d *sqlite) CreateTableSQL(t *schema.Table) (string, error) {
	return createTable(d, t, func(c schema.Column, dt schema.DataType) (string, bool) {
		if singleAutoKey(c) {
			// AUTOINCREMENT is only valid on an inline INTEGER PRIMARY KEY.
			return d.Quote(c.Name()) + " integer PRIMARY KEY AUTOINCREMENT", true
		}
		return columnDef(d, c, d.TypeName(c, dt)), false
	})
}

func (d *sqlite) ColumnsSQL(table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info(%s)", d.Quote(table)), nil
}

func (d *sqlite) ParseColumns(rows *sql.Rows) ([]string, error) {
	var columns []string
	for rows.Next() {
		var cid int
		var name string
		var typ string
		var notnull int
		var dfltValue any
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (d *sqlite) JSONExtract(column string, path []string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", column, jsonPath(path))
}

func (d *sqlite) ArrayContains(column, value string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = %s)", column, value)
}

func (d *sqlite) Returning() bool { return true }

func (d *sqlite) UpsertSQL(conflict, update []string) string {
	if len(update) == 0 {
		update = conflict
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflict, ", "),
		upsertAssignments(update, "%s = excluded.%s"),
	)
}

func (d *sqlite) NoLimit() string { return "-1" }

func (d *sqlite) MaxIdentifier() int { return 0 }

func (d *sqlite) Classify(err error) Violation { return classifySQLite(err) }
