package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// PostgreSQL dialect implementation
type postgres struct{}

func (d *postgres) Name() string { return "postgres" }

func (d *postgres) Quote(name string) string {
	// PostgreSQL uses double quotes for identifiers
	return quoteWith(`"`, name)
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *postgres) Features() schema.Features {
	return schema.Features{NativeArrays: true, NativeUUID: true, NativeJSON: true}
}

func (d *postgres) TypeName(c schema.Column, dt schema.DataType) string {
	if t, ok := typeOverride(c); ok {
		return t
	}
	if dt.IsArray() {
		return d.TypeName(c, dt.Elem()) + "[]"
	}
	switch dt {
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeSmallInt:
		return "smallint"
	case schema.TypeInteger:
		return "integer"
	case schema.TypeBigInt:
		return "bigint"
	case schema.TypeReal:
		return "real"
	case schema.TypeDouble:
		return "double precision"
	case schema.TypeBytes:
		return "bytea"
	case schema.TypeTimestamp:
		return "timestamp with time zone"
	case schema.TypeUUID:
		return "uuid"
	case schema.TypeJSON:
		return "jsonb"
	}
	if size := c.Field().Size; size > 0 {
		return fmt.Sprintf("varchar(%d)", size)
	}
	return "text"
}

func (d *postgres) CreateTableSQL(t *schema.Table) (string, error) {
	return createTable(d, t, func(c schema.Column, dt schema.DataType) (string, bool) {
		typ := d.TypeName(c, dt)
		if c.IsKey() && c.Field().Auto {
			// PostgreSQL uses serial types for auto-incrementing integer columns
			switch dt {
			case schema.TypeSmallInt:
				typ = "smallserial"
			case schema.TypeInteger:
				typ = "serial"
			case schema.TypeBigInt:
				typ = "bigserial"
			}
		}
		return columnDef(d, c, typ), false
	})
}

func (d *postgres) ColumnsSQL(table string) (string, []any) {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position", []any{table}
}

func (d *postgres) ParseColumns(rows *sql.Rows) ([]string, error) {
	return scanNames(rows)
}

func (d *postgres) JSONExtract(column string, path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strings.ReplaceAll(p, "'", "''")
	}
	return fmt.Sprintf("%s #>> '{%s}'", column, strings.Join(parts, ","))
}

func (d *postgres) ArrayContains(column, value string) string {
	return fmt.Sprintf("%s = ANY(%s)", value, column)
}

func (d *postgres) Returning() bool { return true }

func (d *postgres) UpsertSQL(conflict, update []string) string {
	if len(update) == 0 {
		update = conflict
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflict, ", "),
		upsertAssignments(update, "%s = excluded.%s"),
	)
}

func (d *postgres) NoLimit() string { return "ALL" }

// NAMEDATALEN-1; longer identifiers are truncated silently.
func (d *postgres) MaxIdentifier() int { return 63 }

func (d *postgres) Classify(err error) Violation { return classifyPostgres(err) }

func scanNames(rows *sql.Rows) ([]string, error) {
	var columns []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		columns = append(columns, colName)
	}
	return columns, rows.Err()
}
