package dialect

import (
	"database/sql"
	"fmt"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// MySQL dialect implementation
type mysql struct{}

func (d *mysql) Name() string { return "mysql" }

func (d *mysql) Quote(name string) string {
	return quoteWith("`", name)
}

func (d *mysql) Placeholder(int) string {
	return "?"
}

func (d *mysql) Features() schema.Features {
	return schema.Features{NativeJSON: true}
}

func (d *mysql) TypeName(c schema.Column, dt schema.DataType) string {
	if t, ok := typeOverride(c); ok {
		return t
	}
	if dt.IsArray() {
		return "json"
	}
	// Indexed text and blob columns need a bounded length.
	indexed := c.IsKey() || c.Field().Unique != ""
	switch dt {
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeSmallInt:
		return "smallint"
	case schema.TypeInteger:
		return "int"
	case schema.TypeBigInt:
		return "bigint"
	case schema.TypeReal:
		return "float"
	case schema.TypeDouble:
		return "double"
	case schema.TypeBytes:
		if indexed {
			return "varbinary(255)"
		}
		return "longblob"
	case schema.TypeTimestamp:
		return "datetime(6)"
	case schema.TypeUUID:
		return "char(36)"
	case schema.TypeJSON:
		return "json"
	}
	if size := c.Field().Size; size > 0 {
		return fmt.Sprintf("varchar(%d)", size)
	}
	if indexed {
		return "varchar(255)"
	}
	return "text"
}

func (d *mysql) CreateTableSQL(t *schema.Table) (string, error) {
	return createTable(d, t, func(c schema.Column, dt schema.DataType) (string, bool) {
		def := columnDef(d, c, d.TypeName(c, dt))
		if c.IsKey() && c.Field().Auto {
			def += " AUTO_INCREMENT"
		}
		return def, false
	})
}

func (d *mysql) ColumnsSQL(table string) (string, []any) {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []any{table}
}

func (d *mysql) ParseColumns(rows *sql.Rows) ([]string, error) {
	return scanNames(rows)
}

func (d *mysql) JSONExtract(column string, path []string) string {
	return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, '%s'))", column, jsonPath(path))
}

func (d *mysql) ArrayContains(column, value string) string {
	return fmt.Sprintf("JSON_CONTAINS(%s, JSON_ARRAY(%s))", column, value)
}

func (d *mysql) Returning() bool { return false }

func (d *mysql) UpsertSQL(conflict, update []string) string {
	if len(update) == 0 {
		update = conflict
	}
	return "ON DUPLICATE KEY UPDATE " + upsertAssignments(update, "%s = VALUES(%s)")
}

func (d *mysql) NoLimit() string { return "18446744073709551615" }

// Limit of column and table aliases.
func (d *mysql) MaxIdentifier() int { return 256 }

func (d *mysql) Classify(err error) Violation { return classifyMySQL(err) }
