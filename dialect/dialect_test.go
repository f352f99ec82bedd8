package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

type publisher struct {
	ID   int64  `kormite:"key;auto"`
	Name string `kormite:"unique;notnull"`
}

type author struct {
	ID        int64      `kormite:"key;auto"`
	Name      string     `kormite:"size:100"`
	Publisher *publisher `kormite:"ref"`
	Tags      []string
}

type membership struct {
	User  string `kormite:"key"`
	Group string `kormite:"key"`
	Note  *string
}

func tables(t *testing.T, d Dialect) map[string]*schema.Table {
	t.Helper()
	r := schema.NewRegistry(schema.WithFeatures(d.Features()))
	out := make(map[string]*schema.Table)
	for _, sample := range []any{publisher{}, author{}, membership{}} {
		desc, err := schema.Describe(sample)
		require.NoError(t, err)
		tbl, err := r.Build(desc, "")
		require.NoError(t, err)
		out[tbl.Name] = tbl
	}
	return out
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"postgres", "mysql", "sqlite3", "sqlite"} {
		_, ok := Get(name)
		assert.True(t, ok, name)
	}
	_, ok := Get("oracle")
	assert.False(t, ok)
}

func TestCreateTableSQL(t *testing.T) {
	cases := []struct {
		driver string
		table  string
		want   string
	}{
		{"sqlite3", "publisher", "CREATE TABLE IF NOT EXISTS `publisher` (`id` integer PRIMARY KEY AUTOINCREMENT, `name` text NOT NULL, UNIQUE (`name`))"},
		{"sqlite3", "author", "CREATE TABLE IF NOT EXISTS `author` (`id` integer PRIMARY KEY AUTOINCREMENT, `name` text NOT NULL, `publisher` integer, `tags` text)"},
		{"sqlite3", "membership", "CREATE TABLE IF NOT EXISTS `membership` (`user` text NOT NULL, `group` text NOT NULL, `note` text, PRIMARY KEY (`user`, `group`))"},
		{"postgres", "publisher", `CREATE TABLE IF NOT EXISTS "publisher" ("id" bigserial NOT NULL, "name" text NOT NULL, PRIMARY KEY ("id"), UNIQUE ("name"))`},
		{"postgres", "author", `CREATE TABLE IF NOT EXISTS "author" ("id" bigserial NOT NULL, "name" varchar(100) NOT NULL, "publisher" bigint, "tags" text[], PRIMARY KEY ("id"))`},
		{"mysql", "publisher", "CREATE TABLE IF NOT EXISTS `publisher` (`id` bigint NOT NULL AUTO_INCREMENT, `name` varchar(255) NOT NULL, PRIMARY KEY (`id`), UNIQUE (`name`))"},
		{"mysql", "membership", "CREATE TABLE IF NOT EXISTS `membership` (`user` varchar(255) NOT NULL, `group` varchar(255) NOT NULL, `note` text, PRIMARY KEY (`user`, `group`))"},
	}
	for _, tc := range cases {
		t.Run(tc.driver+"/"+tc.table, func(t *testing.T) {
			d, ok := Get(tc.driver)
			require.True(t, ok)
			got, err := d.CreateTableSQL(tables(t, d)[tc.table])
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRendering(t *testing.T) {
	pg, _ := Get("postgres")
	my, _ := Get("mysql")
	lite, _ := Get("sqlite")

	assert.Equal(t, `"a""b"`, pg.Quote(`a"b`))
	assert.Equal(t, "`t`", my.Quote("t"))
	assert.Equal(t, "$3", pg.Placeholder(3))
	assert.Equal(t, "?", lite.Placeholder(3))

	assert.Equal(t, `"meta" #>> '{a,b}'`, pg.JSONExtract(`"meta"`, []string{"a", "b"}))
	assert.Equal(t, "json_extract(`meta`, '$.a.b')", lite.JSONExtract("`meta`", []string{"a", "b"}))
	assert.Equal(t, "JSON_UNQUOTE(JSON_EXTRACT(`meta`, '$.\"a b\"'))", my.JSONExtract("`meta`", []string{"a b"}))

	assert.Equal(t, `$1 = ANY("tags")`, pg.ArrayContains(`"tags"`, "$1"))
	assert.Equal(t, "EXISTS (SELECT 1 FROM json_each(`tags`) WHERE json_each.value = ?)", lite.ArrayContains("`tags`", "?"))

	assert.Equal(t, "ON CONFLICT (`id`) DO UPDATE SET `name` = excluded.`name`", lite.UpsertSQL([]string{"`id`"}, []string{"`name`"}))
	assert.Equal(t, "ON DUPLICATE KEY UPDATE `id` = VALUES(`id`)", my.UpsertSQL([]string{"`id`"}, nil))

	assert.True(t, pg.Returning())
	assert.True(t, lite.Returning())
	assert.False(t, my.Returning())
	assert.True(t, pg.Features().NativeArrays)
	assert.False(t, lite.Features().NativeArrays)
}

func TestClassify(t *testing.T) {
	pg, _ := Get("postgres")
	my, _ := Get("mysql")
	lite, _ := Get("sqlite3")

	cases := []struct {
		name string
		d    Dialect
		err  error
		want Violation
	}{
		{"nil", pg, nil, ViolationNone},
		{"pg unique", pg, &pq.Error{Code: "23505"}, ViolationUnique},
		{"pg notnull wrapped", pg, fmt.Errorf("insert: %w", &pq.Error{Code: "23502"}), ViolationNotNull},
		{"pg other", pg, &pq.Error{Code: "42P01"}, ViolationOther},
		{"mysql unique", my, &mysqldriver.MySQLError{Number: 1062}, ViolationUnique},
		{"mysql notnull", my, &mysqldriver.MySQLError{Number: 1048}, ViolationNotNull},
		{"mysql other", my, &mysqldriver.MySQLError{Number: 1146}, ViolationOther},
		{"sqlite unique", lite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ViolationUnique},
		{"sqlite pk", lite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, ViolationUnique},
		{"sqlite notnull", lite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, ViolationNotNull},
		{"text fallback", lite, errors.New("UNIQUE constraint failed: book.title"), ViolationUnique},
		{"other", lite, errors.New("disk I/O error"), ViolationOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.Classify(tc.err))
		})
	}
}

func TestParseColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	pg, _ := Get("postgres")
	query, args := pg.ColumnsSQL("book")
	mock.ExpectQuery(query).WithArgs("book").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("title"))

	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()
	cols, err := pg.ParseColumns(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title"}, cols)
	require.NoError(t, mock.ExpectationsWereMet())
}
