package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/logger"
	"github.com/MineKing9534/KORMite-sub000/pool"
)

func mockDB(t *testing.T, driver string, l logger.Logger) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	if l == nil {
		l = logger.Discard()
	}
	db, err := OpenDB(pool.NewStdPool(sqlDB), driver, &Options{Logger: l})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close()
	})
	return db, mock
}

func registerAuthors(t *testing.T, db *DB) (*Table[Publisher], *Table[Author]) {
	t.Helper()
	pubs, err := Register[Publisher](db)
	require.NoError(t, err)
	authors, err := Register[Author](db)
	require.NoError(t, err)
	return pubs, authors
}

func TestPostgresSelectJoins(t *testing.T) {
	db, mock := mockDB(t, "postgres", nil)
	_, authors := registerAuthors(t, db)

	mock.ExpectQuery(`SELECT "author"."id" AS "id", "author"."name" AS "name", "author"."publisher" AS "publisher", ` +
		`"author->publisher"."id" AS "publisher.id", "author->publisher"."name" AS "publisher.name" ` +
		`FROM "author" LEFT JOIN "publisher" AS "author->publisher" ON "author->publisher"."id" = "author"."publisher" ` +
		`WHERE "author->publisher"."name" LIKE $1 ORDER BY "author"."name" ASC LIMIT 10`).
		WithArgs("A%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "publisher", "publisher.id", "publisher.name"}).
			AddRow(int64(1), "Ann", int64(1), int64(1), "Alpha").
			AddRow(int64(2), "Cy", int64(9), nil, nil))

	got, err := authors.Select().
		Where(expr.Property("publisher->name").Like("A%")).
		OrderBy(expr.Property("name").Asc()).
		Limit(10).
		All(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &Author{ID: 1, Name: "Ann", Publisher: &Publisher{ID: 1, Name: "Alpha"}}, got[0])
	assert.Equal(t, &Author{ID: 2, Name: "Cy"}, got[1])
}

type Chapter struct {
	ID        int64      `kormite:"key;auto"`
	Publisher *Publisher `kormite:"ref;column:first_printing_publisher_recorded_in_the_ledger_of_the_press"`
}

func TestPostgresIdentifierLimit(t *testing.T) {
	db, _ := mockDB(t, "postgres", nil)
	_, err := Register[Publisher](db)
	require.NoError(t, err)
	chapters, err := Register[Chapter](db)
	require.NoError(t, err)

	_, _, err = chapters.Select().SQL()
	assert.ErrorIs(t, err, expr.ErrIdentifierTooLong)

	sql, _, err := chapters.Select().NoJoins().SQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `AS "first_printing_publisher_recorded_in_the_ledger_of_the_press"`)
}

func TestPostgresWrites(t *testing.T) {
	db, mock := mockDB(t, "postgres", nil)
	pubs, _ := registerAuthors(t, db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "publisher" ("name") VALUES ($1) RETURNING "id", "name"`).
		WithArgs("Alpha").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Alpha"))
	res, err := pubs.Insert(ctx, &Publisher{Name: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, &Publisher{ID: 7, Name: "Alpha"}, res.Value)
	assert.Equal(t, int64(1), res.Affected)

	mock.ExpectQuery(`INSERT INTO "publisher" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name" RETURNING "id", "name"`).
		WithArgs(int64(7), "Alpha II").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Alpha II"))
	res, err = pubs.Upsert(ctx, &Publisher{ID: 7, Name: "Alpha II"})
	require.NoError(t, err)
	assert.Equal(t, "Alpha II", res.Value.Name)

	mock.ExpectQuery(`UPDATE "publisher" SET "name" = $1 WHERE "id" = $2 RETURNING "id", "name"`).
		WithArgs("Beta", int64(7)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	res, err = pubs.Update(ctx, &Publisher{ID: 7, Name: "Beta"})
	require.NoError(t, err)
	assert.True(t, res.UniqueViolation())
	assert.Nil(t, res.Value)

	broken := errors.New("connection reset by peer")
	mock.ExpectExec(`DELETE FROM "publisher" WHERE "name" = $1`).
		WithArgs("Beta").
		WillReturnError(broken)
	_, err = pubs.Delete(ctx, expr.Property("name").Eq("Beta"))
	assert.ErrorIs(t, err, broken)

	mock.ExpectExec(`UPDATE "publisher" SET "name" = LOWER("name") WHERE "id" > $1`).
		WithArgs(int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	upd, err := pubs.UpdateWhere(ctx, expr.Property("id").Gt(0), expr.Set("name", expr.Lower(expr.Property("name"))))
	require.NoError(t, err)
	assert.Equal(t, int64(4), upd.Value)
}

func TestPostgresColumnCheck(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.NewStdLogger()
	l.SetOutput(buf)
	l.SetLevel(logger.LogLevelWarn)
	db, mock := mockDB(t, "postgres", l)
	pubs, _ := registerAuthors(t, db)

	ddl, err := db.Dialect().CreateTableSQL(pubs.Schema())
	require.NoError(t, err)
	mock.ExpectExec(ddl).WillReturnResult(sqlmock.NewResult(0, 0))
	sql, _ := db.Dialect().ColumnsSQL("publisher")
	mock.ExpectQuery(sql).
		WithArgs("publisher").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	require.NoError(t, pubs.Create(context.Background()))
	assert.Contains(t, buf.String(), "missing: name")
}

func TestMySQLWritesReselect(t *testing.T) {
	db, mock := mockDB(t, "mysql", nil)
	pubs, _ := registerAuthors(t, db)
	ctx := context.Background()
	reselect := "SELECT `publisher`.`id` AS `id`, `publisher`.`name` AS `name` FROM `publisher` WHERE `publisher`.`id` = ? LIMIT 1"

	mock.ExpectExec("INSERT INTO `publisher` (`name`) VALUES (?)").
		WithArgs("Alpha").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(reselect).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow([]byte("7"), []byte("Alpha")))
	res, err := pubs.Insert(ctx, &Publisher{Name: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, &Publisher{ID: 7, Name: "Alpha"}, res.Value)

	mock.ExpectExec("UPDATE `publisher` SET `name` = ? WHERE `id` = ?").
		WithArgs("Alpha", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(reselect).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Alpha"))
	res, err = pubs.Update(ctx, &Publisher{ID: 7, Name: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Affected)

	mock.ExpectExec("INSERT INTO `publisher` (`name`) VALUES (?)").
		WithArgs("Alpha").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'Alpha'"})
	res, err = pubs.Insert(ctx, &Publisher{Name: "Alpha"})
	require.NoError(t, err)
	assert.True(t, res.UniqueViolation())

	mock.ExpectQuery("SELECT COUNT(*) AS `value` FROM `publisher`").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("3")))
	n, err := pubs.Count(ctx, expr.Where{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
