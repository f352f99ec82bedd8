package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/logger"
)

// table is the live shape of one database table.
type table struct {
	Name    string
	Columns []column
}

type column struct {
	Name     string
	DBType   string
	UDT      string // postgres element type of arrays, e.g. _text
	Comment  string
	Key      bool
	Auto     bool
	Nullable bool
	Unique   bool
	Default  string
	Size     int
}

type inspector struct {
	driver string
	db     *sql.DB
	log    logger.Logger
}

func newInspector(driver string, db *sql.DB, log logger.Logger) (*inspector, error) {
	switch driver {
	case "sqlite3", "sqlite", "mysql", "postgres":
		return &inspector{driver: driver, db: db, log: log}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

func (in *inspector) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	in.log.Debug("%s %v", strings.Join(strings.Fields(q), " "), args)
	return in.db.QueryContext(ctx, q, args...)
}

// Tables lists the user tables of the database.
func (in *inspector) Tables(ctx context.Context) ([]string, error) {
	var q string
	switch in.driver {
	case "sqlite3", "sqlite":
		q = "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	case "mysql":
		q = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	case "postgres":
		q = "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	}
	rows, err := in.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Table reads the columns of one table.
func (in *inspector) Table(ctx context.Context, name string) (*table, error) {
	var (
		cols []column
		err  error
	)
	switch in.driver {
	case "sqlite3", "sqlite":
		cols, err = in.sqliteColumns(ctx, name)
	case "mysql":
		cols, err = in.mysqlColumns(ctx, name)
	case "postgres":
		cols, err = in.postgresColumns(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", name)
	}
	return &table{Name: name, Columns: cols}, nil
}

func (in *inspector) sqliteColumns(ctx context.Context, name string) ([]column, error) {
	unique, err := in.sqliteUnique(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := in.query(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	keys := 0
	for rows.Next() {
		var (
			cid       int
			colName   string
			dataType  string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &dataType, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		c := column{
			Name:     colName,
			DBType:   dataType,
			Key:      pk > 0,
			Nullable: notnull == 0 && pk == 0,
			Unique:   unique[colName],
			Default:  dfltValue.String,
			Size:     typeSize(dataType),
		}
		if c.Key {
			keys++
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// A single INTEGER PRIMARY KEY is the rowid alias.
	if keys == 1 {
		for i := range cols {
			if cols[i].Key && strings.EqualFold(cols[i].DBType, "INTEGER") {
				cols[i].Auto = true
			}
		}
	}
	return cols, nil
}

// sqliteUnique returns the columns covered alone by a unique index.
func (in *inspector) sqliteUnique(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := in.query(ctx, fmt.Sprintf("PRAGMA index_list(%q)", name))
	if err != nil {
		return nil, err
	}
	var indexes []string
	for rows.Next() {
		var (
			seq     int
			idxName string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &idxName, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if unique == 1 && origin != "pk" {
			indexes = append(indexes, idxName)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, idx := range indexes {
		info, err := in.query(ctx, fmt.Sprintf("PRAGMA index_info(%q)", idx))
		if err != nil {
			return nil, err
		}
		var cols []string
		for info.Next() {
			var (
				seqno, cid int
				colName    sql.NullString
			)
			if err := info.Scan(&seqno, &cid, &colName); err != nil {
				info.Close()
				return nil, err
			}
			cols = append(cols, colName.String)
		}
		info.Close()
		if len(cols) == 1 {
			out[cols[0]] = true
		}
	}
	return out, nil
}

func (in *inspector) mysqlColumns(ctx context.Context, name string) ([]column, error) {
	rows, err := in.query(ctx, "SHOW FULL COLUMNS FROM `"+strings.ReplaceAll(name, "`", "``")+"`")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var (
			field      string
			typ        string
			collation  sql.NullString
			null       string
			key        string
			defaultVal sql.NullString
			extra      string
			privileges string
			comment    string
		)
		if err := rows.Scan(&field, &typ, &collation, &null, &key, &defaultVal, &extra, &privileges, &comment); err != nil {
			return nil, err
		}
		cols = append(cols, column{
			Name:     field,
			DBType:   typ,
			Comment:  comment,
			Key:      key == "PRI",
			Auto:     strings.Contains(strings.ToLower(extra), "auto_increment"),
			Nullable: null == "YES",
			Unique:   key == "UNI",
			Default:  defaultVal.String,
			Size:     typeSize(typ),
		})
	}
	return cols, rows.Err()
}

const postgresColumns = `
SELECT
	c.column_name,
	c.data_type,
	c.udt_name,
	c.is_nullable,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND kcu.table_schema = c.table_schema
			AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name
	) AS is_pk,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'UNIQUE' AND kcu.table_schema = c.table_schema
			AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name
			AND (SELECT COUNT(*) FROM information_schema.key_column_usage k2
				WHERE k2.constraint_name = tc.constraint_name AND k2.table_schema = tc.table_schema) = 1
	) AS is_unique,
	col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position),
	c.column_default,
	c.character_maximum_length
FROM information_schema.columns c
WHERE c.table_name = $1 AND c.table_schema = 'public'
ORDER BY c.ordinal_position`

func (in *inspector) postgresColumns(ctx context.Context, name string) ([]column, error) {
	rows, err := in.query(ctx, postgresColumns, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var (
			colName, dataType, udt, isNullable string
			isPK, isUnique                     bool
			comment, columnDefault             sql.NullString
			maxLength                          sql.NullInt64
		)
		if err := rows.Scan(&colName, &dataType, &udt, &isNullable, &isPK, &isUnique, &comment, &columnDefault, &maxLength); err != nil {
			return nil, err
		}
		c := column{
			Name:     colName,
			DBType:   dataType,
			UDT:      udt,
			Comment:  comment.String,
			Key:      isPK,
			Nullable: isNullable == "YES",
			Unique:   isUnique,
			Default:  columnDefault.String,
			Size:     int(maxLength.Int64),
		}
		if strings.HasPrefix(strings.ToLower(c.Default), "nextval") || strings.EqualFold(dataType, "serial") {
			c.Auto = true
			c.Default = ""
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// typeSize extracts n from types such as VARCHAR(n).
func typeSize(dbType string) int {
	open := strings.Index(dbType, "(")
	if open < 0 {
		return 0
	}
	var n int
	fmt.Sscanf(dbType[open+1:], "%d", &n)
	return n
}
