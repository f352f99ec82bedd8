package dialect

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Violation is the classified outcome of a failed statement.
type Violation int

const (
	ViolationNone Violation = iota
	ViolationUnique
	ViolationNotNull
	// ViolationOther is any failure that is not a classified constraint
	// violation. Callers must propagate it.
	ViolationOther
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationUnique:
		return "unique"
	case ViolationNotNull:
		return "notnull"
	}
	return "other"
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry = 1062
	mysqlBadNull        = 1048
	mysqlNoDefault      = 1364
)

func classifyPostgres(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case pgUniqueViolation:
			return ViolationUnique
		case pgNotNullViolation:
			return ViolationNotNull
		}
		return ViolationOther
	}
	return fallback(err)
}

func classifyMySQL(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ViolationUnique
		case mysqlBadNull, mysqlNoDefault:
			return ViolationNotNull
		}
		return ViolationOther
	}
	return fallback(err)
}

func classifySQLite(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ViolationUnique
		case sqlite3.ErrConstraintNotNull:
			return ViolationNotNull
		}
		return ViolationOther
	}
	var me *moderncsqlite.Error
	if errors.As(err, &me) {
		switch me.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ViolationUnique
		case sqlitelib.SQLITE_CONSTRAINT_NOTNULL:
			return ViolationNotNull
		}
		return ViolationOther
	}
	return fallback(err)
}

// fallback matches error text for drivers and wrappers that hide the
// concrete error type.
func fallback(err error) Violation {
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return ViolationUnique
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return ViolationNotNull
	}
	return ViolationOther
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
