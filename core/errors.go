package core

import (
	"errors"
	"fmt"

	"github.com/MineKing9534/KORMite-sub000/expr"
)

var (
	// ErrRecordNotFound is returned by First when the query matched no row.
	ErrRecordNotFound = errors.New("kormite: record not found")
	// ErrQueryUsed is returned when a query is executed a second time.
	ErrQueryUsed = errors.New("kormite: query already executed")
	// ErrIllegalUpdateTarget is returned when a partial update assigns a key
	// column, a joined column or a column that is not stored.
	ErrIllegalUpdateTarget = errors.New("kormite: illegal update target")
	// ErrJoinNotAllowed is returned when an UPDATE or DELETE condition crosses
	// a reference.
	ErrJoinNotAllowed = expr.ErrJoinNotAllowed
	// ErrUnknownDialect is returned by Open for a driver without a dialect.
	ErrUnknownDialect = errors.New("kormite: unknown dialect")
	// ErrNotRegistered is returned when an entity type has no table.
	ErrNotRegistered = errors.New("kormite: entity type not registered")
	// ErrNilEntity is returned when a write is given a nil entity.
	ErrNilEntity = errors.New("kormite: nil entity")
)

// IllegalUpdateTargetError describes a rejected assignment of a partial
// update.
type IllegalUpdateTargetError struct {
	Path   string
	Reason string
}

func (e *IllegalUpdateTargetError) Error() string {
	return fmt.Sprintf("kormite: cannot update %q: %s", e.Path, e.Reason)
}

func (e *IllegalUpdateTargetError) Is(err error) bool { return err == ErrIllegalUpdateTarget }
