package schema

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoMapperFound is returned when no registered mapper accepts a field.
	ErrNoMapperFound = errors.New("kormite: no mapper found")
	// ErrEmptyTable is returned when an entity description yields no columns.
	ErrEmptyTable = errors.New("kormite: table has no columns")
	// ErrMultiKeyReference is returned when a reference targets a table that
	// does not have exactly one key column.
	ErrMultiKeyReference = errors.New("kormite: referenced table must have exactly one key column")
	// ErrColumnNotFound is returned when a property path names an unknown column.
	ErrColumnNotFound = errors.New("kormite: column not found")
	// ErrIllegalPath is returned when a property path crosses a column that
	// cannot be descended into.
	ErrIllegalPath = errors.New("kormite: illegal property path")
	// ErrTableNotRegistered is returned when a reference points at an entity
	// type that has no table in the registry.
	ErrTableNotRegistered = errors.New("kormite: table not registered")
	// ErrInvalidEntity is returned when a value cannot describe an entity.
	ErrInvalidEntity = errors.New("kormite: invalid entity")
)

// NoMapperError reports the field for which mapper resolution failed.
type NoMapperError struct {
	Field string
	Type  reflect.Type
}

func (e *NoMapperError) Error() string {
	return fmt.Sprintf("kormite: no mapper found for field %s (%s)", e.Field, e.Type)
}

// Is reports whether the target error matches ErrNoMapperFound.
func (e *NoMapperError) Is(err error) bool { return err == ErrNoMapperFound }

// ColumnNotFoundError reports the unknown name and the table it was looked up in.
type ColumnNotFoundError struct {
	Table string
	Name  string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("kormite: column %q not found in table %s", e.Name, e.Table)
}

// Is reports whether the target error matches ErrColumnNotFound.
func (e *ColumnNotFoundError) Is(err error) bool { return err == ErrColumnNotFound }

// IllegalPathError describes why a property path segment is not traversable.
type IllegalPathError struct {
	Path   string
	Reason string
}

func (e *IllegalPathError) Error() string {
	return fmt.Sprintf("kormite: illegal property path %q: %s", e.Path, e.Reason)
}

// Is reports whether the target error matches ErrIllegalPath.
func (e *IllegalPathError) Is(err error) bool { return err == ErrIllegalPath }

// MultiKeyReferenceError names the reference column and the offending target.
type MultiKeyReferenceError struct {
	Column string
	Target string
	Keys   int
}

func (e *MultiKeyReferenceError) Error() string {
	return fmt.Sprintf("kormite: reference %s targets %s which has %d key columns, want 1", e.Column, e.Target, e.Keys)
}

// Is reports whether the target error matches ErrMultiKeyReference.
func (e *MultiKeyReferenceError) Is(err error) bool { return err == ErrMultiKeyReference }
