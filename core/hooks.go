package core

// Entities may implement these to observe their own lifecycle. Hooks run on
// the *T handed to or returned by a Table.
type BeforeInserter interface{ BeforeInsert() error }
type AfterInserter interface{ AfterInsert() error }
type BeforeUpdater interface{ BeforeUpdate() error }
type AfterUpdater interface{ AfterUpdate() error }
type AfterFinder interface{ AfterFind() error }

// Entities implementing validator.Validatable are checked after the Before
// hooks ran; a failed check returns validator.ValidationErrors and nothing is
// written.
