package common

import "errors"

// Error classes. Every failure surfaced by the provider matches exactly one of these
// through errors.Is.
var (
	// ErrConfiguration reports invalid or missing mapping metadata, e.g. a cached entity
	// without exactly one key column.
	ErrConfiguration = errors.New("glue: configuration error")
	// ErrMapping reports a type whose shape cannot be bound to rows.
	ErrMapping = errors.New("glue: mapping generation error")
	// ErrNotSupported marks an operation the provider deliberately does not implement.
	ErrNotSupported = errors.New("glue: operation not supported")
	// ErrExecution wraps failures of the underlying store.
	ErrExecution = errors.New("glue: execution error")
)

// ErrNotFound is returned by the typed helpers when no row matches. The untyped
// Find-style operations report absence as (false, nil) instead.
var ErrNotFound = errors.New("glue: requested record not found")

// Additional package-level errors
var (
	ErrTransactionDone = errors.New("glue: unit of work has already been committed or rolled back")
	ErrCountOverflow   = errors.New("glue: count exceeds 32-bit range")
	ErrNilEntity       = errors.New("glue: nil entity")
	ErrKeyCount        = errors.New("glue: wrong number of key values")
	ErrDatabaseNotSet  = errors.New("glue: database not set")
	ErrDialectNotSet   = errors.New("glue: dialect not set")
)
