package glue

import (
	"errors"
	"strings"

	"github.com/xingh/glue/common"
)

// Error classes, re-exported from common so callers only import glue.
var (
	ErrConfiguration = common.ErrConfiguration
	ErrMapping       = common.ErrMapping
	ErrNotSupported  = common.ErrNotSupported
	ErrExecution     = common.ErrExecution
)

// Additional package-level errors
var (
	ErrNotFound        = common.ErrNotFound
	ErrTransactionDone = common.ErrTransactionDone
	ErrCountOverflow   = common.ErrCountOverflow
	ErrNilEntity       = common.ErrNilEntity
	ErrKeyCount        = common.ErrKeyCount
	ErrDatabaseNotSet  = common.ErrDatabaseNotSet
	ErrDialectNotSet   = common.ErrDialectNotSet
)

// Kind classifies an Error.
type Kind int

const (
	KindExecution Kind = iota
	KindConfiguration
	KindMapping
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindMapping:
		return "mapping"
	case KindNotSupported:
		return "not supported"
	default:
		return "execution"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindMapping:
		return ErrMapping
	case KindNotSupported:
		return ErrNotSupported
	default:
		return ErrExecution
	}
}

// Error is returned by every Provider and UnitOfWork operation that fails. It carries
// the failing operation, the entity type and the SQL template involved. The cause stays
// reachable through errors.Is / errors.As.
type Error struct {
	Kind   Kind
	Op     string // Operation, e.g. "Find" or "Insert"
	Entity string // Go type of the entity, empty when not known
	SQL    string // SQL template, empty when the failure happened before execution
	Err    error

	debug bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("glue: ")
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.debug && e.SQL != "" {
		b.WriteString(" [sql: ")
		b.WriteString(e.SQL)
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's Kind, so errors.Is(err, ErrExecution) holds for
// a wrapped driver failure.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// kindOf classifies a cause. Misuse such as a wrong key count or a nil entity is a
// configuration error; anything the store reports is an execution error.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotSupported):
		return KindNotSupported
	case errors.Is(err, ErrMapping):
		return KindMapping
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrKeyCount),
		errors.Is(err, ErrNilEntity):
		return KindConfiguration
	default:
		return KindExecution
	}
}
