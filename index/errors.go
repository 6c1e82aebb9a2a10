package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphstore/values"
)

var (
	// ErrUnsupportedOrder is returned when a read requests an ordering the
	// backend did not declare for the query's value categories.
	ErrUnsupportedOrder = errors.New("unsupported index order")

	// ErrUnknownUpdateMode is returned when an updater receives an entry
	// update with an undefined mode. The offending entry is rejected and
	// index state is left unchanged.
	ErrUnknownUpdateMode = errors.New("unknown index update mode")

	// ErrNotOnline is returned when an operation requires an online
	// accessor, e.g. a consistency check after Drop or Close.
	ErrNotOnline = errors.New("index accessor is not online")
)

// ConflictError indicates a unique-value conflict during update
// application: the processed entity's values collide with another entity's
// committed values. Distinct from decode or I/O failures so callers can
// abort the surrounding transaction.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConflictError struct {
	EntityID      uint64
	OtherEntityID uint64
	Values        []values.Value
	cause         error
}

// NewConflictError creates a ConflictError for the two colliding entities.
func NewConflictError(entityID, otherEntityID uint64, vals []values.Value) *ConflictError {
	return &ConflictError{EntityID: entityID, OtherEntityID: otherEntityID, Values: vals}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("uniqueness conflict: entity %d collides with entity %d", e.EntityID, e.OtherEntityID)
}

func (e *ConflictError) Unwrap() error { return e.cause }
