package graphstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/record"
)

var (
	// ErrNotFound is returned when an entity has no stored properties.
	ErrNotFound = errors.New("entity not found")

	// ErrIndexNotFound is returned when addressing an unregistered index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists is returned when registering a name twice.
	ErrIndexExists = errors.New("index already registered")

	// ErrConflict unifies uniqueness conflicts raised by index backends.
	ErrConflict = errors.New("uniqueness conflict")

	// ErrCorrupted unifies decode and overflow-resolution failures from the
	// property store.
	ErrCorrupted = errors.New("corrupted property data")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var conflict *index.ConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	if errors.Is(err, record.ErrUnresolvedReference) {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return err
}
