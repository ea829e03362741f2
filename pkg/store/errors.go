package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by lookups on ids or labels that do not exist.
	// Callers branch on it; it is not an exceptional condition.
	ErrNotFound = errors.New("not found")

	// ErrUnknownEndpoint is returned when an edge references a node id that
	// is not present in the store.
	ErrUnknownEndpoint = errors.New("unknown edge endpoint")

	// ErrIntegrity is returned when a write would violate graph integrity,
	// e.g. a dangling edge or an invalid merge target.
	ErrIntegrity = errors.New("integrity violation")

	// ErrUnavailable is returned when the backing store cannot be reached.
	// Mid-operation partial writes are never left visible.
	ErrUnavailable = errors.New("store unavailable")
)

// NotFoundf wraps ErrNotFound with context about the missing item.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}
