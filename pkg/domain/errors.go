package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrReferenceNotFound = errors.New("reference not found")
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ReferenceNotFoundError is returned when an add names a parent that does not exist.
type ReferenceNotFoundError struct {
	Entity EntityType
	ID     uint64
}

func (e ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("referenced %s %d not found", e.Entity, e.ID)
}

// Is reports whether target is ErrReferenceNotFound.
func (e ReferenceNotFoundError) Is(target error) bool { return target == ErrReferenceNotFound }

// NotFoundError is returned when a lookup names an id that does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     uint64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidArgumentError is returned when a required field fails a shape check.
type InvalidArgumentError struct {
	Entity EntityType
	Field  string
}

func (e InvalidArgumentError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("invalid argument: %s", e.Field)
	}
	return fmt.Sprintf("invalid argument: %s.%s", e.Entity, e.Field)
}

// Is reports whether target is ErrInvalidArgument.
func (e InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
