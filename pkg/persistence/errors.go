// Package persistence provides standardized error types shared by all
// storage backends.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound indicates no definition matched the requested
	// name (and version, when given).
	ErrDefinitionNotFound = errors.New("definition not found")

	// ErrInstanceNotFound indicates an instance was not found by id.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrTaskNotFound indicates a task was not found by id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidFilter indicates a Query filter referenced an unsupported
	// sort field or order.
	ErrInvalidFilter = errors.New("invalid instance filter")
)

// StoreError wraps a storage failure with the operation and entity that
// produced it.
type StoreError struct {
	Op     string // Operation being performed, e.g. "Save", "Query"
	Entity string // "definition", "instance" or "task"
	ID     string // Identifier if applicable
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a wrapped storage error.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether the error indicates any missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) ||
		errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}
