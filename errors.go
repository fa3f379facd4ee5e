package depot

import (
	"errors"
	"fmt"
)

var (
	ErrStaleEntity       = errors.New("stale entity handle")
	ErrComponentAbsent   = errors.New("component absent")
	ErrComponentPresent  = errors.New("component already present")
	ErrAccessConflict    = errors.New("access conflict")
	ErrCapacityExhausted = errors.New("capacity exhausted")
)

type StaleEntityError struct {
	Entity Entity
}

func (e StaleEntityError) Error() string {
	return fmt.Sprintf("entity %v is stale or unknown", e.Entity)
}

func (e StaleEntityError) Unwrap() error { return ErrStaleEntity }

type ComponentExistsError struct {
	Component Component
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component already exists on entity: %s", e.Component.Descriptor().Name())
}

func (e ComponentExistsError) Unwrap() error { return ErrComponentPresent }

type ComponentNotFoundError struct {
	Component Component
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity: %s", e.Component.Descriptor().Name())
}

func (e ComponentNotFoundError) Unwrap() error { return ErrComponentAbsent }

// AccessConflictError reports a programming error: conflicting access to a
// component stream, or a structural change while the world is being iterated.
// It is raised as a panic from the storage and query layers.
type AccessConflictError struct {
	Op     string
	Reason string
}

func (e AccessConflictError) Error() string {
	return fmt.Sprintf("access conflict in %s: %s", e.Op, e.Reason)
}

func (e AccessConflictError) Unwrap() error { return ErrAccessConflict }

type CapacityExhaustedError struct {
	Resource string
	Limit    int
}

func (e CapacityExhaustedError) Error() string {
	return fmt.Sprintf("%s at maximum capacity (%d)", e.Resource, e.Limit)
}

func (e CapacityExhaustedError) Unwrap() error { return ErrCapacityExhausted }
