package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCyclicDependency = errors.New("cyclic system ordering")
	ErrUnknownSystem    = errors.New("unknown system")
	ErrDuplicateSystem  = errors.New("duplicate system")
)

// CyclicDependencyError lists the systems whose After/Before hints form a
// cycle, in registration order.
type CyclicDependencyError struct {
	Systems []string
}

func (e CyclicDependencyError) Error() string {
	return fmt.Sprintf("ordering hints form a cycle between systems: %s", strings.Join(e.Systems, ", "))
}

func (e CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

type UnknownSystemError struct {
	System    string
	Reference string
}

func (e UnknownSystemError) Error() string {
	return fmt.Sprintf("system %q orders itself against unknown system %q", e.System, e.Reference)
}

func (e UnknownSystemError) Unwrap() error { return ErrUnknownSystem }

type DuplicateSystemError struct {
	Name string
}

func (e DuplicateSystemError) Error() string {
	return fmt.Sprintf("system %q is already registered", e.Name)
}

func (e DuplicateSystemError) Unwrap() error { return ErrDuplicateSystem }

// SystemError wraps the error a system returned or its commands produced.
type SystemError struct {
	System string
	Tick   uint64
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system %q failed at tick %d: %v", e.System, e.Tick, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }
