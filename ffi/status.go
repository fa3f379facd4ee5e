package ffi

import (
	"errors"
	"fmt"

	"github.com/TheBitDrifter/depot"
	"github.com/TheBitDrifter/depot/schedule"
)

// Status is the result code of every Table function.
type Status int32

const (
	StatusOK Status = iota
	StatusStaleEntity
	StatusComponentAbsent
	StatusComponentPresent
	StatusAccessConflict
	StatusCapacityExhausted
	StatusInvalidArgument
	StatusUnknownWorld
	StatusUnknownComponent
	StatusUnknownSystem
	StatusCyclicDependency
	StatusSystemFailed
)

var statusNames = map[Status]string{
	StatusOK:                "ok",
	StatusStaleEntity:       "stale entity",
	StatusComponentAbsent:   "component absent",
	StatusComponentPresent:  "component present",
	StatusAccessConflict:    "access conflict",
	StatusCapacityExhausted: "capacity exhausted",
	StatusInvalidArgument:   "invalid argument",
	StatusUnknownWorld:      "unknown world",
	StatusUnknownComponent:  "unknown component",
	StatusUnknownSystem:     "unknown system",
	StatusCyclicDependency:  "cyclic dependency",
	StatusSystemFailed:      "system failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// statusError carries a non-OK status returned by a foreign system callback.
type statusError struct {
	status Status
}

func (e statusError) Error() string {
	return "system callback returned " + e.status.String()
}

func statusOf(err error) Status {
	var callback statusError
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, depot.ErrStaleEntity):
		return StatusStaleEntity
	case errors.Is(err, depot.ErrComponentAbsent):
		return StatusComponentAbsent
	case errors.Is(err, depot.ErrComponentPresent):
		return StatusComponentPresent
	case errors.Is(err, depot.ErrAccessConflict):
		return StatusAccessConflict
	case errors.Is(err, depot.ErrCapacityExhausted):
		return StatusCapacityExhausted
	case errors.Is(err, schedule.ErrUnknownSystem):
		return StatusUnknownSystem
	case errors.Is(err, schedule.ErrCyclicDependency):
		return StatusCyclicDependency
	case errors.As(err, &callback):
		return callback.status
	}
	var failed *schedule.SystemError
	if errors.As(err, &failed) {
		return StatusSystemFailed
	}
	return StatusInvalidArgument
}
