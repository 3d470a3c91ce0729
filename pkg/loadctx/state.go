// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"errors"
	"fmt"
)

const (
	// StateCreated indicates the context exists but nothing was loaded yet.
	StateCreated State = iota
	// StateActive indicates the context has served at least one load request.
	StateActive
	// StateUnloading indicates unload was requested and handles are still outstanding.
	StateUnloading
	// StateUnloaded is terminal: every handle was released and every image closed.
	StateUnloaded
)

// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is the lifecycle state of a loading context.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	// It wraps ErrInvalidState for errors.Is() compatibility.
	InvalidStateError struct {
		Value State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateUnloading:
		return "unloading"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=created, 1=active, 2=unloading, 3=unloaded)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Validate returns nil if the State is one of the defined lifecycle states,
// or an error wrapping ErrInvalidState if it is not.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateActive, StateUnloading, StateUnloaded:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// AcceptsLoads reports whether load requests are permitted in this state.
func (s State) AcceptsLoads() bool {
	return s == StateCreated || s == StateActive
}
