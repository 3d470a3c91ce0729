// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"errors"
	"fmt"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/modimage"
)

var (
	// ErrModuleNotFound is returned when neither the resolver nor the
	// fallback lookup knows the requested module, or its file is missing.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInvalidModuleFormat is returned when a module file exists but is
	// not a loadable image.
	ErrInvalidModuleFormat = modimage.ErrInvalidFormat

	// ErrContextUnloading is returned by loads and handle access after
	// RequestUnload.
	ErrContextUnloading = errors.New("loading context is unloading")

	// ErrUnsupportedOperation is returned by RequestUnload on a
	// non-collectible context.
	ErrUnsupportedOperation = errors.New("operation not supported by loading context")

	// ErrHandleReleased is returned by Handle.Image after Release.
	ErrHandleReleased = errors.New("module handle released")
)

type (
	// ModuleNotFoundError reports a module request nothing could satisfy.
	ModuleNotFoundError struct {
		Name       string
		Constraint string
	}

	// LoadError reports the module whose load failed.
	LoadError struct {
		Module assets.Module
		Err    error
	}

	// StateError reports an operation the context's state does not allow.
	StateError struct {
		Context string
		Op      string
		State   State
		Err     error
	}
)

// Error implements the error interface.
func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %q (%s) not found", e.Name, e.Constraint)
}

// Unwrap returns ErrModuleNotFound so callers can use errors.Is for programmatic detection.
func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s from %s: %v", e.Module, e.Module.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s on context %q in state %s: %v", e.Op, e.Context, e.State, e.Err)
}

// Unwrap returns the state sentinel.
func (e *StateError) Unwrap() error { return e.Err }
