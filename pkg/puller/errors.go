// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigError.
	ErrConfiguration = errors.New("invalid pull configuration")

	// ErrDirectoryPreparation is the sentinel error wrapped by DirectoryError.
	ErrDirectoryPreparation = errors.New("pull directory preparation failed")

	// ErrRestoreFailed is the sentinel error wrapped by RestoreError.
	ErrRestoreFailed = errors.New("package restore failed")

	// ErrIncompatibleContext is returned when a loading context passed to
	// LoadPackage was not produced by the same Puller.
	ErrIncompatibleContext = errors.New("loading context not produced by this puller")

	// ErrNotPulled is returned by load operations before a successful Pull.
	ErrNotPulled = errors.New("packages not pulled")
)

type (
	// ConfigError reports an invalid declaration made while building a Puller.
	ConfigError struct {
		Field  string
		Value  string
		Reason string
	}

	// DirectoryError reports a file system failure while preparing the pull
	// directory or writing its generated files.
	DirectoryError struct {
		Op   string
		Path string
		Err  error
	}

	// RestoreError reports an unsuccessful engine run.
	RestoreError struct {
		Diagnostics []string
		Err         error
	}
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrConfiguration so callers can use errors.Is for programmatic detection.
func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface.
func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns both the sentinel and the file system cause.
func (e *DirectoryError) Unwrap() []error { return []error{ErrDirectoryPreparation, e.Err} }

// Error implements the error interface.
func (e *RestoreError) Error() string {
	var b strings.Builder
	b.WriteString(ErrRestoreFailed.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Diagnostics) > 0 {
		b.WriteString(" (")
		b.WriteString(e.Diagnostics[0])
		if n := len(e.Diagnostics) - 1; n > 0 {
			fmt.Fprintf(&b, " and %d more", n)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns both the sentinel and the engine cause, if any.
func (e *RestoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRestoreFailed}
	}
	return []error{ErrRestoreFailed, e.Err}
}
