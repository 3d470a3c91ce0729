// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Target framework monikers understood by the restore engine.
const (
	Net11  Framework = "net11"
	Net20  Framework = "net20"
	Net35  Framework = "net35"
	Net40  Framework = "net40"
	Net403 Framework = "net403"
	Net45  Framework = "net45"
	Net451 Framework = "net451"
	Net452 Framework = "net452"
	Net46  Framework = "net46"
	Net461 Framework = "net461"
	Net462 Framework = "net462"
	Net47  Framework = "net47"
	Net471 Framework = "net471"
	Net472 Framework = "net472"
	Net48  Framework = "net48"
	Net481 Framework = "net481"

	NetCoreApp10 Framework = "netcoreapp1.0"
	NetCoreApp11 Framework = "netcoreapp1.1"
	NetCoreApp20 Framework = "netcoreapp2.0"
	NetCoreApp21 Framework = "netcoreapp2.1"
	NetCoreApp22 Framework = "netcoreapp2.2"
	NetCoreApp30 Framework = "netcoreapp3.0"
	NetCoreApp31 Framework = "netcoreapp3.1"

	NetStandard10 Framework = "netstandard1.0"
	NetStandard11 Framework = "netstandard1.1"
	NetStandard12 Framework = "netstandard1.2"
	NetStandard13 Framework = "netstandard1.3"
	NetStandard14 Framework = "netstandard1.4"
	NetStandard15 Framework = "netstandard1.5"
	NetStandard16 Framework = "netstandard1.6"
	NetStandard20 Framework = "netstandard2.0"
	NetStandard21 Framework = "netstandard2.1"

	Net50 Framework = "net5.0"
	Net60 Framework = "net6.0"
	Net70 Framework = "net7.0"
	Net80 Framework = "net8.0"
	Net90 Framework = "net9.0"

	// DefaultFramework is used when a pull declares no framework.
	DefaultFramework = Net80
)

// ErrInvalidFramework is the sentinel error wrapped by InvalidFrameworkError.
var ErrInvalidFramework = errors.New("invalid target framework")

var knownFrameworks = []Framework{
	Net11, Net20, Net35, Net40, Net403, Net45, Net451, Net452, Net46, Net461, Net462,
	Net47, Net471, Net472, Net48, Net481,
	NetCoreApp10, NetCoreApp11, NetCoreApp20, NetCoreApp21, NetCoreApp22, NetCoreApp30, NetCoreApp31,
	NetStandard10, NetStandard11, NetStandard12, NetStandard13, NetStandard14, NetStandard15, NetStandard16,
	NetStandard20, NetStandard21,
	Net50, Net60, Net70, Net80, Net90,
}

type (
	// Framework is a target framework moniker such as "net8.0". It selects
	// the lock document section the pulled modules are read from.
	Framework string

	// InvalidFrameworkError is returned when a Framework value is empty or
	// contains whitespace.
	InvalidFrameworkError struct {
		Value Framework
	}
)

// Error implements the error interface.
func (e *InvalidFrameworkError) Error() string {
	return fmt.Sprintf("invalid target framework %q (must be a non-empty token without spaces)", e.Value)
}

// Unwrap returns ErrInvalidFramework so callers can use errors.Is for programmatic detection.
func (e *InvalidFrameworkError) Unwrap() error { return ErrInvalidFramework }

// Validate returns nil if the Framework is a usable token. Unknown tokens
// are valid; use IsKnown to tell them apart.
func (f Framework) Validate() error {
	s := string(f)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		return &InvalidFrameworkError{Value: f}
	}
	return nil
}

// IsKnown reports whether f is one of the predeclared monikers.
func (f Framework) IsKnown() bool { return slices.Contains(knownFrameworks, f) }

// String returns the moniker.
func (f Framework) String() string { return string(f) }

// KnownFrameworks returns the predeclared monikers, oldest first.
func KnownFrameworks() []Framework { return slices.Clone(knownFrameworks) }
