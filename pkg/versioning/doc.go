// SPDX-License-Identifier: MPL-2.0

// Package versioning implements package versions and version ranges in the
// NuGet notation used by package lock documents.
//
// A Version is major.minor.patch[.revision] with an optional pre-release
// label and build metadata. A Range is an interval over versions:
//
//	1.0          >= 1.0
//	[1.0]        exactly 1.0
//	[1.0,2.0)    >= 1.0 and < 2.0
//	(,2.0]       <= 2.0
//	*            any version
//
// Malformed text never degrades into the universal range; ParseRange
// returns an error wrapping ErrInvalidRange instead.
package versioning
