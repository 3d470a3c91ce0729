// SPDX-License-Identifier: MPL-2.0

// Package issue holds the catalog of user-facing problems pullpkg can report,
// each with Markdown remediation steps rendered through glamour, and the
// ActionableError type the CLI wraps failures in.
package issue
