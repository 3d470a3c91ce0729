// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pullpkg command-line interface.
//
// Commands delegate to pkg/puller for restores and loading contexts, to
// internal/pullfile for the project declaration and to internal/config
// for user settings. Errors returned by command handlers are classified
// into issue catalog entries and rendered once by the fang error handler.
package cmd
