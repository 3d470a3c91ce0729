// SPDX-License-Identifier: MPL-2.0

// Package config handles pullpkg configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/pullpkg/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/pullpkg/config.cue on macOS, %APPDATA%\pullpkg\config.cue
// on Windows), falling back to config.cue in the working directory. PULLPKG_* environment
// variables override file values, for example PULLPKG_ENGINE_COMMAND or PULLPKG_UI_VERBOSE.
//
// Files are validated against an embedded CUE schema (config_schema.cue) before they are
// merged, so unknown fields and malformed values are reported with their CUE paths.
package config
