// SPDX-License-Identifier: MPL-2.0

// Package assets describes resolved packages and their runtime modules, and
// parses them out of a restore engine's lock document (project.assets.json).
//
// Only the parts of the document the loader needs are read:
//
//	targets.<framework>."<name>/<version>".dependencies  name -> range text
//	targets.<framework>."<name>/<version>".runtime       relative module path -> {}
//	libraries."<name>/<version>".path                    install-relative folder
//
// Entries are returned in document order. Malformed entries are skipped
// and reported in Result.Skipped; only a structurally absent framework
// section fails the parse.
package assets
