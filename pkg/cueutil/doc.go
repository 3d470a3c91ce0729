// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles user CUE documents against an embedded schema
// and decodes them into Go values.
//
// Pull files and the CLI configuration share the same flow: compile the
// schema, unify the user document with one schema definition, validate
// and decode.
//
//	//go:embed pullfile_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Pullfile](schema, data, "#Pullfile",
//		cueutil.WithFilename("pullfile.cue"))
//
// Validation failures are returned as *ValidationError carrying the CUE
// path of every offending field.
package cueutil
