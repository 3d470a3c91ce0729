// SPDX-License-Identifier: MPL-2.0

// Package pullfile reads declarative pull files.
//
// A pull file names the target framework, the pull directory, the packages to
// restore and the sources to restore them from. It is written either in CUE
// (pullfile.cue, validated against the embedded #Pullfile schema) or in TOML
// (pullfile.toml):
//
//	framework = "net8.0"
//	directory = ".pullpkg"
//
//	[[packages]]
//	id = "Humanizer.Core"
//	version = "2.14.1"
//
//	[[sources]]
//	name = "nuget"
//	uri = "https://api.nuget.org/v3/index.json"
//	mappings = ["*"]
//
// File.Configure turns a parsed file into a puller builder callback.
package pullfile
