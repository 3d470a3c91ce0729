// SPDX-License-Identifier: MPL-2.0

package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pullpkg/pullpkg/pkg/versioning"
)

// placeholderFile marks an intentionally empty asset folder in NuGet lock
// documents. It is never a loadable module.
const placeholderFile = "_._"

// ErrAssetsParse is the sentinel error wrapped by ParseError.
var ErrAssetsParse = errors.New("assets parse failed")

type (
	// ParseError is returned when the lock document lacks a required section
	// or cannot be read at all.
	ParseError struct {
		Source    string
		Framework string
		Reason    string
		Err       error
	}

	// Skipped records an entry dropped during parsing.
	Skipped struct {
		// Entry is the target key, e.g. "Foo/not-a-version".
		Entry string
		// Dependency is set when only a dependency of Entry was dropped.
		Dependency string
		Reason     string
	}

	// Result is the outcome of parsing one framework section.
	Result struct {
		Framework string
		Packages  []Package
		Skipped   []Skipped
		// Installed counts the "package" libraries of the whole document.
		Installed int
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse assets")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	if e.Framework != "" {
		fmt.Fprintf(&b, " for %q", e.Framework)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns ErrAssetsParse and the underlying cause, if any.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAssetsParse}
	}
	return []error{ErrAssetsParse, e.Err}
}

// ParseFile reads and parses the lock document at file.
func ParseFile(file, framework, installRoot string) (*Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &ParseError{Source: file, Framework: framework, Reason: "read lock document", Err: err}
	}
	res, err := Parse(data, framework, installRoot)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Source = file
		}
		return nil, err
	}
	return res, nil
}

// Parse extracts the packages restored for framework from a lock document.
// Module paths are rooted at installRoot, which is made absolute, and are
// installRoot/<name>/<version>/<runtime path> unless the document's
// libraries section records a path for the entry. That recorded path (the
// lower-cased folder NuGet actually installs into) replaces <name>/<version>.
func Parse(document []byte, framework, installRoot string) (*Result, error) {
	if !gjson.ValidBytes(document) {
		return nil, &ParseError{Framework: framework, Reason: "document is not valid JSON"}
	}
	root, err := filepath.Abs(installRoot)
	if err != nil {
		return nil, &ParseError{Framework: framework, Reason: "resolve install root", Err: err}
	}

	doc := gjson.ParseBytes(document)
	targets := doc.Get("targets")
	if !targets.IsObject() {
		return nil, &ParseError{Framework: framework, Reason: "missing targets section"}
	}
	section, ok := member(targets, framework)
	if !ok {
		return nil, &ParseError{Framework: framework, Reason: "framework not present in targets"}
	}
	if !section.IsObject() {
		return nil, &ParseError{Framework: framework, Reason: "framework section is not an object"}
	}

	p := parser{
		root:      root,
		libraries: libraryPaths(doc.Get("libraries")),
		seen:      make(map[string]struct{}),
		result:    &Result{Framework: framework, Packages: []Package{}, Installed: installedCount(doc.Get("libraries"))},
	}
	section.ForEach(func(key, entry gjson.Result) bool {
		p.entry(key.String(), entry)
		return true
	})
	return p.result, nil
}

type parser struct {
	root      string
	libraries map[string]string
	seen      map[string]struct{}
	result    *Result
}

func (p *parser) skip(entry, dep, reason string) {
	p.result.Skipped = append(p.result.Skipped, Skipped{Entry: entry, Dependency: dep, Reason: reason})
}

func (p *parser) entry(key string, entry gjson.Result) {
	name, verText, ok := strings.Cut(key, "/")
	if !ok || name == "" {
		p.skip(key, "", "key is not <name>/<version>")
		return
	}
	version, err := versioning.ParseVersion(verText)
	if err != nil {
		p.skip(key, "", err.Error())
		return
	}
	id := identity(name, version)
	if _, dup := p.seen[id]; dup {
		p.skip(key, "", "duplicate package identity")
		return
	}
	p.seen[id] = struct{}{}

	pkg := Package{
		Name:         name,
		Version:      version,
		Dependencies: []Dependency{},
		Modules:      []Module{},
	}

	entry.Get("dependencies").ForEach(func(depName, rangeText gjson.Result) bool {
		r, err := versioning.ParseRange(rangeText.String())
		if err != nil {
			p.skip(key, depName.String(), err.Error())
			return true
		}
		pkg.Dependencies = append(pkg.Dependencies, Dependency{Name: depName.String(), Range: r})
		return true
	})

	libDir := p.libraries[key]
	if libDir == "" {
		libDir = name + "/" + version.String()
	}
	entry.Get("runtime").ForEach(func(rel, _ gjson.Result) bool {
		relPath := rel.String()
		base := path.Base(relPath)
		if base == placeholderFile {
			return true
		}
		pkg.Modules = append(pkg.Modules, Module{
			Name:    strings.TrimSuffix(base, path.Ext(base)),
			Version: version,
			Path:    filepath.Join(p.root, filepath.FromSlash(libDir), filepath.FromSlash(relPath)),
		})
		return true
	})

	p.result.Packages = append(p.result.Packages, pkg)
}

// member returns the value of obj[key] using exact key comparison, which
// avoids gjson path escaping for keys such as "net8.0".
func member(obj gjson.Result, key string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

func libraryPaths(libs gjson.Result) map[string]string {
	paths := make(map[string]string)
	libs.ForEach(func(k, v gjson.Result) bool {
		if p := v.Get("path").String(); p != "" {
			if _, exists := paths[k.String()]; !exists {
				paths[k.String()] = p
			}
		}
		return true
	})
	return paths
}

func installedCount(libs gjson.Result) int {
	n := 0
	libs.ForEach(func(_, v gjson.Result) bool {
		if v.Get("type").String() == "package" {
			n++
		}
		return true
	})
	return n
}
