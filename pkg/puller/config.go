// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pullpkg/pullpkg/pkg/versioning"
)

// CatchAllPattern routes every package id to a source.
const CatchAllPattern = "*"

type (
	// PackageRequest is one package to pull: an id and the version string
	// as declared, with the range it parses to.
	PackageRequest struct {
		ID      string
		Version string
		Range   versioning.Range
	}

	// Source is a package feed with its optional package id patterns.
	Source struct {
		Name     string
		URI      string
		Patterns []string
	}

	// Spec is a validated pull declaration.
	Spec struct {
		Framework Framework
		Packages  []PackageRequest
		Sources   []Source
		Directory string
	}

	// Config accumulates pull declarations. The first invalid declaration
	// is kept and reported by Build; later calls are still recorded so a
	// chain never panics midway.
	Config struct {
		framework Framework
		packages  []PackageRequest
		sources   []*Source
		directory string
		err       error
		logger    *log.Logger
	}

	// SourceConfig is returned by Config.Source so patterns can be attached
	// to the source just declared. Every Config method remains available.
	SourceConfig struct {
		*Config
		source *Source
	}
)

func newConfig(logger *log.Logger) *Config {
	return &Config{framework: DefaultFramework, logger: logger}
}

func (c *Config) fail(field, value, reason string) {
	if c.err == nil {
		c.err = &ConfigError{Field: field, Value: value, Reason: reason}
	}
}

// Framework sets the target framework. Unknown monikers are accepted with
// a warning because newer engines understand more than this package lists.
func (c *Config) Framework(f Framework) *Config {
	f = Framework(strings.TrimSpace(string(f)))
	if err := f.Validate(); err != nil {
		c.fail("framework", string(f), "must be a non-empty moniker such as net8.0")
		return c
	}
	if !f.IsKnown() {
		c.logger.Warn("unknown target framework, passing it through", "framework", f)
	}
	c.framework = f
	return c
}

// Package appends a package to pull. version is a NuGet version or range
// ("1.0.0" means 1.0.0 or newer, "[1.0.0]" exactly that version).
func (c *Config) Package(id, version string) *Config {
	id = strings.TrimSpace(id)
	version = strings.TrimSpace(version)

	switch {
	case id == "":
		c.fail("package id", "", "must not be empty")
		return c
	case version == "":
		c.fail("package version", id, "must not be empty")
		return c
	}
	if slices.ContainsFunc(c.packages, func(p PackageRequest) bool { return strings.EqualFold(p.ID, id) }) {
		c.fail("package id", id, "already declared")
		return c
	}
	rng, err := versioning.ParseRange(version)
	if err != nil {
		c.fail("package version", version, err.Error())
		return c
	}
	c.packages = append(c.packages, PackageRequest{ID: id, Version: version, Range: rng})
	return c
}

// Source appends a package feed. Names and URIs must be unique.
func (c *Config) Source(name, uri string) *SourceConfig {
	name = strings.TrimSpace(name)
	uri = strings.TrimSpace(uri)
	sc := &SourceConfig{Config: c}

	switch {
	case name == "":
		c.fail("source name", "", "must not be empty")
		return sc
	case uri == "":
		c.fail("source uri", name, "must not be empty")
		return sc
	case slices.ContainsFunc(c.sources, func(s *Source) bool { return s.Name == name }):
		c.fail("source name", name, "already declared")
		return sc
	case slices.ContainsFunc(c.sources, func(s *Source) bool { return s.URI == uri }):
		c.fail("source uri", uri, "already declared")
		return sc
	}

	sc.source = &Source{Name: name, URI: uri}
	c.sources = append(c.sources, sc.source)
	return sc
}

// Directory sets the working directory of the pull. It is cleared on
// every Pull.
func (c *Config) Directory(path string) *Config {
	path = strings.TrimSpace(path)
	if path == "" {
		c.fail("directory", "", "must not be empty")
		return c
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		c.fail("directory", path, err.Error())
		return c
	}
	c.directory = abs
	return c
}

// WithMapping routes package ids matching pattern to this source. Blank
// patterns are ignored and duplicates are collapsed.
func (s *SourceConfig) WithMapping(pattern string) *SourceConfig {
	pattern = strings.TrimSpace(pattern)
	if s.source == nil || pattern == "" || slices.Contains(s.source.Patterns, pattern) {
		return s
	}
	if !doublestar.ValidatePattern(pattern) {
		s.fail("source mapping", pattern, "malformed pattern")
		return s
	}
	s.source.Patterns = append(s.source.Patterns, pattern)
	return s
}

// spec validates the accumulated declarations.
func (c *Config) spec() (Spec, error) {
	if c.err != nil {
		return Spec{}, c.err
	}
	if c.directory == "" {
		return Spec{}, &ConfigError{Field: "directory", Reason: "must be set before pulling"}
	}

	s := Spec{
		Framework: c.framework,
		Packages:  slices.Clone(c.packages),
		Directory: c.directory,
	}
	for _, src := range c.sources {
		s.Sources = append(s.Sources, Source{Name: src.Name, URI: src.URI, Patterns: slices.Clone(src.Patterns)})
	}
	if amb := s.Ambiguities(); len(amb) > 0 {
		c.logger.Warn("several sources claim every package, the first declared wins", "sources", amb)
	}
	return s, nil
}

// Matches reports whether the source's patterns claim id. Matching is
// case-insensitive; a source without patterns claims nothing.
func (s Source) Matches(id string) bool {
	_, ok := s.match(id)
	return ok
}

// match returns the most specific pattern claiming id.
func (s Source) match(id string) (string, bool) {
	id = strings.ToLower(id)
	best, found := "", false
	for _, p := range s.Patterns {
		ok, err := doublestar.Match(strings.ToLower(p), id)
		if err != nil || !ok {
			continue
		}
		if !found || specificity(p) > specificity(best) {
			best, found = p, true
		}
	}
	return best, found
}

// specificity ranks patterns: exact ids above prefixes, longer prefixes
// above shorter ones.
func specificity(pattern string) int {
	if !strings.ContainsAny(pattern, "*?[{") {
		return 1 << 20
	}
	return len(pattern)
}

// HasMappings reports whether any source declares a pattern.
func (s Spec) HasMappings() bool {
	return slices.ContainsFunc(s.Sources, func(src Source) bool { return len(src.Patterns) > 0 })
}

// Ambiguities returns the names of the sources declaring the catch-all
// pattern when more than one does.
func (s Spec) Ambiguities() []string {
	var names []string
	for _, src := range s.Sources {
		if slices.Contains(src.Patterns, CatchAllPattern) {
			names = append(names, src.Name)
		}
	}
	if len(names) < 2 {
		return nil
	}
	return names
}

// SourceFor returns the source a package id is fetched from. Without any
// mapping every source is eligible and the first is reported. With
// mappings the most specific matching pattern wins and ties go to the
// source declared first.
func (s Spec) SourceFor(id string) (Source, bool) {
	if len(s.Sources) == 0 {
		return Source{}, false
	}
	if !s.HasMappings() {
		return s.Sources[0], true
	}

	var (
		best      Source
		bestScore = -1
	)
	for _, src := range s.Sources {
		p, ok := src.match(id)
		if !ok {
			continue
		}
		if score := specificity(p); score > bestScore {
			best, bestScore = src, score
		}
	}
	return best, bestScore >= 0
}

// Package returns the request declared for id, ignoring case.
func (s Spec) Package(id string) (PackageRequest, bool) {
	i := slices.IndexFunc(s.Packages, func(p PackageRequest) bool { return strings.EqualFold(p.ID, id) })
	if i < 0 {
		return PackageRequest{}, false
	}
	return s.Packages[i], true
}
