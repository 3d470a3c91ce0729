// SPDX-License-Identifier: MPL-2.0

// Package resolver maps module load requests to module files of a resolved
// package set.
//
// Two query forms exist. ResolveMinimumVersion picks the highest version at
// or above a minimum, breaking ties by declaration order (the first module
// met while walking packages, then their modules, wins). ResolveRange picks
// the first module in declaration order whose version lies in the range;
// callers narrow the range to express priority.
//
// Names compare case-insensitively in both forms. Neither form performs I/O.
package resolver

import (
	"slices"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

// Resolver answers module queries against an immutable package list.
type Resolver struct {
	packages []assets.Package
}

// New creates a Resolver over a copy of packages.
func New(packages []assets.Package) *Resolver {
	return &Resolver{packages: slices.Clone(packages)}
}

// Packages returns the packages in declaration order.
func (r *Resolver) Packages() []assets.Package {
	return slices.Clone(r.packages)
}

// Modules returns every module in package-then-module declaration order.
func (r *Resolver) Modules() []assets.Module {
	var out []assets.Module
	for _, p := range r.packages {
		out = append(out, p.Modules...)
	}
	return out
}

// PackagesMatching returns the packages named name (ignoring case) whose
// version satisfies rng, in declaration order.
func (r *Resolver) PackagesMatching(name string, rng versioning.Range) []assets.Package {
	var out []assets.Package
	for _, p := range r.packages {
		if p.NameIs(name) && rng.Satisfies(p.Version) {
			out = append(out, p)
		}
	}
	return out
}

// ResolveMinimumVersion returns the highest-versioned module named name with
// a version >= minVersion. A nil minVersion accepts every version. Among
// modules sharing the highest version the first in declaration order wins.
func (r *Resolver) ResolveMinimumVersion(name string, minVersion *versioning.Version) (assets.Module, bool) {
	var (
		best  assets.Module
		found bool
	)
	for _, p := range r.packages {
		for _, m := range p.Modules {
			if !m.NameIs(name) {
				continue
			}
			if minVersion != nil && m.Version.Less(*minVersion) {
				continue
			}
			// Strictly greater only, so earlier modules keep ties.
			if !found || best.Version.Less(m.Version) {
				best, found = m, true
			}
		}
	}
	return best, found
}

// ResolveRange returns the first module in declaration order named name
// whose version satisfies rng. The zero Range accepts every version.
func (r *Resolver) ResolveRange(name string, rng versioning.Range) (assets.Module, bool) {
	for _, p := range r.packages {
		for _, m := range p.Modules {
			if m.NameIs(name) && rng.Satisfies(m.Version) {
				return m, true
			}
		}
	}
	return assets.Module{}, false
}
