// SPDX-License-Identifier: MPL-2.0

package assets

import (
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/pullpkg/pullpkg/pkg/versioning"
)

type (
	// Module is one loadable binary file belonging to a package.
	Module struct {
		// Name is the file name without directory and final extension.
		Name    string
		Version versioning.Version
		// Path is the absolute location on disk.
		Path string
	}

	// Dependency is a package reference with the range it was declared with.
	Dependency struct {
		Name  string
		Range versioning.Range
	}

	// Package is one resolved package from a lock document target.
	Package struct {
		Name         string
		Version      versioning.Version
		Dependencies []Dependency
		Modules      []Module
	}
)

// String returns "name@version".
func (m Module) String() string { return m.Name + "@" + m.Version.String() }

// NameIs reports whether the module is called name, ignoring case.
func (m Module) NameIs(name string) bool { return strings.EqualFold(m.Name, name) }

// String returns "name@version".
func (p Package) String() string { return p.Name + "@" + p.Version.String() }

// NameIs reports whether the package is called name, ignoring case.
func (p Package) NameIs(name string) bool { return strings.EqualFold(p.Name, name) }

// PURL returns the package-url of the package, e.g. "pkg:nuget/Humanizer.Core@2.14.1".
func (p Package) PURL() string {
	return packageurl.NewPackageURL(packageurl.TypeNuget, "", p.Name, p.Version.String(), nil, "").ToString()
}

// identity is the case-insensitive (name, version) key used for deduplication.
func identity(name string, v versioning.Version) string {
	return strings.ToLower(name + "/" + v.String())
}
