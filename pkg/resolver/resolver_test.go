// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"testing"

	"github.com/pullpkg/pullpkg/pkg/assets"
	"github.com/pullpkg/pullpkg/pkg/versioning"
)

func module(name, version, path string) assets.Module {
	return assets.Module{Name: name, Version: versioning.MustParseVersion(version), Path: path}
}

func pkg(name, version string, modules ...assets.Module) assets.Package {
	return assets.Package{Name: name, Version: versioning.MustParseVersion(version), Modules: modules}
}

// samplePackages declares m1@1.0, m1@2.0 and m2@1.0 spread over packages,
// plus a tie on m3@3.0 to pin the declaration-order tie-break.
func samplePackages() []assets.Package {
	return []assets.Package{
		pkg("One", "1.0.0",
			module("m1", "1.0", "/p/one/m1.dll"),
			module("m2", "1.0", "/p/one/m2.dll"),
		),
		pkg("Two", "2.0.0",
			module("m1", "2.0", "/p/two/m1.dll"),
			module("m3", "3.0", "/p/two/m3.dll"),
		),
		pkg("Three", "3.0.0",
			module("M3", "3.0", "/p/three/m3.dll"),
			module("Foo.Bar", "0.5", "/p/three/foo.bar.dll"),
		),
	}
}

func TestResolveMinimumVersion(t *testing.T) {
	t.Parallel()

	r := New(samplePackages())
	v15 := versioning.MustParseVersion("1.5")
	v3 := versioning.MustParseVersion("3.0")
	v9 := versioning.MustParseVersion("9.0")

	tests := []struct {
		name     string
		module   string
		min      *versioning.Version
		wantPath string
		wantOK   bool
	}{
		{"highest_above_min", "m1", &v15, "/p/two/m1.dll", true},
		{"nil_min_picks_highest", "m1", nil, "/p/two/m1.dll", true},
		{"single_candidate", "m2", nil, "/p/one/m2.dll", true},
		{"case_insensitive", "foo.bar", nil, "/p/three/foo.bar.dll", true},
		{"tie_goes_to_first_declared", "m3", &v3, "/p/two/m3.dll", true},
		{"min_equal_is_inclusive", "m3", &v3, "/p/two/m3.dll", true},
		{"min_above_all", "m1", &v9, "", false},
		{"unknown_name", "nope", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := r.ResolveMinimumVersion(tt.module, tt.min)
			if ok != tt.wantOK {
				t.Fatalf("ResolveMinimumVersion(%q) ok = %v, want %v", tt.module, ok, tt.wantOK)
			}
			if got.Path != tt.wantPath {
				t.Errorf("ResolveMinimumVersion(%q) path = %q, want %q", tt.module, got.Path, tt.wantPath)
			}
		})
	}
}

func TestResolveRange(t *testing.T) {
	t.Parallel()

	r := New(samplePackages())

	tests := []struct {
		name     string
		module   string
		rng      versioning.Range
		wantPath string
		wantOK   bool
	}{
		{"universal_takes_first_declared", "m1", versioning.All(), "/p/one/m1.dll", true},
		{"zero_range_is_universal", "m1", versioning.Range{}, "/p/one/m1.dll", true},
		{"narrowed_range", "m1", versioning.MustParseRange("[2.0,3.0)"), "/p/two/m1.dll", true},
		{"exact", "m1", versioning.MustParseRange("[1.0]"), "/p/one/m1.dll", true},
		{"case_insensitive", "M1", versioning.MustParseRange("2.0"), "/p/two/m1.dll", true},
		{"no_version_in_range", "m1", versioning.MustParseRange("(2.0,)"), "", false},
		{"unknown_name", "nope", versioning.All(), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := r.ResolveRange(tt.module, tt.rng)
			if ok != tt.wantOK {
				t.Fatalf("ResolveRange(%q, %s) ok = %v, want %v", tt.module, tt.rng, ok, tt.wantOK)
			}
			if got.Path != tt.wantPath {
				t.Errorf("ResolveRange(%q, %s) path = %q, want %q", tt.module, tt.rng, got.Path, tt.wantPath)
			}
			if ok && !tt.rng.Satisfies(got.Version) {
				t.Errorf("resolved version %s does not satisfy %s", got.Version, tt.rng)
			}
		})
	}
}

func TestResolver_ModulesOrder(t *testing.T) {
	t.Parallel()

	r := New(samplePackages())
	var paths []string
	for _, m := range r.Modules() {
		paths = append(paths, m.Path)
	}
	want := []string{
		"/p/one/m1.dll", "/p/one/m2.dll",
		"/p/two/m1.dll", "/p/two/m3.dll",
		"/p/three/m3.dll", "/p/three/foo.bar.dll",
	}
	if len(paths) != len(want) {
		t.Fatalf("Modules() returned %d modules, want %d", len(paths), len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Modules()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestResolver_PackagesMatching(t *testing.T) {
	t.Parallel()

	pkgs := append(samplePackages(), pkg("two", "5.0.0"))
	r := New(pkgs)

	if got := r.PackagesMatching("TWO", versioning.All()); len(got) != 2 {
		t.Errorf("PackagesMatching(TWO, *) = %d packages, want 2", len(got))
	}
	got := r.PackagesMatching("two", versioning.MustParseRange("[3.0,)"))
	if len(got) != 1 || got[0].Version.String() != "5.0.0" {
		t.Errorf("PackagesMatching(two, >=3.0) = %v", got)
	}

	// The resolver holds its own copy.
	pkgs[0].Name = "Mutated"
	if r.Packages()[0].Name != "One" {
		t.Error("mutating the input slice affected the resolver")
	}
}
