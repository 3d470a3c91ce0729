// SPDX-License-Identifier: MPL-2.0

package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pullpkg/pullpkg/pkg/versioning"
)

const sampleDocument = `{
  "version": 3,
  "targets": {
    "net8.0": {
      "Zeta.Core/2.14.1": {
        "type": "package",
        "dependencies": {
          "Alpha.Util": "[1.0.0, )",
          "Broken.Dep": "not-a-range",
          "Mid.Lib": "4.3.0"
        },
        "compile": { "lib/net8.0/Zeta.Core.dll": {} },
        "runtime": {
          "lib/net8.0/Zeta.Core.dll": {},
          "lib/net8.0/Zeta.Core.Extensions.dll": {}
        }
      },
      "Alpha.Util/1.0.0": {
        "type": "package",
        "runtime": { "lib/netstandard2.0/Alpha.Util.dll": {} }
      },
      "Bad.Version/one.two": {
        "type": "package",
        "runtime": { "lib/net8.0/Bad.Version.dll": {} }
      },
      "NoSlash": { "type": "package" },
      "Empty.Folder/3.0.0": {
        "type": "package",
        "runtime": { "lib/net8.0/_._": {} }
      },
      "alpha.util/1.0": {
        "type": "package",
        "runtime": { "lib/net8.0/Dup.dll": {} }
      }
    },
    "net6.0": {}
  },
  "libraries": {
    "Zeta.Core/2.14.1": { "type": "package", "path": "zeta.core/2.14.1" }
  }
}`

func TestParse(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	res, err := Parse([]byte(sampleDocument), "net8.0", root)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Package{
		{
			Name:    "Zeta.Core",
			Version: versioning.MustParseVersion("2.14.1"),
			Dependencies: []Dependency{
				{Name: "Alpha.Util", Range: versioning.MustParseRange("[1.0.0, )")},
				{Name: "Mid.Lib", Range: versioning.MustParseRange("4.3.0")},
			},
			Modules: []Module{
				{
					Name:    "Zeta.Core",
					Version: versioning.MustParseVersion("2.14.1"),
					Path:    filepath.Join(root, "zeta.core", "2.14.1", "lib", "net8.0", "Zeta.Core.dll"),
				},
				{
					Name:    "Zeta.Core.Extensions",
					Version: versioning.MustParseVersion("2.14.1"),
					Path:    filepath.Join(root, "zeta.core", "2.14.1", "lib", "net8.0", "Zeta.Core.Extensions.dll"),
				},
			},
		},
		{
			Name:         "Alpha.Util",
			Version:      versioning.MustParseVersion("1.0.0"),
			Dependencies: []Dependency{},
			Modules: []Module{
				{
					Name:    "Alpha.Util",
					Version: versioning.MustParseVersion("1.0.0"),
					Path:    filepath.Join(root, "Alpha.Util", "1.0.0", "lib", "netstandard2.0", "Alpha.Util.dll"),
				},
			},
		},
		{
			Name:         "Empty.Folder",
			Version:      versioning.MustParseVersion("3.0.0"),
			Dependencies: []Dependency{},
			Modules:      []Module{},
		},
	}

	if diff := cmp.Diff(want, res.Packages, rangeComparer); diff != "" {
		t.Errorf("Parse() packages mismatch (-want +got):\n%s", diff)
	}

	skipped := make(map[string]bool)
	for _, s := range res.Skipped {
		skipped[s.Entry+"|"+s.Dependency] = true
	}
	for _, key := range []string{
		"Zeta.Core/2.14.1|Broken.Dep",
		"Bad.Version/one.two|",
		"NoSlash|",
		"alpha.util/1.0|",
	} {
		if !skipped[key] {
			t.Errorf("expected %q to be reported as skipped; got %+v", key, res.Skipped)
		}
	}
	if res.Installed != 1 {
		t.Errorf("Installed = %d, want 1", res.Installed)
	}
}

var rangeComparer = cmp.Comparer(func(a, b versioning.Range) bool { return a.Equal(b) })

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first, err := Parse([]byte(sampleDocument), "net8.0", root)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Parse([]byte(sampleDocument), "net8.0", root)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second, rangeComparer); diff != "" {
		t.Errorf("parsing twice differs (-first +second):\n%s", diff)
	}
}

func TestParse_EmptyFramework(t *testing.T) {
	t.Parallel()

	res, err := Parse([]byte(sampleDocument), "net6.0", t.TempDir())
	if err != nil {
		t.Fatalf("empty framework section should not fail: %v", err)
	}
	if len(res.Packages) != 0 {
		t.Errorf("expected no packages, got %d", len(res.Packages))
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		document  string
		framework string
		reason    string
	}{
		{"missing_framework", sampleDocument, "net9.0", "framework not present"},
		{"framework_is_case_sensitive", sampleDocument, "NET8.0", "framework not present"},
		{"missing_targets", `{"version": 3}`, "net8.0", "missing targets"},
		{"targets_not_object", `{"targets": []}`, "net8.0", "missing targets"},
		{"framework_not_object", `{"targets": {"net8.0": "x"}}`, "net8.0", "not an object"},
		{"invalid_json", `{"targets": {`, "net8.0", "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.document), tt.framework, t.TempDir())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrAssetsParse) {
				t.Errorf("error should wrap ErrAssetsParse, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q should mention %q", err, tt.reason)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "project.assets.json")

	_, err := ParseFile(file, "net8.0", dir)
	if !errors.Is(err, ErrAssetsParse) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file should wrap ErrAssetsParse and os.ErrNotExist, got: %v", err)
	}

	if err := os.WriteFile(file, []byte(`{"targets": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ParseFile(file, "net8.0", dir)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.Source != file {
		t.Errorf("ParseError.Source = %q, want %q", pe.Source, file)
	}
}

func TestPackage_PURL(t *testing.T) {
	t.Parallel()

	p := Package{Name: "Humanizer.Core", Version: versioning.MustParseVersion("2.14.1")}
	if got, want := p.PURL(), "pkg:nuget/Humanizer.Core@2.14.1"; got != want {
		t.Errorf("PURL() = %q, want %q", got, want)
	}
	if !p.NameIs("humanizer.core") {
		t.Error("NameIs should ignore case")
	}
	if got := p.String(); got != "Humanizer.Core@2.14.1" {
		t.Errorf("String() = %q", got)
	}
}
