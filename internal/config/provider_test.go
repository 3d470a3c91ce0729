// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      LoadOptions
		wantCount int
	}{
		{"empty", LoadOptions{}, 0},
		{"paths", LoadOptions{ConfigFilePath: "/tmp/config.cue", ConfigDirPath: "/tmp/cfg", BaseDir: "."}, 0},
		{"blank_file", LoadOptions{ConfigFilePath: "   "}, 1},
		{"all_blank", LoadOptions{ConfigFilePath: " ", ConfigDirPath: "\t", BaseDir: "  \t  "}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantCount == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidLoadOptions) {
				t.Fatalf("Validate() = %v, want ErrInvalidLoadOptions", err)
			}
			var loadErr *InvalidLoadOptionsError
			if !errors.As(err, &loadErr) || len(loadErr.FieldErrors) != tt.wantCount {
				t.Errorf("want %d field errors, got %v", tt.wantCount, err)
			}
		})
	}
}

func TestProvider_Load(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	opts := isolatedOptions(t)
	writeConfig(t, opts.ConfigDirPath, `default_framework: "net7.0"`)

	cfg, err := p.Load(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultFramework != "net7.0" {
		t.Errorf("DefaultFramework = %q", cfg.DefaultFramework)
	}
}

func TestProvider_Path(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	opts := isolatedOptions(t)

	path, err := p.Path(opts)
	if err != nil || path != "" {
		t.Fatalf("Path() without a file = %q, %v", path, err)
	}

	want := writeConfig(t, opts.ConfigDirPath, `ui: verbose: false`)
	if path, err = p.Path(opts); err != nil || path != want {
		t.Errorf("Path() = %q, %v; want %q", path, err, want)
	}

	opts.ConfigFilePath = filepath.Join(opts.BaseDir, "nope.cue")
	if _, err := p.Path(opts); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Path() error = %v, want ErrConfigNotFound", err)
	}
	if _, err := p.Path(LoadOptions{BaseDir: " "}); !errors.Is(err, ErrInvalidLoadOptions) {
		t.Errorf("Path() error = %v, want ErrInvalidLoadOptions", err)
	}
}
