// SPDX-License-Identifier: MPL-2.0

package pullfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pullpkg/pullpkg/pkg/cueutil"
	"github.com/pullpkg/pullpkg/pkg/puller"

	"github.com/pelletier/go-toml/v2"
)

const (
	// CUEFileName is discovered before TOMLFileName.
	CUEFileName = "pullfile.cue"
	// TOMLFileName is the TOML pull file name.
	TOMLFileName = "pullfile.toml"
	// DefaultDirectory is the pull directory used when neither the file nor
	// the caller names one. It is relative to the pull file.
	DefaultDirectory = ".pullpkg"
)

var (
	// ErrNotFound is returned when no pull file exists in a directory.
	ErrNotFound = errors.New("pull file not found")
	// ErrParse is the sentinel error wrapped by ParseError.
	ErrParse = errors.New("failed to parse pull file")
	// ErrUnsupportedFormat is returned for paths that are neither .cue nor .toml.
	ErrUnsupportedFormat = errors.New("unsupported pull file format")
)

//go:embed pullfile_schema.cue
var schema []byte

type (
	// File is a parsed pull file.
	File struct {
		// Path is the file the declaration was read from.
		Path      string    `json:"-" toml:"-"`
		Framework string    `json:"framework,omitempty" toml:"framework"`
		Directory string    `json:"directory,omitempty" toml:"directory"`
		Packages  []Package `json:"packages,omitempty" toml:"packages"`
		Sources   []Source  `json:"sources,omitempty" toml:"sources"`
	}

	// Package declares one package to restore.
	Package struct {
		ID      string `json:"id" toml:"id"`
		Version string `json:"version" toml:"version"`
	}

	// Source declares one package source and the ids routed to it.
	Source struct {
		Name     string   `json:"name" toml:"name"`
		URI      string   `json:"uri" toml:"uri"`
		Mappings []string `json:"mappings,omitempty" toml:"mappings"`
	}

	// ParseError reports a pull file that could not be decoded.
	ParseError struct {
		Path string
		Err  error
	}

	// NotFoundError names the directory that was searched.
	NotFoundError struct {
		Dir string
	}

	// ConfigureOptions supplies values the pull file may leave out.
	ConfigureOptions struct {
		// Framework is used when the file declares none.
		Framework puller.Framework
		// Directory, when set, replaces the file's directory.
		Directory string
	}
)

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse pull file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s or %s in %s", CUEFileName, TOMLFileName, e.Dir)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Discover returns the pull file in dir, preferring pullfile.cue.
func Discover(dir string) (string, error) {
	for _, name := range []string{CUEFileName, TOMLFileName} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", &NotFoundError{Dir: dir}
}

// Parse reads the pull file at path, choosing the format by extension.
func Parse(path string) (*File, error) {
	var (
		f   *File
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		f, err = parseCUE(path)
	case ".toml":
		f, err = parseTOML(path)
	default:
		return nil, fmt.Errorf("%w: %s (want .cue or .toml)", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

func parseCUE(path string) (*File, error) {
	res, err := cueutil.ParseFile[File](schema, path, "#Pullfile")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return res.Value, nil
}

func parseTOML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var f File
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			err = fmt.Errorf("line %d, column %d: %w", row, col, err)
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := f.check(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &f, nil
}

// check applies the required-field rules the CUE schema enforces, for TOML.
func (f *File) check() error {
	for i, p := range f.Packages {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("packages[%d]: id is required", i)
		}
		if strings.TrimSpace(p.Version) == "" {
			return fmt.Errorf("packages[%d]: version is required", i)
		}
	}
	for i, s := range f.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if strings.TrimSpace(s.URI) == "" {
			return fmt.Errorf("sources[%d]: uri is required", i)
		}
	}
	return nil
}

// PullDirectory returns the directory a pull writes to: override when set,
// then the file's directory, then DefaultDirectory. Relative paths are
// taken from the pull file's location.
func (f *File) PullDirectory(override string) string {
	dir := override
	if dir == "" {
		dir = f.Directory
	}
	if dir == "" {
		dir = DefaultDirectory
	}
	if filepath.IsAbs(dir) || override != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(f.Path), dir)
}

// Configure returns a builder callback declaring everything in the file.
// Validation happens in puller.Build.
func (f *File) Configure(opts ConfigureOptions) func(*puller.Config) {
	return func(c *puller.Config) {
		fw := puller.Framework(f.Framework)
		if fw == "" {
			fw = opts.Framework
		}
		if fw == "" {
			fw = puller.DefaultFramework
		}
		c.Framework(fw)
		c.Directory(f.PullDirectory(opts.Directory))

		for _, p := range f.Packages {
			c.Package(p.ID, p.Version)
		}
		for _, s := range f.Sources {
			sc := c.Source(s.Name, s.URI)
			for _, m := range s.Mappings {
				sc.WithMapping(m)
			}
		}
	}
}
