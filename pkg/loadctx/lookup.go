// SPDX-License-Identifier: MPL-2.0

package loadctx

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultExtensions are tried in order by DirLookup.
var defaultExtensions = []string{".dll", ".so", ".dylib", ".wasm", ""}

type (
	// ModuleLookup is the host's process-wide default module set.
	// Find returns the file path of the module called name, if any.
	ModuleLookup interface {
		Find(name string) (path string, ok bool)
	}

	// MapLookup is a fixed name-to-path ModuleLookup. Names match exactly
	// first, then ignoring case.
	MapLookup map[string]string

	// DirLookup finds modules as files named <name><ext> in a list of
	// directories, searched in order.
	DirLookup struct {
		Dirs []string
		// Extensions overrides the default extension list when non-empty.
		Extensions []string
	}
)

// Find implements ModuleLookup.
func (m MapLookup) Find(name string) (string, bool) {
	if p, ok := m[name]; ok {
		return p, true
	}
	for k, p := range m {
		if strings.EqualFold(k, name) {
			return p, true
		}
	}
	return "", false
}

// Find implements ModuleLookup.
func (d DirLookup) Find(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	exts := d.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	for _, dir := range d.Dirs {
		for _, ext := range exts {
			p := filepath.Join(dir, name+ext)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p, true
			}
		}
	}
	return "", false
}
