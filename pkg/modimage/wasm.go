// SPDX-License-Identifier: MPL-2.0

package modimage

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
)

// wasmImage is a module compiled into the owning loader's runtime.
type wasmImage struct {
	path     string
	exports  []string
	compiled wazero.CompiledModule

	once     sync.Once
	closeErr error
}

func (i *wasmImage) Path() string      { return i.path }
func (i *wasmImage) Format() Format    { return FormatWasm }
func (i *wasmImage) Arch() string      { return "wasm" }
func (i *wasmImage) Exports() []string { return slices.Clone(i.exports) }

// Compiled exposes the compiled module so hosts can instantiate it.
func (i *wasmImage) Compiled() wazero.CompiledModule { return i.compiled }

func (i *wasmImage) Close(ctx context.Context) error {
	i.once.Do(func() { i.closeErr = i.compiled.Close(ctx) })
	return i.closeErr
}

// wasmRuntime lazily creates one wazero runtime and compiles modules into it.
type wasmRuntime struct {
	mu      sync.Mutex
	config  wazero.RuntimeConfig
	runtime wazero.Runtime
	closed  bool
}

func (w *wasmRuntime) compile(ctx context.Context, path string) (*wasmImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("compile %s: wasm runtime closed", path)
	}
	if w.runtime == nil {
		cfg := w.config
		if cfg == nil {
			cfg = wazero.NewRuntimeConfig()
		}
		w.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)
	}

	compiled, err := w.runtime.CompileModule(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FormatError{Path: path, Format: FormatWasm, Err: err}
	}

	exports := slices.Collect(maps.Keys(compiled.ExportedFunctions()))
	exports = append(exports, slices.Collect(maps.Keys(compiled.ExportedMemories()))...)
	slices.Sort(exports)

	return &wasmImage{path: path, exports: slices.Compact(exports), compiled: compiled}, nil
}

func (w *wasmRuntime) close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.runtime == nil {
		return nil
	}
	err := w.runtime.Close(ctx)
	w.runtime = nil
	return err
}
