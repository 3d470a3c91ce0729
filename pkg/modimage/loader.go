// SPDX-License-Identifier: MPL-2.0

package modimage

import (
	"context"

	"github.com/tetratelabs/wazero"
)

type (
	// FileLoader loads native and WebAssembly images by sniffing the file
	// header. Each FileLoader owns its own wazero runtime.
	FileLoader struct {
		wasm *wasmRuntime
	}

	// LoaderOption configures a FileLoader.
	LoaderOption func(*FileLoader)
)

// WithRuntimeConfig sets the wazero runtime configuration used for
// WebAssembly modules.
func WithRuntimeConfig(cfg wazero.RuntimeConfig) LoaderOption {
	return func(l *FileLoader) {
		l.wasm.config = cfg
	}
}

// NewLoader creates a FileLoader.
func NewLoader(opts ...LoaderOption) *FileLoader {
	l := &FileLoader{wasm: &wasmRuntime{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load opens the image at path. Files that exist but are not a recognized,
// well-formed module fail with an error wrapping ErrInvalidFormat.
func (l *FileLoader) Load(ctx context.Context, path string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := SniffFile(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatWasm:
		img, err := l.wasm.compile(ctx, path)
		if err != nil {
			return nil, err
		}
		return img, nil
	case FormatPE, FormatELF, FormatMachO:
		img, err := openNative(path, format)
		if err != nil {
			return nil, err
		}
		return img, nil
	default:
		return nil, &FormatError{Path: path, Format: FormatUnknown}
	}
}

// Close releases the WebAssembly runtime and every module compiled by it.
// The loader cannot compile WebAssembly afterwards.
func (l *FileLoader) Close(ctx context.Context) error {
	return l.wasm.close(ctx)
}
