// SPDX-License-Identifier: MPL-2.0

// Package modimage opens module files and validates their binary format.
//
// Native images (PE, ELF, Mach-O) are parsed for their headers and exported
// symbols and the file is kept open while the image is loaded. WebAssembly
// images are compiled into a wazero runtime owned by the Loader, so closing
// the Loader reclaims every module compiled through it.
package modimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// FormatUnknown is returned by Sniff for unrecognized headers.
	FormatUnknown Format = iota
	// FormatPE is a Portable Executable (Windows images and .NET assemblies).
	FormatPE
	// FormatELF is an Executable and Linkable Format image.
	FormatELF
	// FormatMachO is a Mach-O image, thin or universal.
	FormatMachO
	// FormatWasm is a WebAssembly binary module.
	FormatWasm
)

// ErrInvalidFormat is the sentinel error wrapped by FormatError.
var ErrInvalidFormat = errors.New("invalid module format")

var (
	magicWasm   = []byte("\x00asm")
	magicPE     = []byte("MZ")
	magicELF    = []byte("\x7fELF")
	magicMachO  = [][]byte{{0xfe, 0xed, 0xfa, 0xce}, {0xfe, 0xed, 0xfa, 0xcf}, {0xce, 0xfa, 0xed, 0xfe}, {0xcf, 0xfa, 0xed, 0xfe}}
	magicFatBin = []byte{0xca, 0xfe, 0xba, 0xbe}
)

type (
	// Format identifies a module binary format.
	Format int

	// Image is a loaded module. Close releases it; further use is invalid.
	Image interface {
		Path() string
		Format() Format
		// Arch names the target machine, e.g. "EM_X86_64" or "wasm".
		Arch() string
		// Exports lists exported symbol names in a stable order.
		Exports() []string
		Close(ctx context.Context) error
	}

	// Loader opens module files.
	Loader interface {
		Load(ctx context.Context, path string) (Image, error)
	}

	// FormatError is returned when a file exists but is not a loadable module.
	FormatError struct {
		Path   string
		Format Format
		Err    error
	}
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatPE:
		return "pe"
	case FormatELF:
		return "elf"
	case FormatMachO:
		return "macho"
	case FormatWasm:
		return "wasm"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Format == FormatUnknown {
		return fmt.Sprintf("%s: unrecognized module format", e.Path)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid %s image", e.Path, e.Format)
	}
	return fmt.Sprintf("%s: invalid %s image: %v", e.Path, e.Format, e.Err)
}

// Unwrap returns ErrInvalidFormat and the parser's error, if any.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidFormat}
	}
	return []error{ErrInvalidFormat, e.Err}
}

// Sniff identifies the format from the first bytes of a file.
func Sniff(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, magicWasm):
		return FormatWasm
	case bytes.HasPrefix(header, magicELF):
		return FormatELF
	case bytes.HasPrefix(header, magicPE):
		return FormatPE
	case bytes.HasPrefix(header, magicFatBin):
		return FormatMachO
	}
	for _, m := range magicMachO {
		if bytes.HasPrefix(header, m) {
			return FormatMachO
		}
	}
	return FormatUnknown
}

// SniffFile reads the header of the file at path and identifies its format.
// I/O errors are returned as-is so callers can tell a missing file from a
// malformed one.
func SniffFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	return Sniff(header[:n]), nil
}
