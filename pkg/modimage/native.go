// SPDX-License-Identifier: MPL-2.0

package modimage

import (
	"context"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

const (
	// peComDescriptor is IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR, present only in
	// images carrying a CLI header.
	peComDescriptor = 14
	// peSymClassExternal is IMAGE_SYM_CLASS_EXTERNAL.
	peSymClassExternal = 2
	// machoExternal is the N_EXT bit of a Mach-O nlist type.
	machoExternal = 0x01
)

// nativeImage keeps the module file open for as long as it is loaded.
type nativeImage struct {
	path    string
	format  Format
	arch    string
	managed bool
	exports []string

	mu   sync.Mutex
	file *os.File
}

func (i *nativeImage) Path() string      { return i.path }
func (i *nativeImage) Format() Format    { return i.format }
func (i *nativeImage) Arch() string      { return i.arch }
func (i *nativeImage) Exports() []string { return slices.Clone(i.exports) }

// Managed reports whether a PE image carries a CLI header.
func (i *nativeImage) Managed() bool { return i.managed }

func (i *nativeImage) Close(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.file == nil {
		return nil
	}
	err := i.file.Close()
	i.file = nil
	return err
}

// openNative validates the image at path as format and returns it open.
func openNative(path string, format Format) (*nativeImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	img := &nativeImage{path: path, format: format, file: f}
	switch format {
	case FormatPE:
		err = inspectPE(f, img)
	case FormatELF:
		err = inspectELF(f, img)
	case FormatMachO:
		err = inspectMachO(f, img)
	default:
		err = fmt.Errorf("not a native format: %s", format)
	}
	if err != nil {
		f.Close()
		return nil, &FormatError{Path: path, Format: format, Err: err}
	}
	slices.Sort(img.exports)
	img.exports = slices.Compact(img.exports)
	return img, nil
}

func inspectPE(f *os.File, img *nativeImage) error {
	pf, err := pe.NewFile(f)
	if err != nil {
		return err
	}

	switch pf.FileHeader.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		img.arch = "amd64"
	case pe.IMAGE_FILE_MACHINE_I386:
		img.arch = "386"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		img.arch = "arm64"
	default:
		img.arch = fmt.Sprintf("pe-0x%x", pf.FileHeader.Machine)
	}

	var (
		dirs  [16]pe.DataDirectory
		count uint32
	)
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs, count = oh.DataDirectory, oh.NumberOfRvaAndSizes
	case *pe.OptionalHeader64:
		dirs, count = oh.DataDirectory, oh.NumberOfRvaAndSizes
	default:
		return errors.New("missing optional header")
	}
	img.managed = count > peComDescriptor && dirs[peComDescriptor].VirtualAddress != 0

	for _, s := range pf.Symbols {
		if s.StorageClass == peSymClassExternal && s.SectionNumber > 0 && s.Name != "" {
			img.exports = append(img.exports, s.Name)
		}
	}
	return nil
}

func inspectELF(f *os.File, img *nativeImage) error {
	ef, err := elf.NewFile(f)
	if err != nil {
		return err
	}
	img.arch = ef.Machine.String()

	syms, err := ef.DynamicSymbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		syms, err = ef.Symbols()
	}
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return err
	}
	for _, s := range syms {
		bind, typ := elf.ST_BIND(s.Info), elf.ST_TYPE(s.Info)
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		if (bind == elf.STB_GLOBAL || bind == elf.STB_WEAK) && (typ == elf.STT_FUNC || typ == elf.STT_OBJECT) {
			img.exports = append(img.exports, s.Name)
		}
	}
	return nil
}

func inspectMachO(f *os.File, img *nativeImage) error {
	mf, err := macho.NewFile(f)
	if err != nil {
		fat, fatErr := macho.NewFatFile(f)
		if fatErr != nil {
			return err
		}
		if len(fat.Arches) == 0 {
			return errors.New("universal binary without architectures")
		}
		mf = fat.Arches[0].File
	}
	img.arch = mf.Cpu.String()

	if mf.Symtab == nil {
		return nil
	}
	for _, s := range mf.Symtab.Syms {
		if s.Type&machoExternal != 0 && s.Sect != 0 && s.Name != "" {
			img.exports = append(img.exports, s.Name)
		}
	}
	return nil
}
