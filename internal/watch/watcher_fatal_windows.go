// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes after which ReadDirectoryChangesW delivers nothing more.
const (
	// ERROR_TOO_MANY_OPEN_FILES: per-process handle limit, like EMFILE.
	errnoTooManyOpenFiles = syscall.Errno(4)
	// ERROR_INVALID_HANDLE: the watched directory was removed or unmounted,
	// which happens when a pull clears a directory being watched.
	errnoInvalidHandle = syscall.Errno(6)
	// ERROR_NOT_ENOUGH_MEMORY: the notification buffer cannot be allocated.
	errnoNotEnoughMemory = syscall.Errno(8)
)

var fatalErrnos = []syscall.Errno{errnoTooManyOpenFiles, errnoInvalidHandle, errnoNotEnoughMemory}

// isFatalFsnotifyError reports whether err leaves the watcher unable to
// observe further changes, so a pull --watch loop must stop.
func isFatalFsnotifyError(err error) bool {
	for _, errno := range fatalErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
