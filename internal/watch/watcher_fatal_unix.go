// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// fatalErrnos are inotify resource exhaustion errors after which no further
// events arrive: the watch limit (ENOSPC, fs.inotify.max_user_watches) and
// the process and system descriptor limits (EMFILE, ENFILE).
var fatalErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}

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
