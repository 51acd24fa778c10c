//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package archive

import (
	"time"

	"golang.org/x/sys/unix"
)

// lchtimes sets the times of a symbolic link itself, not of its target.
func lchtimes(path string, mtime time.Time) error {
	tv := unix.NsecToTimeval(mtime.UnixNano())
	return unix.Lutimes(path, []unix.Timeval{tv, tv})
}
