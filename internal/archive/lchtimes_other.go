//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package archive

import "time"

// lchtimes is a no-op where links carry no settable times.
func lchtimes(string, time.Time) error { return nil }
