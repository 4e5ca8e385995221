//go:build unix

package searchsvc

import (
	"errors"
	"syscall"
)

// processAlive reports whether pid belongs to a live process.
// Signal 0 only probes; EPERM means the process exists under another user.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
