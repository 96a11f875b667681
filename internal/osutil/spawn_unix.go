//go:build !windows

package osutil

import (
	"io"
	"os"
	"syscall"
)

// detachAttr places the child in its own process group so the shell's
// signal delivery (notably Ctrl-C) never reaches supervised processes.
// The session is left alone on purpose.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func childStdin() (io.Reader, error) {
	return os.OpenFile(os.DevNull, os.O_RDWR, 0)
}
