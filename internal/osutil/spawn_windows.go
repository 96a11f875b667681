//go:build windows

package osutil

import (
	"bytes"
	"io"
	"syscall"
)

func detachAttr() *syscall.SysProcAttr { return nil }

// Windows children get a pipe-like empty reader; NUL behaves differently
// from /dev/null for console programs.
func childStdin() (io.Reader, error) {
	return bytes.NewReader(nil), nil
}
