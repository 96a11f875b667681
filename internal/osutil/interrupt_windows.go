//go:build windows

package osutil

// Interrupt has no SIGINT equivalent that can be delivered to an arbitrary
// process on Windows, so the documented fallback is graceful termination.
func (s System) Interrupt(pid int32) error {
	return s.Terminate(pid, 0)
}
