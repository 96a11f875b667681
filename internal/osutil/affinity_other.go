//go:build !linux

package osutil

// SetAffinity is a documented no-op where the platform offers no stable
// affinity syscall; pinning is a best-effort hint, never a correctness
// requirement.
func (System) SetAffinity(pid int32, cpus []int) error { return nil }
