// Package osutil is the platform surface of the supervisor. Everything that
// touches pids, signals or per-process counters goes through the Adapter
// interface so the orchestration layer stays testable and platform-neutral.
//
// Queries about a pid that is gone return the canonical "not present" value
// (false, nil, zero) instead of an error; only genuine OS failures surface.
package osutil

import (
	"os"
	"os/user"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Adapter abstracts process inspection and control.
type Adapter interface {
	// PidAlive reports whether a process with the given pid exists.
	PidAlive(pid int32) bool

	// CommandLine returns the command line the OS reports for pid, split
	// into argv elements. Nil when the pid is gone or the platform refuses
	// to report it.
	CommandLine(pid int32) []string

	// Terminate sends the graceful termination signal. With a positive
	// wait it escalates to a forced kill when the process is still alive
	// after the wait; a zero wait sends the signal and returns.
	Terminate(pid int32, wait time.Duration) error

	// Kill force-kills the process immediately.
	Kill(pid int32) error

	// Interrupt delivers SIGINT where the platform has one. On Windows the
	// fallback is documented in interrupt_windows.go.
	Interrupt(pid int32) error

	// SetAffinity pins the process to the given cpu ids, best effort.
	SetAffinity(pid int32, cpus []int) error

	// Username returns the name of the user running the supervisor.
	Username() string

	CPUUser(pid int32) float64
	CPUSystem(pid int32) float64
	MemoryRSS(pid int32) uint64
	MemoryVMS(pid int32) uint64
	MemoryPercent(pid int32) float32

	// Spawn launches a detached child with redirected std streams.
	Spawn(spec SpawnSpec) (Child, error)

	// Run launches the command in the foreground with inherited stdio.
	// The caller waits on the returned Child.
	Run(spec SpawnSpec) (Child, error)
}

// System is the gopsutil-backed Adapter used outside of tests.
type System struct{}

// New returns the real Adapter.
func New() Adapter { return System{} }

func (System) PidAlive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExists(pid)
	return err == nil && alive
}

func (System) CommandLine(pid int32) []string {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	argv, err := p.CmdlineSlice()
	if err != nil || len(argv) == 0 {
		return nil
	}
	return argv
}

func (s System) Terminate(pid int32, wait time.Duration) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil // already gone
	}
	if err := p.Terminate(); err != nil {
		if !s.PidAlive(pid) {
			return nil
		}
		return err
	}
	if wait <= 0 {
		return nil
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !s.PidAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if s.PidAlive(pid) {
		return s.Kill(pid)
	}
	return nil
}

func (s System) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && s.PidAlive(pid) {
		return err
	}
	return nil
}

func (System) Username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func (System) CPUUser(pid int32) float64 {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	times, err := p.Times()
	if err != nil {
		return 0
	}
	return times.User
}

func (System) CPUSystem(pid int32) float64 {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	times, err := p.Times()
	if err != nil {
		return 0
	}
	return times.System
}

func (System) MemoryRSS(pid int32) uint64 {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.RSS
}

func (System) MemoryVMS(pid int32) uint64 {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.VMS
}

func (System) MemoryPercent(pid int32) float32 {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	pct, err := p.MemoryPercent()
	if err != nil {
		return 0
	}
	return pct
}

// IsEmpty reports whether path is missing, not a regular file, or empty.
func IsEmpty(path string) bool {
	if path == "" {
		return true
	}
	fi, err := os.Stat(path)
	return err != nil || !fi.Mode().IsRegular() || fi.Size() == 0
}

// FileSize returns the size of path or 0 when it cannot be examined.
func FileSize(path string) int64 {
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return 0
	}
	return fi.Size()
}
