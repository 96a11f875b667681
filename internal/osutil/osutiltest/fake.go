// Package osutiltest provides an in-memory Adapter for exercising the
// lifecycle and orchestration layers without spawning real processes.
package osutiltest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/exxeleron/yak/internal/osutil"
)

// Fake implements osutil.Adapter against an in-memory process table and
// records every interesting call for order assertions.
type Fake struct {
	mu sync.Mutex

	User    string
	nextPID int32

	alive    map[int32]bool
	cmdlines map[int32][]string

	// IgnoreTerm lists pids that survive graceful termination; only Kill
	// removes them.
	IgnoreTerm map[int32]struct{}

	// ExitCodes maps an argv[0] to an immediate exit code: spawning that
	// command produces a child that is already done.
	ExitCodes map[string]int

	events []string
}

var _ osutil.Adapter = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		User:       "tester",
		nextPID:    1000,
		alive:      map[int32]bool{},
		cmdlines:   map[int32][]string{},
		IgnoreTerm: map[int32]struct{}{},
		ExitCodes:  map[string]int{},
	}
}

// Record appends a custom event, letting tests interleave their own
// markers (batch pauses, callbacks) with adapter calls.
func (f *Fake) Record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// Events returns everything recorded so far.
func (f *Fake) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// AddProcess seeds a running process, as if a previous supervisor had
// launched it.
func (f *Fake) AddProcess(pid int32, cmdline []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = true
	f.cmdlines[pid] = cmdline
}

func (f *Fake) PidAlive(pid int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *Fake) CommandLine(pid int32) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdlines[pid]
}

func (f *Fake) Terminate(pid int32, wait time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("terminate %d", pid))
	if _, stubborn := f.IgnoreTerm[pid]; !stubborn {
		delete(f.alive, pid)
	}
	return nil
}

func (f *Fake) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("kill %d", pid))
	delete(f.alive, pid)
	return nil
}

func (f *Fake) Interrupt(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf("interrupt %d", pid))
	return nil
}

func (f *Fake) SetAffinity(pid int32, cpus []int) error { return nil }

func (f *Fake) Username() string { return f.User }

func (f *Fake) CPUUser(pid int32) float64       { return 0 }
func (f *Fake) CPUSystem(pid int32) float64     { return 0 }
func (f *Fake) MemoryRSS(pid int32) uint64      { return 0 }
func (f *Fake) MemoryVMS(pid int32) uint64      { return 0 }
func (f *Fake) MemoryPercent(pid int32) float32 { return 0 }

type fakeChild struct {
	fake   *Fake
	pid    int32
	exited bool
	code   int
}

func (c *fakeChild) Pid() int32 { return c.pid }

func (c *fakeChild) Exited() (bool, int) { return c.exited, c.code }

func (c *fakeChild) Wait() int {
	c.fake.mu.Lock()
	delete(c.fake.alive, c.pid)
	c.fake.mu.Unlock()
	c.exited = true
	return c.code
}

func (f *Fake) spawn(kind string, spec osutil.SpawnSpec) (osutil.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pid := f.nextPID
	f.nextPID++

	f.events = append(f.events, fmt.Sprintf("%s %s", kind, strings.Join(spec.Argv, " ")))

	child := &fakeChild{fake: f, pid: pid}
	if code, done := f.ExitCodes[spec.Argv[0]]; done {
		child.exited = true
		child.code = code
		return child, nil
	}

	f.alive[pid] = true
	f.cmdlines[pid] = spec.Argv
	return child, nil
}

func (f *Fake) Spawn(spec osutil.SpawnSpec) (osutil.Child, error) { return f.spawn("spawn", spec) }
func (f *Fake) Run(spec osutil.SpawnSpec) (osutil.Child, error)   { return f.spawn("run", spec) }
