package component

import (
	"time"

	"github.com/exxeleron/yak/internal/config"
)

// Detached wraps a record whose uid is no longer configured: a process
// this supervisor once launched but whose definition was removed. It is
// read-only except for stop and interrupt.
type Detached struct {
	rec  *Record
	deps Deps
}

// NewDetached wraps an orphaned record.
func NewDetached(rec *Record, deps Deps) Process {
	return &Detached{rec: rec, deps: deps}
}

func (d *Detached) UID() string                         { return d.rec.UID }
func (d *Detached) TypeID() string                      { return d.rec.TypeID }
func (d *Detached) Record() *Record                     { return d.rec }
func (d *Detached) Configuration() config.Configuration { return nil }
func (d *Detached) Bind(config.Configuration)           {}
func (d *Detached) LogFile() string                     { return d.rec.Log }
func (d *Detached) Port() int                           { return 0 }

func (d *Detached) IsAlive() bool {
	c := Component{rec: d.rec, deps: d.deps}
	if c.IsAlive() {
		return true
	}
	if d.rec.PID != 0 {
		d.rec.PID = 0
		c.save()
	}
	return false
}

func (d *Detached) Status() Status {
	if d.IsAlive() {
		return StatusDetached
	}
	if d.rec.Started == nil || d.rec.Stopped != nil {
		return StatusStopped
	}
	return StatusTerminated
}

func (d *Detached) Initialize(bool) error {
	return procErrf(d.rec.UID, nil, "detached component cannot be started")
}

func (d *Detached) Execute() error {
	return procErrf(d.rec.UID, nil, "detached component cannot be started")
}

func (d *Detached) Interactive() error {
	return procErrf(d.rec.UID, nil, "detached component cannot be started")
}

func (d *Detached) Terminate() error {
	if err := d.deps.OS.Terminate(d.rec.PID, 0); err != nil {
		return procErrf(d.rec.UID, err, "termination failed")
	}
	d.markStopped(false)
	return nil
}

func (d *Detached) Kill() error {
	if err := d.deps.OS.Kill(d.rec.PID); err != nil {
		return procErrf(d.rec.UID, err, "kill failed")
	}
	d.markStopped(true)
	return nil
}

func (d *Detached) markStopped(clearPid bool) {
	now := time.Now().UTC()
	d.rec.Stopped = &now
	d.rec.StoppedBy = d.deps.OS.Username()
	if clearPid {
		d.rec.PID = 0
	}
}

func (d *Detached) Interrupt() error {
	if err := d.deps.OS.Interrupt(d.rec.PID); err != nil {
		return procErrf(d.rec.UID, err, "interrupt failed")
	}
	return nil
}

func (d *Detached) CheckProcess() error { return nil }

func (d *Detached) CPUUser() float64 {
	if !d.Status().Running() {
		return 0
	}
	return d.deps.OS.CPUUser(d.rec.PID)
}

func (d *Detached) CPUSystem() float64 {
	if !d.Status().Running() {
		return 0
	}
	return d.deps.OS.CPUSystem(d.rec.PID)
}

func (d *Detached) MemRSS() uint64 {
	if !d.Status().Running() {
		return 0
	}
	return d.deps.OS.MemoryRSS(d.rec.PID) / 1024
}

func (d *Detached) MemVMS() uint64 {
	if !d.Status().Running() {
		return 0
	}
	return d.deps.OS.MemoryVMS(d.rec.PID) / 1024
}

func (d *Detached) MemPercent() float32 {
	if !d.Status().Running() {
		return 0
	}
	return d.deps.OS.MemoryPercent(d.rec.PID)
}
