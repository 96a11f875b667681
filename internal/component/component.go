// Package component implements the per-process state machine: launching
// with redirected std streams, liveness checks cross-checked against the
// OS-reported command line, graceful and forceful termination, and status
// derivation.
package component

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/exxeleron/yak/internal/config"
	"github.com/exxeleron/yak/internal/osutil"
	"github.com/exxeleron/yak/pkg/cmdline"
)

// tsFormat stamps per-launch std stream files.
const tsFormat = "2006.01.02T15.04.05"

// Saver persists a record after a state-changing observation. The status
// store implements it; tests substitute their own.
type Saver interface {
	Save(rec *Record) error
}

// Deps are the collaborators every process entity needs.
type Deps struct {
	OS    osutil.Adapter
	Log   *zap.Logger
	Saver Saver
}

// Process is one managed process. Implementations share the base Component
// behaviour and refine status derivation and launch mechanics per type.
type Process interface {
	UID() string
	TypeID() string
	Record() *Record
	Configuration() config.Configuration
	Bind(cfg config.Configuration)

	Status() Status
	IsAlive() bool

	Initialize(stdPaths bool) error
	Execute() error
	Interactive() error
	Terminate() error
	Kill() error
	Interrupt() error
	CheckProcess() error

	// LogFile resolves the process's own application log, following
	// rotation breadcrumbs where the type supports them.
	LogFile() string
	// Port is the configured listening port, zero for untyped processes.
	Port() int

	CPUUser() float64
	CPUSystem() float64
	MemRSS() uint64
	MemVMS() uint64
	MemPercent() float32
}

// Factory builds a process entity around a record.
type Factory func(rec *Record, deps Deps) Process

var registry = map[string]Factory{}

// Register binds a typeid to its process factory.
func Register(typeid string, f Factory) { registry[typeid] = f }

func init() {
	Register("cmd", func(rec *Record, deps Deps) Process {
		return &Component{rec: rec, deps: deps}
	})
}

// New creates a fresh process entity of the given type.
func New(typeid, uid string, deps Deps) Process {
	return FromRecord(&Record{UID: uid, TypeID: typeid}, deps)
}

// FromRecord wraps a loaded record in its typed entity. Records carrying a
// typeid that is no longer registered degrade to the plain variant.
func FromRecord(rec *Record, deps Deps) Process {
	f, ok := registry[rec.TypeID]
	if !ok {
		f = registry["cmd"]
	}
	return f(rec, deps)
}

// Component is the base process entity.
type Component struct {
	rec  *Record
	cfg  config.Configuration
	deps Deps
}

func (c *Component) UID() string                         { return c.rec.UID }
func (c *Component) TypeID() string                      { return c.rec.TypeID }
func (c *Component) Record() *Record                     { return c.rec }
func (c *Component) Configuration() config.Configuration { return c.cfg }
func (c *Component) Bind(cfg config.Configuration)       { c.cfg = cfg }
func (c *Component) Port() int                           { return 0 }

func (c *Component) String() string {
	return fmt.Sprintf("<%s> %s [%d]: %s", c.rec.TypeID, c.rec.UID, c.rec.PID, c.rec.ExecutedCmd)
}

// IsAlive reports whether the recorded pid is alive and still runs the
// command we launched. The OS-reported command line is compared
// element-wise against the executed one; when either side cannot be
// tokenised the check is skipped and the pid alone decides (some platforms
// refuse to report command lines).
func (c *Component) IsAlive() bool {
	if c.rec.PID <= 0 || !c.deps.OS.PidAlive(c.rec.PID) {
		return false
	}
	executed := cmdline.Split(c.rec.ExecutedCmd)
	reported := c.deps.OS.CommandLine(c.rec.PID)
	if len(executed) == 0 || len(reported) == 0 {
		return true
	}
	return cmdline.Equal(executed, reported)
}

// Status derives the current state. When a pid we believed alive turns out
// to be gone it is cleared and the record persisted before returning.
func (c *Component) Status() Status {
	if c.IsAlive() {
		if osutil.IsEmpty(c.rec.Stderr) {
			return StatusRunning
		}
		return StatusDisturbed
	}

	if c.rec.PID != 0 {
		c.rec.PID = 0
		c.save()
	}
	if c.rec.Started == nil || c.rec.Stopped != nil {
		return StatusStopped
	}
	return StatusTerminated
}

func (c *Component) save() {
	if c.deps.Saver == nil {
		return
	}
	if err := c.deps.Saver.Save(c.rec); err != nil && c.deps.Log != nil {
		c.deps.Log.Error("status persist failed", zap.String("uid", c.rec.UID), zap.Error(err))
	}
}

// Initialize stamps the record for a new launch and derives the per-launch
// std stream paths. Console launches skip the std paths and keep writing to
// the terminal.
func (c *Component) Initialize(stdPaths bool) error {
	now := time.Now().UTC()
	c.rec.Started = &now
	c.rec.StartedBy = c.deps.OS.Username()
	c.rec.Stopped = nil
	c.rec.StoppedBy = ""

	base := c.cfg.Base()
	if err := os.MkdirAll(base.DataPath, 0o755); err != nil {
		return procErrf(c.rec.UID, err, "cannot create data path %s", base.DataPath)
	}
	if err := os.MkdirAll(base.LogPath, 0o755); err != nil {
		return procErrf(c.rec.UID, err, "cannot create log path %s", base.LogPath)
	}

	if stdPaths {
		stamp := now.Format(tsFormat)
		prefix := filepath.Join(base.LogPath, c.rec.UID+"_"+stamp)
		c.rec.Stdout = prefix + ".out"
		c.rec.Stderr = prefix + ".err"
		c.rec.Stdenv = prefix + ".env"
	}

	return nil
}

// environment snapshots the child environment: the supervisor's own
// environment overlaid with the configuration vars and exported EC_*
// values, plus any call-site extras. The result is dumped to the .env file
// for diagnosis.
func (c *Component) environment(extra map[string]string) ([]string, error) {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	base := c.cfg.Base()
	for k, v := range base.Vars {
		merged[k] = v
	}
	for k, v := range base.Env {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}

	if c.rec.Stdenv != "" {
		var dump strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&dump, "%s: %s\n", k, merged[k])
		}
		if err := os.WriteFile(c.rec.Stdenv, []byte(dump.String()), 0o644); err != nil {
			return nil, procErrf(c.rec.UID, err, "cannot write environment dump")
		}
	}

	return env, nil
}

// Execute launches the process detached with std streams redirected to the
// per-launch files, then observes the start-wait window: a positive wait
// sleeps and verifies the child survived it; a zero wait runs the command
// to completion.
func (c *Component) Execute() error {
	return c.execute(nil)
}

func (c *Component) execute(extraEnv map[string]string) error {
	base := c.cfg.Base()

	env, err := c.environment(extraEnv)
	if err != nil {
		return err
	}

	full := c.cfg.FullCmd()
	child, err := c.deps.OS.Spawn(osutil.SpawnSpec{
		Argv:       cmdline.Split(full),
		Dir:        base.BinPath,
		Env:        env,
		StdoutPath: c.rec.Stdout,
		StderrPath: c.rec.Stderr,
	})
	if err != nil {
		return procErrf(c.rec.UID, err, "cannot execute %q", full)
	}

	c.rec.PID = child.Pid()
	c.rec.ExecutedCmd = full

	if len(base.CPUAffinity) > 0 {
		if err := c.deps.OS.SetAffinity(c.rec.PID, base.CPUAffinity); err != nil && c.deps.Log != nil {
			c.deps.Log.Warn("cpu affinity not applied",
				zap.String("uid", c.rec.UID), zap.Ints("cpus", base.CPUAffinity), zap.Error(err))
		}
	}

	if base.StartWait > 0 {
		time.Sleep(base.StartWait)
		if exited, code := child.Exited(); exited {
			c.rec.PID = 0
			return procErrf(c.rec.UID, nil, "finished prematurely with code %d", code)
		}
		return nil
	}

	// A zero start wait means "run to completion": batch-style commands
	// report their outcome through the exit code.
	code := child.Wait()
	now := time.Now().UTC()
	c.rec.PID = 0
	c.rec.Stopped = &now
	if code != 0 {
		return procErrf(c.rec.UID, nil, "finished prematurely with code %d", code)
	}
	return nil
}

// Interactive runs the process in the foreground with inherited stdio and
// console-grade logging pushed into its environment.
func (c *Component) Interactive() error {
	return c.interactive(nil)
}

func (c *Component) interactive(extraEnv map[string]string) error {
	merged := map[string]string{
		"EC_LOG_DEST":  "FILE,STDERR,CONSOLE",
		"EC_LOG_LEVEL": "DEBUG",
	}
	for k, v := range extraEnv {
		merged[k] = v
	}

	env, err := c.environment(merged)
	if err != nil {
		return err
	}

	base := c.cfg.Base()
	full := c.cfg.FullCmd()
	child, err := c.deps.OS.Run(osutil.SpawnSpec{
		Argv: cmdline.Split(full),
		Dir:  base.BinPath,
		Env:  env,
	})
	if err != nil {
		return procErrf(c.rec.UID, err, "cannot execute %q", full)
	}

	c.rec.PID = child.Pid()
	c.rec.ExecutedCmd = full
	c.save()

	code := child.Wait()
	now := time.Now().UTC()
	c.rec.PID = 0
	c.rec.Stopped = &now
	if code != 0 {
		return procErrf(c.rec.UID, nil, "finished prematurely with code %d", code)
	}
	return nil
}

// Terminate sends the graceful termination signal and records who stopped
// the process and when. The pid stays recorded until the process is
// observed dead, so a second pass can still escalate to a forced kill.
func (c *Component) Terminate() error {
	if err := c.deps.OS.Terminate(c.rec.PID, 0); err != nil {
		return procErrf(c.rec.UID, err, "termination failed")
	}
	c.markStopped(false)
	return nil
}

// Kill force-kills the process immediately.
func (c *Component) Kill() error {
	if err := c.deps.OS.Kill(c.rec.PID); err != nil {
		return procErrf(c.rec.UID, err, "kill failed")
	}
	c.markStopped(true)
	return nil
}

func (c *Component) markStopped(clearPid bool) {
	now := time.Now().UTC()
	c.rec.Stopped = &now
	c.rec.StoppedBy = c.deps.OS.Username()
	if clearPid {
		c.rec.PID = 0
	}
}

// Interrupt delivers the interrupt signal without touching any state.
func (c *Component) Interrupt() error {
	if err := c.deps.OS.Interrupt(c.rec.PID); err != nil {
		return procErrf(c.rec.UID, err, "interrupt failed")
	}
	return nil
}

// CheckProcess confirms the process survived its start-wait window.
func (c *Component) CheckProcess() error {
	if c.IsAlive() {
		return nil
	}
	c.rec.PID = 0
	c.save()
	return procErrf(c.rec.UID, nil, "terminated during startup")
}

// LogFile on the base type is whatever the record carries; only typed
// processes know how to discover their own log files.
func (c *Component) LogFile() string { return c.rec.Log }

func (c *Component) CPUUser() float64 {
	if !c.Status().Running() {
		return 0
	}
	return c.deps.OS.CPUUser(c.rec.PID)
}

func (c *Component) CPUSystem() float64 {
	if !c.Status().Running() {
		return 0
	}
	return c.deps.OS.CPUSystem(c.rec.PID)
}

func (c *Component) MemRSS() uint64 {
	if !c.Status().Running() {
		return 0
	}
	return c.deps.OS.MemoryRSS(c.rec.PID) / 1024
}

func (c *Component) MemVMS() uint64 {
	if !c.Status().Running() {
		return 0
	}
	return c.deps.OS.MemoryVMS(c.rec.PID) / 1024
}

func (c *Component) MemPercent() float32 {
	if !c.Status().Running() {
		return 0
	}
	return c.deps.OS.MemoryPercent(c.rec.PID)
}
