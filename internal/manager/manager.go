// Package manager is the operation gateway over the managed fleet: it owns
// the configuration inventory, the startup plan, the persisted records, and
// applies batch operations while honouring dependencies.
package manager

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/exxeleron/yak/internal/component"
	"github.com/exxeleron/yak/internal/config"
	"github.com/exxeleron/yak/internal/osutil"
)

// RecordStore is the persistence surface the manager needs; the SQLite
// status store implements it.
type RecordStore interface {
	Load() (map[string]*component.Record, error)
	Save(rec *component.Record) error
}

// Outcome is the per-uid result of a batch operation. Changed is false
// when the operation was a no-op (already running, already stopped).
type Outcome struct {
	UID     string
	Changed bool
	Err     error
}

// Callback is invoked once a uid's outcome is final, in input order.
type Callback func(o Outcome)

// PauseCallback announces a batch pause so interactive callers can tell
// the user why nothing is happening.
type PauseCallback func(d time.Duration)

// Manager supervises one configured fleet.
type Manager struct {
	inv   *config.Inventory
	store RecordStore
	deps  component.Deps
	plan  []string
	procs map[string]component.Process
	log   *zap.Logger
}

// New loads the configuration file, computes the startup plan and binds
// previously persisted records.
func New(configFile string, store RecordStore, os osutil.Adapter, log *zap.Logger) (*Manager, error) {
	inv, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	order, err := plan(inv)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		inv:   inv,
		store: store,
		deps:  component.Deps{OS: os, Log: log, Saver: saver{store}},
		plan:  order,
		log:   log,
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// saver adapts the store to the component package's persistence hook.
type saver struct{ store RecordStore }

func (s saver) Save(rec *component.Record) error { return s.store.Save(rec) }

// Reload pulls records from the store, creates fresh ones for configured
// uids seen for the first time, rebinds every record to the current
// configuration, and wraps orphaned records as detached.
func (m *Manager) Reload() error {
	records, err := m.store.Load()
	if err != nil {
		return err
	}

	m.procs = make(map[string]component.Process, len(m.inv.Order))
	for _, uid := range m.inv.Order {
		cfg := m.inv.ByUID[uid]
		var proc component.Process
		if rec, ok := records[uid]; ok {
			proc = component.FromRecord(rec, m.deps)
			delete(records, uid)
		} else {
			proc = component.New(cfg.TypeID(), uid, m.deps)
		}
		proc.Bind(cfg)
		m.procs[uid] = proc
	}

	// Whatever is left in the store has no configuration anymore: expose it
	// read-only so it can still be stopped or interrupted.
	for uid, rec := range records {
		m.procs[uid] = component.NewDetached(rec, m.deps)
	}

	return nil
}

// Plan returns the startup order.
func (m *Manager) Plan() []string { return m.plan }

// Groups returns the declared group memberships.
func (m *Manager) Groups() map[string][]string { return m.inv.Groups }

// Namespaces returns the set of uid group parts.
func (m *Manager) Namespaces() map[string]struct{} { return m.inv.Namespaces }

// Process returns the entity for uid, nil when unknown.
func (m *Manager) Process(uid string) component.Process { return m.procs[uid] }

// Processes returns every managed entity, detached ones included.
func (m *Manager) Processes() map[string]component.Process { return m.procs }

// Configuration returns the bound configuration for uid, nil for detached
// records.
func (m *Manager) Configuration(uid string) config.Configuration { return m.inv.ByUID[uid] }

func (m *Manager) validatePreconditions(cfg *config.Config) error {
	user := m.deps.OS.Username()
	if len(cfg.SysUser) > 0 {
		allowed := false
		for _, u := range cfg.SysUser {
			if u == user {
				allowed = true
				break
			}
		}
		if !allowed {
			return &component.ProcessError{UID: cfg.UID,
				Msg: fmt.Sprintf("user %s is not allowed to start this component", user)}
		}
	}

	for required := range cfg.Requires {
		proc, ok := m.procs[required]
		if !ok {
			return depErr("cannot start "+cfg.UID+", required component not found", required)
		}
		if !proc.IsAlive() {
			return depErr("cannot start "+cfg.UID+", required component not running", required)
		}
	}

	return nil
}

// Start launches the given uids in order, batching consecutive
// independent processes into waves: a wave shares one settle pause of the
// maximum start wait, after which every member is checked to have
// survived. A uid whose requirement was started in the current wave
// flushes the wave first. The optional arguments string overrides
// commandArgs for this batch only.
func (m *Manager) Start(uids []string, cb Callback, pause PauseCallback, arguments string) []Outcome {
	results := make([]Outcome, 0, len(uids))
	index := map[string]int{}

	var wave []string      // uids attempted in the current wave
	var checkList []string // subset that actually launched
	var waveWait time.Duration
	anyStarted := false

	flush := func() {
		if len(wave) == 0 {
			return
		}
		if waveWait > 0 && anyStarted {
			if pause != nil {
				pause(waveWait)
			}
			time.Sleep(waveWait)
		}

		var g errgroup.Group
		for _, uid := range checkList {
			i := index[uid]
			proc := m.procs[uid]
			g.Go(func() error {
				if err := proc.CheckProcess(); err != nil {
					results[i] = Outcome{UID: uid, Err: err}
				}
				return nil
			})
		}
		g.Wait()

		for _, uid := range wave {
			if cb != nil {
				cb(results[index[uid]])
			}
		}
		wave, checkList, waveWait = nil, nil, 0
	}

	for _, uid := range uids {
		if cfg := m.inv.ByUID[uid]; cfg != nil &&
			cfg.Base().RequiresAny(checkList) && cfg.Base().RequiresAny(uids) {
			flush()
		}

		outcome := m.startOne(uid, arguments)
		index[uid] = len(results)
		results = append(results, outcome)
		wave = append(wave, uid)
		if outcome.Changed && outcome.Err == nil {
			checkList = append(checkList, uid)
			anyStarted = true
		}
		if cfg := m.inv.ByUID[uid]; cfg != nil && cfg.Base().StartWait > waveWait {
			waveWait = cfg.Base().StartWait
		}
	}
	flush()

	return results
}

func (m *Manager) startOne(uid, arguments string) Outcome {
	proc, ok := m.procs[uid]
	if !ok {
		return Outcome{UID: uid, Err: depErr("unmanaged component", uid)}
	}
	if proc.IsAlive() {
		return Outcome{UID: uid}
	}

	cfg := m.inv.ByUID[uid]
	if cfg == nil {
		return Outcome{UID: uid, Err: proc.Execute()} // detached: always refuses
	}
	if err := m.validatePreconditions(cfg.Base()); err != nil {
		return Outcome{UID: uid, Err: err}
	}

	restore := overrideArguments(cfg, arguments)
	defer restore()

	proc.Record().LastOperation = "start"
	err := func() error {
		if err := proc.Initialize(true); err != nil {
			return err
		}
		return proc.Execute()
	}()
	m.persist(proc)

	if err != nil {
		return Outcome{UID: uid, Err: fmt.Errorf("error while executing %q: %w", cfg.FullCmd(), err)}
	}
	return Outcome{UID: uid, Changed: true}
}

// overrideArguments temporarily swaps commandArgs; the returned restore
// runs on every exit path of the caller.
func overrideArguments(cfg config.Configuration, arguments string) func() {
	if arguments == "" {
		return func() {}
	}
	base := cfg.Base()
	saved := base.CommandArgs
	base.CommandArgs = arguments
	return func() { base.CommandArgs = saved }
}

// Stop terminates the given uids in two passes: a graceful pass, one pause
// of the maximum stop wait, then a forced pass over whatever survived.
// With force set the first pass kills outright.
func (m *Manager) Stop(uids []string, cb Callback, pause PauseCallback, force bool) []Outcome {
	results := make([]Outcome, 0, len(uids))
	index := map[string]int{}

	var stopWait time.Duration
	for _, uid := range uids {
		if cfg := m.inv.ByUID[uid]; cfg != nil && cfg.Base().StopWait > stopWait {
			stopWait = cfg.Base().StopWait
		}
		index[uid] = len(results)
		results = append(results, m.stopOne(uid, force))
	}

	if pause != nil {
		pause(stopWait)
	}
	time.Sleep(stopWait)

	for _, uid := range uids {
		if proc := m.procs[uid]; proc != nil {
			if proc.IsAlive() {
				results[index[uid]] = m.stopOne(uid, true)
			} else if rec := proc.Record(); rec.PID != 0 {
				// Gone between the passes; settle the record.
				rec.PID = 0
				m.persist(proc)
			}
		}
		if cb != nil {
			cb(results[index[uid]])
		}
	}

	return results
}

func (m *Manager) stopOne(uid string, force bool) Outcome {
	proc, ok := m.procs[uid]
	if !ok {
		return Outcome{UID: uid, Err: depErr("unmanaged component", uid)}
	}
	if !proc.IsAlive() {
		return Outcome{UID: uid}
	}

	op := "stop"
	if force {
		op = "kill"
	}
	proc.Record().LastOperation = op

	var err error
	if force {
		err = proc.Kill()
	} else {
		err = proc.Terminate()
	}
	m.persist(proc)

	return Outcome{UID: uid, Changed: err == nil, Err: err}
}

// Interrupt delivers the interrupt signal to each uid in one pass.
func (m *Manager) Interrupt(uids []string, cb Callback) []Outcome {
	results := make([]Outcome, 0, len(uids))
	for _, uid := range uids {
		outcome := m.interruptOne(uid)
		results = append(results, outcome)
		if cb != nil {
			cb(outcome)
		}
	}
	return results
}

func (m *Manager) interruptOne(uid string) Outcome {
	proc, ok := m.procs[uid]
	if !ok {
		return Outcome{UID: uid, Err: depErr("unmanaged component", uid)}
	}
	if !proc.IsAlive() {
		return Outcome{UID: uid}
	}

	proc.Record().LastOperation = "interrupt"
	err := proc.Interrupt()
	m.persist(proc)

	return Outcome{UID: uid, Changed: err == nil, Err: err}
}

// Console starts a single uid in the foreground with an attached
// interactive console. Returns false when the process is already running.
func (m *Manager) Console(uid, arguments string) (bool, error) {
	proc, ok := m.procs[uid]
	if !ok {
		return false, depErr("unmanaged component", uid)
	}
	if proc.IsAlive() {
		return false, nil
	}

	cfg := m.inv.ByUID[uid]
	if cfg == nil {
		return false, proc.Interactive() // detached: always refuses
	}
	if err := m.validatePreconditions(cfg.Base()); err != nil {
		return false, err
	}

	restore := overrideArguments(cfg, arguments)
	defer restore()

	proc.Record().LastOperation = "console"
	err := func() error {
		if err := proc.Initialize(false); err != nil {
			return err
		}
		return proc.Interactive()
	}()
	m.persist(proc)

	return err == nil, err
}

func (m *Manager) persist(proc component.Process) {
	if err := m.store.Save(proc.Record()); err != nil && m.log != nil {
		m.log.Error("status persist failed", zap.String("uid", proc.UID()), zap.Error(err))
	}
}
