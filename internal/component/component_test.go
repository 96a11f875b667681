package component

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/exxeleron/yak/internal/config"
	"github.com/exxeleron/yak/internal/osutil/osutiltest"
)

type memSaver struct{ saved []Record }

func (s *memSaver) Save(rec *Record) error {
	s.saved = append(s.saved, *rec)
	return nil
}

func testDeps(fake *osutiltest.Fake) (Deps, *memSaver) {
	saver := &memSaver{}
	return Deps{OS: fake, Log: zap.NewNop(), Saver: saver}, saver
}

func testConfig(t *testing.T, uid, command string, startWait time.Duration) *config.Config {
	t.Helper()
	dir := t.TempDir()
	group, comp, _ := strings.Cut(uid, ".")
	return &config.Config{
		UID:       uid,
		Group:     group,
		Component: comp,
		Type:      "cmd",
		Command:   command,
		BinPath:   ".",
		DataPath:  filepath.Join(dir, "data"),
		LogPath:   filepath.Join(dir, "log"),
		StartWait: startWait,
		StopWait:  10 * time.Millisecond,
		Vars:      map[string]string{"EC_COMPONENT_ID": uid},
		Env:       map[string]string{"EC_EVENT_DEST": "LOG"},
	}
}

func TestStatusFresh(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())
	proc := New("cmd", "g.x", deps)
	assert.Equal(t, StatusStopped, proc.Status())
}

func TestStatusTerminated(t *testing.T) {
	deps, saver := testDeps(osutiltest.New())
	started := time.Now().UTC()
	proc := FromRecord(&Record{
		UID: "g.x", TypeID: "cmd", PID: 4321, ExecutedCmd: "runX", Started: &started,
	}, deps)

	// The OS does not know pid 4321: it died without our action.
	assert.Equal(t, StatusTerminated, proc.Status())
	assert.EqualValues(t, 0, proc.Record().PID)
	require.Len(t, saver.saved, 1)
	assert.EqualValues(t, 0, saver.saved[0].PID)
}

func TestStatusRunningAndDisturbed(t *testing.T) {
	fake := osutiltest.New()
	fake.AddProcess(4321, []string{"runX"})
	deps, _ := testDeps(fake)

	stderr := filepath.Join(t.TempDir(), "g.x.err")
	require.NoError(t, os.WriteFile(stderr, nil, 0o644))

	started := time.Now().UTC()
	rec := &Record{
		UID: "g.x", TypeID: "cmd", PID: 4321, ExecutedCmd: "runX",
		Stderr: stderr, Started: &started,
	}
	proc := FromRecord(rec, deps)
	assert.Equal(t, StatusRunning, proc.Status())

	require.NoError(t, os.WriteFile(stderr, []byte("boom\n"), 0o644))
	assert.Equal(t, StatusDisturbed, proc.Status())
}

func TestIsAliveCommandLineCrossCheck(t *testing.T) {
	fake := osutiltest.New()
	fake.AddProcess(4321, []string{"something", "else"})
	deps, _ := testDeps(fake)

	started := time.Now().UTC()
	proc := FromRecord(&Record{
		UID: "g.x", TypeID: "cmd", PID: 4321, ExecutedCmd: "runX -p 5000", Started: &started,
	}, deps)

	// Pid alive but recycled by another command.
	assert.False(t, proc.IsAlive())

	// An unreportable command line falls back to pid liveness.
	fake.AddProcess(5000, nil)
	proc2 := FromRecord(&Record{
		UID: "g.y", TypeID: "cmd", PID: 5000, ExecutedCmd: "runY", Started: &started,
	}, deps)
	assert.True(t, proc2.IsAlive())
}

func TestInitializeDerivesStdPaths(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())
	cfg := testConfig(t, "g.x", "runX", 0)
	proc := New("cmd", "g.x", deps)
	proc.Bind(cfg)

	require.NoError(t, proc.Initialize(true))

	rec := proc.Record()
	assert.NotNil(t, rec.Started)
	assert.Equal(t, "tester", rec.StartedBy)
	assert.Nil(t, rec.Stopped)
	assert.True(t, strings.HasPrefix(filepath.Base(rec.Stdout), "g.x_"))
	assert.True(t, strings.HasSuffix(rec.Stdout, ".out"))
	assert.True(t, strings.HasSuffix(rec.Stderr, ".err"))
	assert.True(t, strings.HasSuffix(rec.Stdenv, ".env"))
	assert.DirExists(t, cfg.DataPath)
	assert.DirExists(t, cfg.LogPath)
}

func TestExecuteRecordsPidAndEnvironment(t *testing.T) {
	fake := osutiltest.New()
	deps, _ := testDeps(fake)
	cfg := testConfig(t, "g.x", "runX -flag", 5*time.Millisecond)
	proc := New("cmd", "g.x", deps)
	proc.Bind(cfg)

	require.NoError(t, proc.Initialize(true))
	require.NoError(t, proc.Execute())

	rec := proc.Record()
	assert.NotZero(t, rec.PID)
	assert.Equal(t, "runX -flag", rec.ExecutedCmd)
	assert.Contains(t, fake.Events(), "spawn runX -flag")

	dump, err := os.ReadFile(rec.Stdenv)
	require.NoError(t, err)
	assert.Contains(t, string(dump), "EC_COMPONENT_ID: g.x")
	assert.Contains(t, string(dump), "EC_EVENT_DEST: LOG")
}

func TestExecutePrematureExit(t *testing.T) {
	fake := osutiltest.New()
	fake.ExitCodes["failX"] = 3
	deps, _ := testDeps(fake)
	cfg := testConfig(t, "g.x", "failX", 5*time.Millisecond)
	proc := New("cmd", "g.x", deps)
	proc.Bind(cfg)

	require.NoError(t, proc.Initialize(true))
	err := proc.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finished prematurely with code 3")
	assert.EqualValues(t, 0, proc.Record().PID)
}

func TestExecuteZeroStartWaitRunsToCompletion(t *testing.T) {
	fake := osutiltest.New()
	deps, _ := testDeps(fake)
	cfg := testConfig(t, "g.x", "batchX", 0)
	proc := New("cmd", "g.x", deps)
	proc.Bind(cfg)

	require.NoError(t, proc.Initialize(true))
	require.NoError(t, proc.Execute())

	rec := proc.Record()
	assert.EqualValues(t, 0, rec.PID)
	assert.NotNil(t, rec.Stopped)
	assert.Equal(t, StatusStopped, proc.Status())
}

func TestCheckProcess(t *testing.T) {
	fake := osutiltest.New()
	deps, _ := testDeps(fake)
	cfg := testConfig(t, "g.x", "runX", 5*time.Millisecond)
	proc := New("cmd", "g.x", deps)
	proc.Bind(cfg)

	require.NoError(t, proc.Initialize(true))
	require.NoError(t, proc.Execute())
	assert.NoError(t, proc.CheckProcess())

	// Simulate a crash after the start wait.
	require.NoError(t, fake.Kill(proc.Record().PID))
	err := proc.CheckProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated during startup")
	assert.EqualValues(t, 0, proc.Record().PID)
}

func TestTerminateKeepsPidUntilKilled(t *testing.T) {
	fake := osutiltest.New()
	fake.AddProcess(4321, []string{"runX"})
	fake.IgnoreTerm[4321] = struct{}{}
	deps, _ := testDeps(fake)

	started := time.Now().UTC()
	proc := FromRecord(&Record{
		UID: "g.x", TypeID: "cmd", PID: 4321, ExecutedCmd: "runX", Started: &started,
	}, deps)

	require.NoError(t, proc.Terminate())
	assert.EqualValues(t, 4321, proc.Record().PID)
	assert.True(t, proc.IsAlive())

	require.NoError(t, proc.Kill())
	assert.EqualValues(t, 0, proc.Record().PID)
	assert.NotNil(t, proc.Record().Stopped)
	assert.Equal(t, "tester", proc.Record().StoppedBy)
	assert.Equal(t, StatusStopped, proc.Status())
}
