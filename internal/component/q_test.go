package component

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exxeleron/yak/internal/osutil/osutiltest"
)

func terminatedQRecord(t *testing.T, typeid, stderrContent string) *Record {
	t.Helper()
	stderr := filepath.Join(t.TempDir(), "q.err")
	require.NoError(t, os.WriteFile(stderr, []byte(stderrContent), 0o644))
	started := time.Now().UTC()
	return &Record{
		UID: "core.hdb", TypeID: typeid, Stderr: stderr, Started: &started,
	}
}

func TestQStatusWSFull(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())

	cases := []struct {
		stderr string
		want   Status
	}{
		{"loading tables\n'wsfull\n", StatusWSFull},
		{"some noise\n-w abort\n", StatusWSFull},
		{"ordinary crash\n", StatusTerminated},
		{"", StatusTerminated},
	}

	for _, c := range cases {
		proc := FromRecord(terminatedQRecord(t, "q", c.stderr), deps)
		assert.Equal(t, c.want, proc.Status(), "stderr: %q", c.stderr)
	}
}

func TestQBatchTerminatedMapsToStopped(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())

	proc := FromRecord(terminatedQRecord(t, "b", "done\n"), deps)
	assert.Equal(t, StatusStopped, proc.Status())

	// A workspace-full death is still surfaced for batches.
	proc = FromRecord(terminatedQRecord(t, "b", "'wsfull\n"), deps)
	assert.Equal(t, StatusWSFull, proc.Status())
}

func TestQLogDiscovery(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())
	dir := t.TempDir()

	first := filepath.Join(dir, "hdb_2014.log")
	second := filepath.Join(dir, "hdb_2014_rolled.log")
	third := filepath.Join(dir, "hdb_2014_final.log")
	stdout := filepath.Join(dir, "core.hdb.out")

	require.NoError(t, os.WriteFile(stdout,
		[]byte("starting hdb\nLogging to file: "+first+"\nready\n"), 0o644))
	require.NoError(t, os.WriteFile(first,
		[]byte("line a\nline b\nlog continues in "+second+"\n"), 0o644))
	require.NoError(t, os.WriteFile(second,
		[]byte("line c\nlog continues in "+third+"\n"), 0o644))
	require.NoError(t, os.WriteFile(third, []byte("line d\n"), 0o644))

	rec := &Record{UID: "core.hdb", TypeID: "q", Stdout: stdout}
	proc := FromRecord(rec, deps)

	assert.Equal(t, third, proc.LogFile())
	// Discovery result is cached on the record.
	assert.Equal(t, third, rec.Log)
	assert.Equal(t, third, proc.LogFile())
}

func TestQLogDiscoveryWithoutBanner(t *testing.T) {
	deps, _ := testDeps(osutiltest.New())
	stdout := filepath.Join(t.TempDir(), "core.hdb.out")
	require.NoError(t, os.WriteFile(stdout, []byte("no banner here\n"), 0o644))

	proc := FromRecord(&Record{UID: "core.hdb", TypeID: "q", Stdout: stdout}, deps)
	assert.Equal(t, "", proc.LogFile())
}
