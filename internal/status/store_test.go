package status

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/exxeleron/yak/internal/component"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "yak.status")
	s := openTestStore(t, path)

	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &component.Record{
		UID:           "core.hdb",
		TypeID:        "q",
		PID:           4321,
		ExecutedCmd:   "q hdb.q -p 15005",
		Stdout:        "/logs/core.hdb_2024.03.01T09.30.00.out",
		Stderr:        "/logs/core.hdb_2024.03.01T09.30.00.err",
		Stdenv:        "/logs/core.hdb_2024.03.01T09.30.00.env",
		Started:       &started,
		StartedBy:     "tcore",
		LastOperation: "start",
	}
	require.NoError(t, s.Save(rec))

	records, err := s.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records["core.hdb"]
	require.NotNil(t, got)
	assert.Equal(t, rec.UID, got.UID)
	assert.Equal(t, rec.TypeID, got.TypeID)
	assert.Equal(t, rec.PID, got.PID)
	assert.Equal(t, rec.ExecutedCmd, got.ExecutedCmd)
	assert.Equal(t, rec.Stdout, got.Stdout)
	assert.Equal(t, rec.StartedBy, got.StartedBy)
	assert.Equal(t, rec.LastOperation, got.LastOperation)
	require.NotNil(t, got.Started)
	assert.True(t, got.Started.Equal(started))
	assert.Nil(t, got.Stopped)
	assert.Equal(t, "", got.StoppedBy)
}

func TestUpsertReplaces(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "yak.status"))

	rec := &component.Record{UID: "g.x", TypeID: "cmd", PID: 1}
	require.NoError(t, s.Save(rec))

	rec.PID = 0
	rec.LastOperation = "stop"
	require.NoError(t, s.Save(rec))

	records, err := s.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 0, records["g.x"].PID)
	assert.Equal(t, "stop", records["g.x"].LastOperation)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "yak.status"))

	require.NoError(t, s.Save(&component.Record{UID: "g.x", TypeID: "cmd"}))
	require.NoError(t, s.Delete("g.x"))

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMigrationsSetUserVersion(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "yak.status"))

	var version int
	require.NoError(t, s.db.Get(&version, "PRAGMA user_version"))
	assert.Equal(t, 2, version)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yak.status")

	s := openTestStore(t, path)
	require.NoError(t, s.Save(&component.Record{UID: "g.x", TypeID: "cmd", ExecutedCmd: "run"}))
	require.NoError(t, s.Close())

	// Reopen applies no further migrations and sees the same data.
	s2 := openTestStore(t, path)
	records, err := s2.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run", records["g.x"].ExecutedCmd)
}
