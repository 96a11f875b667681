// Package status persists process records in a local SQLite database so a
// restarted supervisor can rediscover the processes it launched and tell
// them apart from arbitrary pids.
package status

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/exxeleron/yak/internal/component"
)

// migrations is append-only: the key is the schema version a script
// migrates the database to. On open every script above the current
// user_version runs inside its own exclusive transaction.
var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS components(
			uid VARCHAR PRIMARY KEY,
			typeid VARCHAR,
			pid INT,
			executed_cmd VARCHAR,
			log VARCHAR,
			stdout VARCHAR,
			stderr VARCHAR,
			stdenv VARCHAR,
			started TIMESTAMP,
			started_by VARCHAR,
			stopped TIMESTAMP,
			stopped_by VARCHAR
		);`,
	2: `ALTER TABLE components ADD COLUMN last_operation VARCHAR DEFAULT '';`,
}

// Store is the SQLite-backed record store. One supervisor process writes
// at a time; within it the single connection pool serialises writers and
// WAL keeps readers out of their way.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Open creates or migrates the status database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("status store: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=30000&_txlock=exclusive", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("status store: open %s: %w", path, err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("status store: read schema version: %w", err)
	}

	for next := version + 1; ; next++ {
		script, ok := migrations[next]
		if !ok {
			return nil
		}

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("status store: migration %d: %w", next, err)
		}
		if _, err := tx.Exec(script); err != nil {
			tx.Rollback()
			return fmt.Errorf("status store: migration %d: %w", next, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next)); err != nil {
			tx.Rollback()
			return fmt.Errorf("status store: migration %d: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("status store: migration %d: %w", next, err)
		}
		if s.log != nil {
			s.log.Info("status schema migrated", zap.Int("version", next))
		}
	}
}

// Load returns every persisted record keyed by uid.
func (s *Store) Load() (map[string]*component.Record, error) {
	var rows []component.Record
	err := s.db.Select(&rows, `
		SELECT uid, typeid,
		       COALESCE(pid, 0) AS pid,
		       COALESCE(executed_cmd, '') AS executed_cmd,
		       COALESCE(log, '') AS log,
		       COALESCE(stdout, '') AS stdout,
		       COALESCE(stderr, '') AS stderr,
		       COALESCE(stdenv, '') AS stdenv,
		       started,
		       COALESCE(started_by, '') AS started_by,
		       stopped,
		       COALESCE(stopped_by, '') AS stopped_by,
		       COALESCE(last_operation, '') AS last_operation
		FROM components`)
	if err != nil {
		return nil, fmt.Errorf("status store: load: %w", err)
	}

	records := make(map[string]*component.Record, len(rows))
	for i := range rows {
		records[rows[i].UID] = &rows[i]
	}
	return records, nil
}

// Save upserts one record.
func (s *Store) Save(rec *component.Record) error {
	_, err := s.db.NamedExec(`
		INSERT OR REPLACE INTO components
			(uid, typeid, pid, executed_cmd, log, stdout, stderr, stdenv,
			 started, started_by, stopped, stopped_by, last_operation)
		VALUES
			(:uid, :typeid, :pid, :executed_cmd, :log, :stdout, :stderr, :stdenv,
			 :started, :started_by, :stopped, :stopped_by, :last_operation)`,
		rec)
	if err != nil {
		return fmt.Errorf("status store: save %s: %w", rec.UID, err)
	}
	return nil
}

// Delete removes a record by uid.
func (s *Store) Delete(uid string) error {
	if _, err := s.db.Exec("DELETE FROM components WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("status store: delete %s: %w", uid, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }
