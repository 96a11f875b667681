package component

import "time"

// Record is the persisted runtime state of one process. The status store
// upserts it by uid; a restarted supervisor reloads records to rediscover
// processes it previously launched.
//
// PID zero means "not running". When PID is set ExecutedCmd is set too;
// the liveness check depends on it.
type Record struct {
	UID           string     `db:"uid"`
	TypeID        string     `db:"typeid"`
	PID           int32      `db:"pid"`
	ExecutedCmd   string     `db:"executed_cmd"`
	Log           string     `db:"log"`
	Stdout        string     `db:"stdout"`
	Stderr        string     `db:"stderr"`
	Stdenv        string     `db:"stdenv"`
	Started       *time.Time `db:"started"`
	StartedBy     string     `db:"started_by"`
	Stopped       *time.Time `db:"stopped"`
	StoppedBy     string     `db:"stopped_by"`
	LastOperation string     `db:"last_operation"`
}
