package component

// Status is the derived state of a managed process. It is recomputed on
// every read from pid liveness, the stderr file and the start/stop
// timestamps; nothing stores a status directly.
type Status string

const (
	// StatusStopped: not running and either never started or stopped by us.
	StatusStopped Status = "STOPPED"
	// StatusTerminated: started by us, gone without our action.
	StatusTerminated Status = "TERMINATED"
	// StatusRunning: alive, command line matches, stderr untouched.
	StatusRunning Status = "RUNNING"
	// StatusDisturbed: alive but something was written to stderr.
	StatusDisturbed Status = "DISTURBED"
	// StatusWSFull: a q process, dead or disturbed, whose stderr ends with a
	// workspace-full diagnostic.
	StatusWSFull Status = "WSFULL"
	// StatusDetached: alive but no longer present in the configuration.
	StatusDetached Status = "DETACHED"
)

// Running reports whether the status counts as alive for resource queries
// and dependency checks.
func (s Status) Running() bool {
	return s == StatusRunning || s == StatusDisturbed || s == StatusDetached
}
