package component

import "fmt"

// ProcessError reports a per-process operational failure: spawn errors,
// premature exits, termination failures. Batch operations record it in the
// per-uid outcome instead of aborting.
type ProcessError struct {
	UID string
	Msg string
	Err error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("component %s: %s: %v", e.UID, e.Msg, e.Err)
	}
	return fmt.Sprintf("component %s: %s", e.UID, e.Msg)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func procErrf(uid string, err error, format string, args ...any) error {
	return &ProcessError{UID: uid, Msg: fmt.Sprintf(format, args...), Err: err}
}
