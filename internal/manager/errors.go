package manager

import (
	"fmt"
	"strings"
)

// DependencyError reports an unsatisfiable dependency relation: a self
// dependency, a requirement on an unmanaged component, a cycle, or a
// required component that is not running at start time.
type DependencyError struct {
	UIDs []string
	Msg  string
}

func (e *DependencyError) Error() string {
	if len(e.UIDs) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.UIDs, ", "))
}

func depErr(msg string, uids ...string) error {
	return &DependencyError{UIDs: uids, Msg: msg}
}

// SelectorError reports an unknown or malformed component selector; the
// whole command is rejected.
type SelectorError struct {
	Token string
	Msg   string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector %q: %s", e.Token, e.Msg)
}
