package config

import "fmt"

// ConfigurationError reports a malformed configuration: unknown type,
// unresolved variable, missing required attribute, invalid identifier.
// Loading stops at the first one; a broken inventory is never half-used.
type ConfigurationError struct {
	UID string
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.UID == "" {
		return e.Msg
	}
	return fmt.Sprintf("component %s: %s", e.UID, e.Msg)
}

func configErrf(uid, format string, args ...any) error {
	return &ConfigurationError{UID: uid, Msg: fmt.Sprintf(format, args...)}
}
