package config

import (
	"os"
	"regexp"
)

// varToken matches the three reference shapes accepted in configuration
// values: $NAME, ${NAME} and %NAME%.
var varToken = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)|%(\w+)%`)

// expandString substitutes variable references in two phases: first against
// the supervisor's own variable map, then against the process environment.
// Any reference still present afterwards is an error; expansion of an
// already-expanded string is the identity.
func expandString(value string, vars map[string]string) (string, error) {
	expand := func(s string, lookup func(string) (string, bool)) string {
		return varToken.ReplaceAllStringFunc(s, func(tok string) string {
			m := varToken.FindStringSubmatch(tok)
			name := m[1]
			if name == "" {
				name = m[2]
			}
			if name == "" {
				name = m[3]
			}
			if v, ok := lookup(name); ok {
				return v
			}
			return tok
		})
	}

	out := expand(value, func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
	out = expand(out, os.LookupEnv)

	if loc := varToken.FindString(out); loc != "" {
		return "", configErrf("", "unresolved variable %s in value %q", loc, value)
	}
	return out, nil
}
