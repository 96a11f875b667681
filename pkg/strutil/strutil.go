// Package strutil converts between the camelCase spelling used in
// configuration files and the UNDER_SCORE spelling used for exported
// environment variables and persisted attribute names.
package strutil

import (
	"regexp"
	"strings"
)

var (
	underscorer1 = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	underscorer2 = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	camelizer    = regexp.MustCompile(`_([a-zA-Z])`)
)

// ToUnderscore converts camelCase to UNDER_SCORE notation.
func ToUnderscore(value string) string {
	s := underscorer1.ReplaceAllString(value, "${1}_${2}")
	s = underscorer2.ReplaceAllString(s, "${1}_${2}")
	return strings.ToUpper(strings.ReplaceAll(s, "__", "_"))
}

// ToCamelCase converts under_score to camelCase notation. A leading
// underscore is left alone so private-style names keep their prefix.
func ToCamelCase(value string) string {
	if value == "" {
		return value
	}
	return value[:1] + camelizer.ReplaceAllStringFunc(value[1:], func(m string) string {
		return strings.ToUpper(m[1:])
	})
}
