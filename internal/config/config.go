// Package config loads the hierarchical process inventory: every managed
// process, its launch command, dependencies and environment. Parsed
// configurations are immutable for the lifetime of a load; the manager
// rebinds runtime records to them on every reload.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/exxeleron/yak/pkg/strutil"
)

// validUID matches group.component and group.component_instance.
var validUID = regexp.MustCompile(`^\w+\.\w+$|^\w+\.\w+_\d+$`)

// UID is the structured form of a process identifier.
type UID struct {
	Group     string
	Component string
	Instance  string // decimal, empty for non-clones
}

func (u UID) String() string {
	if u.Instance == "" {
		return u.Group + "." + u.Component
	}
	return u.Group + "." + u.Component + "_" + u.Instance
}

// Configuration is implemented by every process type. Base exposes the
// common fields; FullCmd composes the complete launch command line.
type Configuration interface {
	Base() *Config
	TypeID() string
	FullCmd() string

	parse(l *lookup) error
}

// Factory creates an empty typed configuration for a uid.
type Factory func(uid UID) Configuration

var registry = map[string]Factory{}

// Register binds a typeid to its configuration factory. Types register
// themselves at startup; an unknown typeid in a file is a configuration
// error.
func Register(typeid string, f Factory) { registry[typeid] = f }

func init() {
	Register("cmd", func(uid UID) Configuration { return newConfig(uid, "cmd") })
}

// Config carries the attributes shared by every process type.
type Config struct {
	UID       string
	Group     string
	Component string
	Instance  string
	Type      string

	Command     string
	CommandArgs string
	Requires    map[string]struct{}
	BinPath     string
	DataPath    string
	LogPath     string
	CPUAffinity []int
	StartWait   time.Duration
	StopWait    time.Duration
	SysUser     []string

	// Env holds the EC_* variables derived from the export list; Vars the
	// internal variables available for expansion (and pushed to children).
	Env  map[string]string
	Vars map[string]string
}

func newConfig(uid UID, typeid string) *Config {
	return &Config{
		UID:       uid.String(),
		Group:     uid.Group,
		Component: uid.Component,
		Instance:  uid.Instance,
		Type:      typeid,
	}
}

func (c *Config) Base() *Config  { return c }
func (c *Config) TypeID() string { return c.Type }

func (c *Config) String() string {
	return fmt.Sprintf("<%s> %s: %s", c.Type, c.UID, c.Command)
}

// FullCmd is the exact command line handed to the OS.
func (c *Config) FullCmd() string {
	cmd := c.Command
	if c.CommandArgs != "" {
		cmd += " " + c.CommandArgs
	}
	return cmd
}

// RequiresAny reports whether any of the given uids is in the requires set.
func (c *Config) RequiresAny(uids []string) bool {
	for _, uid := range uids {
		if _, ok := c.Requires[uid]; ok {
			return true
		}
	}
	return false
}

func (c *Config) parse(l *lookup) error {
	c.Vars = map[string]string{
		"EC_COMPONENT_ID":       c.UID,
		"EC_COMPONENT":          c.Component,
		"EC_GROUP":              c.Group,
		"EC_COMPONENT_INSTANCE": c.Instance,
	}
	l.vars = c.Vars

	pkg, subtype := splitType(l.rawString("type"))
	c.Vars["EC_COMPONENT_PKG"] = pkg
	c.Vars["EC_COMPONENT_TYPE"] = subtype

	c.Command = l.str("command", "", true)
	c.CommandArgs = l.str("commandArgs", "", false)

	c.Requires = map[string]struct{}{}
	for _, req := range l.list("requires") {
		if !validUID.MatchString(req) {
			req = c.Group + "." + req
		}
		c.Requires[req] = struct{}{}
	}

	c.BinPath = l.path("binPath")
	c.DataPath = l.path("dataPath")
	c.LogPath = l.path("logPath")
	c.CPUAffinity = l.ints("cpuAffinity")
	c.StartWait = l.seconds("startWait", time.Second)
	c.StopWait = l.seconds("stopWait", time.Second)
	c.SysUser = l.list("sysUser")

	c.Env = l.exports()

	return l.err
}

// splitType decomposes "typeid[:pkg/subtype]" into its package and subtype
// components.
func splitType(typ string) (pkg, subtype string) {
	parts := strings.SplitN(typ, ":", 2)
	if len(parts) < 2 {
		return "", ""
	}
	qual := strings.SplitN(parts[1], "/", 2)
	if len(qual) < 2 {
		return "", qual[0]
	}
	return qual[0], qual[1]
}

// lookup resolves attributes against the three-level configuration stack
// (process section, group section, global scope) and carries a sticky
// error so parse code reads linearly.
type lookup struct {
	uid   string
	stack []map[string]rawValue
	vars  map[string]string
	err   error
}

func (l *lookup) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// raw returns the first hit in the stack. The case-insensitive string
// "NULL" means explicit absence.
func (l *lookup) raw(attr string) (rawValue, bool) {
	for _, scope := range l.stack {
		if v, ok := scope[attr]; ok {
			if s, isStr := v.(string); isStr && strings.EqualFold(s, "NULL") {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

func (l *lookup) rawString(attr string) string {
	v, ok := l.raw(attr)
	if !ok {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	}
	return ""
}

func (l *lookup) expand(value string) string {
	out, err := expandString(value, l.vars)
	if err != nil {
		l.fail(configErrf(l.uid, "%v", err))
		return ""
	}
	return out
}

func (l *lookup) str(attr, def string, required bool) string {
	v, ok := l.raw(attr)
	if !ok || v == "" {
		if required {
			l.fail(configErrf(l.uid, "missing required parameter %s", attr))
			return ""
		}
		return def
	}
	s, isStr := v.(string)
	if !isStr {
		l.fail(configErrf(l.uid, "parameter %s must be a single value", attr))
		return ""
	}
	return l.expand(s)
}

func (l *lookup) list(attr string) []string {
	v, ok := l.raw(attr)
	if !ok {
		return nil
	}
	var items []string
	switch v := v.(type) {
	case string:
		if v == "" {
			return nil
		}
		items = []string{v}
	case []string:
		items = v
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, l.expand(item))
	}
	return out
}

func (l *lookup) ints(attr string) []int {
	items := l.list(attr)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			l.fail(configErrf(l.uid, "parameter %s: %q is not an integer", attr, item))
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (l *lookup) seconds(attr string, def time.Duration) time.Duration {
	s := l.str(attr, "", false)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		l.fail(configErrf(l.uid, "parameter %s: %q is not a non-negative number of seconds", attr, s))
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func (l *lookup) boolean(attr string) bool {
	s := strings.ToLower(strings.TrimSpace(l.str(attr, "", false)))
	switch s {
	case "", "false", "f", "n", "0":
		return false
	}
	return true
}

// file returns a cleaned file path, empty when absent.
func (l *lookup) file(attr string) string {
	f := l.str(attr, "", false)
	if f == "" {
		return ""
	}
	return filepath.Clean(f)
}

// path returns a cleaned directory path, defaulting to the current
// directory. Backslashes are normalised so configurations travel between
// platforms.
func (l *lookup) path(attr string) string {
	p := l.str(attr, "", false)
	if p == "" {
		return "."
	}
	return strings.ReplaceAll(filepath.Clean(p), "\\", "/")
}

// exports materialises the EC_* environment from the export list: each
// named key K becomes EC_<TO_UNDER_SCORE(K)>, lists joined with commas,
// absent values empty.
func (l *lookup) exports() map[string]string {
	env := map[string]string{}
	for _, key := range l.list("export") {
		var value string
		switch v, _ := l.raw(key); v := v.(type) {
		case string:
			value = v
		case []string:
			value = strings.Join(v, ",")
		}
		env["EC_"+strutil.ToUnderscore(key)] = l.expand(value)
	}
	return env
}
