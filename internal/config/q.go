package config

import (
	"fmt"
	"strconv"
	"strings"
)

func init() {
	Register("q", func(uid UID) Configuration { return &QConfig{Config: *newConfig(uid, "q")} })
	Register("b", func(uid UID) Configuration { return &QConfig{Config: *newConfig(uid, "b")} })
}

// QConfig is the configuration of a q process. On top of the base
// attributes it derives the listening port from group-level basePort
// arithmetic and collects the q-specific command line flags.
type QConfig struct {
	Config

	// Port is negative when the process runs multithreaded; q uses the
	// sign of -p for that.
	Port          int
	Multithreaded bool
	Libs          []string
	CommonLibs    []string
	MemCap        int
	UOpt          string
	UFile         string
	QPath         string
	QHome         string
}

func (c *QConfig) parse(l *lookup) error {
	if err := c.Config.parse(l); err != nil {
		return err
	}

	c.Multithreaded = l.boolean("multithreaded")

	port, err := c.parsePort(l)
	if err != nil {
		return err
	}
	if c.Multithreaded {
		port = -port
	}
	c.Port = port

	c.Libs = l.list("libs")
	c.CommonLibs = l.list("commonLibs")

	if s := l.str("memCap", "", false); s != "" {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return configErrf(c.UID, "memCap must be a positive integer, got %q", s)
		}
		c.MemCap = n
	}

	c.UOpt = l.str("uOpt", "", false)
	c.UFile = l.file("uFile")
	c.QPath = l.str("qPath", "", false)
	c.QHome = l.str("qHome", "", false)
	if c.QHome != "" {
		c.Vars["QHOME"] = c.QHome
	}

	return l.err
}

// parsePort resolves basePort from the group section (falling back to the
// global scope) and evaluates the process's port expression against it.
// An absent expression means basePort itself.
func (c *QConfig) parsePort(l *lookup) (int, error) {
	basePort := 0
	for _, scope := range l.stack[1:] {
		if v, ok := scope["basePort"]; ok {
			s, _ := v.(string)
			expanded := l.expand(s)
			n, err := strconv.Atoi(strings.TrimSpace(expanded))
			if err != nil {
				return 0, configErrf(c.UID, "basePort %q is not an integer", expanded)
			}
			basePort = n
			break
		}
	}

	raw, ok := l.stack[0]["port"]
	if !ok {
		return basePort, nil
	}
	exprStr, _ := raw.(string)
	exprStr = strings.TrimSpace(exprStr)
	if exprStr == "" || strings.EqualFold(exprStr, "NULL") {
		return basePort, nil
	}

	// References like $basePort are substituted before evaluation; the
	// bare name stays available to the evaluator.
	expanded, err := expandString(exprStr, mergeVars(l.vars, map[string]string{"basePort": strconv.Itoa(basePort)}))
	if err != nil {
		return 0, configErrf(c.UID, "%v", err)
	}
	port, err := evalIntExpr(expanded, map[string]int{"basePort": basePort})
	if err != nil {
		return 0, configErrf(c.UID, "port: %v", err)
	}
	return port, nil
}

func mergeVars(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// FullCmd composes the q launch command. The flag order is part of the
// external contract; q instances parse their own tail.
func (c *QConfig) FullCmd() string {
	cmd := c.Command

	if c.CommandArgs != "" {
		cmd += " " + c.CommandArgs
	}
	if len(c.CommonLibs) > 0 {
		cmd += " -commonLibs " + strings.Join(c.CommonLibs, " ")
	}
	if len(c.Libs) > 0 {
		cmd += " -libs " + strings.Join(c.Libs, " ")
	}
	if c.Port != 0 {
		cmd += fmt.Sprintf(" -p %d", c.Port)
	}
	if c.MemCap > 0 {
		cmd += fmt.Sprintf(" -w %d", c.MemCap)
	}
	if c.UOpt != "" {
		cmd += fmt.Sprintf(" -%s %s", c.UOpt, c.UFile)
	}

	return cmd
}
