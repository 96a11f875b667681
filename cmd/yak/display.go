package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/exxeleron/yak/internal/config"
	"github.com/exxeleron/yak/internal/osutil"
)

const displayTimeFormat = "2006.01.02 15:04:05"

// infoTable renders the info command: a `attr:width#attr:width` format
// string, columns padded for the default space delimiter or joined raw for
// a custom one.
type infoTable struct {
	columns   []infoColumn
	delimiter string
}

type infoColumn struct {
	attr  string
	width int
}

func parseInfoFormat(format, delimiter string) (*infoTable, error) {
	t := &infoTable{delimiter: delimiter}
	for _, spec := range strings.Split(format, "#") {
		attr, width, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("malformed info format column %q", spec)
		}
		w, err := strconv.Atoi(width)
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("malformed info format column %q", spec)
		}
		t.columns = append(t.columns, infoColumn{attr: attr, width: w})
	}
	return t, nil
}

func (t *infoTable) header() string {
	if t.delimiter != " " {
		names := make([]string, len(t.columns))
		for i, c := range t.columns {
			names[i] = c.attr
		}
		return strings.Join(names, t.delimiter)
	}

	cells := make([]string, len(t.columns))
	for i, c := range t.columns {
		cells[i] = fmt.Sprintf("%-*.*s", c.width, c.width, c.attr)
	}
	head := strings.Join(cells, " ")
	return head + "\n" + strings.Repeat("-", len(head))
}

func (t *infoTable) row(value func(attr string) string) string {
	cells := make([]string, len(t.columns))
	for i, c := range t.columns {
		if t.delimiter != " " {
			cells[i] = value(c.attr)
			continue
		}
		cells[i] = fmt.Sprintf("%-*.*s", c.width, c.width, value(c.attr))
	}
	return strings.Join(cells, t.delimiter)
}

// attrValue resolves one display attribute of a process. Status is
// evaluated lazily so rows without a status column skip the liveness
// probes.
func (a *app) attrValue(uid, attr string) string {
	proc := a.mgr.Process(uid)
	rec := proc.Record()

	switch attr {
	case "uid":
		return rec.UID
	case "typeid":
		return rec.TypeID
	case "pid":
		if rec.PID == 0 {
			return ""
		}
		return strconv.Itoa(int(rec.PID))
	case "port":
		if proc.Port() == 0 {
			return ""
		}
		return strconv.Itoa(proc.Port())
	case "status":
		return string(proc.Status())
	case "executedCmd":
		return rec.ExecutedCmd
	case "log":
		return proc.LogFile()
	case "stdout":
		return rec.Stdout
	case "stderr":
		return rec.Stderr
	case "stdenv":
		return rec.Stdenv
	case "started":
		return formatTime(rec.Started)
	case "startedBy":
		return rec.StartedBy
	case "stopped":
		return formatTime(rec.Stopped)
	case "stoppedBy":
		return rec.StoppedBy
	case "lastOperation":
		return rec.LastOperation
	case "cpuUser":
		return fmt.Sprintf("%.3f", proc.CPUUser())
	case "cpuSys":
		return fmt.Sprintf("%.3f", proc.CPUSystem())
	case "memRss":
		return strconv.FormatUint(proc.MemRSS(), 10)
	case "memVms":
		return strconv.FormatUint(proc.MemVMS(), 10)
	case "memUsage":
		return fmt.Sprintf("%.3f", proc.MemPercent())
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(displayTimeFormat)
}

func (a *app) printDetails(uid string) {
	fmt.Printf("Component: %s\n", uid)

	for _, attr := range []string{
		"uid", "typeid", "status", "pid", "executedCmd", "log", "stdout", "stderr",
		"stdenv", "started", "startedBy", "stopped", "stoppedBy", "lastOperation",
	} {
		fmt.Printf("\t%-20s\t%s\n", attr, a.attrValue(uid, attr))
	}

	fmt.Println("\nConfiguration:")
	cfg := a.mgr.Configuration(uid)
	if cfg == nil {
		fmt.Println("\t<< Unavailable >>")
		return
	}

	base := cfg.Base()
	entry := func(name, value string) { fmt.Printf("\t%-20s\t%s\n", name, value) }
	entry("uid", base.UID)
	entry("fullCmd", cfg.FullCmd())
	entry("requires", joinSet(base.Requires))
	entry("command", base.Command)
	entry("commandArgs", base.CommandArgs)
	entry("binPath", base.BinPath)
	entry("dataPath", base.DataPath)
	entry("logPath", base.LogPath)
	entry("cpuAffinity", joinInts(base.CPUAffinity))
	entry("startWait", fmt.Sprintf("%g", base.StartWait.Seconds()))
	entry("stopWait", fmt.Sprintf("%g", base.StopWait.Seconds()))
	entry("sysUser", strings.Join(base.SysUser, ", "))

	if qc, ok := cfg.(*config.QConfig); ok {
		entry("port", strconv.Itoa(qc.Port))
		entry("multithreaded", strconv.FormatBool(qc.Multithreaded))
		entry("libs", strings.Join(qc.Libs, ", "))
		entry("commonLibs", strings.Join(qc.CommonLibs, ", "))
		if qc.MemCap > 0 {
			entry("memCap", strconv.Itoa(qc.MemCap))
		} else {
			entry("memCap", "")
		}
		entry("uOpt", qc.UOpt)
		entry("uFile", qc.UFile)
		entry("qPath", qc.QPath)
		entry("qHome", qc.QHome)
	}
}

func joinSet(set map[string]struct{}) string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}

func joinInts(ints []int) string {
	items := make([]string, len(ints))
	for i, n := range ints {
		items[i] = strconv.Itoa(n)
	}
	return strings.Join(items, ", ")
}

// showComponentFile displays one std stream or log file and prints a
// per-file summary line.
func (a *app) showComponentFile(uid, path string) {
	if osutil.IsEmpty(path) {
		if !a.opts.ignoreEmptyFiles {
			fmt.Printf("\t%-30s\t%-10s\t%s\n", uid, "Skipped", path)
		}
		return
	}

	var status string
	if err := showFile(path, a.opts.viewer); err != nil {
		status = err.Error()
	} else {
		status = "Viewed"
	}
	fmt.Printf("\t%-30s\t%-10s\t%s\n", uid, status, path)
}

func showFile(path, viewer string) error {
	if viewer == "" {
		return showFileInternal(path)
	}
	cmd := exec.Command(viewer, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func showFileInternal(path string) error {
	if osutil.IsEmpty(path) {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Println("\n[BEGIN]")
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		fmt.Println(strings.TrimRight(sc.Text(), "\r\n"))
	}
	fmt.Println("[END]")
	fmt.Println()
	return sc.Err()
}

// printErrChain walks an error chain and prints each layer with its type;
// typed supervisor errors surface their kind this way.
func printErrChain(err error) {
	for i, e := 0, err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(os.Stderr, "[%d] %T: %v\n", i, e, e)
		i++
	}
}
