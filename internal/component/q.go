package component

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/exxeleron/yak/internal/config"
	"github.com/exxeleron/yak/internal/osutil"
)

func init() {
	Register("q", func(rec *Record, deps Deps) Process {
		return &QComponent{Component{rec: rec, deps: deps}}
	})
	Register("b", func(rec *Record, deps Deps) Process {
		return &QBatch{QComponent{Component{rec: rec, deps: deps}}}
	})
}

var (
	logFilePattern   = regexp.MustCompile(`Logging to file\s*:\s*(.+)$`)
	rolledLogPattern = regexp.MustCompile(`log continues in\s*(.+)$`)
)

// rolledLookback bounds how much of a rolled log file is scanned for the
// continuation breadcrumb.
const rolledLookback = 512

// wsfullLookback bounds the stderr tail inspected for workspace-full
// diagnostics.
const wsfullLookback = 16

// QComponent represents a running q process. It knows how to follow the
// interpreter's log-rotation breadcrumbs and recognises the workspace-full
// death rattle in stderr.
type QComponent struct {
	Component
}

func (c *QComponent) qcfg() *config.QConfig {
	qc, _ := c.cfg.(*config.QConfig)
	return qc
}

func (c *QComponent) Port() int {
	if qc := c.qcfg(); qc != nil {
		return qc.Port
	}
	return 0
}

// Status refines the base derivation: a q process that died or complained
// after exhausting its workspace reports WSFULL.
func (c *QComponent) Status() Status {
	st := c.Component.Status()
	if (st == StatusTerminated || st == StatusDisturbed) && c.wsfull() {
		return StatusWSFull
	}
	return st
}

func (c *QComponent) wsfull() bool {
	tail := strings.TrimSpace(string(tailBytes(c.rec.Stderr, wsfullLookback)))
	return strings.HasSuffix(tail, "wsfull") || strings.HasSuffix(tail, "-w abort")
}

// Execute verifies the auth file, pushes qPath onto PATH for the launch
// and spawns. The cached log location is dropped: a new launch writes a
// new log.
func (c *QComponent) Execute() error {
	restore, err := c.prepare()
	if err != nil {
		return err
	}
	defer restore()

	err = c.execute(nil)
	c.rec.Log = ""
	return err
}

func (c *QComponent) Interactive() error {
	restore, err := c.prepare()
	if err != nil {
		return err
	}
	defer restore()

	err = c.interactive(nil)
	c.rec.Log = ""
	return err
}

// prepare checks the auth file and, when qPath is configured, prepends it
// to PATH for the duration of the launch. The supervisor environment is
// the lookup source for both the binary resolution and the child
// environment, so the swap covers both.
func (c *QComponent) prepare() (func(), error) {
	restore := func() {}
	qc := c.qcfg()
	if qc == nil {
		return restore, nil
	}
	if qc.UFile != "" {
		if fi, err := os.Stat(qc.UFile); err != nil || fi.IsDir() {
			return restore, procErrf(c.rec.UID, nil, "cannot locate uFile: %s", qc.UFile)
		}
	}
	if qc.QPath != "" {
		saved := os.Getenv("PATH")
		os.Setenv("PATH", qc.QPath+string(os.PathListSeparator)+saved)
		restore = func() { os.Setenv("PATH", saved) }
	}
	return restore, nil
}

// LogFile locates the current application log: the stdout banner names the
// first file, rolled files leave "log continues in <path>" breadcrumbs
// near their end. The resolved path is cached on the record until the next
// launch.
func (c *QComponent) LogFile() string {
	if c.rec.Log == "" {
		c.rec.Log = c.locateLogFile()
	}
	c.rec.Log = c.findRolledLog(c.rec.Log)
	return c.rec.Log
}

func (c *QComponent) locateLogFile() string {
	if c.rec.Stdout == "" {
		return ""
	}
	f, err := os.Open(c.rec.Stdout)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if m := logFilePattern.FindStringSubmatch(sc.Text()); m != nil {
			return filepath.Clean(strings.TrimSpace(m[1]))
		}
	}
	return ""
}

func (c *QComponent) findRolledLog(path string) string {
	for path != "" && !osutil.IsEmpty(path) {
		tail := tailBytes(path, rolledLookback)
		var next string
		for _, line := range bytes.Split(tail, []byte("\n")) {
			if m := rolledLogPattern.FindSubmatch(line); m != nil {
				next = filepath.Clean(strings.TrimSpace(string(m[1])))
			}
		}
		if next == "" {
			break
		}
		path = next
	}
	return path
}

// tailBytes reads up to n trailing bytes of path.
func tailBytes(path string, n int64) []byte {
	size := osutil.FileSize(path)
	if size == 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	offset := int64(0)
	if size > n {
		offset = size - n
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil
	}
	return buf
}

// QBatch is a q process expected to run to completion; a batch that is
// gone did its job, so TERMINATED maps to STOPPED.
type QBatch struct {
	QComponent
}

func (c *QBatch) Status() Status {
	st := c.QComponent.Status()
	if st == StatusTerminated {
		return StatusStopped
	}
	return st
}
