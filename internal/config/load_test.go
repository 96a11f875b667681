package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCfg = `
eventPath = /data/shared/events/

[group:core]
    basePort = 15000
    sysUser = tcore, root
    [[core.hdb]]
        type = q:kdb/hdb
        command = q hdb.q
        commandArgs = -init 1b
        port = basePort+5
        binPath = /opt/core/hdb
        dataPath = $DATA_ROOT
        logPath = ${LOG_ROOT}/hdb
        cpuAffinity = 0, 1
        startWait = 3
        commonLibs = clA
        export = eventDest, eventPath
        eventDest = LOG, MONITOR
    [[core.rdb]]
        type = q
        command = q rdb.q
        requires = hdb
        port = basePort+1000
        multithreaded = true
        libs = libA, libB
        memCap = 1024
    [[core.monitor]]
        type = cmd
        command = python monitor.py
        requires = core.rdb, core.hdb

[group:cep]
    [[cep.cep:(7)]]
        type = q
        command = q cep.q
        requires = core.rdb
        uOpt = U
        uFile = %BIN_ROOT%/optfile
    [[cep.python]]
        type = cmd
        command = python
    [[cep.helper]]
        type = c
        note = not a process
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yak.cfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadSample(t *testing.T) *Inventory {
	t.Helper()
	t.Setenv("DATA_ROOT", "_data_")
	t.Setenv("LOG_ROOT", "_log_")
	t.Setenv("BIN_ROOT", "_bin_")

	inv, err := Load(writeConfig(t, sampleCfg))
	require.NoError(t, err)
	return inv
}

func TestLoadOrderAndGroups(t *testing.T) {
	inv := loadSample(t)

	assert.Equal(t,
		[]string{"core.hdb", "core.rdb", "core.monitor", "cep.cep_7", "cep.python"},
		inv.Order)
	assert.Equal(t, []string{"core.hdb", "core.rdb", "core.monitor"}, inv.Groups["core"])
	assert.Equal(t, []string{"cep.cep_7", "cep.python"}, inv.Groups["cep"])
	assert.Contains(t, inv.Namespaces, "core")
	assert.Contains(t, inv.Namespaces, "cep")
}

func TestLoadQConfiguration(t *testing.T) {
	inv := loadSample(t)

	hdb, ok := inv.ByUID["core.hdb"].(*QConfig)
	require.True(t, ok)

	assert.Equal(t, "core.hdb", hdb.UID)
	assert.Equal(t, "core", hdb.Group)
	assert.Equal(t, "hdb", hdb.Component)
	assert.Equal(t, "q", hdb.Type)
	assert.Equal(t, 15005, hdb.Port)
	assert.False(t, hdb.Multithreaded)
	assert.Equal(t, []string{"clA"}, hdb.CommonLibs)
	assert.Equal(t, "/opt/core/hdb", hdb.BinPath)
	assert.Equal(t, "_data_", hdb.DataPath)
	assert.Equal(t, "_log_/hdb", hdb.LogPath)
	assert.Equal(t, []int{0, 1}, hdb.CPUAffinity)
	assert.Equal(t, 3*time.Second, hdb.StartWait)
	assert.Equal(t, time.Second, hdb.StopWait)
	assert.Equal(t, []string{"tcore", "root"}, hdb.SysUser)
	assert.Empty(t, hdb.Requires)

	assert.Equal(t, "q hdb.q -init 1b -commonLibs clA -p 15005", hdb.FullCmd())
}

func TestLoadMultithreadedPort(t *testing.T) {
	inv := loadSample(t)

	rdb := inv.ByUID["core.rdb"].(*QConfig)
	assert.Equal(t, -16000, rdb.Port)
	assert.True(t, rdb.Multithreaded)
	assert.Equal(t, 1024, rdb.MemCap)
	assert.Contains(t, rdb.Requires, "core.hdb")

	assert.Equal(t, "q rdb.q -libs libA libB -p -16000 -w 1024", rdb.FullCmd())
}

func TestLoadCloneAndAuthFile(t *testing.T) {
	inv := loadSample(t)

	cep := inv.ByUID["cep.cep_7"].(*QConfig)
	assert.Equal(t, "7", cep.Instance)
	assert.Equal(t, "U", cep.UOpt)
	assert.Equal(t, "_bin_/optfile", cep.UFile)
	assert.Equal(t, 0, cep.Port)
	assert.Equal(t, "q cep.q -U _bin_/optfile", cep.FullCmd())
	assert.Contains(t, cep.Requires, "core.rdb")
}

func TestLoadEnvBootstrap(t *testing.T) {
	inv := loadSample(t)

	hdb := inv.ByUID["core.hdb"].Base()
	assert.Equal(t, "core.hdb", hdb.Vars["EC_COMPONENT_ID"])
	assert.Equal(t, "hdb", hdb.Vars["EC_COMPONENT"])
	assert.Equal(t, "core", hdb.Vars["EC_GROUP"])
	assert.Equal(t, "", hdb.Vars["EC_COMPONENT_INSTANCE"])
	assert.Equal(t, "kdb", hdb.Vars["EC_COMPONENT_PKG"])
	assert.Equal(t, "hdb", hdb.Vars["EC_COMPONENT_TYPE"])

	assert.Equal(t, "LOG,MONITOR", hdb.Env["EC_EVENT_DEST"])
	assert.Equal(t, "/data/shared/events/", hdb.Env["EC_EVENT_PATH"])
}

func TestLoadSkipsHelperSections(t *testing.T) {
	inv := loadSample(t)
	assert.NotContains(t, inv.ByUID, "cep.helper")
}

func TestLoadCloneRange(t *testing.T) {
	inv, err := Load(writeConfig(t, `
[group:g]
    [[g.x:2]]
        type = cmd
        command = run
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"g.x_0", "g.x_1"}, inv.Order)
	assert.Equal(t, "0", inv.ByUID["g.x_0"].Base().Instance)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  string
	}{
		{"missing command", `
[group:g]
    [[g.x]]
        type = cmd
`},
		{"null command", `
[group:g]
    [[g.x]]
        type = cmd
        command = NULL
`},
		{"unknown type", `
[group:g]
    [[g.x]]
        type = zz
        command = run
`},
		{"unresolved variable", `
[group:g]
    [[g.x]]
        type = cmd
        command = run $NO_SUCH_VARIABLE_SET
`},
		{"invalid identifier", `
[group:g]
    [[g.x-y]]
        type = cmd
        command = run
`},
		{"duplicate uid", `
[group:g]
    [[g.x]]
        type = cmd
        command = run
    [[g.x]]
        type = cmd
        command = run
`},
		{"malformed port expression", `
[group:g]
    basePort = 5000
    [[g.x]]
        type = q
        command = q x.q
        port = basePort+q)
`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.cfg))
			require.Error(t, err)
			var cerr *ConfigurationError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestLoadReparseIsDeterministic(t *testing.T) {
	first := loadSample(t)
	second := loadSample(t)
	assert.Equal(t, first.Order, second.Order)
}

func TestExpandIdempotent(t *testing.T) {
	t.Setenv("EXP_ROOT", "/srv")
	out, err := expandString("run $EXP_ROOT/bin", nil)
	require.NoError(t, err)
	assert.Equal(t, "run /srv/bin", out)

	again, err := expandString(out, nil)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}
