package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/control"
	"github.com/momentics/hioload-nvmf/target"
)

// executeCommand runs the root command with args and returns captured output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func selftestConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.Reactor.Cores = []int{0, 1}
	cfg.Reactor.IdleBackoffMax = 100 * time.Microsecond
	cfg.Subsystems = []control.SubsystemConfig{
		{NQN: "nqn.2016-06.io.spdk:cnode1", Core: 0},
		{NQN: "nqn.2016-06.io.spdk:cnode2", Core: 1},
	}
	return cfg
}

func TestRunSelftest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rep, err := runSelftest(ctx, selftestConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, selftestReport{
		Sessions:          2,
		Exiting:           2,
		FabricDisconnect:  2,
		SessionsDestroyed: 2,
		Completed:         8,
	}, rep)
}

func TestSelftestCommand(t *testing.T) {
	out, err := executeCommand(t, "selftest", "--log-level", "disabled")
	require.NoError(t, err)
	assert.Contains(t, out, "sessions=1 destroyed=1 exiting=1 fabric_disconnect=1 completed=4")
}

func TestSelftestCommand_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvmf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[reactor]
cores = [0, 1]
idle_backoff_max = "200us"

[log]
level = "disabled"

[[subsystem]]
nqn = "nqn.test:a"
core = 0

[[subsystem]]
nqn = "nqn.test:b"
core = 1
`), 0o600))

	out, err := executeCommand(t, "selftest", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "sessions=2 destroyed=2")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NVMF_LOG_LEVEL", "bogus")
	_, err := executeCommand(t, "selftest")
	assert.ErrorContains(t, err, "log.level")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["selftest"])
}

func TestMux_ServesMetricsAndState(t *testing.T) {
	tg, err := target.New(selftestConfig(), zerolog.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(newMux(tg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/debug/state")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "application/json", resp2.Header.Get("Content-Type"))
}
