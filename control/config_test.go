package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/control"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, control.DefaultConfig().Validate())
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := control.ParseConfig(`
[reactor]
cores = [0, 1, 2]
idle_backoff_max = "250us"

[log]
level = "debug"
format = "json"

[metrics]
addr = ""

[[subsystem]]
nqn = "nqn.a"
core = 1

[[subsystem]]
nqn = "nqn.b"
core = 2
`)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, cfg.Reactor.Cores)
	assert.Equal(t, 250*time.Microsecond, cfg.Reactor.IdleBackoffMax)
	assert.Equal(t, 64, cfg.Reactor.MailboxBatch, "undefined keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, []control.SubsystemConfig{{NQN: "nqn.a", Core: 1}, {NQN: "nqn.b", Core: 2}}, cfg.Subsystems)
}

func TestParseConfig_RejectsUnknownKeys(t *testing.T) {
	_, err := control.ParseConfig("[reactor]\ncorez = [1]\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reactor.corez")
}

func TestParseConfig_BadDuration(t *testing.T) {
	_, err := control.ParseConfig("[reactor]\nidle_backoff_max = \"soon\"\n")
	assert.ErrorContains(t, err, "idle_backoff_max")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.Reactor.Cores = []int{1, 1}
	cfg.Log.Level = "chatty"
	cfg.Subsystems = append(cfg.Subsystems, control.SubsystemConfig{NQN: "nqn.2016-06.io.spdk:cnode1", Core: 1})

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"duplicate core 1", "log.level", "duplicate nqn", "core 0 has no reactor"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.toml")
	require.NoError(t, os.WriteFile(path, []byte("[transport]\npoll_batch = 8\n"), 0o600))

	cfg, err := control.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Transport.PollBatch)

	_, err = control.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
