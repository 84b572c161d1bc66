// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Target configuration: defaults, TOML loading, and validation.

package control

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momentics/hioload-nvmf/internal/logging"
)

// Config holds all target configuration.
type Config struct {
	Reactor    ReactorConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Transport  TransportConfig
	Subsystems []SubsystemConfig
}

// ReactorConfig selects execution contexts and their tuning.
type ReactorConfig struct {
	Cores          []int         // one reactor per core
	Pin            bool          // pin reactor threads to their core
	IdleBackoffMax time.Duration // upper bound of idle sleep, 0 = busy poll
	MailboxBatch   int           // events drained per reactor iteration
}

type LogConfig struct {
	Level  string
	Format string // console | json
}

type MetricsConfig struct {
	Addr string // empty disables the HTTP endpoint
}

type TransportConfig struct {
	PollBatch  int // completions drained per poll
	QueueDepth int // completion queue entries per endpoint
}

type SubsystemConfig struct {
	NQN  string
	Core int
}

// DefaultConfig returns a single-core target exporting one subsystem.
func DefaultConfig() Config {
	return Config{
		Reactor: ReactorConfig{
			Cores:          []int{0},
			IdleBackoffMax: time.Millisecond,
			MailboxBatch:   64,
		},
		Log:       LogConfig{Level: "info", Format: logging.FormatConsole},
		Metrics:   MetricsConfig{Addr: ":9464"},
		Transport: TransportConfig{PollBatch: 32, QueueDepth: 256},
		Subsystems: []SubsystemConfig{
			{NQN: "nqn.2016-06.io.spdk:cnode1", Core: 0},
		},
	}
}

type fileConfig struct {
	Reactor struct {
		Cores          []int  `toml:"cores"`
		Pin            bool   `toml:"pin"`
		IdleBackoffMax string `toml:"idle_backoff_max"`
		MailboxBatch   int    `toml:"mailbox_batch"`
	} `toml:"reactor"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
	Transport struct {
		PollBatch  int `toml:"poll_batch"`
		QueueDepth int `toml:"queue_depth"`
	} `toml:"transport"`
	Subsystems []struct {
		NQN  string `toml:"nqn"`
		Core int    `toml:"core"`
	} `toml:"subsystem"`
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg, err := apply(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes TOML text over DefaultConfig.
func ParseConfig(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	cfg := DefaultConfig()
	if meta.IsDefined("reactor", "cores") {
		cfg.Reactor.Cores = raw.Reactor.Cores
	}
	if meta.IsDefined("reactor", "pin") {
		cfg.Reactor.Pin = raw.Reactor.Pin
	}
	if meta.IsDefined("reactor", "idle_backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reactor.IdleBackoffMax))
		if err != nil {
			return Config{}, fmt.Errorf("parse reactor.idle_backoff_max: %w", err)
		}
		cfg.Reactor.IdleBackoffMax = d
	}
	if meta.IsDefined("reactor", "mailbox_batch") {
		cfg.Reactor.MailboxBatch = raw.Reactor.MailboxBatch
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	if meta.IsDefined("metrics", "addr") {
		cfg.Metrics.Addr = strings.TrimSpace(raw.Metrics.Addr)
	}
	if meta.IsDefined("transport", "poll_batch") {
		cfg.Transport.PollBatch = raw.Transport.PollBatch
	}
	if meta.IsDefined("transport", "queue_depth") {
		cfg.Transport.QueueDepth = raw.Transport.QueueDepth
	}
	if meta.IsDefined("subsystem") {
		cfg.Subsystems = cfg.Subsystems[:0]
		for _, s := range raw.Subsystems {
			cfg.Subsystems = append(cfg.Subsystems, SubsystemConfig{NQN: strings.TrimSpace(s.NQN), Core: s.Core})
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks internal consistency; all problems are reported at once.
func (c Config) Validate() error {
	var errs []error
	cores := make(map[int]bool, len(c.Reactor.Cores))
	if len(c.Reactor.Cores) == 0 {
		errs = append(errs, errors.New("reactor.cores: at least one core required"))
	}
	for _, core := range c.Reactor.Cores {
		if core < 0 {
			errs = append(errs, fmt.Errorf("reactor.cores: negative core %d", core))
		}
		if cores[core] {
			errs = append(errs, fmt.Errorf("reactor.cores: duplicate core %d", core))
		}
		cores[core] = true
	}
	if c.Reactor.IdleBackoffMax < 0 {
		errs = append(errs, errors.New("reactor.idle_backoff_max: must not be negative"))
	}
	if c.Reactor.MailboxBatch <= 0 {
		errs = append(errs, errors.New("reactor.mailbox_batch: must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Transport.PollBatch <= 0 {
		errs = append(errs, errors.New("transport.poll_batch: must be positive"))
	}
	if c.Transport.QueueDepth <= 0 {
		errs = append(errs, errors.New("transport.queue_depth: must be positive"))
	}
	nqns := make(map[string]bool, len(c.Subsystems))
	for i, s := range c.Subsystems {
		if s.NQN == "" {
			errs = append(errs, fmt.Errorf("subsystem[%d]: empty nqn", i))
		} else if nqns[s.NQN] {
			errs = append(errs, fmt.Errorf("subsystem[%d]: duplicate nqn %s", i, s.NQN))
		}
		nqns[s.NQN] = true
		if !cores[s.Core] {
			errs = append(errs, fmt.Errorf("subsystem[%d]: core %d has no reactor", i, s.Core))
		}
	}
	return errors.Join(errs...)
}
