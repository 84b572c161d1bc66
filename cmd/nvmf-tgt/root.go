// File: cmd/nvmf-tgt/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Root command, flags, and configuration loading. Values resolve as
// flag > NVMF_* environment > config file > defaults.

package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-nvmf/control"
	"github.com/momentics/hioload-nvmf/internal/logging"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "nvmf-tgt",
		Short: "NVMe over Fabrics target",
		Long: `nvmf-tgt exports subsystems over fabric connections. Each subsystem is
bound to one reactor; every admin and IO connection of its sessions is polled
there until a transport error or a fabric disconnect tears it down.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "TOML config file (defaults apply when empty)")
	flags.String("log-level", "", "log level: trace|debug|info|warn|error|disabled")
	flags.String("log-format", "", "log format: console|json")
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	v.SetEnvPrefix("NVMF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root.AddCommand(newRunCmd(v), newSelftestCmd(v))
	return root
}

// loadConfig resolves the configuration and builds the process logger.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (control.Config, zerolog.Logger, error) {
	cfg := control.DefaultConfig()
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = control.LoadConfig(path); err != nil {
			return cfg, zerolog.Nop(), err
		}
	}
	if s := v.GetString("log.level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("log.format"); s != "" {
		cfg.Log.Format = s
	}
	if v.IsSet("metrics.addr") {
		cfg.Metrics.Addr = v.GetString("metrics.addr")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	return cfg, log, nil
}
