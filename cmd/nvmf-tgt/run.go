// File: cmd/nvmf-tgt/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// run starts the target and its HTTP endpoints until SIGINT or SIGTERM.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-nvmf/target"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the target and serve /metrics and /debug/state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTarget(cmd, v)
		},
	}
	cmd.Flags().String("metrics-addr", "", "listen address for /metrics and /debug/state, empty disables")
	_ = v.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func runTarget(cmd *cobra.Command, v *viper.Viper) error {
	cfg, log, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}
	tg, err := target.New(cfg, log)
	if err != nil {
		return err
	}
	if err := tg.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newMux(tg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(sctx))
		}
		errs = append(errs, tg.Shutdown(sctx))
		return errors.Join(errs...)
	})
	return g.Wait()
}

func newMux(tg *target.Target) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(tg.Metrics().Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/debug/state", tg.Probes())
	return mux
}
