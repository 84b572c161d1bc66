// File: cmd/nvmf-tgt/selftest.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// selftest drives one session per configured subsystem over the loopback
// transport: its IO queue fails with a transport error, then its admin queue
// receives a fabric disconnect.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-nvmf/control"
	"github.com/momentics/hioload-nvmf/internal/conn"
	"github.com/momentics/hioload-nvmf/internal/storage/null"
	"github.com/momentics/hioload-nvmf/internal/transport/loopback"
	"github.com/momentics/hioload-nvmf/target"
)

const selftestTimeout = 10 * time.Second

type selftestReport struct {
	Sessions          int
	Exiting           int
	FabricDisconnect  int
	SessionsDestroyed int
	Completed         int64
}

func newSelftestCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Exercise both teardown paths over the loopback transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), selftestTimeout)
			defer cancel()
			rep, err := runSelftest(ctx, cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"sessions=%d destroyed=%d exiting=%d fabric_disconnect=%d completed=%d\n",
				rep.Sessions, rep.SessionsDestroyed, rep.Exiting, rep.FabricDisconnect, rep.Completed)
			return nil
		},
	}
}

func runSelftest(ctx context.Context, cfg control.Config, log zerolog.Logger) (selftestReport, error) {
	var rep selftestReport
	tg, err := target.New(cfg, log)
	if err != nil {
		return rep, err
	}
	if err := tg.Start(); err != nil {
		return rep, err
	}
	defer func() { _ = tg.Shutdown(ctx) }()

	tr, err := loopback.New(loopback.Config{
		PollBatch:  cfg.Transport.PollBatch,
		QueueDepth: cfg.Transport.QueueDepth,
	}, log)
	if err != nil {
		return rep, err
	}

	type pair struct {
		admin, io *conn.Connection
	}
	var pairs []pair
	for _, sc := range cfg.Subsystems {
		adminID, ioID := sc.NQN+"/admin", sc.NQN+"/io1"
		if err := tr.Open(adminID); err != nil {
			return rep, err
		}
		admin, err := tg.Connect(target.ConnectRequest{
			ID: adminID, NQN: sc.NQN, Kind: conn.KindAdmin, Transport: tr, Processor: null.New(),
		})
		if err != nil {
			return rep, err
		}
		if err := tr.Open(ioID); err != nil {
			return rep, err
		}
		io, err := tg.Connect(target.ConnectRequest{
			ID: ioID, NQN: sc.NQN, Kind: conn.KindIO, SessionID: admin.Session().ID(), Transport: tr,
		})
		if err != nil {
			return rep, err
		}
		for cid := uint16(1); cid <= 4; cid++ {
			if err := tr.Post(ioID, loopback.Completion{CID: cid}); err != nil {
				return rep, err
			}
		}
		if err := tr.Post(ioID, loopback.Completion{CID: 5, Status: loopback.StatusFailed}); err != nil {
			return rep, err
		}
		pairs = append(pairs, pair{admin: admin, io: io})
		rep.Sessions++
	}

	for _, p := range pairs {
		if err := wait(ctx, p.io); err != nil {
			return rep, err
		}
		if err := tg.Disconnect(p.admin.ID()); err != nil {
			return rep, err
		}
	}
	for _, p := range pairs {
		if err := wait(ctx, p.admin); err != nil {
			return rep, err
		}
		for _, c := range []*conn.Connection{p.admin, p.io} {
			switch c.State() {
			case conn.StateExiting:
				rep.Exiting++
			case conn.StateFabricDisconnect:
				rep.FabricDisconnect++
			}
		}
	}
	rep.Completed = tr.Delivered()
	rep.SessionsDestroyed = rep.Sessions - tg.Sessions().Len()
	return rep, nil
}

func wait(ctx context.Context, c *conn.Connection) error {
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection %s: %w", c.ID(), ctx.Err())
	}
}
