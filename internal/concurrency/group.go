// File: internal/concurrency/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Group is the set of reactors of one target process, one per configured
// core. It implements api.Scheduler.

package concurrency

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-nvmf/api"
)

// Ensure compile-time interface compliance.
var _ api.Scheduler = (*Group)(nil)

// GroupConfig lists the cores to run reactors on and shared reactor tuning.
type GroupConfig struct {
	Cores          []int
	Pin            bool
	IdleBackoffMax time.Duration
	MailboxBatch   int
}

// Group owns one Reactor per execution context.
type Group struct {
	reactors map[api.ExecContext]*Reactor
	order    []api.ExecContext
	log      zerolog.Logger
}

// NewGroup builds the reactors without starting them.
func NewGroup(cfg GroupConfig, log zerolog.Logger) (*Group, error) {
	if len(cfg.Cores) == 0 {
		return nil, fmt.Errorf("reactor group: no cores: %w", api.ErrInvalidArgument)
	}
	g := &Group{
		reactors: make(map[api.ExecContext]*Reactor, len(cfg.Cores)),
		log:      log,
	}
	rcfg := ReactorConfig{
		Pin:            cfg.Pin,
		IdleBackoffMax: cfg.IdleBackoffMax,
		MailboxBatch:   cfg.MailboxBatch,
	}
	for _, core := range cfg.Cores {
		if core < 0 || (cfg.Pin && core >= runtime.NumCPU()) {
			return nil, fmt.Errorf("reactor group: core %d: %w", core, api.ErrInvalidArgument)
		}
		ctx := api.ExecContext(core)
		if _, dup := g.reactors[ctx]; dup {
			return nil, fmt.Errorf("reactor group: core %d: %w", core, api.ErrAlreadyExists)
		}
		g.reactors[ctx] = NewReactor(ctx, rcfg, log)
		g.order = append(g.order, ctx)
	}
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })
	return g, nil
}

// Start launches every reactor goroutine.
func (g *Group) Start() {
	for _, ctx := range g.order {
		go g.reactors[ctx].Run()
	}
	g.log.Info().Int("reactors", len(g.order)).Msg("reactors started")
}

// Stop stops every reactor and waits for them to exit.
func (g *Group) Stop() {
	for _, ctx := range g.order {
		g.reactors[ctx].Stop()
	}
	g.log.Info().Msg("reactors stopped")
}

// Contexts returns the execution contexts in ascending order.
func (g *Group) Contexts() []api.ExecContext {
	out := make([]api.ExecContext, len(g.order))
	copy(out, g.order)
	return out
}

// Reactor returns the reactor serving ctx.
func (g *Group) Reactor(ctx api.ExecContext) (*Reactor, bool) {
	r, ok := g.reactors[ctx]
	return r, ok
}

// Register binds fn(arg) to the reactor of ctx.
func (g *Group) Register(ctx api.ExecContext, fn api.PollFunc, arg any) (api.Slot, error) {
	r, ok := g.reactors[ctx]
	if !ok {
		return nil, fmt.Errorf("register on %s: %w", ctx, api.ErrUnknownContext)
	}
	p, err := r.Register(fn, arg)
	if err != nil {
		return nil, fmt.Errorf("register on %s: %w", ctx, err)
	}
	return p, nil
}

// Unregister deactivates a slot returned by Register.
func (g *Group) Unregister(slot api.Slot) error {
	p, ok := slot.(*Poller)
	if !ok || p == nil {
		return api.ErrInvalidArgument
	}
	return p.reactor.Unregister(p)
}

// Post runs fn on the reactor goroutine of ctx.
func (g *Group) Post(ctx api.ExecContext, fn func()) error {
	r, ok := g.reactors[ctx]
	if !ok {
		return fmt.Errorf("post to %s: %w", ctx, api.ErrUnknownContext)
	}
	return r.Post(fn)
}

// Stats returns per-reactor counters keyed by context name.
func (g *Group) Stats() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(g.order))
	for _, ctx := range g.order {
		out[ctx.String()] = g.reactors[ctx].Stats()
	}
	return out
}
