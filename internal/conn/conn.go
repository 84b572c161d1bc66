// File: internal/conn/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection is one admin or IO queue pair of a session, polled on the
// execution context of the session's subsystem.

package conn

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/control"
	"github.com/momentics/hioload-nvmf/internal/session"
)

var _ api.Endpoint = (*Connection)(nil)

// Options carries the identity and collaborators of a new connection.
type Options struct {
	ID        string
	Kind      Kind
	Session   *session.Session
	Transport api.Transport
	Scheduler api.Scheduler
	Logger    zerolog.Logger
	Metrics   *control.Metrics
}

// Connection fields other than armed and tornDown belong to the execution
// context that polls the connection.
type Connection struct {
	id        string
	kind      Kind
	ctx       api.ExecContext
	state     State
	sess      *session.Session
	transport api.Transport
	sched     api.Scheduler
	slot      api.Slot
	started   bool

	armed    atomic.Bool // slot is published; ticks may run
	tornDown atomic.Bool
	done     chan struct{}

	ticks   prometheus.Counter
	metrics *control.Metrics
	log     zerolog.Logger
}

// New creates an idle connection attached to opts.Session. The session
// reference stays valid until Teardown.
func New(opts Options) (*Connection, error) {
	if opts.ID == "" || opts.Session == nil || opts.Transport == nil || opts.Scheduler == nil {
		return nil, fmt.Errorf("new connection %q: %w", opts.ID, api.ErrInvalidArgument)
	}
	if opts.Kind != KindAdmin && opts.Kind != KindIO {
		return nil, fmt.Errorf("new connection %s: kind %d: %w", opts.ID, opts.Kind, api.ErrInvalidArgument)
	}
	c := &Connection{
		id:        opts.ID,
		kind:      opts.Kind,
		ctx:       opts.Session.Subsystem().ExecContext(),
		state:     StateIdle,
		sess:      opts.Session,
		transport: opts.Transport,
		sched:     opts.Scheduler,
		done:      make(chan struct{}),
		ticks:     opts.Metrics.TickCounter(opts.Kind.String()),
		metrics:   opts.Metrics,
		log: opts.Logger.With().
			Str("component", "conn").
			Str("conn", opts.ID).
			Stringer("kind", opts.Kind).
			Uint16("session", opts.Session.ID()).
			Logger(),
	}
	if _, err := opts.Session.Attach(c); err != nil {
		return nil, fmt.Errorf("new connection %s: %w", opts.ID, err)
	}
	return c, nil
}

// Start registers the poller on the subsystem's execution context. On
// failure the connection is torn down without ever being polled and the
// error wraps api.ErrRegistration.
func (c *Connection) Start() error {
	if c.started || c.tornDown.Load() {
		return fmt.Errorf("start connection %s in state %s: %w", c.id, c.state, api.ErrInvalidArgument)
	}
	c.state = StateRunning
	slot, err := c.sched.Register(c.ctx, poll, c)
	if err != nil {
		c.state = StateIdle
		c.metrics.RegistrationFailed()
		c.log.Error().Err(err).Stringer("ctx", c.ctx).Msg("poller registration failed")
		c.Teardown()
		return fmt.Errorf("start connection %s: %w: %w", c.id, api.ErrRegistration, err)
	}
	c.slot = slot
	c.started = true
	c.armed.Store(true)
	c.metrics.ConnectionStarted(c.kind.String())
	c.log.Info().Stringer("ctx", c.ctx).Msg("connection started")
	return nil
}

// poll is the callback bound to the scheduler slot.
func poll(arg any) int {
	c := arg.(*Connection)
	if !c.armed.Load() {
		return 0
	}
	return c.Poll()
}

// ID returns the connection identity.
func (c *Connection) ID() string { return c.id }

// Kind returns the queue kind.
func (c *Connection) Kind() Kind { return c.kind }

// ExecContext returns the context the connection is polled on.
func (c *Connection) ExecContext() api.ExecContext { return c.ctx }

// State returns the lifecycle state. Read it from the owning context, or
// after Done is closed.
func (c *Connection) State() State { return c.state }

// Session returns the attached session, nil after teardown.
func (c *Connection) Session() *session.Session { return c.sess }

// Done is closed when teardown has completed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Closed reports whether teardown has started.
func (c *Connection) Closed() bool { return c.tornDown.Load() }
