// File: internal/concurrency/reactor.go
// Package concurrency implements run-to-completion reactors with adaptive backoff.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Reactor owns one goroutine and executes, in a loop, the events posted to
// its mailbox followed by one pass over its registered pollers. Nothing on
// the reactor goroutine may block.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-nvmf/api"
)

const (
	pollerPending int32 = iota
	pollerActive
	pollerUnregistered
	pollerDropped // reactor stopped while registered; Unregister still succeeds once
)

// Poller is one registration on a reactor. It implements api.Slot.
type Poller struct {
	fn      api.PollFunc
	arg     any
	reactor *Reactor
	state   atomic.Int32
}

// Context returns the execution context of the owning reactor.
func (p *Poller) Context() api.ExecContext {
	return p.reactor.ctx
}

// Active reports whether the poller is currently being invoked.
func (p *Poller) Active() bool {
	return p.state.Load() == pollerActive
}

// ReactorConfig tunes a single reactor.
type ReactorConfig struct {
	Pin            bool          // lock the goroutine to its OS thread and pin it to the core
	IdleBackoffMax time.Duration // 0 = busy poll with runtime.Gosched
	MailboxBatch   int           // events drained per iteration
}

// Reactor runs pollers for one execution context.
type Reactor struct {
	ctx api.ExecContext
	cfg ReactorConfig

	mu      sync.Mutex
	mailbox *queue.Queue // of func()
	closed  bool

	_       cpu.CacheLinePad
	pollers []*Poller // reactor goroutine only
	scratch []func()
	dirty   atomic.Bool
	backoff time.Duration

	_        cpu.CacheLinePad
	ticks    atomic.Uint64
	idle     atomic.Uint64
	events   atomic.Uint64
	npollers atomic.Int64

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	log      zerolog.Logger
}

// NewReactor creates a reactor for ctx. It does nothing until Run is called.
func NewReactor(ctx api.ExecContext, cfg ReactorConfig, log zerolog.Logger) *Reactor {
	if cfg.MailboxBatch <= 0 {
		cfg.MailboxBatch = 64
	}
	return &Reactor{
		ctx:     ctx,
		cfg:     cfg,
		mailbox: queue.New(),
		scratch: make([]func(), 0, cfg.MailboxBatch),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		log:     log.With().Str("component", "reactor").Stringer("ctx", ctx).Logger(),
	}
}

// Context returns the execution context served by r.
func (r *Reactor) Context() api.ExecContext {
	return r.ctx
}

// Post queues fn to run on the reactor goroutine before its next poller pass.
// Events run in FIFO order, registrations included.
func (r *Reactor) Post(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrReactorStopped
	}
	r.mailbox.Add(fn)
	return nil
}

// Register adds a poller. It becomes active once the reactor processes the
// registration event, so the first invocation never precedes the return.
func (r *Reactor) Register(fn api.PollFunc, arg any) (*Poller, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument
	}
	p := &Poller{fn: fn, arg: arg, reactor: r}
	err := r.Post(func() {
		if p.state.CompareAndSwap(pollerPending, pollerActive) {
			r.pollers = append(r.pollers, p)
			r.npollers.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Unregister deactivates p. The reactor skips it from the next invocation on
// and drops it at the end of the current pass. A poller dropped by Stop can
// still be unregistered once, so its owner can finish teardown after the
// reactor is gone.
func (r *Reactor) Unregister(p *Poller) error {
	if p == nil || p.reactor != r {
		return api.ErrInvalidArgument
	}
	switch p.state.Swap(pollerUnregistered) {
	case pollerUnregistered:
		return api.ErrSlotNotRegistered
	case pollerActive:
		r.dirty.Store(true)
	}
	return nil
}

// Run executes the reactor loop on the calling goroutine until Stop.
func (r *Reactor) Run() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer close(r.doneCh)
	if r.cfg.Pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinCurrentThread(int(r.ctx)); err != nil {
			r.log.Warn().Err(err).Msg("cpu pinning failed, running unpinned")
		}
	}
	r.log.Debug().Msg("reactor started")
	for {
		select {
		case <-r.stopCh:
			r.shutdown()
			return
		default:
		}
		work := r.runEvents()
		work += r.runPollers()
		r.ticks.Add(1)
		if work == 0 {
			r.idle.Add(1)
			r.adaptiveBackoff()
		} else {
			r.backoff = 0
		}
	}
}

// Stop closes the mailbox and waits for the reactor goroutine to exit.
// Events already queued still run; pollers still registered are dropped and
// never invoked again.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stopCh)
	})
	if r.running.Load() {
		<-r.doneCh
	}
}

// Stats returns basic reactor counters.
func (r *Reactor) Stats() map[string]int64 {
	r.mu.Lock()
	pending := r.mailbox.Length()
	r.mu.Unlock()
	return map[string]int64{
		"ticks":          int64(r.ticks.Load()),
		"idle_ticks":     int64(r.idle.Load()),
		"events":         int64(r.events.Load()),
		"pending_events": int64(pending),
		"pollers":        r.npollers.Load(),
	}
}

func (r *Reactor) runEvents() int {
	batch := r.scratch[:0]
	r.mu.Lock()
	for len(batch) < r.cfg.MailboxBatch && r.mailbox.Length() > 0 {
		batch = append(batch, r.mailbox.Remove().(func()))
	}
	r.mu.Unlock()
	for i, fn := range batch {
		fn()
		batch[i] = nil
	}
	r.scratch = batch[:0]
	r.events.Add(uint64(len(batch)))
	return len(batch)
}

func (r *Reactor) runPollers() int {
	work := 0
	for _, p := range r.pollers {
		if p.state.Load() != pollerActive {
			continue
		}
		work += p.fn(p.arg)
	}
	if r.dirty.Swap(false) {
		r.compact()
	}
	return work
}

func (r *Reactor) compact() {
	kept := r.pollers[:0]
	for _, p := range r.pollers {
		if p.state.Load() == pollerActive {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(r.pollers); i++ {
		r.pollers[i] = nil
	}
	r.pollers = kept
	r.npollers.Store(int64(len(kept)))
}

func (r *Reactor) shutdown() {
	for r.runEvents() > 0 {
	}
	if n := len(r.pollers); n > 0 {
		r.log.Warn().Int("pollers", n).Msg("reactor stopped with registered pollers")
	}
	for _, p := range r.pollers {
		p.state.CompareAndSwap(pollerActive, pollerDropped)
	}
	r.pollers = nil
	r.npollers.Store(0)
	r.log.Debug().Msg("reactor stopped")
}

func (r *Reactor) adaptiveBackoff() {
	if r.cfg.IdleBackoffMax <= 0 {
		runtime.Gosched()
		return
	}
	if r.backoff == 0 {
		r.backoff = time.Microsecond
	} else {
		r.backoff *= 2
	}
	if r.backoff > r.cfg.IdleBackoffMax {
		r.backoff = r.cfg.IdleBackoffMax
	}
	time.Sleep(r.backoff)
}
