// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session aggregates the admin and IO connections of one controller and
// owns its storage completion processing. Its lifetime is governed solely by
// the attached-connection count.

package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/control"
)

// sealed is set in the count once it has dropped to zero for good; a sealed
// session accepts no further attachments.
const sealed int64 = 1 << 62

// Options carries the collaborators of a session.
type Options struct {
	Subsystem api.Subsystem
	Processor api.CompletionProcessor
	Logger    zerolog.Logger
	Metrics   *control.Metrics
}

// Session is shared by connections running on possibly different contexts.
type Session struct {
	id     uint16
	subsys api.Subsystem
	proc   api.CompletionProcessor
	table  *Table

	_     cpu.CacheLinePad
	count atomic.Int64
	_     cpu.CacheLinePad

	members   sync.Map // endpoint ID -> struct{}
	destroyed atomic.Bool
	done      chan struct{}
	log       zerolog.Logger
	metrics   *control.Metrics
}

// New creates a session outside any table and acquires its subsystem.
func New(id uint16, opts Options) (*Session, error) {
	if opts.Subsystem == nil || opts.Processor == nil {
		return nil, fmt.Errorf("session %d: missing subsystem or processor: %w", id, api.ErrInvalidArgument)
	}
	s := &Session{
		id:      id,
		subsys:  opts.Subsystem,
		proc:    opts.Processor,
		done:    make(chan struct{}),
		metrics: opts.Metrics,
		log: opts.Logger.With().
			Str("component", "session").
			Uint16("session", id).
			Str("nqn", opts.Subsystem.NQN()).
			Logger(),
	}
	s.subsys.Acquire()
	s.metrics.SessionCreated()
	s.log.Debug().Msg("session created")
	return s, nil
}

// ID returns the controller ID.
func (s *Session) ID() uint16 { return s.id }

// Subsystem returns the backing subsystem.
func (s *Session) Subsystem() api.Subsystem { return s.subsys }

// ConnectionCount returns the number of attached connections.
func (s *Session) ConnectionCount() int64 { return s.count.Load() &^ sealed }

// Destroyed reports whether Destroy has run.
func (s *Session) Destroyed() bool { return s.destroyed.Load() }

// Done is closed once the session is destroyed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Attach adds ep to the session and returns the new count. The member entry
// is claimed before the count moves, so a rejected attach never touches it.
func (s *Session) Attach(ep api.Endpoint) (int64, error) {
	if _, dup := s.members.LoadOrStore(ep.ID(), struct{}{}); dup {
		return 0, fmt.Errorf("attach %s to session %d: %w", ep.ID(), s.id, api.ErrAlreadyExists)
	}
	for {
		c := s.count.Load()
		if c&sealed != 0 {
			s.members.Delete(ep.ID())
			return 0, fmt.Errorf("attach %s to session %d: %w", ep.ID(), s.id, api.ErrSessionDestroyed)
		}
		if s.count.CompareAndSwap(c, c+1) {
			break
		}
	}
	n := s.ConnectionCount()
	s.log.Debug().Str("conn", ep.ID()).Int64("connections", n).Msg("connection attached")
	return n, nil
}

// NotifyDisconnect detaches ep and returns the count after the decrement.
// Exactly one caller observes zero; that caller is responsible for Destroy.
// Detaching an endpoint that is not attached panics.
func (s *Session) NotifyDisconnect(ep api.Endpoint) int64 {
	if _, ok := s.members.LoadAndDelete(ep.ID()); !ok {
		panic(fmt.Sprintf("session %d: disconnect of unattached connection %s", s.id, ep.ID()))
	}
	n := s.count.Add(-1)
	if n == 0 && !s.count.CompareAndSwap(0, sealed) {
		// An attach raced in after the decrement; the session lives on.
		n = s.ConnectionCount()
	}
	s.log.Debug().Str("conn", ep.ID()).Int64("connections", n).Msg("connection detached")
	return n
}

// ProcessAdminCompletions drains completed admin commands.
func (s *Session) ProcessAdminCompletions() int {
	n, err := s.proc.ProcessAdminCompletions()
	if err != nil {
		s.log.Warn().Err(err).Msg("admin completion processing failed")
	}
	return n
}

// ProcessIOCompletions drains completed IO commands.
func (s *Session) ProcessIOCompletions() int {
	n, err := s.proc.ProcessIOCompletions()
	if err != nil {
		s.log.Warn().Err(err).Msg("io completion processing failed")
	}
	return n
}

// Destroy releases the subsystem reference and the completion-queue state.
// It panics if any connection is still attached or if called twice.
func (s *Session) Destroy() {
	for {
		c := s.count.Load()
		if n := c &^ sealed; n != 0 {
			panic(fmt.Sprintf("session %d: destroy with %d attached connections", s.id, n))
		}
		if c == sealed || s.count.CompareAndSwap(c, sealed) {
			break
		}
	}
	if !s.destroyed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("session %d: destroyed twice", s.id))
	}
	if err := s.proc.Close(); err != nil {
		s.log.Warn().Err(err).Msg("completion queue close failed")
	}
	s.subsys.Release()
	if s.table != nil {
		s.table.remove(s.id)
	}
	s.metrics.SessionDestroyed()
	close(s.done)
	s.log.Info().Msg("session destroyed")
}
