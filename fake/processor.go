// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording completion processor, subsystem, and endpoint.

package fake

import (
	"sync/atomic"

	"github.com/momentics/hioload-nvmf/api"
)

var (
	_ api.CompletionProcessor = (*Processor)(nil)
	_ api.Subsystem           = (*Subsystem)(nil)
	_ api.Endpoint            = (*Endpoint)(nil)
)

// Processor counts drain calls and records them into Trace.
type Processor struct {
	AdminCalls atomic.Int64
	IOCalls    atomic.Int64
	Closed     atomic.Int64

	// Pending is returned as the completion count of every drain.
	Pending int
	Err     error
	Trace   *Trace
}

func NewProcessor(trace *Trace) *Processor {
	return &Processor{Trace: trace}
}

func (p *Processor) ProcessAdminCompletions() (int, error) {
	p.AdminCalls.Add(1)
	p.Trace.Record("admin_completions")
	return p.Pending, p.Err
}

func (p *Processor) ProcessIOCompletions() (int, error) {
	p.IOCalls.Add(1)
	p.Trace.Record("io_completions")
	return p.Pending, p.Err
}

func (p *Processor) Close() error {
	p.Closed.Add(1)
	p.Trace.Record("processor_close")
	return nil
}

// Subsystem is a fixed-context subsystem with a session reference counter.
type Subsystem struct {
	Name string
	Ctx  api.ExecContext
	Refs atomic.Int64
}

func NewSubsystem(nqn string, ctx api.ExecContext) *Subsystem {
	return &Subsystem{Name: nqn, Ctx: ctx}
}

func (s *Subsystem) NQN() string                  { return s.Name }
func (s *Subsystem) ExecContext() api.ExecContext { return s.Ctx }
func (s *Subsystem) Acquire()                     { s.Refs.Add(1) }
func (s *Subsystem) Release()                     { s.Refs.Add(-1) }

// Endpoint is a bare api.Endpoint.
type Endpoint struct {
	Name         string
	Disconnected atomic.Int64
}

func NewEndpoint(id string) *Endpoint {
	return &Endpoint{Name: id}
}

func (e *Endpoint) ID() string              { return e.Name }
func (e *Endpoint) SignalFabricDisconnect() { e.Disconnected.Add(1) }
