// File: internal/storage/null/null.go
// Package null
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion processor without a backing device. Submitted commands complete
// on the next drain of their queue kind.

package null

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-nvmf/api"
)

var _ api.CompletionProcessor = (*Processor)(nil)

// Processor is safe for concurrent submitters; drains run on the owning
// execution context.
type Processor struct {
	pendingAdmin atomic.Int64
	pendingIO    atomic.Int64
	doneAdmin    atomic.Int64
	doneIO       atomic.Int64
	closed       atomic.Bool
}

// New returns an empty processor.
func New() *Processor {
	return &Processor{}
}

// SubmitAdmin queues n admin commands.
func (p *Processor) SubmitAdmin(n int) error {
	return p.submit(&p.pendingAdmin, n)
}

// SubmitIO queues n IO commands.
func (p *Processor) SubmitIO(n int) error {
	return p.submit(&p.pendingIO, n)
}

func (p *Processor) submit(q *atomic.Int64, n int) error {
	if n < 0 {
		return fmt.Errorf("null: submit %d: %w", n, api.ErrInvalidArgument)
	}
	if p.closed.Load() {
		return fmt.Errorf("null: submit: %w", api.ErrSessionDestroyed)
	}
	q.Add(int64(n))
	return nil
}

func (p *Processor) ProcessAdminCompletions() (int, error) {
	n := p.pendingAdmin.Swap(0)
	p.doneAdmin.Add(n)
	return int(n), nil
}

func (p *Processor) ProcessIOCompletions() (int, error) {
	n := p.pendingIO.Swap(0)
	p.doneIO.Add(n)
	return int(n), nil
}

// Close releases the queues. Submissions after Close fail.
func (p *Processor) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("null: close: %w", api.ErrSessionDestroyed)
	}
	return nil
}

// Completed returns the admin and IO commands completed so far.
func (p *Processor) Completed() (admin, io int64) {
	return p.doneAdmin.Load(), p.doneIO.Load()
}
