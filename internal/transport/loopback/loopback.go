// File: internal/transport/loopback/loopback.go
// Package loopback
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-process transport. Each endpoint owns one completion queue built on the
// concurrency ring; producers post completions, the owning execution context
// drains them in batches.

package loopback

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/internal/concurrency"
)

var _ api.Transport = (*Transport)(nil)

// Status of a completion entry.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailed
)

// Completion is one entry of an endpoint's completion queue.
type Completion struct {
	CID    uint16
	Status Status
	// Disconnect marks a fabric disconnect capsule.
	Disconnect bool
}

// Config sizes the per-endpoint queues.
type Config struct {
	PollBatch  int
	QueueDepth int
}

type queue struct {
	mu        sync.Mutex // serializes producers
	ring      *concurrency.Ring[Completion]
	batch     []Completion // consumer scratch
	completed atomic.Int64
}

// Transport implements api.Transport over in-memory completion queues.
type Transport struct {
	cfg       Config
	endpoints sync.Map // id -> *queue
	open      atomic.Int64
	delivered atomic.Int64
	log       zerolog.Logger
}

// New creates a loopback transport.
func New(cfg Config, log zerolog.Logger) (*Transport, error) {
	if cfg.PollBatch <= 0 || cfg.QueueDepth <= 0 {
		return nil, fmt.Errorf("loopback: poll batch %d, queue depth %d: %w",
			cfg.PollBatch, cfg.QueueDepth, api.ErrInvalidArgument)
	}
	return &Transport{
		cfg: cfg,
		log: log.With().Str("component", "loopback").Logger(),
	}, nil
}

// Open creates the completion queue of endpoint id.
func (t *Transport) Open(id string) error {
	q := &queue{
		ring:  concurrency.NewRing[Completion](t.cfg.QueueDepth),
		batch: make([]Completion, t.cfg.PollBatch),
	}
	if _, loaded := t.endpoints.LoadOrStore(id, q); loaded {
		return fmt.Errorf("loopback: endpoint %s: %w", id, api.ErrAlreadyExists)
	}
	t.open.Add(1)
	t.log.Debug().Str("endpoint", id).Msg("endpoint opened")
	return nil
}

func (t *Transport) queue(id string) (*queue, error) {
	v, ok := t.endpoints.Load(id)
	if !ok {
		return nil, fmt.Errorf("loopback: endpoint %s: %w", id, api.ErrNotFound)
	}
	return v.(*queue), nil
}

// Post appends c to the completion queue of endpoint id. Safe for concurrent
// producers.
func (t *Transport) Post(id string, c Completion) error {
	q, err := t.queue(id)
	if err != nil {
		return err
	}
	q.mu.Lock()
	ok := q.ring.Push(c)
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("loopback: endpoint %s queue full: %w", id, api.ErrResourceExhausted)
	}
	return nil
}

// Disconnect posts a disconnect capsule to endpoint id.
func (t *Transport) Disconnect(id string) error {
	return t.Post(id, Completion{Disconnect: true})
}

// PollCompletions drains at most PollBatch completions of ep. A disconnect
// capsule signals ep inline. A failed completion stops the drain and returns
// an *api.Error with code ErrCodeTransport wrapping api.ErrTransportFatal.
func (t *Transport) PollCompletions(ep api.Endpoint) (int, error) {
	q, err := t.queue(ep.ID())
	if err != nil {
		return -1, fmt.Errorf("%w: %w", api.ErrTransportFatal, err)
	}
	n := q.ring.PopBatch(q.batch)
	done := 0
	for i := 0; i < n; i++ {
		c := q.batch[i]
		if c.Disconnect {
			ep.SignalFabricDisconnect()
			continue
		}
		if c.Status != StatusSuccess {
			q.completed.Add(int64(done))
			t.delivered.Add(int64(done))
			return -1, api.NewError(api.ErrCodeTransport, "loopback: failed completion").
				Wrap(api.ErrTransportFatal).
				WithContext("endpoint", ep.ID()).
				WithContext("cid", c.CID).
				WithContext("status", c.Status)
		}
		done++
	}
	q.completed.Add(int64(done))
	t.delivered.Add(int64(done))
	return done, nil
}

// Release drops the queue of ep. Pending completions are discarded.
func (t *Transport) Release(ep api.Endpoint) {
	v, ok := t.endpoints.LoadAndDelete(ep.ID())
	if !ok {
		t.log.Warn().Str("endpoint", ep.ID()).Msg("release of unknown endpoint")
		return
	}
	q := v.(*queue)
	t.open.Add(-1)
	t.log.Debug().
		Str("endpoint", ep.ID()).
		Int64("completed", q.completed.Load()).
		Int("discarded", q.ring.Len()).
		Msg("endpoint released")
}

// Pending returns the number of queued completions of endpoint id.
func (t *Transport) Pending(id string) int {
	q, err := t.queue(id)
	if err != nil {
		return 0
	}
	return q.ring.Len()
}

// Completed returns how many successful completions endpoint id delivered.
func (t *Transport) Completed(id string) int64 {
	q, err := t.queue(id)
	if err != nil {
		return 0
	}
	return q.completed.Load()
}

// Delivered returns the successful completions of all endpoints, released
// ones included.
func (t *Transport) Delivered() int64 {
	return t.delivered.Load()
}

// Endpoints returns the number of open endpoints.
func (t *Transport) Endpoints() int {
	return int(t.open.Load())
}
