// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted transport.

package fake

import (
	"sync"

	"github.com/momentics/hioload-nvmf/api"
)

var _ api.Transport = (*Transport)(nil)

// PollResult is one scripted outcome of PollCompletions.
type PollResult struct {
	N          int
	Err        error
	Disconnect bool // signal a fabric disconnect on the endpoint during the poll
}

// Transport returns scripted poll results per endpoint. Once an endpoint's
// script is exhausted, polls return zero completions.
type Transport struct {
	mu       sync.Mutex
	scripts  map[string][]PollResult
	polls    map[string]int
	released map[string]int

	Trace *Trace
	// OnRelease runs inside Release before it returns.
	OnRelease func(ep api.Endpoint)
}

// NewTransport creates a transport recording into trace (may be nil).
func NewTransport(trace *Trace) *Transport {
	return &Transport{
		scripts:  make(map[string][]PollResult),
		polls:    make(map[string]int),
		released: make(map[string]int),
		Trace:    trace,
	}
}

// Script appends results for the endpoint with the given ID.
func (t *Transport) Script(id string, results ...PollResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts[id] = append(t.scripts[id], results...)
}

func (t *Transport) PollCompletions(ep api.Endpoint) (int, error) {
	t.mu.Lock()
	t.polls[ep.ID()]++
	var res PollResult
	if q := t.scripts[ep.ID()]; len(q) > 0 {
		res, t.scripts[ep.ID()] = q[0], q[1:]
	}
	t.mu.Unlock()

	t.Trace.Record("transport_poll")
	if res.Disconnect {
		ep.SignalFabricDisconnect()
	}
	if res.Err != nil {
		return -1, res.Err
	}
	return res.N, nil
}

func (t *Transport) Release(ep api.Endpoint) {
	t.mu.Lock()
	t.released[ep.ID()]++
	t.mu.Unlock()
	t.Trace.Record("transport_release")
	if t.OnRelease != nil {
		t.OnRelease(ep)
	}
}

// Polls returns how often the endpoint was polled.
func (t *Transport) Polls(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls[id]
}

// Released returns how often the endpoint was released.
func (t *Transport) Released(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released[id]
}
