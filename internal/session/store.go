// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe session table keyed by controller ID.

package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/control"
)

// Dynamic controller IDs range over 1..MaxID.
const MaxID = 0xFFEF

// Table implements sharded storage for sessions.
type Table struct {
	shards  []*tableShard
	mask    uint16
	next    atomic.Uint32
	size    atomic.Int64
	log     zerolog.Logger
	metrics *control.Metrics
}

type tableShard struct {
	mu       sync.RWMutex
	sessions map[uint16]*Session
}

// NewTable constructs a table with shardCount shards, rounded up to a power of two.
func NewTable(shardCount int, log zerolog.Logger, metrics *control.Metrics) *Table {
	if shardCount <= 0 {
		shardCount = 16
	}
	if shardCount > 256 {
		shardCount = 256
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*tableShard, m)
	for i := range shards {
		shards[i] = &tableShard{sessions: make(map[uint16]*Session)}
	}
	return &Table{shards: shards, mask: uint16(m - 1), log: log, metrics: metrics}
}

func (t *Table) shard(id uint16) *tableShard {
	return t.shards[id&t.mask]
}

func (t *Table) allocate() uint16 {
	n := t.next.Add(1) - 1
	return uint16(n%MaxID) + 1
}

// Create allocates a controller ID and registers a new session under it.
func (t *Table) Create(subsys api.Subsystem, proc api.CompletionProcessor) (*Session, error) {
	for attempt := 0; attempt < MaxID; attempt++ {
		id := t.allocate()
		sh := t.shard(id)
		sh.mu.Lock()
		if _, taken := sh.sessions[id]; taken {
			sh.mu.Unlock()
			continue
		}
		s, err := New(id, Options{Subsystem: subsys, Processor: proc, Logger: t.log, Metrics: t.metrics})
		if err != nil {
			sh.mu.Unlock()
			return nil, err
		}
		s.table = t
		sh.sessions[id] = s
		sh.mu.Unlock()
		t.size.Add(1)
		return s, nil
	}
	return nil, fmt.Errorf("create session: controller ids: %w", api.ErrResourceExhausted)
}

// Get fetches a live session.
func (t *Table) Get(id uint16) (*Session, bool) {
	sh := t.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// Range applies fn to all sessions. fn must not call back into the table.
func (t *Table) Range(fn func(*Session)) {
	for _, sh := range t.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			fn(s)
		}
		sh.mu.RUnlock()
	}
}

func (t *Table) remove(id uint16) {
	sh := t.shard(id)
	sh.mu.Lock()
	if _, ok := sh.sessions[id]; ok {
		delete(sh.sessions, id)
		t.size.Add(-1)
	}
	sh.mu.Unlock()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
