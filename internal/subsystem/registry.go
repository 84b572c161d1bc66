// Package subsystem keeps the NVMe-oF subsystems a target exports. Each
// subsystem is bound to one execution context; every connection of every
// session on it is polled there.
package subsystem

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-nvmf/api"
)

var _ api.Subsystem = (*Subsystem)(nil)

// Subsystem is one exported storage resource.
type Subsystem struct {
	nqn      string
	ctx      api.ExecContext
	sessions atomic.Int64
}

// NQN returns the NVMe qualified name.
func (s *Subsystem) NQN() string { return s.nqn }

// ExecContext returns the context the subsystem's connections poll on.
func (s *Subsystem) ExecContext() api.ExecContext { return s.ctx }

// Acquire records one more session on the subsystem.
func (s *Subsystem) Acquire() { s.sessions.Add(1) }

// Release drops a session reference. Releasing below zero panics.
func (s *Subsystem) Release() {
	if s.sessions.Add(-1) < 0 {
		panic(fmt.Sprintf("subsystem %s: session reference released twice", s.nqn))
	}
}

// Sessions returns the number of sessions bound to the subsystem.
func (s *Subsystem) Sessions() int64 { return s.sessions.Load() }

// Registry maps NQNs to subsystems.
type Registry struct {
	mu    sync.RWMutex
	byNQN map[string]*Subsystem
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byNQN: make(map[string]*Subsystem)}
}

// Add creates a subsystem bound to ctx.
func (r *Registry) Add(nqn string, ctx api.ExecContext) (*Subsystem, error) {
	nqn = strings.TrimSpace(nqn)
	if nqn == "" {
		return nil, fmt.Errorf("add subsystem: empty nqn: %w", api.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNQN[nqn]; ok {
		return nil, fmt.Errorf("add subsystem %s: %w", nqn, api.ErrAlreadyExists)
	}
	s := &Subsystem{nqn: nqn, ctx: ctx}
	r.byNQN[nqn] = s
	return s, nil
}

// Lookup finds a subsystem by NQN.
func (r *Registry) Lookup(nqn string) (*Subsystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byNQN[nqn]
	if !ok {
		return nil, fmt.Errorf("subsystem %s: %w", nqn, api.ErrNotFound)
	}
	return s, nil
}

// Remove deletes a subsystem that no session references.
func (r *Registry) Remove(nqn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byNQN[nqn]
	if !ok {
		return fmt.Errorf("subsystem %s: %w", nqn, api.ErrNotFound)
	}
	if n := s.Sessions(); n > 0 {
		return fmt.Errorf("subsystem %s has %d sessions: %w", nqn, n, api.ErrBusy)
	}
	delete(r.byNQN, nqn)
	return nil
}

// List returns the subsystems sorted by NQN.
func (r *Registry) List() []*Subsystem {
	r.mu.RLock()
	out := make([]*Subsystem, 0, len(r.byNQN))
	for _, s := range r.byNQN {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].nqn < out[j].nqn })
	return out
}
