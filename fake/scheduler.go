// Package fake
// Author: momentics <momentics@gmail.com>
//
// Manually ticked scheduler.

package fake

import (
	"sync"

	"github.com/momentics/hioload-nvmf/api"
)

var _ api.Scheduler = (*Scheduler)(nil)

// Slot is a registration on the fake scheduler.
type Slot struct {
	ctx    api.ExecContext
	fn     api.PollFunc
	arg    any
	active bool
}

func (s *Slot) Context() api.ExecContext { return s.ctx }

// Scheduler runs registered callbacks only when Tick is called.
type Scheduler struct {
	mu    sync.Mutex
	slots []*Slot

	// RegisterErr, when set, makes every Register fail with it.
	RegisterErr error
	Trace       *Trace

	Registered   int
	Unregistered int
}

// NewScheduler creates a scheduler recording into trace (may be nil).
func NewScheduler(trace *Trace) *Scheduler {
	return &Scheduler{Trace: trace}
}

func (s *Scheduler) Register(ctx api.ExecContext, fn api.PollFunc, arg any) (api.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RegisterErr != nil {
		return nil, s.RegisterErr
	}
	slot := &Slot{ctx: ctx, fn: fn, arg: arg, active: true}
	s.slots = append(s.slots, slot)
	s.Registered++
	s.Trace.Record("register")
	return slot, nil
}

func (s *Scheduler) Unregister(slot api.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := slot.(*Slot)
	if !ok {
		return api.ErrInvalidArgument
	}
	if !sl.active {
		return api.ErrSlotNotRegistered
	}
	sl.active = false
	s.Unregistered++
	s.Trace.Record("unregister")
	return nil
}

// Tick invokes every active slot once, in registration order, and returns
// the summed work. Slots unregistered during the tick are skipped.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	slots := make([]*Slot, len(s.slots))
	copy(slots, s.slots)
	s.mu.Unlock()

	work := 0
	for _, sl := range slots {
		s.mu.Lock()
		active := sl.active
		s.mu.Unlock()
		if active {
			work += sl.fn(sl.arg)
		}
	}
	return work
}

// Active returns the number of registered, not yet unregistered slots.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl.active {
			n++
		}
	}
	return n
}
