// File: internal/conn/poll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One tick of a connection and its teardown sequence.

package conn

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-nvmf/api"
)

// Poll runs one tick: storage completions, then transport completions, then
// teardown if the connection reached a terminal state during the tick. It
// never blocks. It returns the amount of work done.
func (c *Connection) Poll() int {
	if c.tornDown.Load() {
		panic(fmt.Sprintf("connection %s: poll after teardown", c.id))
	}
	c.ticks.Inc()
	work := 0

	if sess := c.sess; sess != nil {
		if c.kind == KindAdmin {
			work += sess.ProcessAdminCompletions()
		} else {
			work += sess.ProcessIOCompletions()
		}
	}

	n, err := c.transport.PollCompletions(c)
	if err == nil && n < 0 {
		err = fmt.Errorf("poll returned %d: %w", n, api.ErrTransportFatal)
	}
	if err != nil {
		ev := c.log.Error().Err(err)
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			ev = ev.Fields(apiErr.Context)
		}
		ev.Msg("transport poll failed, closing connection")
		c.metrics.TransportError()
		c.state = StateExiting
	} else {
		work += n
	}

	if c.state.Terminal() {
		c.Teardown()
		work++
	}
	return work
}

// SignalFabricDisconnect requests teardown at the end of the current or
// next tick. It has no effect unless the connection is running.
func (c *Connection) SignalFabricDisconnect() {
	if c.state == StateRunning {
		c.state = StateFabricDisconnect
	}
}

// Teardown unregisters the poller, detaches from the session, and releases
// the transport endpoint, in that order. If this detach was the session's
// last, the session is destroyed. It must run on the owning context and at
// most once; a second call panics.
func (c *Connection) Teardown() {
	if !c.tornDown.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("connection %s: teardown called twice", c.id))
	}
	reason := c.state.teardownReason()
	sess := c.sess

	if c.slot != nil {
		if err := c.sched.Unregister(c.slot); err != nil {
			panic(fmt.Sprintf("connection %s: unregister: %v", c.id, err))
		}
		c.slot = nil
	}
	remaining := sess.NotifyDisconnect(c)
	c.sess = nil
	c.transport.Release(c)

	c.metrics.ConnectionClosed(c.kind.String(), reason, c.started)
	c.log.Info().Str("reason", reason).Int64("remaining", remaining).Msg("connection closed")

	if remaining == 0 {
		sess.Destroy()
	}
	close(c.done)
}
