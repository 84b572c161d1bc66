package loopback_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/fake"
	"github.com/momentics/hioload-nvmf/internal/transport/loopback"
)

func newTransport(t *testing.T, batch, depth int) *loopback.Transport {
	t.Helper()
	tr, err := loopback.New(loopback.Config{PollBatch: batch, QueueDepth: depth}, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestNew_RejectsZeroSizes(t *testing.T) {
	_, err := loopback.New(loopback.Config{PollBatch: 0, QueueDepth: 8}, zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = loopback.New(loopback.Config{PollBatch: 8}, zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestOpen_Duplicate(t *testing.T) {
	tr := newTransport(t, 4, 8)
	require.NoError(t, tr.Open("a"))
	assert.ErrorIs(t, tr.Open("a"), api.ErrAlreadyExists)
	assert.Equal(t, 1, tr.Endpoints())
}

func TestPoll_DrainsInBatches(t *testing.T) {
	tr := newTransport(t, 4, 16)
	ep := fake.NewEndpoint("a")
	require.NoError(t, tr.Open("a"))
	for i := 0; i < 6; i++ {
		require.NoError(t, tr.Post("a", loopback.Completion{CID: uint16(i)}))
	}

	n, err := tr.PollCompletions(ep)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = tr.PollCompletions(ep)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = tr.PollCompletions(ep)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 6, tr.Completed("a"))
}

func TestPost_QueueFull(t *testing.T) {
	tr := newTransport(t, 4, 2)
	require.NoError(t, tr.Open("a"))
	require.NoError(t, tr.Post("a", loopback.Completion{}))
	require.NoError(t, tr.Post("a", loopback.Completion{}))
	assert.ErrorIs(t, tr.Post("a", loopback.Completion{}), api.ErrResourceExhausted)
	assert.ErrorIs(t, tr.Post("b", loopback.Completion{}), api.ErrNotFound)
}

func TestPoll_FailedCompletionIsFatal(t *testing.T) {
	tr := newTransport(t, 8, 8)
	ep := fake.NewEndpoint("a")
	require.NoError(t, tr.Open("a"))
	require.NoError(t, tr.Post("a", loopback.Completion{CID: 1}))
	require.NoError(t, tr.Post("a", loopback.Completion{CID: 2, Status: loopback.StatusFailed}))

	n, err := tr.PollCompletions(ep)
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, api.ErrTransportFatal)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrCodeTransport, apiErr.Code)
	assert.Equal(t, uint16(2), apiErr.Context["cid"])
	assert.Equal(t, loopback.StatusFailed, apiErr.Context["status"])
	assert.Equal(t, "a", apiErr.Context["endpoint"])
	assert.EqualValues(t, 1, tr.Delivered(), "completions ahead of the failure count")
}

func TestPoll_DisconnectSignalsEndpoint(t *testing.T) {
	tr := newTransport(t, 8, 8)
	ep := fake.NewEndpoint("a")
	require.NoError(t, tr.Open("a"))
	require.NoError(t, tr.Post("a", loopback.Completion{CID: 1}))
	require.NoError(t, tr.Disconnect("a"))

	n, err := tr.PollCompletions(ep)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, ep.Disconnected.Load())
}

func TestPoll_UnknownEndpointIsFatal(t *testing.T) {
	tr := newTransport(t, 8, 8)
	_, err := tr.PollCompletions(fake.NewEndpoint("missing"))
	assert.ErrorIs(t, err, api.ErrTransportFatal)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestRelease_DropsQueue(t *testing.T) {
	tr := newTransport(t, 8, 8)
	ep := fake.NewEndpoint("a")
	require.NoError(t, tr.Open("a"))
	require.NoError(t, tr.Post("a", loopback.Completion{}))

	_, err := tr.PollCompletions(ep)
	require.NoError(t, err)
	require.NoError(t, tr.Post("a", loopback.Completion{}))
	require.Equal(t, 1, tr.Pending("a"))
	tr.Release(ep)
	assert.Zero(t, tr.Endpoints())
	assert.Zero(t, tr.Pending("a"))
	assert.EqualValues(t, 1, tr.Delivered())
	assert.ErrorIs(t, tr.Post("a", loopback.Completion{}), api.ErrNotFound)

	tr.Release(ep)
	assert.Zero(t, tr.Endpoints(), "second release is ignored")
}

func TestPost_ConcurrentProducers(t *testing.T) {
	const producers, each = 8, 100
	tr := newTransport(t, 64, producers*each)
	ep := fake.NewEndpoint("a")
	require.NoError(t, tr.Open("a"))

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, tr.Post("a", loopback.Completion{CID: uint16(i)}))
			}
		}()
	}

	total := 0
	for total < producers*each {
		n, err := tr.PollCompletions(ep)
		require.NoError(t, err)
		total += n
	}
	wg.Wait()
	assert.Equal(t, producers*each, total)
}
