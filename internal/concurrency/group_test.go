package concurrency_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/internal/concurrency"
)

func TestNewGroup_Validation(t *testing.T) {
	_, err := concurrency.NewGroup(concurrency.GroupConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = concurrency.NewGroup(concurrency.GroupConfig{Cores: []int{0, 0}}, zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrAlreadyExists)

	_, err = concurrency.NewGroup(concurrency.GroupConfig{Cores: []int{-1}}, zerolog.Nop())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestGroup_RegisterPerContext(t *testing.T) {
	g, err := concurrency.NewGroup(concurrency.GroupConfig{
		Cores:          []int{2, 0, 1},
		IdleBackoffMax: 100 * time.Microsecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []api.ExecContext{0, 1, 2}, g.Contexts())

	var counts [3]atomic.Int64
	for _, ctx := range g.Contexts() {
		ctx := ctx
		slot, err := g.Register(ctx, func(any) int { counts[ctx].Add(1); return 0 }, nil)
		require.NoError(t, err)
		assert.Equal(t, ctx, slot.Context())
	}

	g.Start()
	defer g.Stop()
	require.Eventually(t, func() bool {
		return counts[0].Load() > 0 && counts[1].Load() > 0 && counts[2].Load() > 0
	}, time.Second, time.Millisecond)
	assert.Len(t, g.Stats(), 3)
	assert.EqualValues(t, 1, g.Stats()["core1"]["pollers"])
}

func TestGroup_UnknownContext(t *testing.T) {
	g, err := concurrency.NewGroup(concurrency.GroupConfig{Cores: []int{0}}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Register(7, func(any) int { return 0 }, nil)
	assert.ErrorIs(t, err, api.ErrUnknownContext)
	assert.ErrorIs(t, g.Post(7, func() {}), api.ErrUnknownContext)
}

type foreignSlot struct{}

func (foreignSlot) Context() api.ExecContext { return 0 }

func TestGroup_UnregisterForeignSlot(t *testing.T) {
	g, err := concurrency.NewGroup(concurrency.GroupConfig{Cores: []int{0}}, zerolog.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, g.Unregister(foreignSlot{}), api.ErrInvalidArgument)
}

func TestGroup_RegisterAfterStop(t *testing.T) {
	g, err := concurrency.NewGroup(concurrency.GroupConfig{Cores: []int{0}}, zerolog.Nop())
	require.NoError(t, err)
	g.Start()
	g.Stop()

	_, err = g.Register(0, func(any) int { return 0 }, nil)
	assert.ErrorIs(t, err, api.ErrReactorStopped)
}
