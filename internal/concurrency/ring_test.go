package concurrency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/internal/concurrency"
)

func TestRing_CapacityRoundsUp(t *testing.T) {
	r := concurrency.NewRing[int](5)
	assert.Equal(t, 8, r.Cap())
}

func TestRing_PushPopBatch(t *testing.T) {
	r := concurrency.NewRing[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Push(99), "full ring must reject")

	dst := make([]int, 3)
	require.Equal(t, 3, r.PopBatch(dst))
	assert.Equal(t, []int{0, 1, 2}, dst)
	assert.Equal(t, 1, r.Len())

	require.True(t, r.Push(4))
	n := r.PopBatch(dst)
	assert.Equal(t, []int{3, 4}, dst[:n])
	assert.Zero(t, r.PopBatch(dst))
}
