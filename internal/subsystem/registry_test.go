package subsystem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/api"
	"github.com/momentics/hioload-nvmf/internal/subsystem"
)

const cnode1 = "nqn.2016-06.io.spdk:cnode1"

func TestRegistry_AddLookup(t *testing.T) {
	r := subsystem.NewRegistry()
	s, err := r.Add(cnode1, 2)
	require.NoError(t, err)
	assert.Equal(t, api.ExecContext(2), s.ExecContext())

	got, err := r.Lookup(cnode1)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Add(cnode1, 0)
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
	_, err = r.Add("  ", 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = r.Lookup("nqn.missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestRegistry_RemoveBusy(t *testing.T) {
	r := subsystem.NewRegistry()
	s, err := r.Add(cnode1, 0)
	require.NoError(t, err)

	s.Acquire()
	assert.ErrorIs(t, r.Remove(cnode1), api.ErrBusy)
	s.Release()
	require.NoError(t, r.Remove(cnode1))
	assert.ErrorIs(t, r.Remove(cnode1), api.ErrNotFound)
}

func TestSubsystem_ReleaseUnderflowPanics(t *testing.T) {
	r := subsystem.NewRegistry()
	s, err := r.Add(cnode1, 0)
	require.NoError(t, err)
	assert.Panics(t, s.Release)
}

func TestRegistry_ListSorted(t *testing.T) {
	r := subsystem.NewRegistry()
	for _, n := range []string{"nqn.c", "nqn.a", "nqn.b"} {
		_, err := r.Add(n, 0)
		require.NoError(t, err)
	}
	var names []string
	for _, s := range r.List() {
		names = append(names, s.NQN())
	}
	assert.Equal(t, []string{"nqn.a", "nqn.b", "nqn.c"}, names)
}
