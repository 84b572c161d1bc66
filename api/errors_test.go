package api_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-nvmf/api"
)

func TestErrorUnwrap(t *testing.T) {
	err := api.NewError(api.ErrCodeTransport, "poll failed").
		Wrap(api.ErrTransportFatal).
		WithContext("conn", "c1")

	assert.True(t, errors.Is(err, api.ErrTransportFatal))
	assert.Contains(t, err.Error(), "poll failed: transport completion failure")
	assert.Contains(t, err.Error(), "conn:c1")
}

func TestErrorWithoutContext(t *testing.T) {
	err := api.NewError(api.ErrCodeNotFound, "no such subsystem")
	assert.Equal(t, "no such subsystem", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestExecContextString(t *testing.T) {
	assert.Equal(t, "core3", api.ExecContext(3).String())
}
