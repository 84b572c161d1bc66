package control_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nvmf/control"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *control.Metrics
	m.ConnectionStarted("io")
	m.ConnectionClosed("io", "exiting", true)
	m.TransportError()
	m.RegistrationFailed()
	m.SessionCreated()
	m.SessionDestroyed()
	m.TickCounter("io").Inc()
}

func TestMetrics_Lifecycle(t *testing.T) {
	m := control.NewMetrics()
	m.ConnectionStarted("admin")
	m.ConnectionStarted("io")
	m.ConnectionClosed("io", "fabric_disconnect", true)
	m.TickCounter("io").Add(3)
	m.SessionCreated()
	m.SessionDestroyed()

	count, err := testutil.GatherAndCount(m.Registry(),
		"nvmf_connection_started_total", "nvmf_connection_teardowns_total", "nvmf_session_destroyed_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nvmf_connection_active{kind="admin"} 1`)
	assert.Contains(t, rec.Body.String(), `nvmf_connection_ticks_total{kind="io"} 3`)
	assert.Contains(t, rec.Body.String(), "nvmf_session_active 0")
}

func TestDebugProbes_ServeJSON(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("sessions", func() any { return 2 })

	rec := httptest.NewRecorder()
	dp.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions": 2`)
	assert.Contains(t, rec.Body.String(), "platform.cpus")

	dp.RemoveProbe("sessions")
	assert.NotContains(t, dp.DumpState(), "sessions")

	rec = httptest.NewRecorder()
	dp.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
