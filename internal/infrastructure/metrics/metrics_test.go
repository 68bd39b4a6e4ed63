package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RegistersAll(t *testing.T) {
	reg := NewRegistry()

	reg.Metrics.GatewayRequests.WithLabelValues("GET", "ok").Inc()
	reg.Metrics.ObserveReconnects.Inc()
	reg.Metrics.Nodes.WithLabelValues("display").Set(1)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["luke_gateway_requests_total"])
	assert.True(t, names["luke_observe_reconnects_total"])
	assert.True(t, names["luke_discovery_nodes"])
	assert.True(t, names["go_goroutines"])
}

func TestRegistry_Independent(t *testing.T) {
	// Two registries must not collide on registration.
	a := NewRegistry()
	b := NewRegistry()

	a.Metrics.ObserveOpen.Inc()

	assert.NotSame(t, a.Metrics, b.Metrics)
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.Metrics.Actions.WithLabelValues("link", "ok").Inc()

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `luke_session_actions_total{action="link",outcome="ok"} 1`)
}
