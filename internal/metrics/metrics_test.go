package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveChat(PathTools, time.Second)
	m.ObserveChat(PathTools, time.Second)
	m.ObserveChat(PathConversational, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChatsTotal.WithLabelValues(PathTools)))

	m.ObserveModel("ollama", "decide", time.Second, nil)
	m.ObserveModel("ollama", "decide", time.Second, errors.New("timeout"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallErrors.WithLabelValues("ollama", "decide")))

	m.ObserveTool("list_houses", "success", time.Millisecond)
	m.ObserveTool("list_houses", "error", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocationsTotal.WithLabelValues("list_houses", "error")))

	m.ObserveCatalog(42, 7)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.CatalogSize))

	m.SetActiveSessions(3)
	m.AddSwept(2)
	m.AddSwept(0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsSwept))

	m.ObserveHTTP("POST", "/api/v1/chat", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/chat", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveChat(PathError, time.Second)
		m.ObserveModel("x", "y", time.Second, nil)
		m.ObserveCatalog(1, 1)
		m.ObserveTool("t", "success", time.Second)
		m.SetActiveSessions(1)
		m.AddSwept(1)
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveChat(PathDirect, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rentdesk_chats_total{path="direct"} 1`)
}
