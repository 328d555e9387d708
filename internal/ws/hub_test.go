package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/broadcast"
	applogger "PatternFlow/pkg/logger"
)

type wsMetrics struct{}

func (wsMetrics) RecordEventIngested(string)       {}
func (wsMetrics) RecordRejected(string)            {}
func (wsMetrics) RecordBatchDelivered(string, int) {}
func (wsMetrics) RecordConnectionDropped(string)   {}
func (wsMetrics) RecordReconnect(string)           {}
func (wsMetrics) RecordError(string)               {}
func (wsMetrics) RecordLatency(string, float64)    {}
func (wsMetrics) SetRooms(int)                     {}
func (wsMetrics) SetConnections(int)               {}

func hubLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func serveWS(t *testing.T, h *Hub) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ServeWS(e.NewContext(req, rec)))
	return rec
}

func TestServeWSRejectsWhenFull(t *testing.T) {
	h := NewHub(broadcast.NewRegistry(8), wsMetrics{}, hubLogger(t), WithMaxConnections(1))
	h.clients["occupied"] = &Client{id: "occupied"}

	rec := serveWS(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeWSCountsPendingUpgradesAgainstCap(t *testing.T) {
	h := NewHub(broadcast.NewRegistry(8), wsMetrics{}, hubLogger(t), WithMaxConnections(1))

	// One handshake in flight holds the only slot.
	h.mu.Lock()
	h.pending = 1
	h.mu.Unlock()

	rec := serveWS(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeWSReleasesSlotOnFailedUpgrade(t *testing.T) {
	h := NewHub(broadcast.NewRegistry(8), wsMetrics{}, hubLogger(t), WithMaxConnections(1))

	// A plain GET is not a websocket handshake, so the upgrade fails.
	rec := serveWS(t, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.mu.Lock()
	pending := h.pending
	h.mu.Unlock()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 0, h.Len())

	// The slot is free again: the next attempt reaches the upgrader too.
	rec = serveWS(t, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
