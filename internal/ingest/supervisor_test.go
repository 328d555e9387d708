package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
	applogger "PatternFlow/pkg/logger"
)

type recordingMetrics struct {
	mu         sync.Mutex
	reconnects []string
}

func (m *recordingMetrics) RecordEventIngested(string)       {}
func (m *recordingMetrics) RecordRejected(string)            {}
func (m *recordingMetrics) RecordBatchDelivered(string, int) {}
func (m *recordingMetrics) RecordConnectionDropped(string)   {}
func (m *recordingMetrics) RecordReconnect(outcome string) {
	m.mu.Lock()
	m.reconnects = append(m.reconnects, outcome)
	m.mu.Unlock()
}
func (m *recordingMetrics) RecordError(string)            {}
func (m *recordingMetrics) RecordLatency(string, float64) {}
func (m *recordingMetrics) SetRooms(int)                  {}
func (m *recordingMetrics) SetConnections(int)            {}

func (m *recordingMetrics) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.reconnects))
	copy(out, m.reconnects)
	return out
}

// flakyStream fails Connect failures times, then serves the queued messages
// and blocks until closed.
type flakyStream struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	queued    []*models.RawMessage
	connected bool
}

func (s *flakyStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("connection refused")
	}
	s.connected = true
	return nil
}

func (s *flakyStream) Subscribe(ctx context.Context) error { return nil }

func (s *flakyStream) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, len(s.queued)+1)
	errs := make(chan error, 1)
	s.mu.Lock()
	for _, m := range s.queued {
		out <- m
	}
	s.queued = nil
	s.mu.Unlock()
	return out, errs
}

func (s *flakyStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *flakyStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *flakyStream) connectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// droppingStream always connects and lets the test fail the live stream on
// demand, recording when each connect attempt arrives.
type droppingStream struct {
	mu       sync.Mutex
	connects []time.Time
	errs     chan error
}

func (s *droppingStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connects = append(s.connects, time.Now())
	s.mu.Unlock()
	return nil
}

func (s *droppingStream) Subscribe(ctx context.Context) error { return nil }

func (s *droppingStream) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	errs := make(chan error, 1)
	s.mu.Lock()
	s.errs = errs
	s.mu.Unlock()
	return make(chan *models.RawMessage), errs
}

func (s *droppingStream) Close() error { return nil }

func (s *droppingStream) IsConnected() bool { return true }

func (s *droppingStream) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs != nil {
		s.errs <- errors.New("connection reset")
	}
}

func (s *droppingStream) connectTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.connects))
	copy(out, s.connects)
	return out
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func TestSupervisorRetriesUntilConnected(t *testing.T) {
	stream := &flakyStream{
		failures: 3,
		queued: []*models.RawMessage{
			{Topic: "a", Data: []byte(`{}`), ReceivedAt: time.Now()},
		},
	}
	m := &recordingMetrics{}
	sup := NewSupervisor(stream, m, testLogger(t),
		WithBackoff(time.Millisecond, 4*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx)
	defer sup.Stop()

	select {
	case raw := <-sup.Messages():
		require.NotNil(t, raw)
		assert.Equal(t, "a", raw.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("no message forwarded after reconnects")
	}

	assert.GreaterOrEqual(t, stream.connectAttempts(), 4)
	outcomes := m.outcomes()
	require.NotEmpty(t, outcomes)
	assert.Equal(t, []string{"failure", "failure", "failure", "success"}, outcomes[:4])
}

func TestSupervisorWaitsBackoffAfterConnectionLost(t *testing.T) {
	stream := &droppingStream{}
	sup := NewSupervisor(stream, &recordingMetrics{}, testLogger(t),
		WithBackoff(100*time.Millisecond, 400*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx)
	defer sup.Stop()

	require.Eventually(t, func() bool {
		return len(stream.connectTimes()) == 1
	}, time.Second, time.Millisecond)

	dropped := time.Now()
	stream.drop()

	require.Eventually(t, func() bool {
		return len(stream.connectTimes()) == 2
	}, 2*time.Second, time.Millisecond)

	elapsed := stream.connectTimes()[1].Sub(dropped)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond,
		"reconnect must wait the backoff after a lost connection")
}

func TestSupervisorBackoffDoublesAndCaps(t *testing.T) {
	sup := NewSupervisor(&flakyStream{}, &recordingMetrics{}, testLogger(t),
		WithBackoff(time.Second, 60*time.Second),
	)

	got := []time.Duration{time.Second}
	cur := time.Second
	for i := 0; i < 7; i++ {
		cur = sup.nextBackoff(cur)
		got = append(got, cur)
	}
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestSupervisorStopClosesMessages(t *testing.T) {
	stream := &flakyStream{}
	sup := NewSupervisor(stream, &recordingMetrics{}, testLogger(t),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
	)

	sup.Start(context.Background())
	sup.Stop()

	select {
	case _, ok := <-sup.Messages():
		assert.False(t, ok, "messages channel should be closed after Stop")
	case <-time.After(time.Second):
		t.Fatal("messages channel not closed")
	}
	assert.False(t, stream.IsConnected())
}
