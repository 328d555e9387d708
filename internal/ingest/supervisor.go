package ingest

import (
	"context"
	"sync"
	"time"

	"PatternFlow/internal/domain/models"
	drepo "PatternFlow/internal/domain/repository"
	applogger "PatternFlow/pkg/logger"
)

// SupervisorOption configures Supervisor.
type SupervisorOption func(*Supervisor)

// WithBackoff sets the reconnect backoff bounds. Backoff starts at initial,
// doubles per failure up to cap, and resets to initial on success.
func WithBackoff(initial, cap time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if initial > 0 {
			s.backoffInit = initial
		}
		if cap >= s.backoffInit {
			s.backoffCap = cap
		}
	}
}

// Supervisor owns the broker connection lifecycle: it connects, subscribes,
// forwards raw messages, and on any transport failure retries with
// exponential backoff until stopped. Retry policy for broker connectivity
// lives here and nowhere else; failures never propagate past it.
type Supervisor struct {
	stream      drepo.EventStream
	metrics     drepo.Metrics
	logger      *applogger.Logger
	backoffInit time.Duration
	backoffCap  time.Duration

	out      chan *models.RawMessage
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewSupervisor(stream drepo.EventStream, metrics drepo.Metrics, logger *applogger.Logger, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		stream:      stream,
		metrics:     metrics,
		logger:      logger.With("supervisor"),
		backoffInit: time.Second,
		backoffCap:  60 * time.Second,
		out:         make(chan *models.RawMessage, 1024),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages is the supervised raw message stream. It closes after Stop.
func (s *Supervisor) Messages() <-chan *models.RawMessage {
	return s.out
}

// Connected reports the underlying stream state.
func (s *Supervisor) Connected() bool {
	return s.stream.IsConnected()
}

// Start runs the connect/read/reconnect loop until Stop or ctx cancel.
func (s *Supervisor) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop requests shutdown and waits for the loop to exit.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)
	defer func() { _ = s.stream.Close() }()

	backoff := s.backoffInit

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.metrics.RecordReconnect("failure")
			s.logger.Warn("broker connect failed",
				applogger.Error(err),
				applogger.Duration("retry_in", backoff),
			)
			if !s.sleep(ctx, backoff) {
				return
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		s.metrics.RecordReconnect("success")
		backoff = s.backoffInit
		s.logger.Info("broker connected")

		// Pump until the stream reports failure or we are stopped.
		if done := s.pump(ctx); done {
			return
		}
		_ = s.stream.Close()
		s.logger.Warn("broker connection lost", applogger.Duration("retry_in", backoff))
		if !s.sleep(ctx, backoff) {
			return
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		_ = s.stream.Close()
		return err
	}
	return nil
}

// pump forwards messages until a transport error (returns false, caller
// reconnects) or shutdown (returns true).
func (s *Supervisor) pump(ctx context.Context) bool {
	msgs, errs := s.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return true
		case <-s.stopCh:
			return true
		case err, ok := <-errs:
			if !ok {
				return false
			}
			if err != nil {
				s.metrics.RecordError("stream")
				s.logger.Warn("stream error", applogger.Error(err))
				return false
			}
		case raw, ok := <-msgs:
			if !ok {
				return false
			}
			if raw == nil {
				continue
			}
			select {
			case s.out <- raw:
			case <-ctx.Done():
				return true
			case <-s.stopCh:
				return true
			}
		}
	}
}

func (s *Supervisor) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > s.backoffCap {
		next = s.backoffCap
	}
	return next
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}
