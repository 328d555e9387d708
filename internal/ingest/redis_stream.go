package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"PatternFlow/internal/domain/models"
	drepo "PatternFlow/internal/domain/repository"
)

// RedisStream implements an EventStream over Redis Pub/Sub, the transport
// the upstream detection producer publishes on (channels like
// "patterns:streaming"). One subscription covers the whole topic set.
type RedisStream struct {
	addr     string
	password string
	db       int
	topics   []string

	client    *redis.Client
	sub       *redis.PubSub
	connected atomic.Bool
}

// NewRedisStream creates a Redis-backed EventStream.
func NewRedisStream(addr, password string, db int, topics []string) drepo.EventStream {
	return &RedisStream{
		addr:     addr,
		password: password,
		db:       db,
		topics:   topics,
	}
}

// Connect establishes the client and verifies reachability.
func (s *RedisStream) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis connect: %w", err)
	}
	s.client = client
	s.connected.Store(true)
	return nil
}

// Subscribe opens the pub/sub subscription for the configured topics.
func (s *RedisStream) Subscribe(ctx context.Context) error {
	if s.client == nil || !s.connected.Load() {
		return fmt.Errorf("redis not connected")
	}
	sub := s.client.Subscribe(ctx, s.topics...)
	// Receive forces the SUBSCRIBE round trip so failure surfaces here, not
	// on the first read.
	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := sub.Receive(recvCtx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	s.sub = sub
	return nil
}

// Read streams raw messages and errors. The message channel closes when the
// subscription ends; a read failure lands on the error channel for the
// supervisor.
func (s *RedisStream) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, 1024)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		ch := s.sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					errs <- fmt.Errorf("redis subscription closed")
					return
				}
				raw := &models.RawMessage{
					Topic:      msg.Channel,
					Data:       []byte(msg.Payload),
					ReceivedAt: time.Now(),
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}

// Close tears down the subscription and client.
func (s *RedisStream) Close() error {
	s.connected.Store(false)
	if s.sub != nil {
		_ = s.sub.Close()
		s.sub = nil
	}
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *RedisStream) IsConnected() bool { return s.connected.Load() }
