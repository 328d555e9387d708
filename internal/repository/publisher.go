package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	drepo "PatternFlow/internal/domain/repository"
	pkgkafka "PatternFlow/pkg/kafka"
)

// KafkaPublisher implements Publisher over a Kafka producer.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer) drepo.Publisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key []byte, value any) error {
	return p.producer.Publish(ctx, topic, key, value)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// RedisPublisher implements Publisher over Redis Pub/Sub, matching the
// transport the detection producer publishes on.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a Redis publisher and verifies reachability.
func NewRedisPublisher(ctx context.Context, addr, password string, db int) (drepo.Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, _ []byte, value any) error {
	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
		payload = b
	}
	return p.client.Publish(ctx, topic, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
