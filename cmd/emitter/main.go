package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	drepo "PatternFlow/internal/domain/repository"
	"PatternFlow/internal/repository"
	pkgkafka "PatternFlow/pkg/kafka"
)

// Synthetic pattern-event generator for load and soak testing. Publishes
// payloads in the same wire shape the detection producer emits.

var (
	symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "AAPL", "TSLA", "NVDA"}
	kinds   = []string{"pattern", "indicator", "health"}
)

func main() {
	broker := flag.String("broker", "redis", "broker to publish to: redis or kafka")
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	kafkaBrokers := flag.String("kafka", "localhost:9092", "kafka brokers, comma separated")
	topics := flag.String("topics", "patterns.breakout,patterns.reversal", "topics, comma separated")
	rate := flag.Int("rate", 10, "events per second")
	count := flag.Int("count", 0, "total events to send, 0 = until interrupted")
	malformed := flag.Float64("malformed", 0, "fraction of intentionally broken payloads")
	flag.Parse()

	interval, err := tickInterval(*rate)
	if err != nil {
		log.Fatalf("emitter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	pub, err := newPublisher(ctx, *broker, *redisAddr, *kafkaBrokers)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	topicList := strings.Split(*topics, ",")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("emitter: sent %d events", sent)
			return
		case <-ticker.C:
			topic := topicList[rand.Intn(len(topicList))]
			symbol := symbols[rand.Intn(len(symbols))]
			payload := buildPayload(topic, symbol, *malformed)
			if err := pub.Publish(ctx, topic, []byte(symbol), payload); err != nil {
				log.Printf("publish failed: %v", err)
				continue
			}
			sent++
			if *count > 0 && sent >= *count {
				log.Printf("emitter: sent %d events", sent)
				return
			}
		}
	}
}

// tickInterval converts events-per-second into a ticker period.
func tickInterval(rate int) (time.Duration, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("rate must be positive, got %d", rate)
	}
	return time.Second / time.Duration(rate), nil
}

func newPublisher(ctx context.Context, broker, redisAddr, kafkaBrokers string) (drepo.Publisher, error) {
	if broker == "kafka" {
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(strings.Split(kafkaBrokers, ",")),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, err
		}
		return repository.NewKafkaPublisher(producer), nil
	}
	return repository.NewRedisPublisher(ctx, redisAddr, "", 0)
}

func buildPayload(topic, symbol string, malformed float64) any {
	if malformed > 0 && rand.Float64() < malformed {
		// Deliberately violates the contract to exercise rejection counters.
		return map[string]any{"topic": topic, "kind": "pattern"}
	}

	conf := rand.Float64()
	price := 10 + rand.Float64()*1000
	now := time.Now().UTC()
	payload := map[string]any{
		"topic":       topic,
		"kind":        kinds[rand.Intn(len(kinds))],
		"symbol":      symbol,
		"confidence":  conf,
		"price":       price,
		"detected_at": now.Format(time.RFC3339Nano),
		"meta": map[string]any{
			"source": "emitter",
		},
	}
	if rand.Intn(2) == 0 {
		payload["expires_at"] = now.Add(15 * time.Minute).Format(time.RFC3339Nano)
	}
	return payload
}
