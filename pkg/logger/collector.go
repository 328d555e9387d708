package logger

import (
	"sync"
	"time"
)

// RejectionConfig configures a RejectionCollector.
type RejectionConfig struct {
	FlushInterval  time.Duration // summary flush cadence (e.g. 30s)
	CountThreshold int           // max distinct (reason, topic) keys before an early flush
	MaxSampleBytes int           // raw payload sample cap per entry
}

// RejectionEntry aggregates repeated rejections of the same shape so a storm
// of malformed payloads produces one summary line instead of thousands.
type RejectionEntry struct {
	Reason    string
	Topic     string
	Count     int
	Sample    string // truncated raw payload of the first occurrence
	FirstSeen time.Time
	LastSeen  time.Time
}

// RejectionCollector batches rejected-payload logs keyed by (reason, topic)
// and flushes summaries through the logger on an interval.
type RejectionCollector struct {
	cfg     RejectionConfig
	log     *Logger
	mu      sync.Mutex
	entries map[string]*RejectionEntry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewRejectionCollector(log *Logger, cfg RejectionConfig) *RejectionCollector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.MaxSampleBytes <= 0 {
		cfg.MaxSampleBytes = 512
	}

	c := &RejectionCollector{
		cfg:     cfg,
		log:     log,
		entries: make(map[string]*RejectionEntry),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.periodicFlush()
	return c
}

// Reject records one rejected payload. The first occurrence per key keeps a
// truncated sample of the raw bytes for diagnosis.
func (c *RejectionCollector) Reject(reason, topic string, raw []byte) {
	now := time.Now()
	key := reason + "|" + topic

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		sample := raw
		if len(sample) > c.cfg.MaxSampleBytes {
			sample = sample[:c.cfg.MaxSampleBytes]
		}
		c.entries[key] = &RejectionEntry{
			Reason:    reason,
			Topic:     topic,
			Count:     1,
			Sample:    string(sample),
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	flushNow := len(c.entries) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if flushNow {
		c.Flush()
	}
}

func (c *RejectionCollector) periodicFlush() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.done:
			c.Flush()
			return
		}
	}
}

// Flush emits one warning line per aggregated entry and resets the map.
func (c *RejectionCollector) Flush() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	entries := c.entries
	c.entries = make(map[string]*RejectionEntry)
	c.mu.Unlock()

	for _, e := range entries {
		c.log.Warn("payload rejected",
			String("reason", e.Reason),
			String("topic", e.Topic),
			Int("count", e.Count),
			String("sample", e.Sample),
			String("first_seen", e.FirstSeen.Format(time.RFC3339)),
			String("last_seen", e.LastSeen.Format(time.RFC3339)),
		)
	}
}

// Close flushes any pending entries and stops the collector.
func (c *RejectionCollector) Close() {
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}
