package models

import (
	"fmt"
	"time"
)

// EventKind classifies a detection event.
type EventKind string

const (
	KindPattern   EventKind = "pattern"
	KindIndicator EventKind = "indicator"
	KindHealth    EventKind = "health"
)

// Valid reports whether the kind is one of the known variants.
func (k EventKind) Valid() bool {
	switch k {
	case KindPattern, KindIndicator, KindHealth:
		return true
	}
	return false
}

// PatternEvent is a single normalized detection result. Instances are
// immutable after the normalizer creates them; the buffer, working set and
// query engine all share them by pointer.
type PatternEvent struct {
	Topic      string         `json:"topic"`
	Kind       EventKind      `json:"kind"`
	Symbol     string         `json:"symbol"`
	Confidence *float64       `json:"confidence,omitempty"`
	Price      *float64       `json:"price,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Expired reports whether the event is past its expiry at the given time.
// Events without expires_at never expire on their own.
func (e *PatternEvent) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// RawMessage is one encoded payload received from the broker before
// normalization.
type RawMessage struct {
	Topic      string
	Data       []byte
	ReceivedAt time.Time
}

// NormalizationError describes a rejected raw payload. Reason is a stable
// low-cardinality label suitable for a rejection counter.
type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize: %s: %v", e.Reason, e.Err)
	}
	return "normalize: " + e.Reason
}

func (e *NormalizationError) Unwrap() error { return e.Err }
