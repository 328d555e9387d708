package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"PatternFlow/internal/domain/models"
	"PatternFlow/pkg/util"
)

// Rejection reasons used as counter labels. Kept stable and low-cardinality.
const (
	ReasonDecode          = "decode"
	ReasonMissingTopic    = "missing_topic"
	ReasonMissingKind     = "missing_kind"
	ReasonUnknownKind     = "unknown_kind"
	ReasonMissingSymbol   = "missing_symbol"
	ReasonMissingDetected = "missing_detected_at"
	ReasonBadTimestamp    = "bad_timestamp"
	ReasonConfidenceRange = "confidence_range"
	ReasonNegativePrice   = "negative_price"
	ReasonExpiryOrder     = "expiry_before_detection"
)

// wireEvent is the loosely-typed payload shape on the broker. Timestamps
// arrive as ISO-8601 strings or unix seconds; scalars beyond the contract
// land in Meta untouched.
type wireEvent struct {
	Topic      string          `json:"topic"`
	Kind       string          `json:"kind"`
	Symbol     string          `json:"symbol"`
	Confidence *float64        `json:"confidence"`
	Price      *float64        `json:"price"`
	DetectedAt json.RawMessage `json:"detected_at"`
	ExpiresAt  json.RawMessage `json:"expires_at"`
	Meta       map[string]any  `json:"meta"`
}

// Normalizer decodes raw broker payloads into immutable PatternEvents,
// enforcing the required-field contract and numeric bounds. It is a total
// function over byte slices: any input yields either an event or a
// *models.NormalizationError, never a panic.
type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

// Normalize decodes and validates one raw message. Out-of-bounds values are
// rejected rather than clamped so upstream bugs stay visible.
func (n *Normalizer) Normalize(raw *models.RawMessage) (*models.PatternEvent, error) {
	if raw == nil || len(raw.Data) == 0 {
		return nil, &models.NormalizationError{Reason: ReasonDecode, Err: fmt.Errorf("empty payload")}
	}

	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(raw.Data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, &models.NormalizationError{Reason: ReasonDecode, Err: err}
	}

	if w.Topic == "" {
		return nil, &models.NormalizationError{Reason: ReasonMissingTopic}
	}
	if w.Kind == "" {
		return nil, &models.NormalizationError{Reason: ReasonMissingKind}
	}
	kind := models.EventKind(w.Kind)
	if !kind.Valid() {
		return nil, &models.NormalizationError{Reason: ReasonUnknownKind, Err: fmt.Errorf("kind %q", w.Kind)}
	}
	if w.Symbol == "" {
		return nil, &models.NormalizationError{Reason: ReasonMissingSymbol}
	}
	if len(w.DetectedAt) == 0 {
		return nil, &models.NormalizationError{Reason: ReasonMissingDetected}
	}

	detectedAt, err := parseTimestamp(w.DetectedAt)
	if err != nil {
		return nil, &models.NormalizationError{Reason: ReasonBadTimestamp, Err: fmt.Errorf("detected_at: %w", err)}
	}

	var expiresAt *time.Time
	if len(w.ExpiresAt) > 0 && !bytes.Equal(w.ExpiresAt, []byte("null")) {
		t, err := parseTimestamp(w.ExpiresAt)
		if err != nil {
			return nil, &models.NormalizationError{Reason: ReasonBadTimestamp, Err: fmt.Errorf("expires_at: %w", err)}
		}
		if t.Before(detectedAt) {
			return nil, &models.NormalizationError{Reason: ReasonExpiryOrder}
		}
		expiresAt = &t
	}

	if w.Confidence != nil && (*w.Confidence < 0 || *w.Confidence > 1) {
		return nil, &models.NormalizationError{Reason: ReasonConfidenceRange, Err: fmt.Errorf("confidence %v", *w.Confidence)}
	}
	if w.Price != nil && *w.Price < 0 {
		return nil, &models.NormalizationError{Reason: ReasonNegativePrice, Err: fmt.Errorf("price %v", *w.Price)}
	}

	return &models.PatternEvent{
		Topic:      w.Topic,
		Kind:       kind,
		Symbol:     w.Symbol,
		Confidence: w.Confidence,
		Price:      w.Price,
		DetectedAt: detectedAt,
		ExpiresAt:  expiresAt,
		Meta:       w.Meta,
	}, nil
}

// parseTimestamp accepts an ISO-8601 string or unix seconds (number or
// numeric string).
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, ok := util.ParseTime(s); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	}
	var sec int64
	if err := json.Unmarshal(raw, &sec); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %s", string(raw))
}
