package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
)

func raw(topic, payload string) *models.RawMessage {
	return &models.RawMessage{
		Topic:      topic,
		Data:       []byte(payload),
		ReceivedAt: time.Now(),
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	n := New()

	confidence := 0.123456789012345
	price := 64250.987654321098
	detected := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	expires := detected.Add(15 * time.Minute)
	original := &models.PatternEvent{
		Topic:      "patterns.breakout",
		Kind:       models.KindPattern,
		Symbol:     "BTCUSDT",
		Confidence: &confidence,
		Price:      &price,
		DetectedAt: detected,
		ExpiresAt:  &expires,
		Meta:       map[string]any{"window": "5m", "source": "detector-3"},
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := n.Normalize(raw(original.Topic, string(encoded)))
	require.NoError(t, err)

	assert.Equal(t, original.Topic, decoded.Topic)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Symbol, decoded.Symbol)
	require.NotNil(t, decoded.Confidence)
	assert.Equal(t, confidence, *decoded.Confidence)
	require.NotNil(t, decoded.Price)
	assert.Equal(t, price, *decoded.Price)
	assert.True(t, decoded.DetectedAt.Equal(detected))
	require.NotNil(t, decoded.ExpiresAt)
	assert.True(t, decoded.ExpiresAt.Equal(expires))
	assert.Equal(t, original.Meta, decoded.Meta)
}

func TestNormalizeValid(t *testing.T) {
	n := New()

	ev, err := n.Normalize(raw("patterns.breakout", `{
		"topic": "patterns.breakout",
		"kind": "pattern",
		"symbol": "BTCUSDT",
		"confidence": 0.91,
		"price": 64250.5,
		"detected_at": "2025-06-01T12:00:00Z",
		"expires_at": "2025-06-01T12:15:00Z",
		"meta": {"window": "5m"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "patterns.breakout", ev.Topic)
	assert.Equal(t, models.KindPattern, ev.Kind)
	assert.Equal(t, "BTCUSDT", ev.Symbol)
	require.NotNil(t, ev.Confidence)
	assert.Equal(t, 0.91, *ev.Confidence)
	require.NotNil(t, ev.Price)
	assert.Equal(t, 64250.5, *ev.Price)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ev.DetectedAt.UTC())
	require.NotNil(t, ev.ExpiresAt)
	assert.Equal(t, 15*time.Minute, ev.ExpiresAt.Sub(ev.DetectedAt))
	assert.Equal(t, "5m", ev.Meta["window"])
}

func TestNormalizeUnixSeconds(t *testing.T) {
	n := New()

	ev, err := n.Normalize(raw("t", `{
		"topic": "t", "kind": "indicator", "symbol": "ETHUSDT",
		"detected_at": 1748779200
	}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1748779200), ev.DetectedAt.Unix())
	assert.Nil(t, ev.Confidence)
	assert.Nil(t, ev.Price)
	assert.Nil(t, ev.ExpiresAt)
}

func TestNormalizeOptionalFieldsAbsent(t *testing.T) {
	n := New()

	ev, err := n.Normalize(raw("t", `{
		"topic": "t", "kind": "health", "symbol": "SYS",
		"detected_at": "2025-06-01T00:00:00Z", "expires_at": null
	}`))
	require.NoError(t, err)
	assert.Nil(t, ev.ExpiresAt)
	assert.False(t, ev.Expired(time.Now().Add(24*365*time.Hour)))
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"empty", ``, ReasonDecode},
		{"garbage", `{not json`, ReasonDecode},
		{"missing topic", `{"kind":"pattern","symbol":"X","detected_at":"2025-06-01T00:00:00Z"}`, ReasonMissingTopic},
		{"missing kind", `{"topic":"t","symbol":"X","detected_at":"2025-06-01T00:00:00Z"}`, ReasonMissingKind},
		{"unknown kind", `{"topic":"t","kind":"rumor","symbol":"X","detected_at":"2025-06-01T00:00:00Z"}`, ReasonUnknownKind},
		{"missing symbol", `{"topic":"t","kind":"pattern","detected_at":"2025-06-01T00:00:00Z"}`, ReasonMissingSymbol},
		{"missing detected_at", `{"topic":"t","kind":"pattern","symbol":"X"}`, ReasonMissingDetected},
		{"bad detected_at", `{"topic":"t","kind":"pattern","symbol":"X","detected_at":"yesterday"}`, ReasonBadTimestamp},
		{"bad expires_at", `{"topic":"t","kind":"pattern","symbol":"X","detected_at":"2025-06-01T00:00:00Z","expires_at":"soon"}`, ReasonBadTimestamp},
		{"expiry before detection", `{"topic":"t","kind":"pattern","symbol":"X","detected_at":"2025-06-01T01:00:00Z","expires_at":"2025-06-01T00:00:00Z"}`, ReasonExpiryOrder},
		{"confidence above one", `{"topic":"t","kind":"pattern","symbol":"X","confidence":1.2,"detected_at":"2025-06-01T00:00:00Z"}`, ReasonConfidenceRange},
		{"confidence negative", `{"topic":"t","kind":"pattern","symbol":"X","confidence":-0.1,"detected_at":"2025-06-01T00:00:00Z"}`, ReasonConfidenceRange},
		{"negative price", `{"topic":"t","kind":"pattern","symbol":"X","price":-5,"detected_at":"2025-06-01T00:00:00Z"}`, ReasonNegativePrice},
	}

	n := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := n.Normalize(raw("t", tt.payload))
			require.Error(t, err)
			assert.Nil(t, ev)

			var nerr *models.NormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tt.reason, nerr.Reason)
		})
	}
}

func TestNormalizeBoundaryValues(t *testing.T) {
	n := New()

	// Confidence bounds are inclusive.
	for _, c := range []string{"0", "1"} {
		ev, err := n.Normalize(raw("t", `{
			"topic":"t","kind":"pattern","symbol":"X","confidence":`+c+`,
			"detected_at":"2025-06-01T00:00:00Z"
		}`))
		require.NoError(t, err, "confidence %s", c)
		require.NotNil(t, ev.Confidence)
	}

	// Zero price is allowed.
	ev, err := n.Normalize(raw("t", `{
		"topic":"t","kind":"pattern","symbol":"X","price":0,
		"detected_at":"2025-06-01T00:00:00Z"
	}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Price)
	assert.Equal(t, 0.0, *ev.Price)

	// Expiry equal to detection is allowed.
	_, err = n.Normalize(raw("t", `{
		"topic":"t","kind":"pattern","symbol":"X",
		"detected_at":"2025-06-01T00:00:00Z","expires_at":"2025-06-01T00:00:00Z"
	}`))
	require.NoError(t, err)
}

func TestNormalizeNilMessage(t *testing.T) {
	n := New()
	_, err := n.Normalize(nil)
	require.Error(t, err)

	var nerr *models.NormalizationError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, ReasonDecode, nerr.Reason)
}
