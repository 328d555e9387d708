package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
)

func fptr(f float64) *float64 { return &f }

func sampleEvent() *models.PatternEvent {
	return &models.PatternEvent{
		Topic:      "patterns.breakout",
		Kind:       models.KindPattern,
		Symbol:     "AAPL",
		Confidence: fptr(0.82),
		Price:      fptr(191.5),
		DetectedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestCriteriaValidate(t *testing.T) {
	tests := []struct {
		name      string
		criteria  Criteria
		wantField string
	}{
		{
			name:      "page below one",
			criteria:  Criteria{Page: 0, PageSize: 10},
			wantField: "page",
		},
		{
			name:      "page size zero",
			criteria:  Criteria{Page: 1, PageSize: 0},
			wantField: "page_size",
		},
		{
			name:      "page size over max",
			criteria:  Criteria{Page: 1, PageSize: 101},
			wantField: "page_size",
		},
		{
			name: "unknown sort key",
			criteria: Criteria{
				Page: 1, PageSize: 10, SortKey: "volume",
			},
			wantField: "volume",
		},
		{
			name: "unknown field",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Preds: []Predicate{{Field: "volume", Op: OpEq, Value: 1.0}}},
			},
			wantField: "volume",
		},
		{
			name: "unknown operator",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Preds: []Predicate{{Field: "symbol", Op: "like", Value: "A%"}}},
			},
			wantField: "symbol",
		},
		{
			name: "unknown logic mode",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Logic: "xor", Preds: []Predicate{{Field: "symbol", Op: OpEq, Value: "AAPL"}}},
			},
			wantField: "logic",
		},
		{
			name: "eq without value",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Preds: []Predicate{{Field: "symbol", Op: OpEq}}},
			},
			wantField: "symbol",
		},
		{
			name: "in without values",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Preds: []Predicate{{Field: "topic", Op: OpIn}}},
			},
			wantField: "topic",
		},
		{
			name: "range without bounds",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Preds: []Predicate{{Field: "price", Op: OpRange}}},
			},
			wantField: "price",
		},
		{
			name: "bad predicate in nested node",
			criteria: Criteria{
				Page: 1, PageSize: 10,
				Root: Node{Nodes: []Node{
					{Preds: []Predicate{{Field: "rsi", Op: OpGte, Value: 70.0}}},
				}},
			},
			wantField: "rsi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate(100)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestCriteriaValidateAccepts(t *testing.T) {
	c := Criteria{
		Page: 1, PageSize: 100, SortKey: "confidence", SortDesc: true,
		Root: Node{
			Logic: LogicAnd,
			Preds: []Predicate{
				{Field: "topic", Op: OpEq, Value: "patterns.breakout"},
				{Field: "confidence", Op: OpRange, Min: 0.5, Max: 1.0},
			},
			Nodes: []Node{
				{Logic: LogicOr, Preds: []Predicate{
					{Field: "symbol", Op: OpIn, Values: []any{"AAPL", "MSFT"}},
					{Field: "price", Op: OpGte, Value: 100.0},
				}},
			},
		},
	}
	assert.NoError(t, c.Validate(100))
}

func TestNodeEvalLeafOperators(t *testing.T) {
	ev := sampleEvent()
	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq string match", Predicate{Field: "symbol", Op: OpEq, Value: "AAPL"}, true},
		{"eq string miss", Predicate{Field: "symbol", Op: OpEq, Value: "MSFT"}, false},
		{"eq kind", Predicate{Field: "kind", Op: OpEq, Value: "pattern"}, true},
		{"in string match", Predicate{Field: "topic", Op: OpIn, Values: []any{"x", "patterns.breakout"}}, true},
		{"in string miss", Predicate{Field: "topic", Op: OpIn, Values: []any{"x", "y"}}, false},
		{"gte confidence", Predicate{Field: "confidence", Op: OpGte, Value: 0.8}, true},
		{"gte confidence miss", Predicate{Field: "confidence", Op: OpGte, Value: 0.9}, false},
		{"lte price", Predicate{Field: "price", Op: OpLte, Value: 200.0}, true},
		{"range inclusive lower", Predicate{Field: "confidence", Op: OpRange, Min: 0.82, Max: 1.0}, true},
		{"range inclusive upper", Predicate{Field: "confidence", Op: OpRange, Min: 0.0, Max: 0.82}, true},
		{"range min only", Predicate{Field: "price", Op: OpRange, Min: 100.0}, true},
		{"range max only", Predicate{Field: "price", Op: OpRange, Max: 100.0}, false},
		{"range int operands", Predicate{Field: "price", Op: OpRange, Min: 100, Max: 200}, true},
		{"detected_at gte", Predicate{Field: "detected_at", Op: OpGte, Value: "2026-08-30T00:00:00Z"}, true},
		{"detected_at lte miss", Predicate{Field: "detected_at", Op: OpLte, Value: "2026-08-29T00:00:00Z"}, false},
		{"detected_at range", Predicate{Field: "detected_at", Op: OpRange, Min: "2026-08-30T00:00:00Z", Max: "2026-08-31T00:00:00Z"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Node{Preds: []Predicate{tt.pred}}
			assert.Equal(t, tt.want, n.Eval(ev))
		})
	}
}

func TestNodeEvalMissingNumericFieldNeverMatches(t *testing.T) {
	ev := sampleEvent()
	ev.Confidence = nil
	ev.Price = nil

	for _, p := range []Predicate{
		{Field: "confidence", Op: OpGte, Value: 0.0},
		{Field: "confidence", Op: OpLte, Value: 1.0},
		{Field: "price", Op: OpRange, Min: 0.0, Max: 1e9},
		{Field: "price", Op: OpEq, Value: 0.0},
	} {
		n := Node{Preds: []Predicate{p}}
		assert.False(t, n.Eval(ev), "field %s op %s", p.Field, p.Op)
	}
}

func TestNodeEvalLogicModes(t *testing.T) {
	ev := sampleEvent()

	andContradiction := Node{
		Logic: LogicAnd,
		Preds: []Predicate{
			{Field: "symbol", Op: OpEq, Value: "AAPL"},
			{Field: "symbol", Op: OpEq, Value: "MSFT"},
		},
	}
	assert.False(t, andContradiction.Eval(ev))

	orUnion := Node{
		Logic: LogicOr,
		Preds: []Predicate{
			{Field: "symbol", Op: OpEq, Value: "MSFT"},
			{Field: "symbol", Op: OpEq, Value: "AAPL"},
		},
	}
	assert.True(t, orUnion.Eval(ev))

	// Empty logic defaults to AND.
	implicitAnd := Node{
		Preds: []Predicate{
			{Field: "topic", Op: OpEq, Value: "patterns.breakout"},
			{Field: "confidence", Op: OpGte, Value: 0.5},
		},
	}
	assert.True(t, implicitAnd.Eval(ev))

	nested := Node{
		Logic: LogicAnd,
		Preds: []Predicate{{Field: "kind", Op: OpEq, Value: "pattern"}},
		Nodes: []Node{
			{Logic: LogicOr, Preds: []Predicate{
				{Field: "symbol", Op: OpEq, Value: "TSLA"},
				{Field: "price", Op: OpGte, Value: 150.0},
			}},
		},
	}
	assert.True(t, nested.Eval(ev))
}

func TestNodeEvalEmptyMatchesEverything(t *testing.T) {
	assert.True(t, Node{}.Eval(sampleEvent()))
	assert.True(t, Node{Logic: LogicOr}.Eval(sampleEvent()))
}
