package query

import (
	"encoding/json"
	"fmt"
	"time"

	"PatternFlow/internal/domain/models"
	"PatternFlow/pkg/util"
)

// LogicMode combines the members of a predicate group.
type LogicMode string

const (
	LogicAnd LogicMode = "and"
	LogicOr  LogicMode = "or"
)

// Op is a leaf predicate operator.
type Op string

const (
	OpEq    Op = "eq"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpIn    Op = "in"
	OpRange Op = "range"
)

// Fields the engine knows how to read off a PatternEvent. Anything else in a
// predicate is a validation error, never silently true or false.
var knownFields = map[string]struct{}{
	"topic":       {},
	"kind":        {},
	"symbol":      {},
	"confidence":  {},
	"price":       {},
	"detected_at": {},
}

// ValidationError is a caller contract violation, surfaced synchronously.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Msg)
	}
	return "invalid query: " + e.Msg
}

// Predicate is one leaf: field, operator, operand. OpIn reads Values,
// OpRange reads Min/Max (inclusive), the rest read Value.
type Predicate struct {
	Field  string `json:"field"`
	Op     Op     `json:"op"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Min    any    `json:"min,omitempty"`
	Max    any    `json:"max,omitempty"`
}

// Node is a predicate group. Preds and Nodes are combined under Logic; AND
// requires all to hold, OR requires at least one. An empty node matches
// everything.
type Node struct {
	Logic LogicMode   `json:"logic"`
	Preds []Predicate `json:"preds,omitempty"`
	Nodes []Node      `json:"nodes,omitempty"`
}

// Criteria is a full query: predicate tree, sort and page window.
type Criteria struct {
	Root     Node   `json:"root"`
	SortKey  string `json:"sort_key"`
	SortDesc bool   `json:"sort_desc"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Validate fails fast on unknown fields, unknown operators, malformed
// operands and out-of-range paging.
func (c *Criteria) Validate(maxPageSize int) error {
	if c.Page < 1 {
		return &ValidationError{Field: "page", Msg: "must be >= 1"}
	}
	if c.PageSize < 1 || c.PageSize > maxPageSize {
		return &ValidationError{Field: "page_size", Msg: fmt.Sprintf("must be in [1,%d]", maxPageSize)}
	}
	if c.SortKey != "" {
		if _, ok := knownFields[c.SortKey]; !ok {
			return &ValidationError{Field: c.SortKey, Msg: "unknown sort key"}
		}
	}
	return validateNode(c.Root)
}

func validateNode(n Node) error {
	switch n.Logic {
	case LogicAnd, LogicOr, "":
	default:
		return &ValidationError{Field: "logic", Msg: fmt.Sprintf("unknown mode %q", n.Logic)}
	}
	for _, p := range n.Preds {
		if err := validatePredicate(p); err != nil {
			return err
		}
	}
	for _, sub := range n.Nodes {
		if err := validateNode(sub); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	if _, ok := knownFields[p.Field]; !ok {
		return &ValidationError{Field: p.Field, Msg: "unknown field"}
	}
	switch p.Op {
	case OpEq, OpGte, OpLte:
		if p.Value == nil {
			return &ValidationError{Field: p.Field, Msg: "operator requires a value"}
		}
	case OpIn:
		if len(p.Values) == 0 {
			return &ValidationError{Field: p.Field, Msg: "in requires a non-empty value set"}
		}
	case OpRange:
		if p.Min == nil && p.Max == nil {
			return &ValidationError{Field: p.Field, Msg: "range requires min or max"}
		}
	default:
		return &ValidationError{Field: p.Field, Msg: fmt.Sprintf("unknown operator %q", p.Op)}
	}
	return nil
}

// Eval reports whether the event satisfies the tree.
func (n Node) Eval(e *models.PatternEvent) bool {
	if len(n.Preds) == 0 && len(n.Nodes) == 0 {
		return true
	}
	if n.Logic == LogicOr {
		for _, p := range n.Preds {
			if evalPredicate(e, p) {
				return true
			}
		}
		for _, sub := range n.Nodes {
			if sub.Eval(e) {
				return true
			}
		}
		return false
	}
	// AND is the default and is strictly conjunctive.
	for _, p := range n.Preds {
		if !evalPredicate(e, p) {
			return false
		}
	}
	for _, sub := range n.Nodes {
		if !sub.Eval(e) {
			return false
		}
	}
	return true
}

func evalPredicate(e *models.PatternEvent, p Predicate) bool {
	switch p.Field {
	case "topic", "kind", "symbol":
		s, ok := stringField(e, p.Field)
		if !ok {
			return false
		}
		return evalString(s, p)
	case "confidence", "price":
		v, ok := numericField(e, p.Field)
		if !ok {
			return false
		}
		return evalNumeric(v, p)
	case "detected_at":
		return evalTime(e.DetectedAt, p)
	}
	return false
}

func stringField(e *models.PatternEvent, field string) (string, bool) {
	switch field {
	case "topic":
		return e.Topic, true
	case "kind":
		return string(e.Kind), true
	case "symbol":
		return e.Symbol, true
	}
	return "", false
}

// numericField returns (value, present). Events lacking the field never
// satisfy a numeric predicate.
func numericField(e *models.PatternEvent, field string) (float64, bool) {
	switch field {
	case "confidence":
		if e.Confidence == nil {
			return 0, false
		}
		return *e.Confidence, true
	case "price":
		if e.Price == nil {
			return 0, false
		}
		return *e.Price, true
	}
	return 0, false
}

func evalString(s string, p Predicate) bool {
	switch p.Op {
	case OpEq:
		v, ok := toString(p.Value)
		return ok && s == v
	case OpIn:
		for _, raw := range p.Values {
			if v, ok := toString(raw); ok && s == v {
				return true
			}
		}
		return false
	case OpGte:
		v, ok := toString(p.Value)
		return ok && s >= v
	case OpLte:
		v, ok := toString(p.Value)
		return ok && s <= v
	case OpRange:
		lo, hasLo := toString(p.Min)
		hi, hasHi := toString(p.Max)
		return (!hasLo || s >= lo) && (!hasHi || s <= hi)
	}
	return false
}

func evalNumeric(v float64, p Predicate) bool {
	switch p.Op {
	case OpEq:
		f, ok := toFloat(p.Value)
		return ok && v == f
	case OpGte:
		f, ok := toFloat(p.Value)
		return ok && v >= f
	case OpLte:
		f, ok := toFloat(p.Value)
		return ok && v <= f
	case OpIn:
		for _, raw := range p.Values {
			if f, ok := toFloat(raw); ok && v == f {
				return true
			}
		}
		return false
	case OpRange:
		lo, hasLo := toFloat(p.Min)
		hi, hasHi := toFloat(p.Max)
		return (!hasLo || v >= lo) && (!hasHi || v <= hi)
	}
	return false
}

func evalTime(t time.Time, p Predicate) bool {
	switch p.Op {
	case OpEq:
		v, ok := toTime(p.Value)
		return ok && t.Equal(v)
	case OpGte:
		v, ok := toTime(p.Value)
		return ok && !t.Before(v)
	case OpLte:
		v, ok := toTime(p.Value)
		return ok && !t.After(v)
	case OpRange:
		lo, hasLo := toTime(p.Min)
		hi, hasHi := toTime(p.Max)
		return (!hasLo || !t.Before(lo)) && (!hasHi || !t.After(hi))
	case OpIn:
		for _, raw := range p.Values {
			if v, ok := toTime(raw); ok && t.Equal(v) {
				return true
			}
		}
		return false
	}
	return false
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return util.ParseTime(x)
	case int64:
		return time.Unix(x, 0).UTC(), true
	case float64:
		return time.Unix(int64(x), 0).UTC(), true
	}
	return time.Time{}, false
}
