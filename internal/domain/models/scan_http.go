package models

// Requests for the discovery HTTP endpoint. Defined in domain for consistency and reuse.

// FilterSpec is one leaf predicate supplied by the caller: field, operator
// and operand. Range predicates use Min/Max instead of Value.
type FilterSpec struct {
	Field  string   `json:"field" validate:"required"`
	Op     string   `json:"op" validate:"required,oneof=eq gte lte in range"`
	Value  any      `json:"value,omitempty"`
	Values []any    `json:"values,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// ScanRequest is the pull-query contract. The shorthand filters (kinds,
// symbols, confidence/price bounds, time range) and the raw Filters list are
// combined under LogicMode.
type ScanRequest struct {
	Kinds         []string     `json:"kinds" validate:"omitempty,dive,oneof=pattern indicator health"`
	Symbols       []string     `json:"symbols" validate:"omitempty,dive,min=1"`
	Topics        []string     `json:"topics" validate:"omitempty,dive,min=1"`
	ConfidenceMin *float64     `json:"confidence_min" validate:"omitempty,gte=0,lte=1"`
	ConfidenceMax *float64     `json:"confidence_max" validate:"omitempty,gte=0,lte=1"`
	PriceMin      *float64     `json:"price_min" validate:"omitempty,gte=0"`
	PriceMax      *float64     `json:"price_max" validate:"omitempty,gte=0"`
	From          string       `json:"from"`
	To            string       `json:"to"`
	Filters       []FilterSpec `json:"filters" validate:"omitempty,dive"`
	LogicMode     string       `json:"logic_mode" default:"and" validate:"oneof=and or"`
	SortKey       string       `json:"sort_key" default:"detected_at" validate:"oneof=detected_at confidence price symbol topic kind"`
	SortDir       string       `json:"sort_dir" default:"desc" validate:"oneof=asc desc"`
	Page          int          `json:"page" default:"1" validate:"gte=1"`
	PageSize      int          `json:"page_size" default:"50" validate:"gte=1,lte=100"`
}

// Pagination describes the full matching set behind one returned page.
type Pagination struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ScanResponse is the pull-query result envelope.
type ScanResponse struct {
	Events     []*PatternEvent `json:"events"`
	Pagination Pagination      `json:"pagination"`
}
