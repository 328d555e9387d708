package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"PatternFlow/internal/domain/models"
	"PatternFlow/internal/query"
	"PatternFlow/internal/service/ratelimit"
	"PatternFlow/internal/ws"
	xhttp "PatternFlow/pkg/http"
	xlogger "PatternFlow/pkg/logger"
	"PatternFlow/pkg/util"
)

// HealthReporter exposes the live pipeline state for the health endpoint.
type HealthReporter interface {
	BrokerConnected() bool
	Rooms() int
	Connections() int
	ResidentEvents() int
}

// ScanEchoHandler serves the pull-query and push endpoints.
type ScanEchoHandler struct {
	logger  *xlogger.Logger
	engine  *query.Engine
	hub     *ws.Hub
	health  HealthReporter
	limiter *ratelimit.Limiter

	// token bucket per client IP for /api/scan
	scanBurst float64
	scanRPS   float64
}

func NewScanEchoHandler(logger *xlogger.Logger, engine *query.Engine, hub *ws.Hub, health HealthReporter) *ScanEchoHandler {
	return &ScanEchoHandler{
		logger:    logger.With("api"),
		engine:    engine,
		hub:       hub,
		health:    health,
		limiter:   ratelimit.New(),
		scanBurst: 20,
		scanRPS:   10,
	}
}

func (h *ScanEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.hub.ServeWS)
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/scan", h.Scan)
}

// Scan evaluates a FilterCriteria and returns one page plus the total match
// count. Invalid criteria come back as 400, never silently coerced.
func (h *ScanEchoHandler) Scan(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), h.scanBurst, h.scanRPS) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	criteria, err := buildCriteria(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_QUERY",
			Message: err.Error(),
		}})
	}

	events, total, err := h.engine.Scan(c.Request().Context(), criteria)
	if err != nil {
		var verr *query.ValidationError
		if errors.As(err, &verr) {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_QUERY",
				Field:   verr.Field,
				Message: verr.Error(),
			}})
		}
		h.logger.Error("scan failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, &models.ScanResponse{
		Events: events,
		Pagination: models.Pagination{
			Total:    total,
			Page:     criteria.Page,
			PageSize: criteria.PageSize,
		},
	})
}

// Health reports broker connectivity and live pipeline gauges.
func (h *ScanEchoHandler) Health(c echo.Context) error {
	status := http.StatusOK
	body := map[string]any{
		"broker_connected": h.health.BrokerConnected(),
		"rooms":            h.health.Rooms(),
		"connections":      h.health.Connections(),
		"resident_events":  h.health.ResidentEvents(),
	}
	if !h.health.BrokerConnected() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, body)
}

// buildCriteria translates the request's shorthand filters and raw filter
// leaves into one predicate group under the requested logic mode.
func buildCriteria(req *models.ScanRequest) (query.Criteria, error) {
	node := query.Node{Logic: query.LogicMode(req.LogicMode)}

	if len(req.Kinds) > 0 {
		node.Preds = append(node.Preds, query.Predicate{Field: "kind", Op: query.OpIn, Values: anySlice(req.Kinds)})
	}
	if len(req.Symbols) > 0 {
		node.Preds = append(node.Preds, query.Predicate{Field: "symbol", Op: query.OpIn, Values: anySlice(req.Symbols)})
	}
	if len(req.Topics) > 0 {
		node.Preds = append(node.Preds, query.Predicate{Field: "topic", Op: query.OpIn, Values: anySlice(req.Topics)})
	}
	if req.ConfidenceMin != nil || req.ConfidenceMax != nil {
		node.Preds = append(node.Preds, rangePred("confidence", req.ConfidenceMin, req.ConfidenceMax))
	}
	if req.PriceMin != nil || req.PriceMax != nil {
		node.Preds = append(node.Preds, rangePred("price", req.PriceMin, req.PriceMax))
	}
	if req.From != "" || req.To != "" {
		p := query.Predicate{Field: "detected_at", Op: query.OpRange}
		if req.From != "" {
			t, ok := util.ParseTime(req.From)
			if !ok {
				return query.Criteria{}, &query.ValidationError{Field: "from", Msg: "unparseable timestamp"}
			}
			p.Min = t
		}
		if req.To != "" {
			t, ok := util.ParseTime(req.To)
			if !ok {
				return query.Criteria{}, &query.ValidationError{Field: "to", Msg: "unparseable timestamp"}
			}
			p.Max = t
		}
		node.Preds = append(node.Preds, p)
	}

	for _, f := range req.Filters {
		node.Preds = append(node.Preds, query.Predicate{
			Field:  f.Field,
			Op:     query.Op(f.Op),
			Value:  f.Value,
			Values: f.Values,
			Min:    floatAny(f.Min),
			Max:    floatAny(f.Max),
		})
	}

	return query.Criteria{
		Root:     node,
		SortKey:  req.SortKey,
		SortDesc: req.SortDir != "asc",
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

func rangePred(field string, min, max *float64) query.Predicate {
	return query.Predicate{Field: field, Op: query.OpRange, Min: floatAny(min), Max: floatAny(max)}
}

func floatAny(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
