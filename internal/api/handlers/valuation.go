package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/valuation"
	"github.com/wonny/valuescope/pkg/logger"
)

// ValuationHandler handles percentile and snapshot endpoints
// ⭐ SSOT: 밸류에이션 API 핸들러는 이 구조체에서만
type ValuationHandler struct {
	store    contracts.MetricStore
	ranker   *valuation.Service
	registry *valuation.Registry
	logger   *logger.Logger
}

// NewValuationHandler creates a new valuation handler
func NewValuationHandler(store contracts.MetricStore, ranker *valuation.Service, registry *valuation.Registry, log *logger.Logger) *ValuationHandler {
	return &ValuationHandler{
		store:    store,
		ranker:   ranker,
		registry: registry,
		logger:   log,
	}
}

// PointInput is one observation in a percentile request; a null value is a gap
type PointInput struct {
	Date  string   `json:"date" validate:"required,datetime=2006-01-02"`
	Value *float64 `json:"value"`
}

// PercentileRequest ranks current against an explicit history
type PercentileRequest struct {
	Metric      string       `json:"metric,omitempty"`
	Orientation string       `json:"orientation,omitempty" validate:"omitempty,oneof=lower_is_cheaper higher_is_cheaper"`
	Current     *float64     `json:"current" validate:"required"`
	Points      []PointInput `json:"points" validate:"dive"`
}

// ComputePercentile ranks a value against a caller-supplied series
// POST /api/valuation/percentile
func (h *ValuationHandler) ComputePercentile(w http.ResponseWriter, r *http.Request) {
	var req PercentileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	orientation := valuation.Orientation(req.Orientation)
	if orientation == "" {
		if req.Metric == "" {
			orientation = valuation.LowerIsCheaper
		} else {
			o, err := h.registry.Orientation(contracts.MetricKind(req.Metric))
			if err != nil {
				respondDomainError(w, h.logger, err, "compute percentile")
				return
			}
			orientation = o
		}
	}

	series := contracts.MetricSeries{
		Metric: contracts.MetricKind(req.Metric),
		Points: make([]contracts.DataPoint, len(req.Points)),
	}
	for i, p := range req.Points {
		date, _ := time.Parse("2006-01-02", p.Date) // validated above
		series.Points[i] = contracts.DataPoint{Date: date}
		if p.Value != nil {
			series.Points[i].Value = *p.Value
			series.Points[i].Valid = true
		}
	}

	result, err := valuation.ComputePercentile(series, *req.Current, orientation)
	if err != nil {
		respondDomainError(w, h.logger, err, "compute percentile")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetStockValuation ranks a stock's latest metric against its stored history
// GET /api/stocks/{code}/valuation?metric=pe_ttm&years=10
func (h *ValuationHandler) GetStockValuation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	metric, err := contracts.ParseMetricKind(r.URL.Query().Get("metric"))
	if err != nil {
		respondDomainError(w, h.logger, err, "rank valuation")
		return
	}

	years := 0
	if s := r.URL.Query().Get("years"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y <= 0 || y > 30 {
			respondError(w, http.StatusBadRequest, "years must be between 1 and 30")
			return
		}
		years = y
	}

	ranking, err := h.ranker.RankWindow(r.Context(), code, metric, time.Now(), years)
	if err != nil {
		respondDomainError(w, h.logger, err, "rank valuation")
		return
	}

	respondJSON(w, http.StatusOK, ranking)
}

// GetSnapshot returns the current metric values of a stock
// GET /api/stocks/{code}/snapshot
func (h *ValuationHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	snap, err := h.store.GetSnapshot(r.Context(), code)
	if err != nil {
		respondDomainError(w, h.logger, err, "get snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}
