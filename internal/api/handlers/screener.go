package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/metricstore"
	"github.com/wonny/valuescope/internal/selection"
	"github.com/wonny/valuescope/pkg/logger"
)

// ScreenerHandler handles screening endpoints
type ScreenerHandler struct {
	store    contracts.MetricStore
	catalog  *selection.Catalog
	screener *selection.Screener
	timeout  time.Duration
	logger   *logger.Logger
}

// NewScreenerHandler creates a new screener handler
// timeout bounds each snapshot read while loading the universe.
func NewScreenerHandler(store contracts.MetricStore, catalog *selection.Catalog, screener *selection.Screener, timeout time.Duration, log *logger.Logger) *ScreenerHandler {
	return &ScreenerHandler{
		store:    store,
		catalog:  catalog,
		screener: screener,
		timeout:  timeout,
		logger:   log,
	}
}

// ScreenRequest carries either explicit conditions or the legacy filter form
type ScreenRequest struct {
	Conditions []contracts.Condition `json:"conditions,omitempty"`
	Filters    map[string]float64    `json:"filters,omitempty"`
	Markets    []string              `json:"markets,omitempty"`
	Industries []string              `json:"industries,omitempty"`
	Sort       *selection.SortSpec   `json:"sort,omitempty"`
}

// ScreenResponse is a screening outcome with each stock's values
type ScreenResponse struct {
	Query      contracts.ScreenerQuery `json:"query"`
	Total      int                     `json:"total"`
	TotalInput int                     `json:"total_input"`
	Filtered   map[string]int          `json:"filtered"`
	Stocks     []selection.Row         `json:"stocks"`
}

// ListPresets returns the preset catalog
// GET /api/screener/presets
func (h *ScreenerHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"version": h.catalog.Version(),
		"presets": h.catalog.List(),
	})
}

// Screen runs an ad-hoc query over the universe
// POST /api/screener
func (h *ScreenerHandler) Screen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := contracts.ScreenerQuery{Conditions: req.Conditions}
	if len(req.Filters) > 0 {
		if len(req.Conditions) > 0 {
			respondError(w, http.StatusBadRequest, "send either conditions or filters, not both")
			return
		}
		q, err := selection.QueryFromFilters(req.Filters)
		if err != nil {
			respondDomainError(w, h.logger, err, "screen")
			return
		}
		query = q
	}
	query.Markets = req.Markets
	query.Industries = req.Industries

	var sort selection.SortSpec
	if req.Sort != nil {
		sort = *req.Sort
	}
	h.run(w, r, query, sort)
}

// ApplyPreset screens the universe with a preset, replacing any current query
// POST /api/screener/presets/{id}
func (h *ScreenerHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	query, err := h.catalog.Apply(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, h.logger, err, "apply preset")
		return
	}
	h.run(w, r, query, selection.SortSpec{})
}

func (h *ScreenerHandler) run(w http.ResponseWriter, r *http.Request, query contracts.ScreenerQuery, sort selection.SortSpec) {
	if err := query.Validate(); err != nil {
		respondDomainError(w, h.logger, err, "screen")
		return
	}
	if sort.Metric != "" && !sort.Metric.Valid() {
		respondError(w, http.StatusBadRequest, "unknown sort metric")
		return
	}

	universe, err := metricstore.LoadUniverse(r.Context(), h.store, h.timeout, h.logger)
	if err != nil {
		respondDomainError(w, h.logger, err, "load universe")
		return
	}

	result, err := h.screener.ScreenDetailed(r.Context(), universe, query)
	if err != nil {
		respondDomainError(w, h.logger, err, "screen")
		return
	}

	byCode := make(map[string]contracts.MetricSnapshot, len(universe))
	for _, s := range universe {
		byCode[s.Code] = s
	}

	respondJSON(w, http.StatusOK, ScreenResponse{
		Query:      query,
		Total:      len(result.Passed),
		TotalInput: result.TotalInput,
		Filtered:   result.Filtered,
		Stocks:     selection.Rank(result.Passed, byCode, sort),
	})
}
