package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/valuescope/internal/alerting"
	"github.com/wonny/valuescope/internal/notify"
	"github.com/wonny/valuescope/pkg/logger"
)

// AlertHandler handles alert rule endpoints
type AlertHandler struct {
	service *alerting.Service
	engine  *alerting.Engine
	hub     *notify.Hub
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(service *alerting.Service, engine *alerting.Engine, hub *notify.Hub, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		engine:  engine,
		hub:     hub,
		logger:  log,
	}
}

// List returns the caller's rules
// GET /api/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	rules, err := h.service.List(r.Context(), owner)
	if err != nil {
		respondDomainError(w, h.logger, err, "list alert rules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}

// Create stores a new rule
// POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	var req alerting.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.service.Create(r.Context(), owner, req)
	if err != nil {
		respondDomainError(w, h.logger, err, "create alert rule")
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// Get returns one rule
// GET /api/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	rule, err := h.service.Get(r.Context(), owner, mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, h.logger, err, "get alert rule")
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update edits or toggles a rule
// PUT /api/alerts/{id}
func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	var req alerting.UpdateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.service.Update(r.Context(), owner, mux.Vars(r)["id"], req)
	if err != nil {
		respondDomainError(w, h.logger, err, "update alert rule")
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Delete removes a rule
// DELETE /api/alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), owner, mux.Vars(r)["id"]); err != nil {
		respondDomainError(w, h.logger, err, "delete alert rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Evaluate runs one evaluation cycle now
// POST /api/alerts/evaluate
func (h *AlertHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunCycle(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "evaluate alerts")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Stream upgrades to a websocket delivering the caller's push notifications
// GET /api/alerts/stream
func (h *AlertHandler) Stream(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	if err := h.hub.ServeWS(w, r, owner); err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WithError(err).WithField("owner", owner).Warn("Websocket upgrade failed")
	}
}
