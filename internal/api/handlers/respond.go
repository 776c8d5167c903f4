package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/valuescope/internal/alerting"
	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// OwnerHeader carries the authenticated user id, set by the gateway
const OwnerHeader = "X-User-ID"

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps the engine's error taxonomy to HTTP status codes
func respondDomainError(w http.ResponseWriter, log *logger.Logger, err error, action string) {
	switch {
	case errors.Is(err, contracts.ErrInvalidQuery),
		errors.Is(err, contracts.ErrInvalidRule),
		errors.Is(err, contracts.ErrInvalidSeries):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrRuleNotFound),
		errors.Is(err, contracts.ErrPresetNotFound),
		errors.Is(err, contracts.ErrStockNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, alerting.ErrCycleInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contracts.ErrUpstreamTimeout):
		respondError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		log.WithError(err).Error("Failed to " + action)
		respondError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// decodeJSON decodes and validates a request body
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// ownerFrom returns the caller's id or writes 401
func ownerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(OwnerHeader)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, OwnerHeader+" header is required")
		return "", false
	}
	return owner, true
}
