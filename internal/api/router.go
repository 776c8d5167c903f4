package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/valuescope/internal/api/handlers"
	"github.com/wonny/valuescope/pkg/logger"
)

// Handlers groups every endpoint handler the router mounts
type Handlers struct {
	Valuation *handlers.ValuationHandler
	Screener  *handlers.ScreenerHandler
	Alerts    *handlers.AlertHandler
	Health    http.HandlerFunc // optional; defaults to a static ok
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	health := h.Health
	if health == nil {
		health = healthCheckHandler
	}
	r.HandleFunc("/health", health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Valuation endpoints
	api.HandleFunc("/valuation/percentile", h.Valuation.ComputePercentile).Methods("POST")
	api.HandleFunc("/stocks/{code}/valuation", h.Valuation.GetStockValuation).Methods("GET")
	api.HandleFunc("/stocks/{code}/snapshot", h.Valuation.GetSnapshot).Methods("GET")

	// Screener endpoints
	api.HandleFunc("/screener/presets", h.Screener.ListPresets).Methods("GET")
	api.HandleFunc("/screener/presets/{id}", h.Screener.ApplyPreset).Methods("POST")
	api.HandleFunc("/screener", h.Screener.Screen).Methods("POST")

	// Alert endpoints (static paths before {id})
	api.HandleFunc("/alerts/stream", h.Alerts.Stream).Methods("GET")
	api.HandleFunc("/alerts/evaluate", h.Alerts.Evaluate).Methods("POST")
	api.HandleFunc("/alerts", h.Alerts.List).Methods("GET")
	api.HandleFunc("/alerts", h.Alerts.Create).Methods("POST")
	api.HandleFunc("/alerts/{id}", h.Alerts.Get).Methods("GET")
	api.HandleFunc("/alerts/{id}", h.Alerts.Update).Methods("PUT")
	api.HandleFunc("/alerts/{id}", h.Alerts.Delete).Methods("DELETE")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"valuescope-api"}`))
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for websocket upgrades
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
