package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescope/internal/api"
	"github.com/wonny/valuescope/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 백분위/스크리너/알림 엔드포인트 제공
- (기본) 알림 평가 & 프리셋 스크리닝 스케줄러 동시 실행

Endpoints:
  GET    /health
  POST   /api/valuation/percentile
  GET    /api/stocks/{code}/valuation
  GET    /api/stocks/{code}/snapshot
  GET    /api/screener/presets
  POST   /api/screener
  POST   /api/screener/presets/{id}
  GET    /api/alerts
  POST   /api/alerts
  GET    /api/alerts/stream
  POST   /api/alerts/evaluate
  GET    /api/alerts/{id}
  PUT    /api/alerts/{id}
  DELETE /api/alerts/{id}

Example:
  go run ./cmd/valuescope api
  go run ./cmd/valuescope api --port 8080 --scheduler=false`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", true, "스케줄러 동시 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== valuescope API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":      a.cfg.Port,
		"env":       a.cfg.Env,
		"scheduler": apiScheduler,
	}).Info("Initializing API server")

	// Handlers and router
	router := api.NewRouter(api.Handlers{
		Valuation: handlers.NewValuationHandler(a.store, a.ranker, a.registry, log),
		Screener:  handlers.NewScreenerHandler(a.store, a.catalog, a.screener, a.cfg.Screener.SnapshotTimeout, log),
		Alerts:    handlers.NewAlertHandler(a.alerts, a.engine, a.hub, log),
		Health:    a.healthHandler,
	}, log)

	server := api.New(a.cfg, log, router)

	if apiScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// healthHandler reports database health
func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	status, err := a.db.HealthCheck(ctx)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, `{"status":"degraded","service":"valuescope-api","database":%q}`, status.Error)
		return
	}
	_, _ = fmt.Fprintf(w, `{"status":"ok","service":"valuescope-api","redis":%t,"db_response_ms":%d}`,
		a.redis.Enabled(), status.ResponseTime.Milliseconds())
}
