package commands

import (
	"fmt"
	"time"

	"github.com/wonny/valuescope/internal/alerting"
	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/metricstore"
	"github.com/wonny/valuescope/internal/notify"
	"github.com/wonny/valuescope/internal/scheduler"
	"github.com/wonny/valuescope/internal/scheduler/jobs"
	"github.com/wonny/valuescope/internal/selection"
	"github.com/wonny/valuescope/internal/valuation"
	"github.com/wonny/valuescope/pkg/config"
	"github.com/wonny/valuescope/pkg/database"
	"github.com/wonny/valuescope/pkg/httputil"
	"github.com/wonny/valuescope/pkg/logger"
	"github.com/wonny/valuescope/pkg/redis"
)

const keyPrefix = "valuescope"

// app holds every wired component a command may need
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	redis *redis.Client

	store    contracts.MetricStore
	registry *valuation.Registry
	ranker   *valuation.Service

	catalog  *selection.Catalog
	screener *selection.Screener
	runs     *selection.Repository

	engine *alerting.Engine
	alerts *alerting.Service
	hub    *notify.Hub
	sink   *notify.Dispatcher
}

// newApp loads config and connects every backing service
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Preset catalog (invalid catalog is fatal)
	catalog, err := selection.LoadCatalog(cfg.Screener.PresetPath)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Connect to redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if !rc.Enabled() {
		log.Warn("Redis disabled: snapshot cache and cross-process rule locks are off")
	}

	// 6. Metric store and percentile ranking
	registry := valuation.DefaultRegistry()
	pg := metricstore.NewPostgres(db.Pool, cfg.Screener.PercentileYears, log)
	store := metricstore.NewCached(pg, redis.NewCache(rc, keyPrefix), cfg.Screener.SnapshotCacheTTL, log)
	ranker := valuation.NewService(store, registry, cfg.Screener.PercentileYears, log)

	// 7. Notification sinks
	hub := notify.NewHub(log)
	sink := notify.NewDispatcher(cfg.Notify.RatePerSecond, cfg.Notify.Burst, log).
		Register(contracts.ChannelPush, hub)
	if cfg.Notify.SMTPHost != "" {
		sink.Register(contracts.ChannelEmail, notify.NewEmailSink(cfg.Notify, notify.OwnerOrDefault(cfg.Notify.EmailTo)))
	}
	if cfg.Notify.WeChatWebhookURL != "" {
		client := httputil.NewWithTimeout(cfg, log, cfg.Alert.SinkTimeout).DisableRetry()
		sink.Register(contracts.ChannelWeChat, notify.NewWeChatSink(client, cfg.Notify.WeChatWebhookURL))
	}
	log.WithField("channels", sink.Channels()).Info("Notification channels ready")

	// 8. Alert engine
	rules := alerting.NewRepository(db.Pool)
	engine := alerting.NewEngine(rules, store, sink, alerting.Options{
		MetricTimeout: cfg.Alert.MetricTimeout,
		SinkTimeout:   cfg.Alert.SinkTimeout,
		CycleTimeout:  cfg.Alert.CycleTimeout,
		Locker:        redis.NewLocker(rc, keyPrefix, cfg.Alert.LockTTL),
	}, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rc,
		store:    store,
		registry: registry,
		ranker:   ranker,
		catalog:  catalog,
		screener: selection.NewScreener(cfg.Screener.Workers, log),
		runs:     selection.NewRepository(db.Pool),
		engine:   engine,
		alerts:   alerting.NewService(rules, engine, log),
		hub:      hub,
		sink:     sink,
	}, nil
}

// newScheduler registers the alert and screening jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.Options{
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		JobTimeout: 30 * time.Minute,
	})

	if err := sched.AddJob(jobs.NewAlertEvaluationJob(a.engine, a.cfg.Alert.Schedule, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPresetScreeningJob(a.store, a.catalog, a.screener, a.runs, a.cfg.Screener.SnapshotTimeout, a.cfg.Screener.PresetSchedule, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

func (a *app) close() {
	_ = a.redis.Close()
	a.db.Close()
}
