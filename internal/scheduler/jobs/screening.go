package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/metricstore"
	"github.com/wonny/valuescope/internal/selection"
	"github.com/wonny/valuescope/pkg/logger"
)

// RunSaver persists screening runs
type RunSaver interface {
	SaveRun(ctx context.Context, presetID string, runAt time.Time, result *selection.Result) (int64, error)
}

// PresetScreeningJob screens the whole universe with every preset and stores the runs
type PresetScreeningJob struct {
	store    contracts.MetricStore
	catalog  *selection.Catalog
	screener *selection.Screener
	runs     RunSaver
	timeout  time.Duration
	schedule string
	logger   *logger.Logger
}

// NewPresetScreeningJob creates a new preset screening job
func NewPresetScreeningJob(
	store contracts.MetricStore,
	catalog *selection.Catalog,
	screener *selection.Screener,
	runs RunSaver,
	timeout time.Duration,
	schedule string,
	log *logger.Logger,
) *PresetScreeningJob {
	if schedule == "" {
		schedule = "0 30 18 * * *"
	}
	return &PresetScreeningJob{
		store:    store,
		catalog:  catalog,
		screener: screener,
		runs:     runs,
		timeout:  timeout,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *PresetScreeningJob) Name() string {
	return "preset_screening"
}

// Schedule returns the cron schedule (18:30 daily by default)
func (j *PresetScreeningJob) Schedule() string {
	return j.schedule
}

// Run executes the preset screening
func (j *PresetScreeningJob) Run(ctx context.Context) error {
	universe, err := metricstore.LoadUniverse(ctx, j.store, j.timeout, j.logger)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	runAt := time.Now()
	for _, preset := range j.catalog.List() {
		result, err := j.screener.ScreenDetailed(ctx, universe, preset.Query)
		if err != nil {
			return fmt.Errorf("preset %s: %w", preset.ID, err)
		}

		if j.runs != nil {
			if _, err := j.runs.SaveRun(ctx, preset.ID, runAt, result); err != nil {
				return fmt.Errorf("save preset %s: %w", preset.ID, err)
			}
		}

		j.logger.WithFields(map[string]interface{}{
			"preset": preset.ID,
			"passed": len(result.Passed),
			"total":  result.TotalInput,
		}).Info("Preset screening stored")
	}
	return nil
}
