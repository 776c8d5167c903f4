package jobs

import (
	"context"
	"errors"

	"github.com/wonny/valuescope/internal/alerting"
	"github.com/wonny/valuescope/pkg/logger"
)

// CycleRunner runs one alert evaluation pass
type CycleRunner interface {
	RunCycle(ctx context.Context) (*alerting.CycleReport, error)
}

// AlertEvaluationJob evaluates every enabled alert rule
type AlertEvaluationJob struct {
	engine   CycleRunner
	schedule string
	logger   *logger.Logger
}

// NewAlertEvaluationJob creates a new alert evaluation job
func NewAlertEvaluationJob(engine CycleRunner, schedule string, log *logger.Logger) *AlertEvaluationJob {
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	return &AlertEvaluationJob{
		engine:   engine,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *AlertEvaluationJob) Name() string {
	return "alert_evaluation"
}

// Schedule returns the cron schedule (every 5 minutes by default)
func (j *AlertEvaluationJob) Schedule() string {
	return j.schedule
}

// Run executes one evaluation cycle. A cycle already started elsewhere
// (API trigger) counts as success.
func (j *AlertEvaluationJob) Run(ctx context.Context) error {
	report, err := j.engine.RunCycle(ctx)
	if errors.Is(err, alerting.ErrCycleInProgress) {
		j.logger.Debug("Alert cycle already running, skipped")
		return nil
	}
	if err != nil {
		return err
	}

	if report.Fired > 0 || report.Timeouts > 0 {
		j.logger.WithFields(map[string]interface{}{
			"fired":    report.Fired,
			"timeouts": report.Timeouts,
		}).Info("Alert evaluation finished")
	}
	return nil
}
