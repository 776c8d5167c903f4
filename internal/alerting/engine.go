package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/rules"
	"github.com/wonny/valuescope/pkg/logger"
)

// ErrCycleInProgress is returned when RunCycle is called while another cycle runs
var ErrCycleInProgress = errors.New("alert cycle already in progress")

// SnapshotSource is the current-value half of the Metric Store
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, code string) (contracts.MetricSnapshot, error)
}

// Outcome is what one evaluation did to a rule
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFired     Outcome = "fired"
	OutcomeRearmed   Outcome = "rearmed"
	OutcomeSkipped   Outcome = "skipped"
)

// RuleResult is the outcome of evaluating one rule
type RuleResult struct {
	RuleID    string            `json:"rule_id"`
	Outcome   Outcome           `json:"outcome"`
	Reading   contracts.Reading `json:"reading"`
	Delivered bool              `json:"delivered"`
	Err       error             `json:"-"`
}

// CycleReport summarises one evaluation pass
type CycleReport struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Evaluated     int       `json:"evaluated"`
	Fired         int       `json:"fired"`
	Rearmed       int       `json:"rearmed"`
	Skipped       int       `json:"skipped"`
	Timeouts      int       `json:"timeouts"`
	SinkFailures  int       `json:"sink_failures"`
	DuplicateFire int       `json:"duplicate_fire"`
}

func (r *CycleReport) add(res RuleResult) {
	r.Evaluated++
	switch res.Outcome {
	case OutcomeFired:
		r.Fired++
		if !res.Delivered {
			r.SinkFailures++
		}
	case OutcomeRearmed:
		r.Rearmed++
	case OutcomeSkipped:
		r.Skipped++
	}
	if errors.Is(res.Err, contracts.ErrUpstreamTimeout) {
		r.Timeouts++
	}
	if errors.Is(res.Err, contracts.ErrDuplicateFire) {
		r.DuplicateFire++
	}
}

// Options tunes an Engine. Zero values take the defaults below.
type Options struct {
	MetricTimeout time.Duration
	SinkTimeout   time.Duration
	CycleTimeout  time.Duration
	Workers       int
	Locker        Locker
	Clock         func() time.Time
}

// Engine drives the ARMED/TRIGGERED state machine of every enabled rule
// ⭐ SSOT: 알림 상태 전이는 여기서만
type Engine struct {
	store   RuleStore
	metrics SnapshotSource
	sink    contracts.AlertSink
	locker  Locker
	locks   *keyedMutex
	running atomic.Bool

	metricTimeout time.Duration
	sinkTimeout   time.Duration
	cycleTimeout  time.Duration
	workers       int
	now           func() time.Time

	logger *logger.Logger
}

// NewEngine creates an alert engine
func NewEngine(store RuleStore, metrics SnapshotSource, sink contracts.AlertSink, opts Options, log *logger.Logger) *Engine {
	e := &Engine{
		store:         store,
		metrics:       metrics,
		sink:          sink,
		locker:        opts.Locker,
		locks:         newKeyedMutex(),
		metricTimeout: opts.MetricTimeout,
		sinkTimeout:   opts.SinkTimeout,
		cycleTimeout:  opts.CycleTimeout,
		workers:       opts.Workers,
		now:           opts.Clock,
		logger:        log,
	}
	if e.metricTimeout <= 0 {
		e.metricTimeout = 5 * time.Second
	}
	if e.sinkTimeout <= 0 {
		e.sinkTimeout = 10 * time.Second
	}
	if e.workers < 1 {
		e.workers = 4
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// RunCycle evaluates every enabled rule once. Running it twice against
// unchanged data fires nothing the second time.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer e.running.Store(false)

	if e.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cycleTimeout)
		defer cancel()
	}

	report := &CycleReport{StartedAt: e.now()}

	enabled, err := e.store.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for _, rule := range enabled {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := e.evaluate(ctx, rule.ID)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = e.now()

	fields := map[string]interface{}{
		"rules":         len(enabled),
		"evaluated":     report.Evaluated,
		"fired":         report.Fired,
		"rearmed":       report.Rearmed,
		"skipped":       report.Skipped,
		"timeouts":      report.Timeouts,
		"sink_failures": report.SinkFailures,
	}

	if err := ctx.Err(); err != nil {
		e.logger.WithFields(fields).Warn("Alert cycle interrupted")
		return report, fmt.Errorf("alert cycle interrupted: %w", err)
	}

	e.logger.WithFields(fields).Info("Alert cycle completed")
	return report, nil
}

// EvaluateRule evaluates a single rule now, outside the cycle
func (e *Engine) EvaluateRule(ctx context.Context, ruleID string) RuleResult {
	return e.evaluate(ctx, ruleID)
}

// lockRule serialises all work on one rule, in-process and across processes
func (e *Engine) lockRule(ctx context.Context, ruleID string) (func(), error) {
	unlock := e.locks.Lock(ruleID)
	if e.locker == nil {
		return unlock, nil
	}

	release, err := e.locker.Acquire(ctx, "alert-rule:"+ruleID)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (e *Engine) evaluate(ctx context.Context, ruleID string) RuleResult {
	res := RuleResult{RuleID: ruleID, Outcome: OutcomeSkipped}
	log := e.logger.WithField("rule_id", ruleID)

	unlock, err := e.lockRule(ctx, ruleID)
	if err != nil {
		log.WithError(err).Warn("Rule locked elsewhere, skipping")
		res.Err = err
		return res
	}
	defer unlock()

	// state may have moved since the rule list was read
	rule, err := e.store.Get(ctx, ruleID)
	if err != nil {
		if !errors.Is(err, contracts.ErrRuleNotFound) {
			log.WithError(err).Error("Failed to load rule")
		}
		res.Err = err
		return res
	}
	state := rule.EffectiveState()
	if state == contracts.StateDisabled {
		return res
	}

	log = log.WithFields(map[string]interface{}{
		"stock_code": rule.StockCode,
		"condition":  rule.Condition.String(),
	})

	snap, err := e.fetchSnapshot(ctx, rule.StockCode)
	if err != nil {
		if errors.Is(err, contracts.ErrUpstreamTimeout) {
			log.WithError(err).Warn("Metric store timed out, rule skipped")
		} else {
			log.WithError(err).Error("Failed to fetch snapshot, rule skipped")
		}
		res.Err = err
		return res
	}

	res.Reading = snap.Get(rule.Condition.Metric)
	holds := rules.Evaluate(rule.Condition, res.Reading)
	now := e.now()

	switch {
	case state == contracts.StateArmed && holds:
		swapped, err := e.store.CompareAndSetState(ctx, rule.ID, contracts.StateArmed, contracts.StateTriggered, now)
		if err != nil {
			log.WithError(err).Error("Failed to persist trigger, rule skipped")
			res.Err = err
			return res
		}
		if !swapped {
			res.Err = fmt.Errorf("%w: rule %s", contracts.ErrDuplicateFire, rule.ID)
			log.WithError(res.Err).Error("Rule already left ARMED, notification suppressed")
			return res
		}

		res.Outcome = OutcomeFired
		res.Delivered = e.notify(ctx, rule, res.Reading.Value, now, log)
		return res

	case state == contracts.StateTriggered && !holds:
		swapped, err := e.store.CompareAndSetState(ctx, rule.ID, contracts.StateTriggered, contracts.StateArmed, now)
		if err != nil {
			log.WithError(err).Error("Failed to persist re-arm, rule skipped")
			res.Err = err
			return res
		}
		if swapped {
			res.Outcome = OutcomeRearmed
			log.Debug("Rule re-armed")
		} else {
			res.Outcome = OutcomeUnchanged
		}
		return res
	}

	res.Outcome = OutcomeUnchanged
	return res
}

// fetchSnapshot bounds the Metric Store call. Its own deadline maps to
// ErrUpstreamTimeout; cancellation of the caller is returned as is.
func (e *Engine) fetchSnapshot(ctx context.Context, code string) (contracts.MetricSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, e.metricTimeout)
	defer cancel()

	snap, err := e.metrics.GetSnapshot(fctx, code)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded)) {
		return contracts.MetricSnapshot{}, fmt.Errorf("%w: snapshot %s after %s", contracts.ErrUpstreamTimeout, code, e.metricTimeout)
	}
	return contracts.MetricSnapshot{}, err
}

// notify emits the notification intent once; delivery failures are logged, not retried
func (e *Engine) notify(ctx context.Context, rule *contracts.AlertRule, value float64, at time.Time, log *logger.Logger) bool {
	n := contracts.Notification{
		RuleID:         rule.ID,
		Owner:          rule.Owner,
		Channel:        rule.Channel,
		StockCode:      rule.StockCode,
		Condition:      rule.Condition,
		TriggeredValue: value,
		TriggeredAt:    at,
	}

	nctx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
	defer cancel()

	if err := e.sink.Notify(nctx, n); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", contracts.ErrUpstreamTimeout, err)
		}
		log.WithError(err).WithField("channel", rule.Channel).Error("Alert delivery failed")
		return false
	}

	log.WithFields(map[string]interface{}{
		"channel": rule.Channel,
		"value":   value,
	}).Info("Alert fired")
	return true
}
