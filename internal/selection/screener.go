package selection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/rules"
	"github.com/wonny/valuescope/pkg/logger"
)

// Screener evaluates a condition set (AND) over a universe of snapshots
// ⭐ SSOT: 스크리닝 로직은 여기서만
type Screener struct {
	workers int
	logger  *logger.Logger
}

// Result is a screening outcome with per-metric rejection counts
type Result struct {
	Passed     []string       `json:"passed"`
	Filtered   map[string]int `json:"filtered"` // first failing metric, "market" or "industry" -> count
	TotalInput int            `json:"total_input"`
}

// NewScreener creates a new screener evaluating at most workers stocks at once
func NewScreener(workers int, logger *logger.Logger) *Screener {
	if workers < 1 {
		workers = 1
	}
	return &Screener{
		workers: workers,
		logger:  logger,
	}
}

// Screen returns the codes of every stock satisfying all conditions of query,
// in input order. An empty query passes the whole universe.
func (s *Screener) Screen(ctx context.Context, universe []contracts.MetricSnapshot, query contracts.ScreenerQuery) ([]string, error) {
	result, err := s.ScreenDetailed(ctx, universe, query)
	if err != nil {
		return nil, err
	}
	return result.Passed, nil
}

// ScreenDetailed is Screen with rejection statistics.
//
// Cancelling ctx stops launching new evaluations; in-flight evaluations run to
// completion and the partial result is discarded.
func (s *Screener) ScreenDetailed(ctx context.Context, universe []contracts.MetricSnapshot, query contracts.ScreenerQuery) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	type outcome struct {
		pass   bool
		reason string
	}
	outcomes := make([]outcome, len(universe))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i := range universe {
		// Go blocks while all workers are busy, so ctx is rechecked before each launch
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if field, out := rules.OutOfScope(query, universe[i]); out {
				outcomes[i] = outcome{reason: field}
				return nil
			}
			failing, failed := rules.FirstFailing(query.Conditions, universe[i])
			if failed {
				outcomes[i] = outcome{reason: string(failing.Metric)}
				return nil
			}
			outcomes[i] = outcome{pass: true}
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"total_input": len(universe),
		}).Warn("Screening cancelled")
		return nil, fmt.Errorf("screening cancelled: %w", err)
	}

	result := &Result{
		Passed:     make([]string, 0),
		Filtered:   make(map[string]int),
		TotalInput: len(universe),
	}
	for i, o := range outcomes {
		if o.pass {
			result.Passed = append(result.Passed, universe[i].Code)
		} else {
			result.Filtered[o.reason]++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  result.TotalInput,
		"conditions":   len(query.Conditions),
		"passed":       len(result.Passed),
		"filtered_out": result.TotalInput - len(result.Passed),
		"filters":      result.Filtered,
	}).Info("Screening completed")

	return result, nil
}
