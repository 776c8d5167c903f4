package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// SeriesSource is the history half of the Metric Store
type SeriesSource interface {
	GetSeries(ctx context.Context, code string, metric contracts.MetricKind, from, to time.Time) (contracts.MetricSeries, error)
}

// DefaultLookbackYears is the history window used for percentile ranks
const DefaultLookbackYears = 10

// Ranking is a percentile result together with the value that was ranked
type Ranking struct {
	Code    string               `json:"code"`
	Metric  contracts.MetricKind `json:"metric"`
	Current contracts.Reading    `json:"current"`
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	PercentileResult
}

// Service ranks a stock's latest metric value against its own history
// ⭐ SSOT: 백분위 계산 진입점은 여기서만
type Service struct {
	source   SeriesSource
	registry *Registry
	years    int
	logger   *logger.Logger
}

// NewService creates a ranking service
func NewService(source SeriesSource, registry *Registry, lookbackYears int, log *logger.Logger) *Service {
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}
	return &Service{
		source:   source,
		registry: registry,
		years:    lookbackYears,
		logger:   log,
	}
}

// Rank ranks the most recent valid value of metric within the lookback window ending at asOf
func (s *Service) Rank(ctx context.Context, code string, metric contracts.MetricKind, asOf time.Time) (Ranking, error) {
	return s.RankWindow(ctx, code, metric, asOf, s.years)
}

// RankWindow is Rank with an explicit lookback in years
func (s *Service) RankWindow(ctx context.Context, code string, metric contracts.MetricKind, asOf time.Time, years int) (Ranking, error) {
	orientation, err := s.registry.Orientation(metric)
	if err != nil {
		return Ranking{}, err
	}
	if years <= 0 {
		years = s.years
	}

	from := asOf.AddDate(-years, 0, 0)
	series, err := s.source.GetSeries(ctx, code, metric, from, asOf)
	if err != nil {
		return Ranking{}, fmt.Errorf("get %s series for %s: %w", metric, code, err)
	}

	ranking := Ranking{
		Code:   code,
		Metric: metric,
		From:   from,
		To:     asOf,
		PercentileResult: PercentileResult{
			Band:        BandNoData,
			Orientation: orientation,
		},
	}

	latest, ok := series.Latest()
	if !ok {
		return ranking, nil
	}

	result, err := ComputePercentile(series, latest.Value, orientation)
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"code":   code,
			"metric": metric,
		}).Warn("Rejected malformed series")
		return Ranking{}, err
	}

	ranking.Current = contracts.Present(latest.Value)
	ranking.PercentileResult = result
	return ranking, nil
}
