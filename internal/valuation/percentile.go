package valuation

import (
	"fmt"
	"math"

	"github.com/wonny/valuescope/internal/contracts"
)

// Orientation states which direction of a metric is "cheap"
type Orientation string

const (
	// LowerIsCheaper applies to PE/PB-style metrics
	LowerIsCheaper Orientation = "lower_is_cheaper"
	// HigherIsCheaper applies to yield-style metrics
	HigherIsCheaper Orientation = "higher_is_cheaper"
)

// Valid reports whether o is a known orientation
func (o Orientation) Valid() bool {
	return o == LowerIsCheaper || o == HigherIsCheaper
}

// PercentileResult is the percentile rank of a value against its own history.
// Rank is nil when the history holds no valid points ("no data").
type PercentileResult struct {
	Rank        *float64    `json:"rank"`
	Band        Band        `json:"band"`
	Orientation Orientation `json:"orientation"`
	SampleSize  int         `json:"sample_size"`
}

// HasRank reports whether a rank could be computed
func (r PercentileResult) HasRank() bool {
	return r.Rank != nil
}

// ComputePercentile ranks current against the valid points of series.
//
// rank = count(v <= current) * 100 / count(v), ties counted inclusively.
// HigherIsCheaper inverts the rank to 100 - rank so that cheap always maps
// toward BandUndervalued. An empty history yields Rank == nil and BandNoData.
func ComputePercentile(series contracts.MetricSeries, current float64, orientation Orientation) (PercentileResult, error) {
	if !orientation.Valid() {
		return PercentileResult{}, fmt.Errorf("%w: unknown orientation %q", contracts.ErrInvalidQuery, orientation)
	}
	if err := ValidateSeries(series); err != nil {
		return PercentileResult{}, err
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return PercentileResult{}, fmt.Errorf("%w: current value is not finite", contracts.ErrInvalidSeries)
	}

	total := 0
	atOrBelow := 0
	for _, p := range series.Points {
		if !p.Valid {
			continue
		}
		total++
		if p.Value <= current {
			atOrBelow++
		}
	}

	result := PercentileResult{
		Band:        BandNoData,
		Orientation: orientation,
		SampleSize:  total,
	}
	if total == 0 {
		return result, nil
	}

	rank := float64(atOrBelow) * 100 / float64(total)
	if orientation == HigherIsCheaper {
		rank = 100 - rank
	}

	result.Rank = &rank
	result.Band = BandFor(rank)
	return result, nil
}

// ValidateSeries checks that valid points are finite and dates strictly increase
func ValidateSeries(series contracts.MetricSeries) error {
	for i, p := range series.Points {
		if p.Valid && (math.IsNaN(p.Value) || math.IsInf(p.Value, 0)) {
			return fmt.Errorf("%w: point %d (%s) is not finite",
				contracts.ErrInvalidSeries, i, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !p.Date.After(series.Points[i-1].Date) {
			return fmt.Errorf("%w: dates not strictly increasing at point %d (%s)",
				contracts.ErrInvalidSeries, i, p.Date.Format("2006-01-02"))
		}
	}
	return nil
}
