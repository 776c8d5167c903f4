package valuation

import (
	"fmt"

	"github.com/wonny/valuescope/internal/contracts"
)

// MetricProfile describes how a metric is ranked
type MetricProfile struct {
	Metric      contracts.MetricKind `json:"metric"`
	Orientation Orientation          `json:"orientation"`
	// Banded is false for metrics the dashboard shows as raw values only
	Banded bool `json:"banded"`
}

// Registry holds the per-metric orientation. It is immutable after construction.
type Registry struct {
	profiles map[contracts.MetricKind]MetricProfile
}

// DefaultRegistry returns the orientations used by the dashboard
func DefaultRegistry() *Registry {
	return NewRegistry([]MetricProfile{
		{Metric: contracts.MetricPE, Orientation: LowerIsCheaper, Banded: true},
		{Metric: contracts.MetricPB, Orientation: LowerIsCheaper, Banded: true},
		{Metric: contracts.MetricPrice, Orientation: LowerIsCheaper, Banded: true},
		{Metric: contracts.MetricMarketCap, Orientation: LowerIsCheaper, Banded: false},
		{Metric: contracts.MetricDividendYield, Orientation: HigherIsCheaper, Banded: false},
		{Metric: contracts.MetricROE, Orientation: HigherIsCheaper, Banded: false},
		{Metric: contracts.MetricRevenueGrowth, Orientation: HigherIsCheaper, Banded: false},
		{Metric: contracts.MetricProfitGrowth, Orientation: HigherIsCheaper, Banded: false},
	})
}

// NewRegistry builds a registry from explicit profiles; later entries win
func NewRegistry(profiles []MetricProfile) *Registry {
	r := &Registry{profiles: make(map[contracts.MetricKind]MetricProfile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.Metric] = p
	}
	return r
}

// Profile returns the profile for a metric
func (r *Registry) Profile(m contracts.MetricKind) (MetricProfile, error) {
	p, ok := r.profiles[m]
	if !ok {
		return MetricProfile{}, fmt.Errorf("%w: metric %q has no percentile profile", contracts.ErrInvalidQuery, m)
	}
	return p, nil
}

// Orientation returns the orientation for a metric
func (r *Registry) Orientation(m contracts.MetricKind) (Orientation, error) {
	p, err := r.Profile(m)
	if err != nil {
		return "", err
	}
	return p.Orientation, nil
}
