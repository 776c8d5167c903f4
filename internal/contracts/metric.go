package contracts

import (
	"fmt"
	"math"
	"time"
)

// MetricKind identifies a trackable stock metric
// ⭐ SSOT: 지표 식별자는 여기서만 정의
type MetricKind string

const (
	MetricPE            MetricKind = "pe_ttm"
	MetricPB            MetricKind = "pb"
	MetricDividendYield MetricKind = "dividend_yield"
	MetricPrice         MetricKind = "price"
	MetricROE           MetricKind = "roe"
	MetricRevenueGrowth MetricKind = "revenue_growth"
	MetricProfitGrowth  MetricKind = "profit_growth"
	MetricMarketCap     MetricKind = "market_cap"

	// Derived from the Percentile Engine over the stock's own history
	MetricPEPercentile MetricKind = "pe_percentile"
	MetricPBPercentile MetricKind = "pb_percentile"
)

var knownMetrics = map[MetricKind]struct{}{
	MetricPE:            {},
	MetricPB:            {},
	MetricDividendYield: {},
	MetricPrice:         {},
	MetricROE:           {},
	MetricRevenueGrowth: {},
	MetricProfitGrowth:  {},
	MetricMarketCap:     {},
	MetricPEPercentile:  {},
	MetricPBPercentile:  {},
}

// AllMetrics returns every known metric kind in a stable order
func AllMetrics() []MetricKind {
	return []MetricKind{
		MetricPE, MetricPB, MetricDividendYield, MetricPrice, MetricROE,
		MetricRevenueGrowth, MetricProfitGrowth, MetricMarketCap,
		MetricPEPercentile, MetricPBPercentile,
	}
}

// Valid reports whether m is a known metric kind
func (m MetricKind) Valid() bool {
	_, ok := knownMetrics[m]
	return ok
}

// ParseMetricKind converts a string into a known MetricKind
func ParseMetricKind(s string) (MetricKind, error) {
	m := MetricKind(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidQuery, s)
	}
	return m, nil
}

// Reading is an optional metric value; Valid=false means absent
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Present returns a present reading. Non-finite values are treated as absent.
func Present(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// Absent returns an absent reading
func Absent() Reading {
	return Reading{}
}

// DataPoint is one (date, value) observation; Valid=false marks a sparse gap
type DataPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Valid bool      `json:"valid"`
}

// MetricSeries is the ordered history of one (stock, metric) pair
type MetricSeries struct {
	Code   string      `json:"code"`
	Metric MetricKind  `json:"metric"`
	Points []DataPoint `json:"points"`
}

// Values returns the valid values in date order
func (s MetricSeries) Values() []float64 {
	values := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Valid {
			values = append(values, p.Value)
		}
	}
	return values
}

// Latest returns the most recent valid observation
func (s MetricSeries) Latest() (DataPoint, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if s.Points[i].Valid {
			return s.Points[i], true
		}
	}
	return DataPoint{}, false
}

// MetricSnapshot maps metric kinds to current values for one stock.
// A missing key means the metric is absent.
type MetricSnapshot struct {
	Code     string                 `json:"code"`
	Market   string                 `json:"market,omitempty"`
	Industry string                 `json:"industry,omitempty"`
	AsOf     time.Time              `json:"as_of"`
	Values   map[MetricKind]float64 `json:"values"`
}

// NewSnapshot creates an empty snapshot for a stock
func NewSnapshot(code string, asOf time.Time) MetricSnapshot {
	return MetricSnapshot{
		Code:   code,
		AsOf:   asOf,
		Values: make(map[MetricKind]float64),
	}
}

// Get returns the reading for a metric
func (s MetricSnapshot) Get(m MetricKind) Reading {
	v, ok := s.Values[m]
	if !ok {
		return Absent()
	}
	return Present(v)
}

// Set stores a present value. Non-finite values are dropped.
func (s MetricSnapshot) Set(m MetricKind, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		delete(s.Values, m)
		return
	}
	s.Values[m] = v
}
