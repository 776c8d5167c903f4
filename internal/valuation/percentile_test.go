package valuation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescope/internal/contracts"
)

func seriesOf(values ...float64) contracts.MetricSeries {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]contracts.DataPoint, len(values))
	for i, v := range values {
		points[i] = contracts.DataPoint{Date: start.AddDate(0, 0, i), Value: v, Valid: true}
	}
	return contracts.MetricSeries{Code: "600519", Metric: contracts.MetricPE, Points: points}
}

func TestComputePercentile_MaxIsHundred(t *testing.T) {
	s := seriesOf(12, 30, 8, 25, 17)

	result, err := ComputePercentile(s, 30, LowerIsCheaper)
	require.NoError(t, err)
	require.True(t, result.HasRank())

	assert.Equal(t, 100.0, *result.Rank)
	assert.Equal(t, BandOvervalued, result.Band)
	assert.Equal(t, 5, result.SampleSize)
}

func TestComputePercentile_MinIsAtMostOneOverN(t *testing.T) {
	s := seriesOf(12, 30, 8, 25, 17)

	result, err := ComputePercentile(s, 8, LowerIsCheaper)
	require.NoError(t, err)

	assert.LessOrEqual(t, *result.Rank, 100.0*(1.0/5.0))
	assert.Equal(t, BandSlightlyLow, result.Band) // exactly 20 falls in [20,50)
}

func TestComputePercentile_TiesAreInclusive(t *testing.T) {
	s := seriesOf(10, 10, 10, 20)

	result, err := ComputePercentile(s, 10, LowerIsCheaper)
	require.NoError(t, err)
	assert.Equal(t, 75.0, *result.Rank)
}

func TestComputePercentile_InversionIsHundredMinusRank(t *testing.T) {
	series := []contracts.MetricSeries{
		seriesOf(1, 2, 3),
		seriesOf(5.5, 4.1, 6.7, 3.3, 9.9, 2.2, 7.0),
		seriesOf(42),
	}
	currents := []float64{0, 2, 3.3, 5, 6.7, 100}

	for _, s := range series {
		for _, v := range currents {
			low, err := ComputePercentile(s, v, LowerIsCheaper)
			require.NoError(t, err)
			high, err := ComputePercentile(s, v, HigherIsCheaper)
			require.NoError(t, err)

			assert.Equal(t, 100-*low.Rank, *high.Rank, "series=%v current=%v", s.Values(), v)
		}
	}
}

func TestComputePercentile_HigherIsCheaperMapsCheapToUndervalued(t *testing.T) {
	// Highest dividend yield in history is the cheapest
	s := seriesOf(1.0, 2.0, 3.0, 4.0, 6.0)

	result, err := ComputePercentile(s, 6.0, HigherIsCheaper)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *result.Rank)
	assert.Equal(t, BandUndervalued, result.Band)
}

func TestComputePercentile_EmptySeriesIsNoData(t *testing.T) {
	result, err := ComputePercentile(contracts.MetricSeries{}, 15, LowerIsCheaper)
	require.NoError(t, err)

	assert.False(t, result.HasRank())
	assert.Equal(t, BandNoData, result.Band)
	assert.NotEqual(t, BandFair, result.Band)
}

func TestComputePercentile_AbsentPointsAreIgnored(t *testing.T) {
	s := seriesOf(10, 20, 30, 40)
	s.Points[1].Valid = false
	s.Points[1].Value = math.NaN() // absent points are not validated

	result, err := ComputePercentile(s, 30, LowerIsCheaper)
	require.NoError(t, err)
	assert.Equal(t, 3, result.SampleSize)
	assert.InDelta(t, 200.0/3.0, *result.Rank, 1e-12)
}

func TestComputePercentile_OnlyAbsentPointsIsNoData(t *testing.T) {
	s := seriesOf(10, 20)
	s.Points[0].Valid = false
	s.Points[1].Valid = false

	result, err := ComputePercentile(s, 15, LowerIsCheaper)
	require.NoError(t, err)
	assert.Nil(t, result.Rank)
	assert.Equal(t, BandNoData, result.Band)
}

func TestComputePercentile_InvalidSeries(t *testing.T) {
	tests := []struct {
		name    string
		series  contracts.MetricSeries
		current float64
	}{
		{"nan point", seriesOf(1, math.NaN(), 3), 2},
		{"inf point", seriesOf(1, math.Inf(1), 3), 2},
		{"non-finite current", seriesOf(1, 2, 3), math.Inf(-1)},
		{"duplicate date", func() contracts.MetricSeries {
			s := seriesOf(1, 2)
			s.Points[1].Date = s.Points[0].Date
			return s
		}(), 1},
		{"decreasing date", func() contracts.MetricSeries {
			s := seriesOf(1, 2)
			s.Points[1].Date = s.Points[0].Date.AddDate(0, 0, -1)
			return s
		}(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePercentile(tt.series, tt.current, LowerIsCheaper)
			assert.True(t, errors.Is(err, contracts.ErrInvalidSeries), "got %v", err)
		})
	}
}

func TestComputePercentile_UnknownOrientation(t *testing.T) {
	_, err := ComputePercentile(seriesOf(1), 1, Orientation("sideways"))
	assert.Error(t, err)
}

func TestComputePercentile_Deterministic(t *testing.T) {
	s := seriesOf(3.1, 4.7, 2.2, 9.4, 5.5, 6.1)

	first, err := ComputePercentile(s, 5.5, LowerIsCheaper)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputePercentile(s, 5.5, LowerIsCheaper)
		require.NoError(t, err)
		assert.Equal(t, *first.Rank, *again.Rank)
		assert.Equal(t, first.Band, again.Band)
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		rank float64
		want Band
	}{
		{0, BandUndervalued},
		{19.999, BandUndervalued},
		{20, BandSlightlyLow},
		{49.99, BandSlightlyLow},
		{50, BandFair},
		{79.99, BandFair},
		{80, BandSlightlyHigh},
		{89.99, BandSlightlyHigh},
		{90, BandOvervalued},
		{100, BandOvervalued},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.rank), "rank=%v", tt.rank)
	}
}
