package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseMetricKind(t *testing.T) {
	for _, m := range AllMetrics() {
		got, err := ParseMetricKind(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMetricKind(%q) = %v, %v", m, got, err)
		}
	}

	if _, err := ParseMetricKind("eps"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("ParseMetricKind(eps) = %v, want ErrInvalidQuery", err)
	}
}

func TestPresent_NonFiniteIsAbsent(t *testing.T) {
	if Present(math.NaN()).Valid {
		t.Error("NaN reading should be absent")
	}
	if Present(math.Inf(-1)).Valid {
		t.Error("-Inf reading should be absent")
	}
	if r := Present(1.5); !r.Valid || r.Value != 1.5 {
		t.Errorf("Present(1.5) = %+v", r)
	}
}

func TestMetricSnapshot_GetSet(t *testing.T) {
	snap := NewSnapshot("600519", time.Now())
	snap.Set(MetricPE, 18)
	snap.Set(MetricPB, math.NaN())

	if r := snap.Get(MetricPE); !r.Valid || r.Value != 18 {
		t.Errorf("Get(pe) = %+v", r)
	}
	if snap.Get(MetricPB).Valid {
		t.Error("NaN value should not be stored")
	}
	if snap.Get(MetricDividendYield).Valid {
		t.Error("missing metric should be absent")
	}
}

func TestMetricSeries_ValuesAndLatest(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := MetricSeries{Points: []DataPoint{
		{Date: d, Value: 10, Valid: true},
		{Date: d.AddDate(0, 0, 1), Valid: false},
		{Date: d.AddDate(0, 0, 2), Value: 12, Valid: true},
		{Date: d.AddDate(0, 0, 3), Valid: false},
	}}

	values := s.Values()
	if len(values) != 2 || values[0] != 10 || values[1] != 12 {
		t.Errorf("Values() = %v", values)
	}

	latest, ok := s.Latest()
	if !ok || latest.Value != 12 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}
