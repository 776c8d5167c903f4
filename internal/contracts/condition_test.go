package contracts

import (
	"errors"
	"math"
	"testing"
)

func TestCondition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{"valid", Condition{Metric: MetricPE, Comparator: LT, Threshold: 20}, false},
		{"unknown metric", Condition{Metric: "eps", Comparator: LT, Threshold: 1}, true},
		{"unknown comparator", Condition{Metric: MetricPB, Comparator: "between", Threshold: 1}, true},
		{"nan threshold", Condition{Metric: MetricPB, Comparator: GT, Threshold: math.NaN()}, true},
		{"inf threshold", Condition{Metric: MetricPB, Comparator: GT, Threshold: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Errorf("Validate() = %v, want ErrInvalidQuery", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestCondition_String(t *testing.T) {
	c := Condition{Metric: MetricDividendYield, Comparator: GTE, Threshold: 5.5}
	if got := c.String(); got != "dividend_yield >= 5.5" {
		t.Errorf("String() = %q", got)
	}
}

func TestScreenerQuery_CloneIsIndependent(t *testing.T) {
	q := ScreenerQuery{Conditions: []Condition{{Metric: MetricPE, Comparator: LTE, Threshold: 20}}}
	c := q.Clone()
	c.Conditions[0].Threshold = 99

	if q.Conditions[0].Threshold != 20 {
		t.Errorf("Clone shares storage with the original")
	}
}

func TestScreenerQuery_ScopeLists(t *testing.T) {
	q := ScreenerQuery{Markets: []string{"A股"}, Industries: []string{"银行"}}
	if q.IsEmpty() {
		t.Errorf("IsEmpty() = true for a market/industry scope")
	}

	c := q.Clone()
	c.Markets[0] = "港股"
	if q.Markets[0] != "A股" {
		t.Errorf("Clone shares market storage with the original")
	}

	if err := (ScreenerQuery{Markets: []string{" "}}).Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Validate() with blank market = %v, want ErrInvalidQuery", err)
	}
	if err := (ScreenerQuery{Industries: []string{""}}).Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Validate() with blank industry = %v, want ErrInvalidQuery", err)
	}
}

func TestScreenerQuery_ValidateReportsIndex(t *testing.T) {
	q := ScreenerQuery{Conditions: []Condition{
		{Metric: MetricPE, Comparator: LTE, Threshold: 20},
		{Metric: "unknown", Comparator: LTE, Threshold: 20},
	}}

	err := q.Validate()
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("Validate() = %v, want ErrInvalidQuery", err)
	}
}

func TestParseComparator(t *testing.T) {
	for _, s := range []string{"gt", "lt", "gte", "lte", "eq"} {
		if _, err := ParseComparator(s); err != nil {
			t.Errorf("ParseComparator(%q) error: %v", s, err)
		}
	}
	if _, err := ParseComparator("ne"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("ParseComparator(ne) = %v, want ErrInvalidQuery", err)
	}
}
