package contracts

import (
	"fmt"
	"math"
	"strings"
)

// Comparator is the closed set of threshold comparisons
type Comparator string

const (
	GT  Comparator = "gt"
	LT  Comparator = "lt"
	GTE Comparator = "gte"
	LTE Comparator = "lte"
	EQ  Comparator = "eq"
)

// Valid reports whether c is one of the five comparators
func (c Comparator) Valid() bool {
	switch c {
	case GT, LT, GTE, LTE, EQ:
		return true
	}
	return false
}

// Symbol returns the mathematical symbol for c
func (c Comparator) Symbol() string {
	switch c {
	case GT:
		return ">"
	case LT:
		return "<"
	case GTE:
		return ">="
	case LTE:
		return "<="
	case EQ:
		return "=="
	}
	return "?"
}

// ParseComparator converts a string into a Comparator
func ParseComparator(s string) (Comparator, error) {
	c := Comparator(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown comparator %q", ErrInvalidQuery, s)
	}
	return c, nil
}

// Condition is a single (metric, comparator, threshold) predicate
type Condition struct {
	Metric     MetricKind `json:"metric" yaml:"metric"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Threshold  float64    `json:"threshold" yaml:"threshold"`
}

// Validate checks that the condition references a known metric and comparator
// and carries a finite threshold
func (c Condition) Validate() error {
	if !c.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidQuery, c.Metric)
	}
	if !c.Comparator.Valid() {
		return fmt.Errorf("%w: unknown comparator %q", ErrInvalidQuery, c.Comparator)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("%w: threshold for %s must be finite", ErrInvalidQuery, c.Metric)
	}
	return nil
}

// String renders the condition as "pe_ttm < 20"
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Comparator.Symbol(), c.Threshold)
}

// ScreenerQuery is a set of conditions combined with AND
type ScreenerQuery struct {
	Conditions []Condition `json:"conditions" yaml:"conditions"`

	// Markets and Industries restrict the universe; empty admits every stock
	Markets    []string `json:"markets,omitempty" yaml:"markets,omitempty"`
	Industries []string `json:"industries,omitempty" yaml:"industries,omitempty"`
}

// Validate validates every condition and scope entry in the query
func (q ScreenerQuery) Validate() error {
	for i, c := range q.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for _, m := range q.Markets {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: empty market", ErrInvalidQuery)
		}
	}
	for _, ind := range q.Industries {
		if strings.TrimSpace(ind) == "" {
			return fmt.Errorf("%w: empty industry", ErrInvalidQuery)
		}
	}
	return nil
}

// IsEmpty reports whether the query applies no filters
func (q ScreenerQuery) IsEmpty() bool {
	return len(q.Conditions) == 0 && len(q.Markets) == 0 && len(q.Industries) == 0
}

// Clone returns a copy that shares no backing array with q
func (q ScreenerQuery) Clone() ScreenerQuery {
	out := ScreenerQuery{Conditions: make([]Condition, len(q.Conditions))}
	copy(out.Conditions, q.Conditions)
	if q.Markets != nil {
		out.Markets = append([]string(nil), q.Markets...)
	}
	if q.Industries != nil {
		out.Industries = append([]string(nil), q.Industries...)
	}
	return out
}

// Preset is a named, versioned screener query shipped with the system
type Preset struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Version     int           `json:"version" yaml:"version"`
	Query       ScreenerQuery `json:"query" yaml:"query"`
}
