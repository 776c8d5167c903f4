// Package rules evaluates threshold conditions against metric readings.
//
// Evaluation is fail-closed: an absent reading never satisfies a condition,
// so a missing metric neither passes a screen nor fires an alert.
//
// EQ compares with exact IEEE-754 equality. It is fragile for continuous
// metrics such as PE or dividend yield and is kept only for discrete values.
package rules

import (
	"slices"

	"github.com/wonny/valuescope/internal/contracts"
)

// Evaluate reports whether v satisfies c
func Evaluate(c contracts.Condition, v contracts.Reading) bool {
	if !v.Valid {
		return false
	}
	return Compare(c.Comparator, v.Value, c.Threshold)
}

// EvaluateSnapshot evaluates c against the snapshot's value for c.Metric
func EvaluateSnapshot(c contracts.Condition, snap contracts.MetricSnapshot) bool {
	return Evaluate(c, snap.Get(c.Metric))
}

// EvaluateAll reports whether every condition holds (AND). An empty set holds.
func EvaluateAll(conds []contracts.Condition, snap contracts.MetricSnapshot) bool {
	for _, c := range conds {
		if !EvaluateSnapshot(c, snap) {
			return false
		}
	}
	return true
}

// FirstFailing returns the first condition that does not hold
func FirstFailing(conds []contracts.Condition, snap contracts.MetricSnapshot) (contracts.Condition, bool) {
	for _, c := range conds {
		if !EvaluateSnapshot(c, snap) {
			return c, true
		}
	}
	return contracts.Condition{}, false
}

// OutOfScope reports whether the market or industry lists of q exclude snap,
// naming the rejecting field. A stock with an unknown market or industry is
// excluded whenever that list is set.
func OutOfScope(q contracts.ScreenerQuery, snap contracts.MetricSnapshot) (string, bool) {
	if len(q.Markets) > 0 && !slices.Contains(q.Markets, snap.Market) {
		return "market", true
	}
	if len(q.Industries) > 0 && !slices.Contains(q.Industries, snap.Industry) {
		return "industry", true
	}
	return "", false
}

// Compare applies comparator cmp to (value, threshold).
// An unknown comparator never holds.
func Compare(cmp contracts.Comparator, value, threshold float64) bool {
	switch cmp {
	case contracts.GT:
		return value > threshold
	case contracts.LT:
		return value < threshold
	case contracts.GTE:
		return value >= threshold
	case contracts.LTE:
		return value <= threshold
	case contracts.EQ:
		return value == threshold
	}
	return false
}
