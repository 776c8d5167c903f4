package selection

import (
	"sort"

	"github.com/wonny/valuescope/internal/contracts"
)

// SortSpec is an optional presentation order for screening results
type SortSpec struct {
	Metric     contracts.MetricKind `json:"metric"`
	Descending bool                 `json:"descending"`
	Limit      int                  `json:"limit"`
}

// Row is one screened stock with its snapshot, as returned to callers
type Row struct {
	Code   string                           `json:"code"`
	Values map[contracts.MetricKind]float64 `json:"values"`
}

// Rank orders passed codes by spec.Metric. Stocks missing the metric sort last;
// ties keep input order. A zero spec leaves the order unchanged.
func Rank(passed []string, snapshots map[string]contracts.MetricSnapshot, spec SortSpec) []Row {
	rows := make([]Row, 0, len(passed))
	for _, code := range passed {
		rows = append(rows, Row{Code: code, Values: snapshots[code].Values})
	}

	if spec.Metric != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			a := snapshots[rows[i].Code].Get(spec.Metric)
			b := snapshots[rows[j].Code].Get(spec.Metric)
			switch {
			case !a.Valid:
				return false
			case !b.Valid:
				return true
			case spec.Descending:
				return a.Value > b.Value
			default:
				return a.Value < b.Value
			}
		})
	}

	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}
	return rows
}
