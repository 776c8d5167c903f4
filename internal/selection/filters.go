package selection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/valuescope/internal/contracts"
)

// filterAliases maps short names used by the dashboard's filter panel
var filterAliases = map[string]contracts.MetricKind{
	"pe": contracts.MetricPE,
}

// QueryFromFilters converts the filter-panel form ("pe_max": 20,
// "dividend_yield_min": 5) into a query. "_min" maps to GTE, "_max" to LTE.
// Conditions are ordered by key so the same panel always yields the same query.
func QueryFromFilters(filters map[string]float64) (contracts.ScreenerQuery, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := contracts.ScreenerQuery{Conditions: make([]contracts.Condition, 0, len(keys))}
	for _, key := range keys {
		cond, err := parseFilter(key, filters[key])
		if err != nil {
			return contracts.ScreenerQuery{}, err
		}
		query.Conditions = append(query.Conditions, cond)
	}
	return query, nil
}

func parseFilter(key string, value float64) (contracts.Condition, error) {
	var name string
	var cmp contracts.Comparator

	switch {
	case strings.HasSuffix(key, "_min"):
		name, cmp = strings.TrimSuffix(key, "_min"), contracts.GTE
	case strings.HasSuffix(key, "_max"):
		name, cmp = strings.TrimSuffix(key, "_max"), contracts.LTE
	default:
		return contracts.Condition{}, fmt.Errorf("%w: filter %q must end in _min or _max", contracts.ErrInvalidQuery, key)
	}

	metric, ok := filterAliases[name]
	if !ok {
		metric = contracts.MetricKind(name)
	}
	if !metric.Valid() {
		return contracts.Condition{}, fmt.Errorf("%w: unknown metric in filter %q", contracts.ErrInvalidQuery, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return contracts.Condition{}, fmt.Errorf("%w: filter %q must be finite", contracts.ErrInvalidQuery, key)
	}

	return contracts.Condition{Metric: metric, Comparator: cmp, Threshold: value}, nil
}
