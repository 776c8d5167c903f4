package contracts

import "errors"

// Error taxonomy shared by every engine component.
// Missing data is not an error: it is an absent Reading.
var (
	// ErrInvalidSeries marks malformed history (non-finite values, unordered dates)
	ErrInvalidSeries = errors.New("invalid series")

	// ErrInvalidQuery marks a condition referencing an unknown metric or comparator
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUpstreamTimeout marks a Metric Store or Alert Sink call that exceeded its deadline
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrDuplicateFire marks an attempt to fire a rule twice without an intervening false state
	ErrDuplicateFire = errors.New("duplicate fire guard")

	// ErrInvalidRule marks a malformed alert rule
	ErrInvalidRule = errors.New("invalid alert rule")

	// ErrRuleNotFound is returned for unknown rules and for rules owned by someone else
	ErrRuleNotFound = errors.New("alert rule not found")

	// ErrPresetNotFound is returned for unknown preset ids
	ErrPresetNotFound = errors.New("preset not found")

	// ErrStockNotFound is returned when the Metric Store knows nothing about a stock
	ErrStockNotFound = errors.New("stock not found")
)
