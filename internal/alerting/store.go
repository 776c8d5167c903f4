package alerting

import (
	"context"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
)

// RuleStore persists alert rules.
// Get/Update/Delete return contracts.ErrRuleNotFound for unknown ids.
type RuleStore interface {
	Create(ctx context.Context, rule *contracts.AlertRule) error
	Get(ctx context.Context, id string) (*contracts.AlertRule, error)
	ListByOwner(ctx context.Context, owner string) ([]*contracts.AlertRule, error)
	ListEnabled(ctx context.Context) ([]*contracts.AlertRule, error)
	Update(ctx context.Context, rule *contracts.AlertRule) error
	Delete(ctx context.Context, id string) error

	// CompareAndSetState moves an enabled rule from one state to another and
	// reports whether it did. Moving to TRIGGERED also records at as the
	// last trigger time.
	CompareAndSetState(ctx context.Context, id string, from, to contracts.AlertState, at time.Time) (bool, error)
}
