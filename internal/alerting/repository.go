package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/valuescope/internal/contracts"
)

// Repository is the Postgres RuleStore
// ⭐ SSOT: 알림 규칙 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert rule repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `
	id, owner, stock_code, metric, comparator, threshold, channel,
	enabled, state, last_triggered_at, created_at, updated_at
`

func scanRule(row pgx.Row) (*contracts.AlertRule, error) {
	var r contracts.AlertRule
	var metric, comparator, channel, state string

	err := row.Scan(
		&r.ID, &r.Owner, &r.StockCode, &metric, &comparator, &r.Condition.Threshold, &channel,
		&r.Enabled, &state, &r.LastTriggeredAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Condition.Metric = contracts.MetricKind(metric)
	r.Condition.Comparator = contracts.Comparator(comparator)
	r.Channel = contracts.Channel(channel)
	r.State = contracts.AlertState(state)
	return &r, nil
}

// Create inserts a new rule
func (r *Repository) Create(ctx context.Context, rule *contracts.AlertRule) error {
	query := `
		INSERT INTO valuation.alert_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Owner, rule.StockCode,
		string(rule.Condition.Metric), string(rule.Condition.Comparator), rule.Condition.Threshold,
		string(rule.Channel), rule.Enabled, string(rule.State), rule.LastTriggeredAt,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert rule: %w", err)
	}
	return nil
}

// Get returns one rule
func (r *Repository) Get(ctx context.Context, id string) (*contracts.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM valuation.alert_rules WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return rule, nil
}

// ListByOwner returns an owner's rules, oldest first
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]*contracts.AlertRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM valuation.alert_rules
		WHERE owner = $1
		ORDER BY created_at, id
	`
	return r.list(ctx, query, owner)
}

// ListEnabled returns every enabled rule, oldest first
func (r *Repository) ListEnabled(ctx context.Context) ([]*contracts.AlertRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM valuation.alert_rules
		WHERE enabled
		ORDER BY created_at, id
	`
	return r.list(ctx, query)
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]*contracts.AlertRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*contracts.AlertRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rules, nil
}

// Update overwrites the editable fields and state of a rule
func (r *Repository) Update(ctx context.Context, rule *contracts.AlertRule) error {
	query := `
		UPDATE valuation.alert_rules SET
			stock_code = $2, metric = $3, comparator = $4, threshold = $5, channel = $6,
			enabled = $7, state = $8, last_triggered_at = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		rule.ID, rule.StockCode,
		string(rule.Condition.Metric), string(rule.Condition.Comparator), rule.Condition.Threshold,
		string(rule.Channel), rule.Enabled, string(rule.State), rule.LastTriggeredAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM valuation.alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrRuleNotFound
	}
	return nil
}

// CompareAndSetState implements RuleStore with a single conditional UPDATE
func (r *Repository) CompareAndSetState(ctx context.Context, id string, from, to contracts.AlertState, at time.Time) (bool, error) {
	query := `
		UPDATE valuation.alert_rules SET
			state = $3,
			updated_at = $4,
			last_triggered_at = CASE WHEN $3 = 'triggered' THEN $4 ELSE last_triggered_at END
		WHERE id = $1 AND state = $2 AND enabled
	`

	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("failed to swap alert state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
