package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRun is returned when no screening run has been stored for a preset
var ErrNoRun = errors.New("no screening run found")

// Run is one stored screening outcome
type Run struct {
	ID         int64          `json:"id"`
	PresetID   string         `json:"preset_id"`
	RunAt      time.Time      `json:"run_at"`
	Passed     []string       `json:"passed"`
	Filtered   map[string]int `json:"filtered"`
	TotalInput int            `json:"total_input"`
}

// Repository handles screening run persistence
// ⭐ SSOT: 스크리닝 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores the result of screening the universe with a preset
func (r *Repository) SaveRun(ctx context.Context, presetID string, runAt time.Time, result *Result) (int64, error) {
	filteredJSON, err := json.Marshal(result.Filtered)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal filtered: %w", err)
	}

	query := `
		INSERT INTO valuation.screening_runs (
			preset_id, run_at, passed_stocks, filtered, total_input, total_passed
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		presetID, runAt, result.Passed, filteredJSON, result.TotalInput, len(result.Passed),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save screening run: %w", err)
	}

	return id, nil
}

// LatestRun returns the most recent run for a preset
func (r *Repository) LatestRun(ctx context.Context, presetID string) (*Run, error) {
	query := `
		SELECT id, preset_id, run_at, passed_stocks, filtered, total_input
		FROM valuation.screening_runs
		WHERE preset_id = $1
		ORDER BY run_at DESC, id DESC
		LIMIT 1
	`

	var run Run
	var filteredJSON []byte

	err := r.pool.QueryRow(ctx, query, presetID).Scan(
		&run.ID, &run.PresetID, &run.RunAt, &run.Passed, &filteredJSON, &run.TotalInput,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w for preset %q", ErrNoRun, presetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screening run: %w", err)
	}

	if err := json.Unmarshal(filteredJSON, &run.Filtered); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filtered: %w", err)
	}

	return &run, nil
}
