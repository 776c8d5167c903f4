package metricstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/config"
	"github.com/wonny/valuescope/pkg/database"
	"github.com/wonny/valuescope/pkg/logger"
)

func TestPostgres_RejectsDerivedSeries(t *testing.T) {
	p := NewPostgres(nil, 10, logger.Nop())
	_, err := p.GetSeries(context.Background(), "600519", contracts.MetricPEPercentile, day(1), day(2))
	assert.ErrorIs(t, err, contracts.ErrInvalidQuery)
}

func TestColumns_CoverStoredMetrics(t *testing.T) {
	for _, m := range contracts.AllMetrics() {
		_, stored := columns[m]
		_, isDerived := derived[m]
		assert.True(t, stored != isDerived, "metric %s must be stored xor derived", m)
	}
}

func TestPostgres_Snapshot(t *testing.T) {
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))

	store := NewPostgres(db.Pool, 10, logger.Nop())
	_, err = store.GetSnapshot(ctx, "__missing__")
	assert.ErrorIs(t, err, contracts.ErrStockNotFound)

	_, err = store.ListCodes(ctx)
	assert.NoError(t, err)
}
