package metricstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// DefaultSnapshotTimeout bounds one GetSnapshot call when the caller passes none
const DefaultSnapshotTimeout = 5 * time.Second

// LoadUniverse fetches a snapshot for every listed stock.
// Stocks without stored metrics, and stocks whose snapshot times out or fails,
// are left out of the batch. Only cancellation of ctx aborts the load.
func LoadUniverse(ctx context.Context, store contracts.MetricStore, timeout time.Duration, log *logger.Logger) ([]contracts.MetricSnapshot, error) {
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}

	codes, err := store.ListCodes(ctx)
	if err != nil {
		return nil, err
	}

	universe := make([]contracts.MetricSnapshot, 0, len(codes))
	missing, skipped := 0, 0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load universe: %w", err)
		}

		snap, err := fetchSnapshot(ctx, store, code, timeout)
		switch {
		case err == nil:
			universe = append(universe, snap)
		case errors.Is(err, contracts.ErrStockNotFound):
			missing++
		case ctx.Err() != nil:
			return nil, fmt.Errorf("load universe: %w", ctx.Err())
		default:
			skipped++
			entry := log.WithError(err).WithField("stock_code", code)
			if errors.Is(err, contracts.ErrUpstreamTimeout) {
				entry.Warn("Snapshot timed out, stock skipped")
			} else {
				entry.Error("Failed to load snapshot, stock skipped")
			}
		}
	}

	log.WithFields(map[string]interface{}{
		"codes":   len(codes),
		"loaded":  len(universe),
		"missing": missing,
		"skipped": skipped,
	}).Debug("Universe loaded")

	return universe, nil
}

// fetchSnapshot maps the store's own deadline to ErrUpstreamTimeout
func fetchSnapshot(ctx context.Context, store contracts.MetricStore, code string, timeout time.Duration) (contracts.MetricSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := store.GetSnapshot(fctx, code)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded)) {
		return contracts.MetricSnapshot{}, fmt.Errorf("%w: snapshot %s after %s", contracts.ErrUpstreamTimeout, code, timeout)
	}
	return contracts.MetricSnapshot{}, err
}
