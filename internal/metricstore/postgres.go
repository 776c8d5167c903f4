// Package metricstore adapts stored market and financial metrics to the
// contracts.MetricStore boundary.
package metricstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/valuation"
	"github.com/wonny/valuescope/pkg/logger"
)

// column locates a stored metric. Only names in this table reach SQL.
type column struct {
	table   string
	dateCol string
	name    string
}

var columns = map[contracts.MetricKind]column{
	contracts.MetricPE:            {"valuation.daily_metrics", "trade_date", "pe_ttm"},
	contracts.MetricPB:            {"valuation.daily_metrics", "trade_date", "pb"},
	contracts.MetricDividendYield: {"valuation.daily_metrics", "trade_date", "dividend_yield"},
	contracts.MetricPrice:         {"valuation.daily_metrics", "trade_date", "price"},
	contracts.MetricMarketCap:     {"valuation.daily_metrics", "trade_date", "market_cap"},
	contracts.MetricROE:           {"valuation.financial_metrics", "report_date", "roe"},
	contracts.MetricRevenueGrowth: {"valuation.financial_metrics", "report_date", "revenue_growth"},
	contracts.MetricProfitGrowth:  {"valuation.financial_metrics", "report_date", "profit_growth"},
}

// derived snapshot metrics and the stored metric they rank
var derived = map[contracts.MetricKind]contracts.MetricKind{
	contracts.MetricPEPercentile: contracts.MetricPE,
	contracts.MetricPBPercentile: contracts.MetricPB,
}

// Postgres reads metrics from the valuation schema
// ⭐ SSOT: 지표 조회 SQL은 여기서만
type Postgres struct {
	pool   *pgxpool.Pool
	ranker *valuation.Service
	logger *logger.Logger
}

// NewPostgres creates a Postgres metric store. Snapshots carry
// pe_percentile and pb_percentile ranked over lookbackYears of history.
func NewPostgres(pool *pgxpool.Pool, lookbackYears int, log *logger.Logger) *Postgres {
	p := &Postgres{pool: pool, logger: log}
	p.ranker = valuation.NewService(p, valuation.DefaultRegistry(), lookbackYears, log)
	return p
}

// GetSeries returns the history of one stored metric between from and to, inclusive.
// NULL rows become absent points.
func (p *Postgres) GetSeries(ctx context.Context, code string, metric contracts.MetricKind, from, to time.Time) (contracts.MetricSeries, error) {
	col, ok := columns[metric]
	if !ok {
		return contracts.MetricSeries{}, fmt.Errorf("%w: %s has no stored history", contracts.ErrInvalidQuery, metric)
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, %[2]s
		FROM %[3]s
		WHERE stock_code = $1 AND %[1]s BETWEEN $2 AND $3
		ORDER BY %[1]s ASC
	`, col.dateCol, col.name, col.table)

	rows, err := p.pool.Query(ctx, query, code, from, to)
	if err != nil {
		return contracts.MetricSeries{}, fmt.Errorf("failed to query %s series: %w", metric, err)
	}
	defer rows.Close()

	series := contracts.MetricSeries{Code: code, Metric: metric, Points: make([]contracts.DataPoint, 0)}
	for rows.Next() {
		var date time.Time
		var value *float64
		if err := rows.Scan(&date, &value); err != nil {
			return contracts.MetricSeries{}, fmt.Errorf("failed to scan row: %w", err)
		}
		point := contracts.DataPoint{Date: date}
		if value != nil {
			point.Value, point.Valid = *value, true
		}
		series.Points = append(series.Points, point)
	}

	if err := rows.Err(); err != nil {
		return contracts.MetricSeries{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return series, nil
}

// GetSnapshot returns the latest stored values of a stock plus its derived percentiles
func (p *Postgres) GetSnapshot(ctx context.Context, code string) (contracts.MetricSnapshot, error) {
	daily := `
		SELECT d.trade_date, d.pe_ttm, d.pb, d.dividend_yield, d.price, d.market_cap,
		       COALESCE(s.market, ''), COALESCE(s.industry, '')
		FROM valuation.daily_metrics d
		LEFT JOIN valuation.stocks s ON s.code = d.stock_code
		WHERE d.stock_code = $1
		ORDER BY d.trade_date DESC
		LIMIT 1
	`
	var asOf time.Time
	var pe, pb, dy, price, mcap *float64
	var market, industry string

	err := p.pool.QueryRow(ctx, daily, code).Scan(&asOf, &pe, &pb, &dy, &price, &mcap, &market, &industry)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.MetricSnapshot{}, fmt.Errorf("%w: %s", contracts.ErrStockNotFound, code)
	}
	if err != nil {
		return contracts.MetricSnapshot{}, fmt.Errorf("failed to get daily metrics: %w", err)
	}

	snap := contracts.NewSnapshot(code, asOf)
	snap.Market = market
	snap.Industry = industry
	setIf(snap, contracts.MetricPE, pe)
	setIf(snap, contracts.MetricPB, pb)
	setIf(snap, contracts.MetricDividendYield, dy)
	setIf(snap, contracts.MetricPrice, price)
	setIf(snap, contracts.MetricMarketCap, mcap)

	financial := `
		SELECT roe, revenue_growth, profit_growth
		FROM valuation.financial_metrics
		WHERE stock_code = $1
		ORDER BY report_date DESC
		LIMIT 1
	`
	var roe, rev, profit *float64
	err = p.pool.QueryRow(ctx, financial, code).Scan(&roe, &rev, &profit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return contracts.MetricSnapshot{}, fmt.Errorf("failed to get financial metrics: %w", err)
	}
	setIf(snap, contracts.MetricROE, roe)
	setIf(snap, contracts.MetricRevenueGrowth, rev)
	setIf(snap, contracts.MetricProfitGrowth, profit)

	if err := p.addPercentiles(ctx, snap); err != nil {
		return contracts.MetricSnapshot{}, err
	}
	return snap, nil
}

// addPercentiles fills the derived metrics. A malformed history leaves the
// derived value absent instead of failing the whole snapshot.
func (p *Postgres) addPercentiles(ctx context.Context, snap contracts.MetricSnapshot) error {
	for target, source := range derived {
		ranking, err := p.ranker.Rank(ctx, snap.Code, source, snap.AsOf)
		if errors.Is(err, contracts.ErrInvalidSeries) {
			continue
		}
		if err != nil {
			return err
		}
		if ranking.HasRank() {
			snap.Set(target, *ranking.Rank)
		}
	}
	return nil
}

func setIf(snap contracts.MetricSnapshot, metric contracts.MetricKind, v *float64) {
	if v != nil {
		snap.Set(metric, *v)
	}
}

// ListCodes returns active stock codes in code order
func (p *Postgres) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT code FROM valuation.stocks WHERE active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock codes: %w", err)
	}
	defer rows.Close()

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect stock codes: %w", err)
	}
	return codes, nil
}
