package metricstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
)

// Memory is an in-process MetricStore used by tests and local runs
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]contracts.MetricSnapshot
	series    map[string]map[contracts.MetricKind][]contracts.DataPoint
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]contracts.MetricSnapshot),
		series:    make(map[string]map[contracts.MetricKind][]contracts.DataPoint),
	}
}

// PutSnapshot stores the current values of a stock
func (m *Memory) PutSnapshot(snap contracts.MetricSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.Code] = copySnapshot(snap)
}

// PutSeries stores the history of one metric; points must be in date order
func (m *Memory) PutSeries(code string, metric contracts.MetricKind, points []contracts.DataPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.series[code] == nil {
		m.series[code] = make(map[contracts.MetricKind][]contracts.DataPoint)
	}
	m.series[code][metric] = append([]contracts.DataPoint(nil), points...)
}

// GetSeries implements contracts.MetricStore
func (m *Memory) GetSeries(_ context.Context, code string, metric contracts.MetricKind, from, to time.Time) (contracts.MetricSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := contracts.MetricSeries{Code: code, Metric: metric, Points: make([]contracts.DataPoint, 0)}
	for _, p := range m.series[code][metric] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

// GetSnapshot implements contracts.MetricStore
func (m *Memory) GetSnapshot(_ context.Context, code string) (contracts.MetricSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[code]
	if !ok {
		return contracts.MetricSnapshot{}, fmt.Errorf("%w: %s", contracts.ErrStockNotFound, code)
	}
	return copySnapshot(snap), nil
}

// ListCodes implements contracts.MetricStore
func (m *Memory) ListCodes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	codes := make([]string, 0, len(m.snapshots))
	for code := range m.snapshots {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func copySnapshot(s contracts.MetricSnapshot) contracts.MetricSnapshot {
	c := contracts.NewSnapshot(s.Code, s.AsOf)
	c.Market = s.Market
	c.Industry = s.Industry
	for k, v := range s.Values {
		c.Values[k] = v
	}
	return c
}
