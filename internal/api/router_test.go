package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescope/internal/alerting"
	"github.com/wonny/valuescope/internal/api/handlers"
	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/internal/metricstore"
	"github.com/wonny/valuescope/internal/notify"
	"github.com/wonny/valuescope/internal/selection"
	"github.com/wonny/valuescope/internal/valuation"
	"github.com/wonny/valuescope/pkg/logger"
)

type testEnv struct {
	router http.Handler
	store  *metricstore.Memory
	hub    *notify.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()

	store := metricstore.NewMemory()
	now := time.Now()

	a := contracts.NewSnapshot("000001", now)
	a.Market = "A股"
	a.Set(contracts.MetricDividendYield, 6)
	a.Set(contracts.MetricPE, 10)
	b := contracts.NewSnapshot("000002", now)
	b.Set(contracts.MetricDividendYield, 3)
	b.Set(contracts.MetricPE, 8)
	c := contracts.NewSnapshot("000003", now)
	c.Market = "港股"
	c.Set(contracts.MetricDividendYield, 7)
	for _, s := range []contracts.MetricSnapshot{a, b, c} {
		store.PutSnapshot(s)
	}

	store.PutSeries("000001", contracts.MetricPE, []contracts.DataPoint{
		{Date: now.AddDate(0, 0, -4), Value: 30, Valid: true},
		{Date: now.AddDate(0, 0, -3), Value: 40, Valid: true},
		{Date: now.AddDate(0, 0, -2), Value: 20, Valid: true},
		{Date: now.AddDate(0, 0, -1), Value: 15, Valid: true},
	})

	registry := valuation.DefaultRegistry()
	catalog, err := selection.LoadCatalog("")
	require.NoError(t, err)

	hub := notify.NewHub(log)
	sink := notify.NewDispatcher(100, 100, log).Register(contracts.ChannelPush, hub)

	rules := alerting.NewMemoryStore()
	engine := alerting.NewEngine(rules, store, sink, alerting.Options{}, log)

	router := NewRouter(Handlers{
		Valuation: handlers.NewValuationHandler(store, valuation.NewService(store, registry, 10, log), registry, log),
		Screener:  handlers.NewScreenerHandler(store, catalog, selection.NewScreener(2, log), time.Second, log),
		Alerts:    handlers.NewAlertHandler(alerting.NewService(rules, engine, log), engine, hub, log),
	}, log)

	return &testEnv{router: router, store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(handlers.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestComputePercentile(t *testing.T) {
	env := newTestEnv(t)

	t.Run("ranks against explicit history with gaps", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/valuation/percentile", "", `{
			"metric": "pe_ttm",
			"current": 20,
			"points": [
				{"date": "2024-01-02", "value": 10},
				{"date": "2024-01-03", "value": null},
				{"date": "2024-01-04", "value": 20},
				{"date": "2024-01-05", "value": 30},
				{"date": "2024-01-08", "value": 40}
			]
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got valuation.PercentileResult
		decode(t, rec, &got)
		require.NotNil(t, got.Rank)
		assert.Equal(t, 50.0, *got.Rank)
		assert.Equal(t, valuation.BandFair, got.Band)
		assert.Equal(t, 4, got.SampleSize)
	})

	t.Run("higher is cheaper inverts", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/valuation/percentile", "", `{
			"orientation": "higher_is_cheaper",
			"current": 40,
			"points": [
				{"date": "2024-01-02", "value": 10},
				{"date": "2024-01-03", "value": 20},
				{"date": "2024-01-04", "value": 30},
				{"date": "2024-01-05", "value": 40}
			]
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got valuation.PercentileResult
		decode(t, rec, &got)
		require.NotNil(t, got.Rank)
		assert.Equal(t, 0.0, *got.Rank)
		assert.Equal(t, valuation.BandUndervalued, got.Band)
	})

	t.Run("empty history has no rank", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/valuation/percentile", "", `{"current": 12, "points": []}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got valuation.PercentileResult
		decode(t, rec, &got)
		assert.Nil(t, got.Rank)
		assert.Equal(t, valuation.BandNoData, got.Band)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		bodies := []string{
			`{"points": []}`,
			`{"current": 1, "points": [{"date": "02/01/2024", "value": 1}]}`,
			`{"current": 1, "orientation": "sideways", "points": []}`,
			`{"current": 1, "metric": "ev_ebitda", "points": []}`,
			`{"current": 1, "points": [], "extra": true}`,
		}
		for _, body := range bodies {
			rec := env.do(t, "POST", "/api/valuation/percentile", "", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestGetStockValuation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/stocks/000001/valuation?metric=pe_ttm", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got valuation.Ranking
	decode(t, rec, &got)
	assert.Equal(t, "000001", got.Code)
	assert.Equal(t, contracts.Present(15), got.Current)
	require.NotNil(t, got.Rank)
	assert.Equal(t, 25.0, *got.Rank)
	assert.Equal(t, valuation.BandSlightlyLow, got.Band)

	rec = env.do(t, "GET", "/api/stocks/000001/valuation?metric=ev_ebitda", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/stocks/000001/valuation?metric=pe_ttm&years=99", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/stocks/000009/valuation?metric=pb", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Nil(t, got.Rank)
	assert.Equal(t, valuation.BandNoData, got.Band)
}

func TestGetSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/stocks/000001/snapshot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap contracts.MetricSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, 6.0, snap.Values[contracts.MetricDividendYield])

	rec = env.do(t, "GET", "/api/stocks/999999/snapshot", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScreenerEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list presets", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/screener/presets", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Version int                `json:"version"`
			Presets []contracts.Preset `json:"presets"`
		}
		decode(t, rec, &got)
		assert.Equal(t, 1, got.Version)
		assert.Len(t, got.Presets, 3)
	})

	t.Run("apply preset", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/screener/presets/high_dividend", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got handlers.ScreenResponse
		decode(t, rec, &got)
		assert.Equal(t, 3, got.TotalInput)
		require.Equal(t, 1, got.Total)
		assert.Equal(t, "000001", got.Stocks[0].Code)
		assert.Equal(t, 1, got.Filtered["dividend_yield"])
		assert.Equal(t, 1, got.Filtered["pe_ttm"])
	})

	t.Run("unknown preset", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/screener/presets/momentum", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("filters with sort", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/screener", "", map[string]interface{}{
			"filters": map[string]float64{"dividend_yield_min": 5},
			"sort":    map[string]interface{}{"metric": "dividend_yield", "descending": true},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got handlers.ScreenResponse
		decode(t, rec, &got)
		require.Len(t, got.Stocks, 2)
		assert.Equal(t, "000003", got.Stocks[0].Code)
		assert.Equal(t, "000001", got.Stocks[1].Code)
	})

	t.Run("filters scoped to a market", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/screener", "", map[string]interface{}{
			"filters": map[string]float64{"dividend_yield_min": 5},
			"markets": []string{"A股"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got handlers.ScreenResponse
		decode(t, rec, &got)
		require.Len(t, got.Stocks, 1)
		assert.Equal(t, "000001", got.Stocks[0].Code)
		assert.Equal(t, []string{"A股"}, got.Query.Markets)
		assert.Equal(t, 2, got.Filtered["market"])
	})

	t.Run("empty query passes everything", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/screener", "", `{}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got handlers.ScreenResponse
		decode(t, rec, &got)
		assert.Equal(t, 3, got.Total)
	})

	t.Run("rejects invalid queries", func(t *testing.T) {
		bodies := []string{
			`{"conditions": [{"metric": "ev_ebitda", "comparator": "gt", "threshold": 1}]}`,
			`{"conditions": [{"metric": "pe_ttm", "comparator": "between", "threshold": 1}]}`,
			`{"filters": {"pe_avg": 1}}`,
			`{"conditions": [{"metric": "pe_ttm", "comparator": "lt", "threshold": 1}], "filters": {"pe_max": 1}}`,
			`{"sort": {"metric": "ev_ebitda"}}`,
			`{"markets": [""]}`,
		}
		for _, body := range bodies {
			rec := env.do(t, "POST", "/api/screener", "", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestAlertEndpoints(t *testing.T) {
	env := newTestEnv(t)

	create := map[string]interface{}{
		"stock_code": "000001",
		"metric":     "pe_ttm",
		"comparator": "lt",
		"threshold":  12,
		"channel":    "push",
	}

	rec := env.do(t, "POST", "/api/alerts", "", create)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/alerts", "u1", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rule contracts.AlertRule
	decode(t, rec, &rule)
	assert.Equal(t, contracts.StateArmed, rule.State)
	assert.Equal(t, "u1", rule.Owner)

	rec = env.do(t, "POST", "/api/alerts", "u1", `{"stock_code":"000001","metric":"pe_ttm","comparator":"lt","channel":"push"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/alerts/"+rule.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/alerts", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rules []contracts.AlertRule `json:"rules"`
		Total int                   `json:"total"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Total)

	// no subscriber: the rule fires but delivery fails
	rec = env.do(t, "POST", "/api/alerts/evaluate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report alerting.CycleReport
	decode(t, rec, &report)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 1, report.SinkFailures)

	rec = env.do(t, "GET", "/api/alerts/"+rule.ID, "u1", nil)
	decode(t, rec, &rule)
	assert.Equal(t, contracts.StateTriggered, rule.State)
	assert.NotNil(t, rule.LastTriggeredAt)

	// same data again fires nothing
	rec = env.do(t, "POST", "/api/alerts/evaluate", "", nil)
	decode(t, rec, &report)
	assert.Equal(t, 0, report.Fired)

	rec = env.do(t, "PUT", "/api/alerts/"+rule.ID, "u1", `{"threshold": 11}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &rule)
	assert.Equal(t, contracts.StateArmed, rule.State)
	assert.Equal(t, 11.0, rule.Condition.Threshold)

	rec = env.do(t, "PUT", "/api/alerts/"+rule.ID, "u1", `{"comparator": "between"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "DELETE", "/api/alerts/"+rule.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "DELETE", "/api/alerts/"+rule.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/api/alerts/"+rule.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertStream(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	header := http.Header{}
	header.Set(handlers.OwnerHeader, "u1")
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/alerts/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Subscribers("u1") == 1 }, time.Second, 5*time.Millisecond)

	rec := env.do(t, "POST", "/api/alerts", "u1", map[string]interface{}{
		"stock_code": "000001",
		"metric":     "dividend_yield",
		"comparator": "gte",
		"threshold":  6,
		"channel":    "push",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/api/alerts/evaluate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got contracts.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "000001", got.StockCode)
	assert.Equal(t, 6.0, got.TriggeredValue)
	assert.Equal(t, contracts.ChannelPush, got.Channel)
}
