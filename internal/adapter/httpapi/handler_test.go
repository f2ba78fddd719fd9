package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/alerting"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/analytics"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/export"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/ledger"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/pricing"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/simulation"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

// stubAPI serves one constant pair as the upstream price source
type stubAPI struct {
	pair domain.SpotPrices
}

func (s *stubAPI) SpotPrices(context.Context) (domain.SpotPrices, error) {
	return s.pair, nil
}

func (s *stubAPI) PriceOnDate(_ context.Context, asset domain.Asset, _ time.Time) (decimal.Decimal, error) {
	return s.pair[asset], nil
}

type stubSpotCache struct {
	mu   sync.Mutex
	pair domain.SpotPrices
}

func (s *stubSpotCache) Get(context.Context) (domain.SpotPrices, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.pair != nil, nil
}

func (s *stubSpotCache) GetStale(ctx context.Context) (domain.SpotPrices, bool, error) {
	return s.Get(ctx)
}

func (s *stubSpotCache) Set(_ context.Context, prices domain.SpotPrices) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = prices
	return nil
}

type memPriceCache struct {
	mu    sync.Mutex
	byDay map[string]domain.SpotPrices
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{byDay: make(map[string]domain.SpotPrices)}
}

func (m *memPriceCache) Lookup(_ context.Context, date time.Time) (domain.SpotPrices, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prices, ok := m.byDay[domain.DateKey(date)]
	if !ok {
		return nil, domain.ErrPriceNotCached
	}
	return prices, nil
}

func (m *memPriceCache) Store(_ context.Context, date time.Time, prices domain.SpotPrices) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDay[domain.DateKey(date)] = prices
	return nil
}

type memTxRepo struct {
	mu    sync.Mutex
	items []*domain.ManualTransaction
}

func (m *memTxRepo) Append(_ context.Context, tx *domain.ManualTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, tx)
	return nil
}

func (m *memTxRepo) List(context.Context) ([]*domain.ManualTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ManualTransaction, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *memTxRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tx := range m.items {
		if tx.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrTransactionNotFound
}

type memAlertRepo struct {
	mu    sync.Mutex
	items []*domain.PriceAlert
}

func (m *memAlertRepo) Append(_ context.Context, alert *domain.PriceAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, alert)
	return nil
}

func (m *memAlertRepo) List(context.Context) ([]*domain.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PriceAlert, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *memAlertRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, alert := range m.items {
		if alert.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrAlertNotFound
}

type stubNotifier struct {
	mu   sync.Mutex
	sent int
}

func (n *stubNotifier) Send(context.Context, *domain.PriceAlert, decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return nil
}

func (n *stubNotifier) SendTest(context.Context, string) error { return nil }

func tenWeeks() time.Time {
	return time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 9*7)
}

type testServer struct {
	router   *gin.Engine
	txRepo   *memTxRepo
	notifier *stubNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pair := domain.SpotPrices{
		domain.AssetBitcoin:  decimal.NewFromInt(50000),
		domain.AssetEthereum: decimal.NewFromInt(3000),
	}

	logger := zerolog.Nop()
	txRepo := &memTxRepo{}
	alertRepo := &memAlertRepo{}
	notifier := &stubNotifier{}

	pricingSvc := pricing.NewService(&stubAPI{pair: pair}, &stubSpotCache{}, newMemPriceCache(), logger).
		WithHistoryDelay(0)

	plan := domain.DefaultPlan()
	sim := simulation.NewSimulator(pricingSvc, plan)
	valuator := valuation.NewService(sim, txRepo, pricingSvc).WithClock(tenWeeks)
	ledgerSvc := ledger.NewService(txRepo, pricingSvc)
	engine := analytics.NewEngine(valuator, pricingSvc, plan, logger).WithClock(tenWeeks)
	alertSvc := alerting.NewService(alertRepo, pricingSvc, notifier, logger)
	exporter := export.NewService(valuator, txRepo).WithClock(tenWeeks)

	handler := NewHandler(pricingSvc, valuator, ledgerSvc, engine, alertSvc, exporter, logger)
	router := NewRouter(handler, []string{"http://localhost:3000"}, logger, false)

	return &testServer{router: router, txRepo: txRepo, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "healthy", payload["status"])
}

func TestPortfolio(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/portfolio", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload portfolioResponse
	decodeJSON(t, rec, &payload)
	assert.InDelta(t, 1020.0, payload.BTCInvested, 1e-9)
	assert.InDelta(t, 259.0, payload.ETHInvested, 1e-9)
	assert.InDelta(t, 0.02, payload.BTCHeld, 1e-9)
	assert.InDelta(t, 1250.0, payload.TotalValue, 1e-9)
	assert.InDelta(t, 1279.0, payload.TotalInvested, 1e-9)
	assert.InDelta(t, -29.0, payload.ProfitLoss, 1e-9)
	assert.InDelta(t, -2.27, payload.TotalPercentChange, 1e-9)
}

func TestCurrentPrices(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/current_prices", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]float64
	decodeJSON(t, rec, &payload)
	assert.InDelta(t, 50000.0, payload["bitcoin"], 1e-9)
	assert.InDelta(t, 3000.0, payload["ethereum"], 1e-9)
}

func TestPortfolioHistory(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/portfolio_history?period=7d", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload historyResponse
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "7d", payload.Period)
	assert.Equal(t, "1-day interval", payload.Aggregation)
	assert.Equal(t, 8, payload.DataPoints)
	require.NotNil(t, payload.DateRange.Start)
	require.NotNil(t, payload.DateRange.End)
	assert.Equal(t, "2025-03-29", *payload.DateRange.End)
}

func TestDailyProfitLoss_ConstantPricesAreFlat(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/daily_profit_loss", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload dailyChangeResponse
	decodeJSON(t, rec, &payload)
	assert.Zero(t, payload.BTCDailyChange)
	assert.Zero(t, payload.ETHDailyChange)
	assert.Zero(t, payload.TotalDailyChange)
}

func TestLiveProfitLoss(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/live_profit_loss", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload liveProfitLossResponse
	decodeJSON(t, rec, &payload)
	assert.InDelta(t, 50000.0, payload.BTCPrice, 1e-9)
	assert.InDelta(t, -29.0, payload.ProfitTotal, 1e-9)
}

func TestAddTransaction_ValidBuy(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodPost, "/add_transaction", gin.H{
		"date":   "2025-02-10",
		"coin":   "bitcoin",
		"type":   "buy",
		"amount": 0.01,
		"price":  45000,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Message     string              `json:"message"`
		Transaction transactionResponse `json:"transaction"`
	}
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "Transaction added successfully", payload.Message)
	assert.Equal(t, "bitcoin", payload.Transaction.Coin)
	assert.InDelta(t, 450.0, payload.Transaction.Value, 1e-9)
	assert.Nil(t, payload.Transaction.ProfitLoss)

	list := server.do(t, http.MethodGet, "/transactions", nil)
	var transactions []transactionResponse
	decodeJSON(t, list, &transactions)
	assert.Len(t, transactions, 1)
}

func TestAddTransaction_SellComputesRealizedPnL(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodPost, "/add_transaction", gin.H{
		"date":   "2025-02-10",
		"coin":   "bitcoin",
		"type":   "buy",
		"amount": 0.01,
		"price":  40000,
	})

	rec := server.do(t, http.MethodPost, "/add_transaction", gin.H{
		"date":   "2025-03-10",
		"coin":   "bitcoin",
		"type":   "sell",
		"amount": 0.005,
		"price":  50000,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Transaction transactionResponse `json:"transaction"`
	}
	decodeJSON(t, rec, &payload)
	require.NotNil(t, payload.Transaction.ProfitLoss)
	assert.InDelta(t, 50.0, *payload.Transaction.ProfitLoss, 1e-9)
	require.NotNil(t, payload.Transaction.AverageBuyPrice)
	assert.InDelta(t, 40000.0, *payload.Transaction.AverageBuyPrice, 1e-9)
}

func TestAddTransaction_ValidationFailures(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing fields", gin.H{"date": "2025-02-10"}},
		{"bad date", gin.H{"date": "10/02/2025", "coin": "bitcoin", "type": "buy", "amount": 1}},
		{"unknown coin", gin.H{"date": "2025-02-10", "coin": "dogecoin", "type": "buy", "amount": 1}},
		{"bad type", gin.H{"date": "2025-02-10", "coin": "bitcoin", "type": "short", "amount": 1}},
		{"zero amount", gin.H{"date": "2025-02-10", "coin": "bitcoin", "type": "buy", "amount": 0}},
		{"huge amount", gin.H{"date": "2025-02-10", "coin": "bitcoin", "type": "buy", "amount": 2000000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := server.do(t, http.MethodPost, "/add_transaction", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var payload errorResponse
			decodeJSON(t, rec, &payload)
			assert.NotEmpty(t, payload.Error)
		})
	}
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodDelete, "/transactions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionAnalysis(t *testing.T) {
	server := newTestServer(t)
	server.do(t, http.MethodPost, "/add_transaction", gin.H{
		"date":   "2025-02-10",
		"coin":   "ethereum",
		"type":   "buy",
		"amount": 2,
		"price":  2500,
	})

	rec := server.do(t, http.MethodGet, "/transaction_analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]assetAnalysisResponse
	decodeJSON(t, rec, &payload)
	eth := payload["ethereum"]
	assert.InDelta(t, 2.0, eth.TotalBought, 1e-9)
	assert.InDelta(t, 5000.0, eth.TotalInvested, 1e-9)
	// 2 ETH now worth 6000 against a 5000 cost
	assert.InDelta(t, 1000.0, eth.UnrealizedProfitLoss, 1e-9)
	assert.Empty(t, payload["bitcoin"].Transactions)
}

func TestPerformanceMetrics(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/performance_metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload performanceResponse
	decodeJSON(t, rec, &payload)
	assert.InDelta(t, 1279.0, payload.TotalMetrics.Invested, 1e-9)
	assert.Equal(t, 63, payload.TotalMetrics.DaysInvested)
	assert.InDelta(t, 51000.0, payload.BTCMetrics.AvgPurchasePrice, 1e-9)
	assert.NotNil(t, payload.PerformancePeriods.BestWeek.Date)
}

func TestPortfolioMetrics(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/analytics/portfolio-metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status     string                     `json:"status"`
		Analytics  portfolioAnalyticsResponse `json:"analytics"`
		DataPoints int                        `json:"data_points"`
	}
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "success", payload.Status)
	assert.Equal(t, 31, payload.DataPoints)
	assert.InDelta(t, 1250.0, payload.Analytics.MarketData.PortfolioValue, 1e-9)
	assert.Greater(t, payload.Analytics.RiskMetrics.Volatility, 0.0)
}

func TestBenchmarks(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/analytics/benchmarks", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status     string             `json:"status"`
		Benchmarks benchmarksResponse `json:"benchmarks"`
	}
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "success", payload.Status)
	assert.Zero(t, payload.Benchmarks.BTC.ReturnPercent)
	assert.Equal(t, "50% BTC / 50% ETH", payload.Benchmarks.Balanced.Description)
}

func TestAlertLifecycle(t *testing.T) {
	server := newTestServer(t)

	created := server.do(t, http.MethodPost, "/alerts", gin.H{
		"coin":         "bitcoin",
		"target_price": 60000,
		"condition":    "above",
		"email":        "holder@example.com",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var createdPayload struct {
		Alert alertResponse `json:"alert"`
	}
	decodeJSON(t, created, &createdPayload)
	assert.Equal(t, "bitcoin", createdPayload.Alert.Coin)
	assert.True(t, createdPayload.Alert.Enabled)

	list := server.do(t, http.MethodGet, "/alerts", nil)
	var listPayload struct {
		TotalCount int `json:"total_count"`
	}
	decodeJSON(t, list, &listPayload)
	assert.Equal(t, 1, listPayload.TotalCount)

	deleted := server.do(t, http.MethodDelete, "/alerts/"+createdPayload.Alert.ID, nil)
	assert.Equal(t, http.StatusOK, deleted.Code)

	again := server.do(t, http.MethodDelete, "/alerts/"+createdPayload.Alert.ID, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestCreateAlert_Invalid(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(t, http.MethodPost, "/alerts", gin.H{
		"coin":      "bitcoin",
		"condition": "above",
		"email":     "holder@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = server.do(t, http.MethodPost, "/alerts", gin.H{
		"coin":         "bitcoin",
		"target_price": 60000,
		"condition":    "sideways",
		"email":        "holder@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAlerts_TriggersAndRemoves(t *testing.T) {
	server := newTestServer(t)

	server.do(t, http.MethodPost, "/alerts", gin.H{
		"coin":         "bitcoin",
		"target_price": 45000,
		"condition":    "above",
		"email":        "holder@example.com",
	})

	rec := server.do(t, http.MethodPost, "/alerts/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		TriggeredCount int `json:"triggered_count"`
	}
	decodeJSON(t, rec, &payload)
	assert.Equal(t, 1, payload.TriggeredCount)
	assert.Equal(t, 1, server.notifier.sent)

	list := server.do(t, http.MethodGet, "/alerts", nil)
	var listPayload struct {
		TotalCount int `json:"total_count"`
	}
	decodeJSON(t, list, &listPayload)
	assert.Zero(t, listPayload.TotalCount)
}

func TestExportPortfolio(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/export/portfolio", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "crypto_portfolio_")
	assert.Contains(t, rec.Body.String(), "TOTAL PORTFOLIO")
}

func TestExportTransactions_EmptyLedger(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/export/transactions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHistory(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/export/history?days=7", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "crypto_history_7days_")
}

func TestValidation(t *testing.T) {
	server := newTestServer(t)
	rec := server.do(t, http.MethodGet, "/validation", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	decodeJSON(t, rec, &payload)
	assert.Equal(t, "success", payload["validation_status"])
	assert.Equal(t, "live", payload["data_freshness"])
}
