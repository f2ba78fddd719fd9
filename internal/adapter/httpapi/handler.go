// Package httpapi exposes the tracker over a JSON HTTP surface.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/alerting"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/analytics"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/export"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/ledger"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/pricing"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

// Handler binds the usecase services to HTTP routes
type Handler struct {
	pricing  *pricing.Service
	valuator *valuation.Service
	ledger   *ledger.Service
	engine   *analytics.Engine
	alerts   *alerting.Service
	exporter *export.Service
	logger   zerolog.Logger
}

// NewHandler creates the HTTP handler
func NewHandler(
	pricingSvc *pricing.Service,
	valuator *valuation.Service,
	ledgerSvc *ledger.Service,
	engine *analytics.Engine,
	alerts *alerting.Service,
	exporter *export.Service,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		pricing:  pricingSvc,
		valuator: valuator,
		ledger:   ledgerSvc,
		engine:   engine,
		alerts:   alerts,
		exporter: exporter,
		logger:   logger,
	}
}

// RegisterRoutes binds the handler methods to the router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	router.GET("/portfolio", h.Portfolio)
	router.GET("/portfolio_history", h.PortfolioHistory)
	router.GET("/daily_profit_loss", h.DailyProfitLoss)
	router.GET("/live_profit_loss", h.LiveProfitLoss)
	router.GET("/current_prices", h.CurrentPrices)
	router.GET("/validation", h.Validation)

	router.GET("/transactions", h.ListTransactions)
	router.POST("/add_transaction", h.AddTransaction)
	router.DELETE("/transactions/:id", h.DeleteTransaction)
	router.GET("/transaction_analysis", h.TransactionAnalysis)

	router.GET("/performance_metrics", h.PerformanceMetrics)
	router.GET("/analytics/portfolio-metrics", h.PortfolioMetrics)
	router.GET("/analytics/benchmarks", h.Benchmarks)

	router.GET("/alerts", h.ListAlerts)
	router.POST("/alerts", h.CreateAlert)
	router.DELETE("/alerts/:id", h.DeleteAlert)
	router.POST("/alerts/test", h.TestAlert)
	router.POST("/alerts/check", h.CheckAlerts)

	router.GET("/export/portfolio", h.ExportPortfolio)
	router.GET("/export/transactions", h.ExportTransactions)
	router.GET("/export/history", h.ExportHistory)
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Portfolio returns the current portfolio valuation
func (h *Handler) Portfolio(c *gin.Context) {
	frequency := domain.ParseFrequency(c.DefaultQuery("frequency", "weekly"))

	summary, err := h.valuator.Summary(c.Request.Context(), frequency)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, newPortfolioResponse(summary))
}

// PortfolioHistory returns the sampled portfolio value series
func (h *Handler) PortfolioHistory(c *gin.Context) {
	period := analytics.ParsePeriod(strings.ToLower(c.DefaultQuery("period", "30d")))
	aggregation := analytics.ParseAggregation(c.DefaultQuery("aggregation", "auto"))

	report, err := h.engine.History(c.Request.Context(), period, aggregation)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, newHistoryResponse(report))
}

// DailyProfitLoss returns the value change between yesterday and today
func (h *Handler) DailyProfitLoss(c *gin.Context) {
	frequency := domain.ParseFrequency(c.DefaultQuery("frequency", "weekly"))

	change, err := h.valuator.DailyChange(c.Request.Context(), frequency)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, dailyChangeResponse{
		TimestampToday:     change.Today.Format(dateLayout),
		TimestampYesterday: change.Yesterday.Format(dateLayout),
		BTCDailyChange:     money(change.ChangeByAsset[domain.AssetBitcoin]),
		ETHDailyChange:     money(change.ChangeByAsset[domain.AssetEthereum]),
		TotalDailyChange:   money(change.TotalChangeUSD),
	})
}

// LiveProfitLoss values the portfolio against uncached upstream prices
func (h *Handler) LiveProfitLoss(c *gin.Context) {
	frequency := domain.ParseFrequency(c.DefaultQuery("frequency", "weekly"))

	summary, err := h.valuator.LiveSummary(c.Request.Context(), frequency)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	btc := summary.Assets[domain.AssetBitcoin]
	eth := summary.Assets[domain.AssetEthereum]
	c.JSON(http.StatusOK, liveProfitLossResponse{
		BTCPrice:      money(btc.CurrentPriceUSD),
		ETHPrice:      money(eth.CurrentPriceUSD),
		ProfitBTC:     money(btc.ProfitLossUSD),
		ProfitETH:     money(eth.ProfitLossUSD),
		ProfitTotal:   money(summary.ProfitLossUSD),
		ProfitPercent: money(summary.PercentChange),
	})
}

// CurrentPrices returns the cached spot prices
func (h *Handler) CurrentPrices(c *gin.Context) {
	prices := h.pricing.SpotPrices(c.Request.Context())

	payload := make(map[string]float64, len(prices))
	for asset, price := range prices {
		payload[string(asset)] = money(price)
	}
	c.JSON(http.StatusOK, payload)
}

// Validation bypasses every cache and reports a live-priced summary
func (h *Handler) Validation(c *gin.Context) {
	summary, err := h.valuator.LiveSummary(c.Request.Context(), domain.FrequencyWeekly)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	btc := summary.Assets[domain.AssetBitcoin]
	eth := summary.Assets[domain.AssetEthereum]
	c.JSON(http.StatusOK, gin.H{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"data_freshness": "live",
		"live_prices": gin.H{
			"bitcoin":  money(btc.CurrentPriceUSD),
			"ethereum": money(eth.CurrentPriceUSD),
		},
		"portfolio_summary": gin.H{
			"btc_held":       units(btc.Held),
			"eth_held":       units(eth.Held),
			"total_invested": money(summary.TotalInvestedUSD),
			"current_value":  money(summary.TotalValueUSD),
			"profit_loss":    money(summary.ProfitLossUSD),
		},
		"validation_status": "success",
	})
}

// ListTransactions returns the full manual ledger
func (h *Handler) ListTransactions(c *gin.Context) {
	transactions, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	payload := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		payload = append(payload, newTransactionResponse(tx))
	}
	c.JSON(http.StatusOK, payload)
}

type addTransactionRequest struct {
	Date   string   `json:"date"`
	Coin   string   `json:"coin"`
	Type   string   `json:"type"`
	Amount *float64 `json:"amount"`
	Price  *float64 `json:"price"`
}

// AddTransaction records a manual buy or sell
func (h *Handler) AddTransaction(c *gin.Context) {
	var req addTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("no data provided"))
		return
	}
	if req.Date == "" || req.Coin == "" || req.Type == "" || req.Amount == nil {
		h.fail(c, http.StatusBadRequest, errors.New("missing required fields: date, coin, amount, type"))
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("date must be in YYYY-MM-DD format"))
		return
	}

	asset, err := domain.ParseAsset(req.Coin)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	input := ledger.AddInput{
		Date:   date,
		Asset:  asset,
		Type:   domain.TransactionType(req.Type),
		Amount: decimal.NewFromFloat(*req.Amount),
	}
	if req.Price != nil && *req.Price != 0 {
		price := decimal.NewFromFloat(*req.Price)
		input.PriceUSD = &price
	}

	tx, err := h.ledger.Add(c.Request.Context(), input)
	if err != nil {
		h.fail(c, addTransactionStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Transaction added successfully",
		"transaction": newTransactionResponse(tx),
	})
}

// addTransactionStatus maps add failures: validation problems are the
// client's fault, a dead price feed is not
func addTransactionStatus(err error) int {
	if strings.Contains(err.Error(), "failed to fetch current price") {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// DeleteTransaction removes one ledger entry
func (h *Handler) DeleteTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("invalid transaction id"))
		return
	}

	if err := h.ledger.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			h.fail(c, http.StatusNotFound, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Transaction deleted successfully",
		"deleted_id": id.String(),
	})
}

// TransactionAnalysis returns the per-asset ledger aggregation
func (h *Handler) TransactionAnalysis(c *gin.Context) {
	analysis, err := h.ledger.Analysis(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	payload := make(map[string]assetAnalysisResponse, len(analysis))
	for asset, entry := range analysis {
		payload[string(asset)] = newAssetAnalysisResponse(entry)
	}
	c.JSON(http.StatusOK, payload)
}

// PerformanceMetrics returns the comprehensive performance analytics
func (h *Handler) PerformanceMetrics(c *gin.Context) {
	report, err := h.engine.PerformanceMetrics(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, newPerformanceResponse(report))
}

// PortfolioMetrics returns the risk analytics
func (h *Handler) PortfolioMetrics(c *gin.Context) {
	report, err := h.engine.RiskMetrics(c.Request.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientHistory) {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"analytics":        newPortfolioAnalyticsResponse(report),
		"calculation_date": time.Now().UTC().Format(time.RFC3339),
		"data_points":      report.DaysTracked,
	})
}

// Benchmarks compares the portfolio against buy-and-hold baselines
func (h *Handler) Benchmarks(c *gin.Context) {
	report, err := h.engine.Benchmarks(c.Request.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientHistory) {
			h.fail(c, http.StatusBadRequest, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"benchmarks":       newBenchmarksResponse(report),
		"period":           fmt.Sprintf("%d days", report.PeriodDays),
		"calculation_date": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListAlerts returns all stored alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	payload := make([]alertResponse, 0, len(alerts))
	for _, alert := range alerts {
		payload = append(payload, newAlertResponse(alert))
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":      payload,
		"total_count": len(payload),
	})
}

type createAlertRequest struct {
	Coin        string   `json:"coin"`
	TargetPrice *float64 `json:"target_price"`
	Condition   string   `json:"condition"`
	Email       string   `json:"email"`
	Description string   `json:"description"`
}

// CreateAlert stores a new price alert
func (h *Handler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("no data provided"))
		return
	}
	if req.Coin == "" || req.TargetPrice == nil || req.Condition == "" || req.Email == "" {
		h.fail(c, http.StatusBadRequest, errors.New("missing required fields: coin, target_price, condition, email"))
		return
	}

	asset, err := domain.ParseAsset(req.Coin)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	alert, err := h.alerts.Create(c.Request.Context(), alerting.CreateInput{
		Asset:       asset,
		TargetPrice: decimal.NewFromFloat(*req.TargetPrice),
		Condition:   domain.AlertCondition(req.Condition),
		Email:       strings.TrimSpace(req.Email),
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Price alert created successfully",
		"alert":   newAlertResponse(alert),
	})
}

// DeleteAlert removes an alert
func (h *Handler) DeleteAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("invalid alert id"))
		return
	}

	if err := h.alerts.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			h.fail(c, http.StatusNotFound, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Price alert deleted successfully",
		"deleted_id": id.String(),
	})
}

type testAlertRequest struct {
	Email string `json:"email"`
}

// TestAlert sends a test notification to verify mail delivery
func (h *Handler) TestAlert(c *gin.Context) {
	var req testAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		h.fail(c, http.StatusBadRequest, errors.New("email address required"))
		return
	}

	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		h.fail(c, http.StatusBadRequest, errors.New("invalid email format"))
		return
	}

	if err := h.alerts.SendTest(c.Request.Context(), email); err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Test email sent successfully",
		"email":   email,
	})
}

// CheckAlerts triggers one evaluation pass outside the monitor schedule
func (h *Handler) CheckAlerts(c *gin.Context) {
	triggered, err := h.alerts.CheckOnce(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Price alerts checked manually",
		"triggered_count": triggered,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// ExportPortfolio serves the portfolio valuation as a CSV attachment
func (h *Handler) ExportPortfolio(c *gin.Context) {
	doc, err := h.exporter.Portfolio(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	h.serveCSV(c, doc)
}

// ExportTransactions serves the manual ledger as a CSV attachment
func (h *Handler) ExportTransactions(c *gin.Context) {
	doc, err := h.exporter.Transactions(c.Request.Context())
	if err != nil {
		if errors.Is(err, export.ErrNoTransactions) {
			h.fail(c, http.StatusNotFound, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	h.serveCSV(c, doc)
}

// ExportHistory serves the daily value series as a CSV attachment
func (h *Handler) ExportHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, errors.New("days must be a number"))
		return
	}

	doc, err := h.exporter.History(c.Request.Context(), days)
	if err != nil {
		if errors.Is(err, export.ErrNoHistory) {
			h.fail(c, http.StatusNotFound, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	h.serveCSV(c, doc)
}

func (h *Handler) serveCSV(c *gin.Context, doc *export.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", doc.Data)
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
