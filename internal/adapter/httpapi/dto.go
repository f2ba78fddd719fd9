package httpapi

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/analytics"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/ledger"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

// Rounding happens here and only here. Money rounds to cents, asset amounts
// to six decimal places.

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func units(d decimal.Decimal) float64 {
	f, _ := d.Round(6).Float64()
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

type portfolioResponse struct {
	BTCInvested        float64 `json:"btc_invested"`
	ETHInvested        float64 `json:"eth_invested"`
	BTCHeld            float64 `json:"btc_held"`
	ETHHeld            float64 `json:"eth_held"`
	BTCValue           float64 `json:"btc_value"`
	ETHValue           float64 `json:"eth_value"`
	TotalValue         float64 `json:"total_value"`
	TotalInvested      float64 `json:"total_invested"`
	ProfitLoss         float64 `json:"profit_loss"`
	BTCPercentChange   float64 `json:"btc_percent_change"`
	ETHPercentChange   float64 `json:"eth_percent_change"`
	TotalPercentChange float64 `json:"total_percent_change"`
}

func newPortfolioResponse(s *valuation.Summary) portfolioResponse {
	btc := s.Assets[domain.AssetBitcoin]
	eth := s.Assets[domain.AssetEthereum]
	return portfolioResponse{
		BTCInvested:        money(btc.InvestedUSD),
		ETHInvested:        money(eth.InvestedUSD),
		BTCHeld:            units(btc.Held),
		ETHHeld:            units(eth.Held),
		BTCValue:           money(btc.ValueUSD),
		ETHValue:           money(eth.ValueUSD),
		TotalValue:         money(s.TotalValueUSD),
		TotalInvested:      money(s.TotalInvestedUSD),
		ProfitLoss:         money(s.ProfitLossUSD),
		BTCPercentChange:   money(btc.PercentChange),
		ETHPercentChange:   money(eth.PercentChange),
		TotalPercentChange: money(s.PercentChange),
	}
}

type historyPoint struct {
	Date          string  `json:"date"`
	TotalValue    float64 `json:"total_value"`
	TotalInvested float64 `json:"total_invested"`
	ProfitLoss    float64 `json:"profit_loss"`
	ROIPercent    float64 `json:"roi_percent"`
	BTCValue      float64 `json:"btc_value"`
	ETHValue      float64 `json:"eth_value"`
	BTCPrice      float64 `json:"btc_price"`
	ETHPrice      float64 `json:"eth_price"`
}

type dateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

type historyResponse struct {
	Period      string         `json:"period"`
	Aggregation string         `json:"aggregation"`
	DataPoints  int            `json:"data_points"`
	DateRange   dateRange      `json:"date_range"`
	History     []historyPoint `json:"history"`
}

func newHistoryResponse(report *analytics.HistoryReport) historyResponse {
	history := make([]historyPoint, 0, len(report.Snapshots))
	for _, snap := range report.Snapshots {
		history = append(history, newHistoryPoint(snap))
	}

	resp := historyResponse{
		Period:      string(report.Period),
		Aggregation: aggregationLabel(report.IntervalDays),
		DataPoints:  len(history),
		History:     history,
	}
	if len(history) > 0 {
		resp.DateRange.Start = &history[0].Date
		resp.DateRange.End = &history[len(history)-1].Date
	}
	return resp
}

func newHistoryPoint(snap valuation.Snapshot) historyPoint {
	return historyPoint{
		Date:          snap.Date.Format(dateLayout),
		TotalValue:    money(snap.TotalValueUSD),
		TotalInvested: money(snap.TotalInvestedUSD),
		ProfitLoss:    money(snap.ProfitLossUSD),
		ROIPercent:    money(snap.ROIPercent),
		BTCValue:      money(snap.AssetValues[domain.AssetBitcoin]),
		ETHValue:      money(snap.AssetValues[domain.AssetEthereum]),
		BTCPrice:      money(snap.Prices[domain.AssetBitcoin]),
		ETHPrice:      money(snap.Prices[domain.AssetEthereum]),
	}
}

func aggregationLabel(intervalDays int) string {
	return fmt.Sprintf("%d-day interval", intervalDays)
}

type dailyChangeResponse struct {
	TimestampToday     string  `json:"timestamp_today"`
	TimestampYesterday string  `json:"timestamp_yesterday"`
	BTCDailyChange     float64 `json:"btc_daily_change"`
	ETHDailyChange     float64 `json:"eth_daily_change"`
	TotalDailyChange   float64 `json:"total_daily_change"`
}

type liveProfitLossResponse struct {
	BTCPrice      float64 `json:"btc_price"`
	ETHPrice      float64 `json:"eth_price"`
	ProfitBTC     float64 `json:"profit_btc"`
	ProfitETH     float64 `json:"profit_eth"`
	ProfitTotal   float64 `json:"profit_total"`
	ProfitPercent float64 `json:"profit_percent"`
}

type transactionResponse struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"`
	Coin      string  `json:"coin"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`

	ProfitLoss        *float64 `json:"profit_loss,omitempty"`
	ProfitLossPercent *float64 `json:"profit_loss_percent,omitempty"`
	AverageBuyPrice   *float64 `json:"average_buy_price,omitempty"`
}

func newTransactionResponse(tx *domain.ManualTransaction) transactionResponse {
	resp := transactionResponse{
		ID:        tx.ID.String(),
		Date:      tx.Date.Format(dateLayout),
		Coin:      string(tx.Asset),
		Type:      string(tx.Type),
		Amount:    units(tx.Amount),
		Price:     money(tx.PriceUSD),
		Value:     money(tx.TotalValueUSD()),
		Timestamp: tx.Timestamp.Format(time.RFC3339),
	}
	if tx.Type == domain.TransactionTypeSell {
		profitLoss := money(tx.ProfitLoss)
		profitLossPct := money(tx.ProfitLossPercent)
		avgBuyPrice := money(tx.AverageBuyPrice)
		resp.ProfitLoss = &profitLoss
		resp.ProfitLossPercent = &profitLossPct
		resp.AverageBuyPrice = &avgBuyPrice
	}
	return resp
}

type transactionDetailResponse struct {
	ID                string   `json:"id"`
	Date              string   `json:"date"`
	Type              string   `json:"type"`
	Amount            float64  `json:"amount"`
	Price             float64  `json:"price"`
	Value             float64  `json:"value"`
	ProfitLoss        *float64 `json:"profit_loss,omitempty"`
	ProfitLossPercent *float64 `json:"profit_loss_percent,omitempty"`
}

type assetAnalysisResponse struct {
	TotalBought          float64                     `json:"total_bought"`
	TotalSold            float64                     `json:"total_sold"`
	NetAmount            float64                     `json:"net_amount"`
	TotalInvested        float64                     `json:"total_invested"`
	TotalReceived        float64                     `json:"total_received"`
	RealizedProfitLoss   float64                     `json:"realized_profit_loss"`
	UnrealizedProfitLoss float64                     `json:"unrealized_profit_loss"`
	Transactions         []transactionDetailResponse `json:"transactions"`
}

func newAssetAnalysisResponse(a *ledger.AssetAnalysis) assetAnalysisResponse {
	transactions := make([]transactionDetailResponse, 0, len(a.Transactions))
	for _, detail := range a.Transactions {
		row := transactionDetailResponse{
			ID:     detail.ID.String(),
			Date:   detail.Date.Format(dateLayout),
			Type:   string(detail.Type),
			Amount: units(detail.Amount),
			Price:  money(detail.PriceUSD),
			Value:  money(detail.ValueUSD),
		}
		if detail.Type == domain.TransactionTypeSell {
			profitLoss := money(detail.ProfitLoss)
			profitLossPct := money(detail.ProfitLossPercent)
			row.ProfitLoss = &profitLoss
			row.ProfitLossPercent = &profitLossPct
		}
		transactions = append(transactions, row)
	}

	return assetAnalysisResponse{
		TotalBought:          units(a.TotalBought),
		TotalSold:            units(a.TotalSold),
		NetAmount:            units(a.NetAmount),
		TotalInvested:        money(a.TotalInvestedUSD),
		TotalReceived:        money(a.TotalReceivedUSD),
		RealizedProfitLoss:   money(a.RealizedProfitLoss),
		UnrealizedProfitLoss: money(a.UnrealizedProfitLoss),
		Transactions:         transactions,
	}
}

type totalMetricsResponse struct {
	Invested         float64 `json:"invested"`
	CurrentValue     float64 `json:"current_value"`
	ProfitLoss       float64 `json:"profit_loss"`
	ROIPercent       float64 `json:"roi_percent"`
	AnnualizedReturn float64 `json:"annualized_return"`
	DaysInvested     int     `json:"days_invested"`
}

type assetMetricsResponse struct {
	Invested         float64 `json:"invested"`
	CurrentValue     float64 `json:"current_value"`
	ProfitLoss       float64 `json:"profit_loss"`
	ROIPercent       float64 `json:"roi_percent"`
	AllocationPct    float64 `json:"allocation_percent"`
	AvgPurchasePrice float64 `json:"avg_purchase_price"`
	CurrentPrice     float64 `json:"current_price"`
	Holdings         float64 `json:"holdings"`
}

type dcaAnalysisResponse struct {
	DCAVsLumpSumPercent float64 `json:"dca_vs_lump_sum_percent"`
	WeeklyAvgInvestment float64 `json:"weekly_avg_investment"`
	TotalWeeksInvested  float64 `json:"total_weeks_invested"`
}

type weekPeriodResponse struct {
	Date          *string `json:"date"`
	ReturnPercent float64 `json:"return_percent"`
}

type performancePeriodsResponse struct {
	BestWeek  weekPeriodResponse `json:"best_week"`
	WorstWeek weekPeriodResponse `json:"worst_week"`
}

type performanceResponse struct {
	TotalMetrics       totalMetricsResponse       `json:"total_metrics"`
	BTCMetrics         assetMetricsResponse       `json:"btc_metrics"`
	ETHMetrics         assetMetricsResponse       `json:"eth_metrics"`
	DCAAnalysis        dcaAnalysisResponse        `json:"dca_analysis"`
	PerformancePeriods performancePeriodsResponse `json:"performance_periods"`
}

func newPerformanceResponse(report *analytics.PerformanceReport) performanceResponse {
	s := report.Summary
	resp := performanceResponse{
		TotalMetrics: totalMetricsResponse{
			Invested:         money(s.TotalInvestedUSD),
			CurrentValue:     money(s.TotalValueUSD),
			ProfitLoss:       money(s.ProfitLossUSD),
			ROIPercent:       money(s.PercentChange),
			AnnualizedReturn: round2(report.AnnualizedReturn),
			DaysInvested:     report.DaysInvested,
		},
		BTCMetrics: newAssetMetricsResponse(s.Assets[domain.AssetBitcoin]),
		ETHMetrics: newAssetMetricsResponse(s.Assets[domain.AssetEthereum]),
		DCAAnalysis: dcaAnalysisResponse{
			DCAVsLumpSumPercent: round2(report.DCAVsLumpSumPercent),
			WeeklyAvgInvestment: money(report.WeeklyAvgInvestment),
			TotalWeeksInvested:  math.Round(report.TotalWeeksInvested*10) / 10,
		},
	}

	resp.PerformancePeriods.BestWeek = newWeekPeriodResponse(report.BestWeek)
	resp.PerformancePeriods.WorstWeek = newWeekPeriodResponse(report.WorstWeek)
	return resp
}

func newAssetMetricsResponse(m valuation.AssetMetrics) assetMetricsResponse {
	return assetMetricsResponse{
		Invested:         money(m.InvestedUSD),
		CurrentValue:     money(m.ValueUSD),
		ProfitLoss:       money(m.ProfitLossUSD),
		ROIPercent:       money(m.PercentChange),
		AllocationPct:    money(m.AllocationPercent),
		AvgPurchasePrice: money(m.AvgPurchasePrice),
		CurrentPrice:     money(m.CurrentPriceUSD),
		Holdings:         units(m.Held),
	}
}

func newWeekPeriodResponse(week *analytics.WeekPerformance) weekPeriodResponse {
	if week == nil {
		return weekPeriodResponse{}
	}
	date := week.Date.Format(dateLayout)
	return weekPeriodResponse{
		Date:          &date,
		ReturnPercent: round2(week.ReturnPercent),
	}
}

type riskMetricsResponse struct {
	Volatility           float64 `json:"volatility"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	ValueAtRisk95        float64 `json:"value_at_risk_95"`
	ValueAtRiskDollar    float64 `json:"value_at_risk_dollar"`
}

type analyticsPerformanceResponse struct {
	DailyReturnAvg   float64 `json:"daily_return_avg"`
	AnnualizedReturn float64 `json:"annualized_return"`
	TotalReturn      float64 `json:"total_return"`
	DaysTracked      int     `json:"days_tracked"`
}

type compositionResponse struct {
	BTCAllocation        float64 `json:"btc_allocation"`
	ETHAllocation        float64 `json:"eth_allocation"`
	DiversificationScore float64 `json:"diversification_score"`
}

type marketDataResponse struct {
	PortfolioValue float64 `json:"portfolio_value"`
	TotalInvested  float64 `json:"total_invested"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
}

type portfolioAnalyticsResponse struct {
	RiskMetrics        riskMetricsResponse          `json:"risk_metrics"`
	PerformanceMetrics analyticsPerformanceResponse `json:"performance_metrics"`
	Composition        compositionResponse          `json:"portfolio_composition"`
	MarketData         marketDataResponse           `json:"market_data"`
}

func newPortfolioAnalyticsResponse(r *analytics.RiskReport) portfolioAnalyticsResponse {
	return portfolioAnalyticsResponse{
		RiskMetrics: riskMetricsResponse{
			Volatility:           round2(r.Volatility * 100),
			AnnualizedVolatility: round2(r.AnnualizedVolatility * 100),
			SharpeRatio:          round3(r.SharpeRatio),
			MaxDrawdown:          round2(r.MaxDrawdown * 100),
			ValueAtRisk95:        round2(r.ValueAtRisk95 * 100),
			ValueAtRiskDollar:    round2(r.ValueAtRisk95USD),
		},
		PerformanceMetrics: analyticsPerformanceResponse{
			DailyReturnAvg:   round3(r.DailyReturnAvg * 100),
			AnnualizedReturn: round2(r.AnnualizedReturn * 100),
			TotalReturn:      round2(r.TotalReturnPercent),
			DaysTracked:      r.DaysTracked,
		},
		Composition: compositionResponse{
			BTCAllocation:        math.Round(r.AllocationByAsset[domain.AssetBitcoin]*1000) / 10,
			ETHAllocation:        math.Round(r.AllocationByAsset[domain.AssetEthereum]*1000) / 10,
			DiversificationScore: round3(r.DiversificationScore),
		},
		MarketData: marketDataResponse{
			PortfolioValue: money(r.PortfolioValueUSD),
			TotalInvested:  money(r.TotalInvestedUSD),
			UnrealizedPnL:  money(r.UnrealizedPnLUSD),
		},
	}
}

type portfolioBenchmarkResponse struct {
	ReturnPercent float64 `json:"return_percent"`
	StartValue    float64 `json:"start_value"`
	EndValue      float64 `json:"end_value"`
	PeriodDays    int     `json:"period_days"`
}

type assetBenchmarkResponse struct {
	ReturnPercent  float64 `json:"return_percent"`
	Outperformance float64 `json:"outperformance"`
	StartPrice     float64 `json:"start_price"`
	EndPrice       float64 `json:"end_price"`
}

type balancedBenchmarkResponse struct {
	ReturnPercent  float64 `json:"return_percent"`
	Outperformance float64 `json:"outperformance"`
	Description    string  `json:"description"`
}

type benchmarksResponse struct {
	Portfolio portfolioBenchmarkResponse `json:"portfolio_performance"`
	BTC       assetBenchmarkResponse     `json:"btc_benchmark"`
	ETH       assetBenchmarkResponse     `json:"eth_benchmark"`
	Balanced  balancedBenchmarkResponse  `json:"balanced_benchmark"`
}

func newBenchmarksResponse(r *analytics.BenchmarkReport) benchmarksResponse {
	return benchmarksResponse{
		Portfolio: portfolioBenchmarkResponse{
			ReturnPercent: round2(r.PortfolioReturnPct),
			StartValue:    money(r.StartValueUSD),
			EndValue:      money(r.EndValueUSD),
			PeriodDays:    r.PeriodDays,
		},
		BTC: newAssetBenchmarkResponse(r, domain.AssetBitcoin),
		ETH: newAssetBenchmarkResponse(r, domain.AssetEthereum),
		Balanced: balancedBenchmarkResponse{
			ReturnPercent:  round2(r.BalancedReturnPct),
			Outperformance: round2(r.PortfolioReturnPct - r.BalancedReturnPct),
			Description:    "50% BTC / 50% ETH",
		},
	}
}

func newAssetBenchmarkResponse(r *analytics.BenchmarkReport, asset domain.Asset) assetBenchmarkResponse {
	return assetBenchmarkResponse{
		ReturnPercent:  round2(r.AssetReturnPct[asset]),
		Outperformance: round2(r.PortfolioReturnPct - r.AssetReturnPct[asset]),
		StartPrice:     money(r.AssetStartPrice[asset]),
		EndPrice:       money(r.AssetEndPrice[asset]),
	}
}

type alertResponse struct {
	ID          string  `json:"id"`
	Coin        string  `json:"coin"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
	Email       string  `json:"email"`
	Description string  `json:"description"`
	Enabled     bool    `json:"enabled"`
	CreatedAt   string  `json:"created_at"`
}

func newAlertResponse(a *domain.PriceAlert) alertResponse {
	return alertResponse{
		ID:          a.ID.String(),
		Coin:        string(a.Asset),
		TargetPrice: money(a.TargetPrice),
		Condition:   string(a.Condition),
		Email:       a.Email,
		Description: a.Description,
		Enabled:     a.Enabled,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
