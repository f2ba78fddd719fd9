// Package analytics derives time-series, risk and performance metrics from
// the valuation pipeline: returns, volatility, Sharpe ratio, drawdown,
// Value-at-Risk, benchmark and DCA-versus-lump-sum comparisons.
//
// Monetary quantities stay in decimals; the statistical estimators operate on
// float64 fractions and are converted to percentages only at the
// presentation boundary.
package analytics

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

const (
	// riskFreeRate is the fixed 2% annual rate used in the Sharpe ratio
	riskFreeRate = 0.02

	// tradingDaysPerYear annualizes mean return (x365) and volatility
	// (x sqrt 365). The factor assumes daily-spaced snapshots and is applied
	// unchanged to coarser series; a known approximation.
	tradingDaysPerYear = 365.0

	// maxHistoryPoints caps a history walk to bound upstream API calls
	maxHistoryPoints = 200

	// lumpSumPrimaryWeight is the fixed primary-asset share of the
	// hypothetical lump-sum benchmark portfolio (67/33 split)
	lumpSumPrimaryWeight = 0.67
)

// ErrInsufficientHistory signals that too few snapshots exist for analysis
var ErrInsufficientHistory = errors.New("insufficient historical data for analysis")

// PriceSource supplies the price views the engine needs directly
type PriceSource interface {
	SpotPrices(ctx context.Context) domain.SpotPrices
	PricesOn(ctx context.Context, date time.Time) (domain.SpotPrices, bool)
}

// Engine computes portfolio analytics on top of the valuation service
type Engine struct {
	valuator *valuation.Service
	prices   PriceSource
	plan     domain.InvestmentPlan
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine creates an analytics engine
func NewEngine(valuator *valuation.Service, prices PriceSource, plan domain.InvestmentPlan, logger zerolog.Logger) *Engine {
	return &Engine{
		valuator: valuator,
		prices:   prices,
		plan:     plan,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source; tests pin it
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HistoryReport is a sampled portfolio value series
type HistoryReport struct {
	Period       Period
	IntervalDays int
	Snapshots    []valuation.Snapshot
}

// History walks the valuation pipeline backwards over the requested window.
// Days without price data are skipped silently; the series contains only
// days that could actually be valued.
func (e *Engine) History(ctx context.Context, period Period, aggregation Aggregation) (*HistoryReport, error) {
	days, interval := Resolve(period, aggregation)

	now := e.now()
	report := &HistoryReport{Period: period, IntervalDays: interval}

	for d := now.AddDate(0, 0, -days); !d.After(now) && len(report.Snapshots) < maxHistoryPoints; d = d.AddDate(0, 0, interval) {
		snapshot, ok, err := e.valuator.SnapshotAt(ctx, domain.FrequencyWeekly, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		report.Snapshots = append(report.Snapshots, snapshot)
	}

	e.logger.Info().
		Str("period", string(period)).
		Int("interval_days", interval).
		Int("data_points", len(report.Snapshots)).
		Msg("portfolio history generated")

	return report, nil
}

// RiskReport carries the risk estimators over the 30-day daily series.
// Ratio fields are fractions, not percentages.
type RiskReport struct {
	Volatility           float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	MaxDrawdown          float64
	ValueAtRisk95        float64
	ValueAtRisk95USD     float64

	DailyReturnAvg     float64
	AnnualizedReturn   float64
	TotalReturnPercent float64
	DaysTracked        int

	AllocationByAsset    map[domain.Asset]float64
	DiversificationScore float64

	PortfolioValueUSD decimal.Decimal
	TotalInvestedUSD  decimal.Decimal
	UnrealizedPnLUSD  decimal.Decimal
}

// RiskMetrics derives volatility, Sharpe, drawdown and VaR from the 30-day
// daily value series
func (e *Engine) RiskMetrics(ctx context.Context) (*RiskReport, error) {
	history, err := e.History(ctx, Period30D, AggregationAuto)
	if err != nil {
		return nil, err
	}
	if len(history.Snapshots) < 2 {
		return nil, ErrInsufficientHistory
	}

	values := make([]float64, len(history.Snapshots))
	for i, snapshot := range history.Snapshots {
		values[i] = snapshot.TotalValueUSD.InexactFloat64()
	}

	returns := periodReturns(values)
	if len(returns) == 0 {
		return nil, ErrInsufficientHistory
	}

	summary, err := e.valuator.Summary(ctx, domain.FrequencyWeekly)
	if err != nil {
		return nil, err
	}

	avgReturn := mean(returns)
	volatility := sampleStdDev(returns)
	annualizedReturn := avgReturn * tradingDaysPerYear
	annualizedVolatility := volatility * math.Sqrt(tradingDaysPerYear)

	sharpe := 0.0
	if annualizedVolatility > 0 {
		sharpe = (annualizedReturn - riskFreeRate) / annualizedVolatility
	}

	var95 := valueAtRisk95(returns)

	report := &RiskReport{
		Volatility:           volatility,
		AnnualizedVolatility: annualizedVolatility,
		SharpeRatio:          sharpe,
		MaxDrawdown:          maxDrawdown(values),
		ValueAtRisk95:        var95,
		ValueAtRisk95USD:     var95 * summary.TotalValueUSD.InexactFloat64(),
		DailyReturnAvg:       avgReturn,
		AnnualizedReturn:     annualizedReturn,
		TotalReturnPercent:   summary.PercentChange.InexactFloat64(),
		DaysTracked:          len(history.Snapshots),
		AllocationByAsset:    make(map[domain.Asset]float64, len(domain.Assets)),
		PortfolioValueUSD:    summary.TotalValueUSD,
		TotalInvestedUSD:     summary.TotalInvestedUSD,
		UnrealizedPnLUSD:     summary.ProfitLossUSD,
	}

	// Composition weights use invested capital, not market value
	sumSquares := 0.0
	for _, asset := range domain.Assets {
		weight := domain.Ratio(summary.Assets[asset].InvestedUSD, summary.TotalInvestedUSD).InexactFloat64()
		report.AllocationByAsset[asset] = weight
		sumSquares += weight * weight
	}
	report.DiversificationScore = 1 - sumSquares

	return report, nil
}

// WeekPerformance is one entry of the weekly-resampled value series
type WeekPerformance struct {
	Date          time.Time
	TotalValueUSD decimal.Decimal
	ReturnPercent float64
}

// PerformanceReport carries the headline portfolio performance analytics
type PerformanceReport struct {
	Summary          *valuation.Summary
	DaysInvested     int
	AnnualizedReturn float64

	DCAVsLumpSumPercent float64
	WeeklyAvgInvestment decimal.Decimal
	TotalWeeksInvested  float64

	BestWeek  *WeekPerformance
	WorstWeek *WeekPerformance
}

// PerformanceMetrics computes the comprehensive portfolio analytics: ROI,
// annualized return, the DCA-versus-lump-sum comparison and the best and
// worst weekly periods.
func (e *Engine) PerformanceMetrics(ctx context.Context) (*PerformanceReport, error) {
	summary, err := e.valuator.Summary(ctx, domain.FrequencyWeekly)
	if err != nil {
		return nil, err
	}

	now := e.now()
	daysInvested := int(now.Sub(e.plan.StartDate).Hours() / 24)

	report := &PerformanceReport{
		Summary:      summary,
		DaysInvested: daysInvested,
	}

	invested := summary.TotalInvestedUSD.InexactFloat64()
	value := summary.TotalValueUSD.InexactFloat64()

	yearsInvested := float64(daysInvested) / 365.25
	if yearsInvested > 0 && invested > 0 && value > 0 {
		report.AnnualizedReturn = (math.Pow(value/invested, 1/yearsInvested) - 1) * 100
	}

	if daysInvested > 0 {
		weeks := float64(daysInvested) / 7
		report.TotalWeeksInvested = weeks
		report.WeeklyAvgInvestment = summary.TotalInvestedUSD.Div(decimal.NewFromFloat(weeks))
	}

	report.DCAVsLumpSumPercent = e.dcaVsLumpSum(ctx, summary)

	weekly, err := e.weeklyPerformance(ctx)
	if err != nil {
		return nil, err
	}
	for i := range weekly {
		week := &weekly[i]
		if report.BestWeek == nil || week.ReturnPercent > report.BestWeek.ReturnPercent {
			report.BestWeek = week
		}
		if report.WorstWeek == nil || week.ReturnPercent < report.WorstWeek.ReturnPercent {
			report.WorstWeek = week
		}
	}

	return report, nil
}

// dcaVsLumpSum compares the portfolio against a hypothetical lump-sum
// investment of the same capital made entirely on the start date at a fixed
// 67/33 asset split, valued at current spot prices
func (e *Engine) dcaVsLumpSum(ctx context.Context, summary *valuation.Summary) float64 {
	startPrices, ok := e.prices.PricesOn(ctx, e.plan.StartDate)
	if !ok {
		return 0
	}

	invested := summary.TotalInvestedUSD.InexactFloat64()
	startPrimary := startPrices[domain.AssetBitcoin].InexactFloat64()
	startSecondary := startPrices[domain.AssetEthereum].InexactFloat64()
	if startPrimary <= 0 || startSecondary <= 0 {
		return 0
	}

	lumpPrimary := invested * lumpSumPrimaryWeight / startPrimary
	lumpSecondary := invested * (1 - lumpSumPrimaryWeight) / startSecondary

	lumpValue := lumpPrimary*summary.Assets[domain.AssetBitcoin].CurrentPriceUSD.InexactFloat64() +
		lumpSecondary*summary.Assets[domain.AssetEthereum].CurrentPriceUSD.InexactFloat64()
	if lumpValue <= 0 {
		return 0
	}

	return (summary.TotalValueUSD.InexactFloat64() - lumpValue) / lumpValue * 100
}

// weeklyPerformance re-runs the valuation pipeline at 7-day steps from the
// plan start and records week-over-week percentage changes
func (e *Engine) weeklyPerformance(ctx context.Context) ([]WeekPerformance, error) {
	now := e.now()

	var series []WeekPerformance
	var previous decimal.Decimal
	havePrevious := false

	for d := domain.Day(e.plan.StartDate); !d.After(domain.Day(now)); d = d.AddDate(0, 0, 7) {
		snapshot, ok, err := e.valuator.SnapshotAt(ctx, domain.FrequencyWeekly, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if havePrevious && previous.GreaterThan(decimal.Zero) {
			change := snapshot.TotalValueUSD.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
			series = append(series, WeekPerformance{
				Date:          snapshot.Date,
				TotalValueUSD: snapshot.TotalValueUSD,
				ReturnPercent: change.InexactFloat64(),
			})
		}

		previous = snapshot.TotalValueUSD
		havePrevious = true
	}

	return series, nil
}

// BenchmarkReport compares the portfolio's return against holding each asset
// alone and a 50/50 split, over the 30-day history window
type BenchmarkReport struct {
	PortfolioReturnPct float64
	StartValueUSD      decimal.Decimal
	EndValueUSD        decimal.Decimal
	PeriodDays         int

	AssetReturnPct    map[domain.Asset]float64
	AssetStartPrice   map[domain.Asset]decimal.Decimal
	AssetEndPrice     map[domain.Asset]decimal.Decimal
	BalancedReturnPct float64
}

// Benchmarks compares portfolio performance against the single-asset and
// 50/50 buy-and-hold baselines
func (e *Engine) Benchmarks(ctx context.Context) (*BenchmarkReport, error) {
	history, err := e.History(ctx, Period30D, AggregationAuto)
	if err != nil {
		return nil, err
	}
	if len(history.Snapshots) < 2 {
		return nil, ErrInsufficientHistory
	}

	first := history.Snapshots[0]
	last := history.Snapshots[len(history.Snapshots)-1]

	report := &BenchmarkReport{
		StartValueUSD:   first.TotalValueUSD,
		EndValueUSD:     last.TotalValueUSD,
		PeriodDays:      len(history.Snapshots),
		AssetReturnPct:  make(map[domain.Asset]float64, len(domain.Assets)),
		AssetStartPrice: make(map[domain.Asset]decimal.Decimal, len(domain.Assets)),
		AssetEndPrice:   make(map[domain.Asset]decimal.Decimal, len(domain.Assets)),
	}

	report.PortfolioReturnPct = fractionalReturn(first.TotalValueUSD, last.TotalValueUSD) * 100

	var balanced float64
	for _, asset := range domain.Assets {
		startPrice := first.Prices[asset]
		endPrice := last.Prices[asset]
		assetReturn := fractionalReturn(startPrice, endPrice)

		report.AssetStartPrice[asset] = startPrice
		report.AssetEndPrice[asset] = endPrice
		report.AssetReturnPct[asset] = assetReturn * 100
		balanced += assetReturn
	}
	report.BalancedReturnPct = balanced / float64(len(domain.Assets)) * 100

	return report, nil
}

func fractionalReturn(start, end decimal.Decimal) float64 {
	if start.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return end.Sub(start).Div(start).InexactFloat64()
}
