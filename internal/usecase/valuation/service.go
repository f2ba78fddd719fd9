// Package valuation combines simulated and manual holdings with prices to
// produce portfolio metrics, either for the present or as of an arbitrary
// past date.
package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/ledger"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/simulation"
)

// ErrPriceFetchFailed signals that a required daily price was unavailable
var ErrPriceFetchFailed = errors.New("price fetch failed")

// PriceSource supplies the three price views the valuator needs
type PriceSource interface {
	// SpotPrices returns the cached current quote pair; never fails
	SpotPrices(ctx context.Context) domain.SpotPrices

	// LivePrices returns an uncached quote pair; the error propagates
	LivePrices(ctx context.Context) (domain.SpotPrices, error)

	// PricesOn returns the daily pair for a calendar day, ok=false on miss
	PricesOn(ctx context.Context, date time.Time) (domain.SpotPrices, bool)
}

// Service values the combined simulated + manual portfolio
type Service struct {
	simulator    *simulation.Simulator
	transactions domain.TransactionRepository
	prices       PriceSource
	now          func() time.Time
}

// NewService creates a valuation service
func NewService(simulator *simulation.Simulator, transactions domain.TransactionRepository, prices PriceSource) *Service {
	return &Service{
		simulator:    simulator,
		transactions: transactions,
		prices:       prices,
		now:          time.Now,
	}
}

// WithClock overrides the time source; tests pin it
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Positions replays the DCA schedule up to asOf and folds in the manual
// ledger, yielding the derived per-asset state. The whole ledger is merged
// regardless of asOf, matching how the tracker has always replayed history.
func (s *Service) Positions(ctx context.Context, frequency domain.Frequency, asOf time.Time) (map[domain.Asset]*domain.PortfolioState, error) {
	result := s.simulator.Simulate(ctx, frequency, asOf)
	positions := result.Positions()

	transactions, err := s.transactions.List(ctx)
	if err != nil {
		return nil, err
	}
	ledger.Merge(transactions, positions)

	return positions, nil
}

// AssetMetrics holds the valuation of a single asset position
type AssetMetrics struct {
	Held              decimal.Decimal
	InvestedUSD       decimal.Decimal
	ValueUSD          decimal.Decimal
	ProfitLossUSD     decimal.Decimal
	PercentChange     decimal.Decimal
	AllocationPercent decimal.Decimal
	AvgPurchasePrice  decimal.Decimal
	CurrentPriceUSD   decimal.Decimal
}

// Summary holds the full portfolio valuation at current prices
type Summary struct {
	Assets           map[domain.Asset]AssetMetrics
	TotalInvestedUSD decimal.Decimal
	TotalValueUSD    decimal.Decimal
	ProfitLossUSD    decimal.Decimal
	PercentChange    decimal.Decimal
}

// Summary values the portfolio at the cached current spot prices
func (s *Service) Summary(ctx context.Context, frequency domain.Frequency) (*Summary, error) {
	positions, err := s.Positions(ctx, frequency, s.now())
	if err != nil {
		return nil, err
	}

	return s.summarize(positions, s.prices.SpotPrices(ctx)), nil
}

// LiveSummary values the portfolio at uncached live prices; upstream failure
// propagates instead of degrading to a stale quote
func (s *Service) LiveSummary(ctx context.Context, frequency domain.Frequency) (*Summary, error) {
	prices, err := s.prices.LivePrices(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := s.Positions(ctx, frequency, s.now())
	if err != nil {
		return nil, err
	}

	return s.summarize(positions, prices), nil
}

func (s *Service) summarize(positions map[domain.Asset]*domain.PortfolioState, prices domain.SpotPrices) *Summary {
	summary := &Summary{Assets: make(map[domain.Asset]AssetMetrics, len(domain.Assets))}

	for _, asset := range domain.Assets {
		position := positions[asset]
		if position == nil {
			position = &domain.PortfolioState{}
		}

		value := position.Held.Mul(prices[asset])
		summary.TotalValueUSD = summary.TotalValueUSD.Add(value)
		summary.TotalInvestedUSD = summary.TotalInvestedUSD.Add(position.InvestedUSD)

		summary.Assets[asset] = AssetMetrics{
			Held:             position.Held,
			InvestedUSD:      position.InvestedUSD,
			ValueUSD:         value,
			ProfitLossUSD:    value.Sub(position.InvestedUSD),
			PercentChange:    domain.Percent(value.Sub(position.InvestedUSD), position.InvestedUSD),
			AvgPurchasePrice: averagePrice(position.InvestedUSD, position.Held),
			CurrentPriceUSD:  prices[asset],
		}
	}

	summary.ProfitLossUSD = summary.TotalValueUSD.Sub(summary.TotalInvestedUSD)
	summary.PercentChange = domain.Percent(summary.ProfitLossUSD, summary.TotalInvestedUSD)

	// Allocation needs the grand total, so it fills in on a second pass
	for asset, metrics := range summary.Assets {
		metrics.AllocationPercent = domain.Percent(metrics.ValueUSD, summary.TotalValueUSD)
		summary.Assets[asset] = metrics
	}

	return summary
}

func averagePrice(invested, held decimal.Decimal) decimal.Decimal {
	if held.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return invested.Div(held)
}

// DailyChange holds the value movement between yesterday and today
type DailyChange struct {
	Today          time.Time
	Yesterday      time.Time
	ChangeByAsset  map[domain.Asset]decimal.Decimal
	TotalChangeUSD decimal.Decimal
}

// DailyChange values today's holdings at today's and yesterday's daily prices
// and reports the difference. Either day missing from the price source is an
// ErrPriceFetchFailed.
func (s *Service) DailyChange(ctx context.Context, frequency domain.Frequency) (*DailyChange, error) {
	today := s.now()
	yesterday := today.AddDate(0, 0, -1)

	positions, err := s.Positions(ctx, frequency, today)
	if err != nil {
		return nil, err
	}

	todayPrices, ok := s.prices.PricesOn(ctx, today)
	if !ok {
		return nil, ErrPriceFetchFailed
	}
	yesterdayPrices, ok := s.prices.PricesOn(ctx, yesterday)
	if !ok {
		return nil, ErrPriceFetchFailed
	}

	change := &DailyChange{
		Today:         domain.Day(today),
		Yesterday:     domain.Day(yesterday),
		ChangeByAsset: make(map[domain.Asset]decimal.Decimal, len(domain.Assets)),
	}

	for _, asset := range domain.Assets {
		position := positions[asset]
		if position == nil {
			position = &domain.PortfolioState{}
		}
		delta := position.Held.Mul(todayPrices[asset]).Sub(position.Held.Mul(yesterdayPrices[asset]))
		change.ChangeByAsset[asset] = delta
		change.TotalChangeUSD = change.TotalChangeUSD.Add(delta)
	}

	return change, nil
}

// Snapshot is the portfolio valued as of one past calendar day
type Snapshot struct {
	Date             time.Time
	TotalValueUSD    decimal.Decimal
	TotalInvestedUSD decimal.Decimal
	ProfitLossUSD    decimal.Decimal
	ROIPercent       decimal.Decimal
	AssetValues      map[domain.Asset]decimal.Decimal
	Prices           domain.SpotPrices
}

// SnapshotAt evaluates the valuation pipeline as of an arbitrary past date.
// asOf is threaded explicitly through the simulator; there is no process-wide
// "today" to overwrite and restore. ok=false means no price data exists for
// that day and the caller should skip it.
func (s *Service) SnapshotAt(ctx context.Context, frequency domain.Frequency, asOf time.Time) (Snapshot, bool, error) {
	positions, err := s.Positions(ctx, frequency, asOf)
	if err != nil {
		return Snapshot{}, false, err
	}

	prices, ok := s.prices.PricesOn(ctx, asOf)
	if !ok {
		return Snapshot{}, false, nil
	}

	snapshot := Snapshot{
		Date:        domain.Day(asOf),
		AssetValues: make(map[domain.Asset]decimal.Decimal, len(domain.Assets)),
		Prices:      prices,
	}

	for _, asset := range domain.Assets {
		position := positions[asset]
		if position == nil {
			position = &domain.PortfolioState{}
		}
		value := position.Held.Mul(prices[asset])
		snapshot.AssetValues[asset] = value
		snapshot.TotalValueUSD = snapshot.TotalValueUSD.Add(value)
		snapshot.TotalInvestedUSD = snapshot.TotalInvestedUSD.Add(position.InvestedUSD)
	}

	snapshot.ProfitLossUSD = snapshot.TotalValueUSD.Sub(snapshot.TotalInvestedUSD)
	snapshot.ROIPercent = domain.Percent(snapshot.ProfitLossUSD, snapshot.TotalInvestedUSD)

	return snapshot, true, nil
}
