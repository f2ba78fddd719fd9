// Package simulation replays the fixed-schedule DCA plan over a date range,
// producing accumulated holdings and cost basis per asset.
package simulation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// PriceSource supplies daily prices; days reported unavailable are skipped
type PriceSource interface {
	PricesOn(ctx context.Context, date time.Time) (domain.SpotPrices, bool)
}

// Result holds the accumulated output of one simulation run
type Result struct {
	PrimaryInvestedUSD   decimal.Decimal
	SecondaryInvestedUSD decimal.Decimal
	PrimaryHeld          decimal.Decimal
	SecondaryHeld        decimal.Decimal
}

// Positions converts the result into per-asset portfolio states
func (r Result) Positions() map[domain.Asset]*domain.PortfolioState {
	return map[domain.Asset]*domain.PortfolioState{
		domain.AssetBitcoin: {
			Held:        r.PrimaryHeld,
			InvestedUSD: r.PrimaryInvestedUSD,
		},
		domain.AssetEthereum: {
			Held:        r.SecondaryHeld,
			InvestedUSD: r.SecondaryInvestedUSD,
		},
	}
}

// TotalInvestedUSD returns the combined cost basis of both assets
func (r Result) TotalInvestedUSD() decimal.Decimal {
	return r.PrimaryInvestedUSD.Add(r.SecondaryInvestedUSD)
}

// Simulator replays an investment plan against historical prices
type Simulator struct {
	prices PriceSource
	plan   domain.InvestmentPlan
}

// NewSimulator creates a simulator for the given plan
func NewSimulator(prices PriceSource, plan domain.InvestmentPlan) *Simulator {
	return &Simulator{prices: prices, plan: plan}
}

// Plan returns the plan being simulated
func (s *Simulator) Plan() domain.InvestmentPlan {
	return s.plan
}

// Simulate steps from the plan's start date to asOf (inclusive) at the given
// frequency and credits scheduled purchases.
//
// The period counter advances on every step, including steps skipped for
// missing price data, so the secondary-asset cadence stays anchored to the
// calendar rather than to data availability. A skipped step credits nothing:
// that period's money is simply not simulated as spent.
//
// The primary asset is bought every period. The secondary asset is bought
// only on even period indices, half the primary cadence. That asymmetric
// cadence is part of the plan being modeled and must be preserved exactly.
//
// Simulate is a pure function of its inputs plus the price cache: it never
// fails, returning whatever accumulated up to the point reached.
func (s *Simulator) Simulate(ctx context.Context, frequency domain.Frequency, asOf time.Time) Result {
	var result Result

	interval := frequency.Interval()
	end := domain.Day(asOf)
	current := domain.Day(s.plan.StartDate)

	for period := 0; !current.After(end); period++ {
		prices, ok := s.prices.PricesOn(ctx, current)
		if !ok {
			current = current.Add(interval)
			continue
		}

		primaryPrice := prices[domain.AssetBitcoin]
		if primaryPrice.GreaterThan(decimal.Zero) {
			result.PrimaryHeld = result.PrimaryHeld.Add(s.plan.PrimaryAmount.Div(primaryPrice))
			result.PrimaryInvestedUSD = result.PrimaryInvestedUSD.Add(s.plan.PrimaryTotalCost)
		}

		if period%2 == 0 {
			secondaryPrice := prices[domain.AssetEthereum]
			if secondaryPrice.GreaterThan(decimal.Zero) {
				result.SecondaryHeld = result.SecondaryHeld.Add(s.plan.SecondaryAmount.Div(secondaryPrice))
				result.SecondaryInvestedUSD = result.SecondaryInvestedUSD.Add(s.plan.SecondaryTotalCost)
			}
		}

		current = current.Add(interval)
	}

	return result
}
