package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// stubPrices serves a fixed price pair for every date except the listed
// unavailable ones, counting lookups per date
type stubPrices struct {
	pair        domain.SpotPrices
	unavailable map[string]bool
	lookups     map[string]int
}

func newStubPrices(btc, eth int64) *stubPrices {
	return &stubPrices{
		pair: domain.SpotPrices{
			domain.AssetBitcoin:  decimal.NewFromInt(btc),
			domain.AssetEthereum: decimal.NewFromInt(eth),
		},
		unavailable: make(map[string]bool),
		lookups:     make(map[string]int),
	}
}

func (s *stubPrices) PricesOn(_ context.Context, date time.Time) (domain.SpotPrices, bool) {
	key := domain.DateKey(date)
	s.lookups[key]++
	if s.unavailable[key] {
		return nil, false
	}
	return s.pair, true
}

func weeklyPlanStart() time.Time {
	return time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)
}

func TestSimulate_TenWeeksConstantPrices(t *testing.T) {
	// Scenario: $100/week bitcoin ($102 with fee), $50 biweekly ethereum
	// ($51.80 with fee), constant $50,000 / $3,000 prices, 10 weekly periods.
	prices := newStubPrices(50000, 3000)
	sim := NewSimulator(prices, domain.DefaultPlan())

	asOf := weeklyPlanStart().AddDate(0, 0, 9*7) // periods 0..9 inclusive
	result := sim.Simulate(context.Background(), domain.FrequencyWeekly, asOf)

	// 10 x (100 / 50000) = 0.02 BTC for 10 x $102 = $1020
	assert.InDelta(t, 0.02, result.PrimaryHeld.InexactFloat64(), 1e-9)
	assert.True(t, decimal.NewFromInt(1020).Equal(result.PrimaryInvestedUSD))

	// Secondary buys land on periods 0, 2, 4, 6, 8: 5 x (50 / 3000) units
	assert.InDelta(t, 5.0*50.0/3000.0, result.SecondaryHeld.InexactFloat64(), 1e-9)
	assert.InDelta(t, 259.0, result.SecondaryInvestedUSD.InexactFloat64(), 1e-9)

	// Valued at the same constant prices the portfolio is worth $1250
	// against $1279 invested: a $29 loss
	value := result.PrimaryHeld.Mul(decimal.NewFromInt(50000)).
		Add(result.SecondaryHeld.Mul(decimal.NewFromInt(3000)))
	assert.InDelta(t, 1250.0, value.InexactFloat64(), 1e-9)
	assert.InDelta(t, -29.0, value.Sub(result.TotalInvestedUSD()).InexactFloat64(), 1e-9)
}

func TestSimulate_SecondaryCadenceIsCeilHalf(t *testing.T) {
	prices := newStubPrices(50000, 3000)
	sim := NewSimulator(prices, domain.DefaultPlan())

	secondaryCost := decimal.NewFromFloat(51.8)
	for _, periods := range []int{1, 2, 3, 4, 7, 10, 11} {
		asOf := weeklyPlanStart().AddDate(0, 0, (periods-1)*7)
		result := sim.Simulate(context.Background(), domain.FrequencyWeekly, asOf)

		expectedBuys := (periods + 1) / 2 // ceil(N/2) for 0-indexed even periods
		expectedInvested := secondaryCost.Mul(decimal.NewFromInt(int64(expectedBuys)))
		assert.True(t, expectedInvested.Equal(result.SecondaryInvestedUSD),
			"periods=%d: expected %d secondary buys", periods, expectedBuys)
	}
}

func TestSimulate_SkippedPeriodStillAdvancesCounter(t *testing.T) {
	prices := newStubPrices(50000, 3000)
	// Period 2 (an even, secondary-buying period) has no price data
	prices.unavailable[domain.DateKey(weeklyPlanStart().AddDate(0, 0, 14))] = true
	sim := NewSimulator(prices, domain.DefaultPlan())

	asOf := weeklyPlanStart().AddDate(0, 0, 4*7) // periods 0..4
	result := sim.Simulate(context.Background(), domain.FrequencyWeekly, asOf)

	// Primary buys on periods 0, 1, 3, 4; the skipped period's money is
	// simply not simulated as spent
	assert.True(t, decimal.NewFromInt(408).Equal(result.PrimaryInvestedUSD))

	// Secondary buys only on the remaining even periods 0 and 4; the skip
	// does not shift later periods' parity
	assert.InDelta(t, 103.6, result.SecondaryInvestedUSD.InexactFloat64(), 1e-9)
}

func TestSimulate_InclusiveEndBoundary(t *testing.T) {
	prices := newStubPrices(50000, 3000)
	sim := NewSimulator(prices, domain.DefaultPlan())

	// asOf exactly on a period boundary includes that period
	onBoundary := sim.Simulate(context.Background(), domain.FrequencyWeekly, weeklyPlanStart().AddDate(0, 0, 7))
	assert.True(t, decimal.NewFromInt(204).Equal(onBoundary.PrimaryInvestedUSD))

	// asOf one day earlier does not
	beforeBoundary := sim.Simulate(context.Background(), domain.FrequencyWeekly, weeklyPlanStart().AddDate(0, 0, 6))
	assert.True(t, decimal.NewFromInt(102).Equal(beforeBoundary.PrimaryInvestedUSD))
}

func TestSimulate_Idempotent(t *testing.T) {
	prices := newStubPrices(48000, 2750)
	sim := NewSimulator(prices, domain.DefaultPlan())

	asOf := weeklyPlanStart().AddDate(0, 0, 6*7)
	first := sim.Simulate(context.Background(), domain.FrequencyWeekly, asOf)
	second := sim.Simulate(context.Background(), domain.FrequencyWeekly, asOf)

	assert.True(t, first.PrimaryHeld.Equal(second.PrimaryHeld))
	assert.True(t, first.SecondaryHeld.Equal(second.SecondaryHeld))
	assert.True(t, first.PrimaryInvestedUSD.Equal(second.PrimaryInvestedUSD))
	assert.True(t, first.SecondaryInvestedUSD.Equal(second.SecondaryInvestedUSD))
}

func TestSimulate_DailyFrequencyStepsByDay(t *testing.T) {
	prices := newStubPrices(50000, 3000)
	sim := NewSimulator(prices, domain.DefaultPlan())

	asOf := weeklyPlanStart().AddDate(0, 0, 3) // periods 0..3 daily
	result := sim.Simulate(context.Background(), domain.FrequencyDaily, asOf)

	assert.True(t, decimal.NewFromInt(408).Equal(result.PrimaryInvestedUSD))
	// Even daily periods 0 and 2 carry secondary buys
	assert.InDelta(t, 103.6, result.SecondaryInvestedUSD.InexactFloat64(), 1e-9)
}
