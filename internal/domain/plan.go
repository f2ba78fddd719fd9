package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency represents the DCA purchase cadence
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts a string into a Frequency, falling back to weekly
// for unknown values (lenient by design: the query parameter is advisory)
func ParseFrequency(s string) Frequency {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s)
	}
	return FrequencyWeekly
}

// Interval returns the step between scheduled purchases.
// Monthly is approximated as 30 days, not calendar-month accurate; this is a
// known limitation of the plan being modeled.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// InvestmentPlan describes the fixed-schedule DCA plan being simulated.
//
// The primary asset is bought on every period; the secondary asset only on
// even period indices, i.e. at half the primary cadence. The total cost
// figures include the exchange fee charged on top of the converted amount.
type InvestmentPlan struct {
	StartDate time.Time

	PrimaryAmount    decimal.Decimal // USD converted to the primary asset per period
	PrimaryTotalCost decimal.Decimal // USD charged per period, fee included

	SecondaryAmount    decimal.Decimal // USD converted to the secondary asset per even period
	SecondaryTotalCost decimal.Decimal // USD charged per even period, fee included
}

// DefaultPlan returns the plan the tracker models: $100/week of bitcoin
// ($102 with fee) plus $50 of ethereum every other week ($51.80 with fee),
// starting 2025-01-25.
func DefaultPlan() InvestmentPlan {
	return InvestmentPlan{
		StartDate:          time.Date(2025, time.January, 25, 0, 0, 0, 0, time.UTC),
		PrimaryAmount:      decimal.NewFromInt(100),
		PrimaryTotalCost:   decimal.NewFromInt(102),
		SecondaryAmount:    decimal.NewFromInt(50),
		SecondaryTotalCost: decimal.NewFromFloat(51.8),
	}
}
