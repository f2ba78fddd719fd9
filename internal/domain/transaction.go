package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a manual transaction
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "buy"
	TransactionTypeSell TransactionType = "sell"
)

// Reasonable upper bounds enforced at the ingestion boundary
var (
	maxTransactionAmount = decimal.NewFromInt(1_000_000)
	maxTransactionPrice  = decimal.NewFromInt(10_000_000)
)

// ManualTransaction represents a user-entered buy or sell merged into the
// simulated DCA plan. Transactions are append-only: they are never mutated
// after creation, only removed by ID.
//
// For sells, the realized P&L fields are computed once at creation time using
// the FIFO-weighted average cost of all prior buys for the asset. This is a
// different view than the net-invested merge used for ROI; both are kept.
type ManualTransaction struct {
	ID        uuid.UUID
	Date      time.Time
	Asset     Asset
	Type      TransactionType
	Amount    decimal.Decimal // asset units, always positive
	PriceUSD  decimal.Decimal // per-unit price, always positive
	Timestamp time.Time       // creation time, for audit ordering

	// Realized P&L, populated on sell transactions only
	ProfitLoss        decimal.Decimal
	ProfitLossPercent decimal.Decimal
	AverageBuyPrice   decimal.Decimal
}

// TotalValueUSD returns amount multiplied by price with no rounding
// Rounding happens only at the presentation boundary
func (t *ManualTransaction) TotalValueUSD() decimal.Decimal {
	return t.Amount.Mul(t.PriceUSD)
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *ManualTransaction) Validate() error {
	if _, err := ParseAsset(string(t.Asset)); err != nil {
		return err
	}
	if t.Type != TransactionTypeBuy && t.Type != TransactionTypeSell {
		return errors.New("transaction type must be either buy or sell")
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be greater than 0")
	}
	if t.Amount.GreaterThan(maxTransactionAmount) {
		return errors.New("amount too large (max: 1,000,000)")
	}
	if t.PriceUSD.LessThanOrEqual(decimal.Zero) {
		return errors.New("price must be greater than 0")
	}
	if t.PriceUSD.GreaterThan(maxTransactionPrice) {
		return errors.New("price too large (max: $10,000,000)")
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	return nil
}
