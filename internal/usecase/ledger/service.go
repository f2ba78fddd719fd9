// Package ledger manages the append-only manual transaction ledger and the
// two cost-basis views derived from it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// PriceSource supplies current prices for transactions entered without one
// and for unrealized P&L valuation
type PriceSource interface {
	// SpotPrices returns the cached current quote pair; never fails
	SpotPrices(ctx context.Context) domain.SpotPrices

	// LivePrices returns an uncached quote pair; the error propagates
	LivePrices(ctx context.Context) (domain.SpotPrices, error)
}

// Service handles manual transaction operations
type Service struct {
	repo   domain.TransactionRepository
	prices PriceSource
	now    func() time.Time
}

// NewService creates a ledger service
func NewService(repo domain.TransactionRepository, prices PriceSource) *Service {
	return &Service{repo: repo, prices: prices, now: time.Now}
}

// WithClock overrides the timestamp source; tests pin it
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddInput carries a validated-at-the-boundary transaction request.
// PriceUSD may be nil, in which case the current live price is used.
type AddInput struct {
	Date     time.Time
	Asset    domain.Asset
	Type     domain.TransactionType
	Amount   decimal.Decimal
	PriceUSD *decimal.Decimal
}

// Add appends a new manual transaction to the ledger.
// Sell transactions get their FIFO realized P&L fields computed here, once,
// against the ledger as it exists at creation time.
func (s *Service) Add(ctx context.Context, input AddInput) (*domain.ManualTransaction, error) {
	tx := &domain.ManualTransaction{
		ID:        uuid.New(),
		Date:      domain.Day(input.Date),
		Asset:     input.Asset,
		Type:      input.Type,
		Amount:    input.Amount,
		Timestamp: s.now(),
	}

	if input.PriceUSD != nil {
		tx.PriceUSD = *input.PriceUSD
	} else {
		live, err := s.prices.LivePrices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch current price: %w", err)
		}
		tx.PriceUSD = live[input.Asset]
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if tx.Type == domain.TransactionTypeSell {
		existing, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger for P&L calculation: %w", err)
		}
		tx.ProfitLoss, tx.ProfitLossPercent, tx.AverageBuyPrice = realizedProfitLoss(existing, tx)
	}

	if err := s.repo.Append(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// List returns the full ledger in date order
func (s *Service) List(ctx context.Context) ([]*domain.ManualTransaction, error) {
	return s.repo.List(ctx)
}

// Delete removes a transaction by ID
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// TransactionDetail is one ledger row in an asset analysis
type TransactionDetail struct {
	ID                uuid.UUID
	Date              time.Time
	Type              domain.TransactionType
	Amount            decimal.Decimal
	PriceUSD          decimal.Decimal
	ValueUSD          decimal.Decimal
	ProfitLoss        decimal.Decimal
	ProfitLossPercent decimal.Decimal
}

// AssetAnalysis aggregates the manual ledger for one asset, carrying both the
// realized P&L accumulated from sells and the unrealized P&L of what remains
type AssetAnalysis struct {
	TotalBought          decimal.Decimal
	TotalSold            decimal.Decimal
	NetAmount            decimal.Decimal
	TotalInvestedUSD     decimal.Decimal
	TotalReceivedUSD     decimal.Decimal
	RealizedProfitLoss   decimal.Decimal
	UnrealizedProfitLoss decimal.Decimal
	Transactions         []TransactionDetail
}

// Analysis aggregates the manual ledger per asset.
// Unrealized P&L values the net remaining amount at the current spot price
// against the remaining cost (invested minus received).
func (s *Service) Analysis(ctx context.Context) (map[domain.Asset]*AssetAnalysis, error) {
	transactions, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	currentPrices := s.prices.SpotPrices(ctx)

	analysis := make(map[domain.Asset]*AssetAnalysis, len(domain.Assets))
	for _, asset := range domain.Assets {
		analysis[asset] = &AssetAnalysis{Transactions: []TransactionDetail{}}
	}

	for _, tx := range transactions {
		entry, ok := analysis[tx.Asset]
		if !ok {
			continue
		}

		detail := TransactionDetail{
			ID:       tx.ID,
			Date:     tx.Date,
			Type:     tx.Type,
			Amount:   tx.Amount,
			PriceUSD: tx.PriceUSD,
			ValueUSD: tx.TotalValueUSD(),
		}

		switch tx.Type {
		case domain.TransactionTypeBuy:
			entry.TotalBought = entry.TotalBought.Add(tx.Amount)
			entry.TotalInvestedUSD = entry.TotalInvestedUSD.Add(detail.ValueUSD)
			entry.NetAmount = entry.NetAmount.Add(tx.Amount)
		case domain.TransactionTypeSell:
			entry.TotalSold = entry.TotalSold.Add(tx.Amount)
			entry.TotalReceivedUSD = entry.TotalReceivedUSD.Add(detail.ValueUSD)
			entry.NetAmount = entry.NetAmount.Sub(tx.Amount)
			entry.RealizedProfitLoss = entry.RealizedProfitLoss.Add(tx.ProfitLoss)
			detail.ProfitLoss = tx.ProfitLoss
			detail.ProfitLossPercent = tx.ProfitLossPercent
		}

		entry.Transactions = append(entry.Transactions, detail)
	}

	for _, asset := range domain.Assets {
		entry := analysis[asset]
		if entry.NetAmount.GreaterThan(decimal.Zero) {
			currentValue := entry.NetAmount.Mul(currentPrices[asset])
			remainingCost := entry.TotalInvestedUSD.Sub(entry.TotalReceivedUSD)
			entry.UnrealizedProfitLoss = currentValue.Sub(remainingCost)
		}
	}

	return analysis, nil
}
