// Package export renders portfolio state, the manual ledger and the value
// history as downloadable CSV documents.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
	"github.com/mfigueiredo/crypto-dca-backend/internal/usecase/valuation"
)

const (
	// maxHistoryDays caps a history export to one year
	maxHistoryDays = 365

	filenameTimeLayout = "20060102_150405"
)

var (
	// ErrNoTransactions signals an export of an empty ledger
	ErrNoTransactions = errors.New("no transactions to export")

	// ErrNoHistory signals that no day in the window could be valued
	ErrNoHistory = errors.New("no historical data available")
)

// Document is a rendered CSV file ready to be served as an attachment
type Document struct {
	Filename string
	Data     []byte
}

// Service renders CSV exports from the valuation pipeline and the ledger
type Service struct {
	valuator     *valuation.Service
	transactions domain.TransactionRepository
	now          func() time.Time
}

// NewService creates an export service
func NewService(valuator *valuation.Service, transactions domain.TransactionRepository) *Service {
	return &Service{valuator: valuator, transactions: transactions, now: time.Now}
}

// WithClock overrides the time source; tests pin it
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Portfolio renders the current per-asset valuation with a totals row
func (s *Service) Portfolio(ctx context.Context) (*Document, error) {
	summary, err := s.valuator.Summary(ctx, domain.FrequencyWeekly)
	if err != nil {
		return nil, fmt.Errorf("value portfolio: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{
		"Asset", "Holdings", "Invested (USD)", "Current Value (USD)",
		"Profit/Loss (USD)", "ROI (%)", "Current Price (USD)",
	}}

	for _, asset := range domain.Assets {
		metrics := summary.Assets[asset]
		records = append(records, []string{
			fmt.Sprintf("%s (%s)", asset.DisplayName(), asset.Ticker()),
			metrics.Held.StringFixed(6),
			metrics.InvestedUSD.StringFixed(2),
			metrics.ValueUSD.StringFixed(2),
			metrics.ProfitLossUSD.StringFixed(2),
			metrics.PercentChange.StringFixed(2),
			metrics.CurrentPriceUSD.StringFixed(2),
		})
	}

	records = append(records, []string{
		"TOTAL PORTFOLIO", "",
		summary.TotalInvestedUSD.StringFixed(2),
		summary.TotalValueUSD.StringFixed(2),
		summary.ProfitLossUSD.StringFixed(2),
		summary.PercentChange.StringFixed(2),
		"",
	})

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Document{
		Filename: fmt.Sprintf("crypto_portfolio_%s.csv", s.now().Format(filenameTimeLayout)),
		Data:     buf.Bytes(),
	}, nil
}

// Transactions renders the full manual ledger
func (s *Service) Transactions(ctx context.Context) (*Document, error) {
	transactions, err := s.transactions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{
		"Date", "Asset", "Type", "Amount", "Price (USD)",
		"Value (USD)", "Profit/Loss (USD)", "ROI (%)", "Timestamp",
	}}

	for _, tx := range transactions {
		profitLoss, profitLossPct := "", ""
		if tx.Type == domain.TransactionTypeSell {
			profitLoss = tx.ProfitLoss.StringFixed(2)
			profitLossPct = tx.ProfitLossPercent.StringFixed(2)
		}

		records = append(records, []string{
			tx.Date.Format("2006-01-02"),
			tx.Asset.DisplayName(),
			string(tx.Type),
			tx.Amount.StringFixed(6),
			tx.PriceUSD.StringFixed(2),
			tx.TotalValueUSD().StringFixed(2),
			profitLoss,
			profitLossPct,
			tx.Timestamp.Format(time.RFC3339),
		})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Document{
		Filename: fmt.Sprintf("crypto_transactions_%s.csv", s.now().Format(filenameTimeLayout)),
		Data:     buf.Bytes(),
	}, nil
}

// History renders the daily value series over the requested number of days.
// Days beyond a year are clamped; days without price data are skipped.
func (s *Service) History(ctx context.Context, days int) (*Document, error) {
	if days <= 0 {
		days = 90
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	now := s.now()

	records := [][]string{{
		"Date", "Total Invested (USD)", "Total Value (USD)",
		"Profit/Loss (USD)", "ROI (%)", "BTC Price (USD)", "ETH Price (USD)",
	}}

	for d := now.AddDate(0, 0, -days); !d.After(now); d = d.AddDate(0, 0, 1) {
		snapshot, ok, err := s.valuator.SnapshotAt(ctx, domain.FrequencyWeekly, d)
		if err != nil {
			return nil, fmt.Errorf("value portfolio on %s: %w", d.Format("2006-01-02"), err)
		}
		if !ok {
			continue
		}

		records = append(records, []string{
			snapshot.Date.Format("2006-01-02"),
			snapshot.TotalInvestedUSD.StringFixed(2),
			snapshot.TotalValueUSD.StringFixed(2),
			snapshot.ProfitLossUSD.StringFixed(2),
			snapshot.ROIPercent.StringFixed(2),
			snapshot.Prices[domain.AssetBitcoin].StringFixed(2),
			snapshot.Prices[domain.AssetEthereum].StringFixed(2),
		})
	}

	if len(records) == 1 {
		return nil, ErrNoHistory
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Document{
		Filename: fmt.Sprintf("crypto_history_%ddays_%s.csv", days, s.now().Format(filenameTimeLayout)),
		Data:     buf.Bytes(),
	}, nil
}
