package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// Merge folds the manual ledger into simulated positions, in ledger order.
//
// This is the net-invested cost-basis view used for ROI and allocation: a buy
// adds amount x price to the basis, a sell reduces the basis by the sale
// proceeds at the transaction price. It deliberately differs from the
// FIFO-matched realized P&L view computed per sell at creation time; the two
// views answer different questions and are both kept.
//
// Malformed entries are skipped individually; the merge never aborts. A sell
// may legitimately drive a position toward zero or negative when the ledger
// is inconsistent with the simulation; that is surfaced, not corrected.
func Merge(transactions []*domain.ManualTransaction, positions map[domain.Asset]*domain.PortfolioState) {
	for _, tx := range transactions {
		if tx == nil || tx.Validate() != nil {
			continue
		}

		position, ok := positions[tx.Asset]
		if !ok {
			position = &domain.PortfolioState{}
			positions[tx.Asset] = position
		}

		value := tx.TotalValueUSD()
		switch tx.Type {
		case domain.TransactionTypeBuy:
			position.Held = position.Held.Add(tx.Amount)
			position.InvestedUSD = position.InvestedUSD.Add(value)
		case domain.TransactionTypeSell:
			position.Held = position.Held.Sub(tx.Amount)
			position.InvestedUSD = position.InvestedUSD.Sub(value)
		}
	}
}

// realizedProfitLoss computes the FIFO-weighted realized P&L view for a sell:
// the weighted average cost of every prior-or-same-day buy of the asset, with
// profit = (sell price - weighted average) x sell amount.
//
// With no prior buys the weighted price is zero and all three results are
// reported as zero rather than dividing by nothing.
func realizedProfitLoss(ledger []*domain.ManualTransaction, sell *domain.ManualTransaction) (profitLoss, profitLossPercent, averageBuyPrice decimal.Decimal) {
	var totalBought, totalCost decimal.Decimal
	sellDay := domain.Day(sell.Date)

	for _, tx := range ledger {
		if tx == nil || tx.Asset != sell.Asset || tx.Type != domain.TransactionTypeBuy {
			continue
		}
		if domain.Day(tx.Date).After(sellDay) {
			continue
		}
		totalBought = totalBought.Add(tx.Amount)
		totalCost = totalCost.Add(tx.TotalValueUSD())
	}

	if totalBought.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	averageBuyPrice = totalCost.Div(totalBought)
	profitLoss = sell.PriceUSD.Sub(averageBuyPrice).Mul(sell.Amount)
	profitLossPercent = domain.Percent(sell.PriceUSD.Sub(averageBuyPrice), averageBuyPrice)

	return profitLoss, profitLossPercent, averageBuyPrice
}
