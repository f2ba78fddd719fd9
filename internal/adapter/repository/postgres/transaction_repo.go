package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new manual ledger repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Append adds a transaction to the end of the ledger
func (r *transactionRepository) Append(ctx context.Context, tx *domain.ManualTransaction) error {
	query := `
		INSERT INTO manual_transactions
			(id, date, asset, type, amount, price_usd, created_at,
			 profit_loss, profit_loss_percent, average_buy_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// Realized P&L columns stay NULL on buys
	var pl, plPercent, avgBuy sql.NullString
	if tx.Type == domain.TransactionTypeSell {
		pl = sql.NullString{String: tx.ProfitLoss.String(), Valid: true}
		plPercent = sql.NullString{String: tx.ProfitLossPercent.String(), Valid: true}
		avgBuy = sql.NullString{String: tx.AverageBuyPrice.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		domain.Day(tx.Date),
		string(tx.Asset),
		string(tx.Type),
		tx.Amount.String(),
		tx.PriceUSD.String(),
		tx.Timestamp,
		pl,
		plPercent,
		avgBuy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert manual transaction: %w", err)
	}

	return nil
}

// List retrieves all transactions ordered by date then creation time.
// Ledger order matters: the FIFO cost-basis computation replays buys in this
// order.
func (r *transactionRepository) List(ctx context.Context) ([]*domain.ManualTransaction, error) {
	query := `
		SELECT id, date, asset, type, amount, price_usd, created_at,
		       profit_loss, profit_loss_percent, average_buy_price
		FROM manual_transactions
		ORDER BY date ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.ManualTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manual transactions: %w", err)
	}

	return transactions, nil
}

// Delete removes a transaction by ID
func (r *transactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM manual_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete manual transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

func scanTransaction(rows *sql.Rows) (*domain.ManualTransaction, error) {
	var tx domain.ManualTransaction
	var asset, txType, amountStr, priceStr string
	var pl, plPercent, avgBuy sql.NullString

	err := rows.Scan(
		&tx.ID,
		&tx.Date,
		&asset,
		&txType,
		&amountStr,
		&priceStr,
		&tx.Timestamp,
		&pl,
		&plPercent,
		&avgBuy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan manual transaction: %w", err)
	}

	tx.Asset = domain.Asset(asset)
	tx.Type = domain.TransactionType(txType)

	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if tx.PriceUSD, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse price_usd: %w", err)
	}

	if pl.Valid {
		if tx.ProfitLoss, err = decimal.NewFromString(pl.String); err != nil {
			return nil, fmt.Errorf("failed to parse profit_loss: %w", err)
		}
	}
	if plPercent.Valid {
		if tx.ProfitLossPercent, err = decimal.NewFromString(plPercent.String); err != nil {
			return nil, fmt.Errorf("failed to parse profit_loss_percent: %w", err)
		}
	}
	if avgBuy.Valid {
		if tx.AverageBuyPrice, err = decimal.NewFromString(avgBuy.String); err != nil {
			return nil, fmt.Errorf("failed to parse average_buy_price: %w", err)
		}
	}

	return &tx, nil
}
