package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// priceCacheRepository implements domain.PriceCacheRepository
type priceCacheRepository struct {
	db *DB
}

// NewPriceCacheRepository creates a new historical price cache repository
func NewPriceCacheRepository(db *DB) domain.PriceCacheRepository {
	return &priceCacheRepository{db: db}
}

// Lookup retrieves the cached prices for every tracked asset on a day.
// A day with a partial asset set counts as a miss so the caller refetches the
// whole pair; Store's conflict handling keeps the existing half untouched.
func (r *priceCacheRepository) Lookup(ctx context.Context, date time.Time) (domain.SpotPrices, error) {
	query := `
		SELECT asset, price_usd
		FROM price_points
		WHERE date = $1
	`

	rows, err := r.db.QueryContext(ctx, query, domain.Day(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query price cache: %w", err)
	}
	defer rows.Close()

	prices := make(domain.SpotPrices, len(domain.Assets))
	for rows.Next() {
		var asset string
		var priceStr string
		if err := rows.Scan(&asset, &priceStr); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price_usd: %w", err)
		}
		prices[domain.Asset(asset)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price points: %w", err)
	}

	if !prices.Complete() {
		return nil, domain.ErrPriceNotCached
	}

	return prices, nil
}

// Store persists one price point per asset for a day.
// Entries are append-only: conflicting (date, asset) pairs are left as-is,
// never overwritten.
func (r *priceCacheRepository) Store(ctx context.Context, date time.Time, prices domain.SpotPrices) error {
	query := `
		INSERT INTO price_points (date, asset, price_usd)
		VALUES ($1, $2, $3)
		ON CONFLICT (date, asset) DO NOTHING
	`

	day := domain.Day(date)
	for _, asset := range domain.Assets {
		price, ok := prices[asset]
		if !ok {
			continue
		}
		if _, err := r.db.ExecContext(ctx, query, day, string(asset), price.String()); err != nil {
			return fmt.Errorf("failed to insert price point: %w", err)
		}
	}

	return nil
}
