package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// alertRepository implements domain.AlertRepository
type alertRepository struct {
	db *DB
}

// NewAlertRepository creates a new price alert repository
func NewAlertRepository(db *DB) domain.AlertRepository {
	return &alertRepository{db: db}
}

// Append adds a new alert
func (r *alertRepository) Append(ctx context.Context, alert *domain.PriceAlert) error {
	query := `
		INSERT INTO price_alerts
			(id, asset, target_price, condition, email, description, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Asset),
		alert.TargetPrice.String(),
		string(alert.Condition),
		alert.Email,
		alert.Description,
		alert.Enabled,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price alert: %w", err)
	}

	return nil
}

// List retrieves all alerts in creation order
func (r *alertRepository) List(ctx context.Context) ([]*domain.PriceAlert, error) {
	query := `
		SELECT id, asset, target_price, condition, email, description, enabled, created_at
		FROM price_alerts
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query price alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.PriceAlert
	for rows.Next() {
		var alert domain.PriceAlert
		var asset, condition, targetStr string

		err := rows.Scan(
			&alert.ID,
			&asset,
			&targetStr,
			&condition,
			&alert.Email,
			&alert.Description,
			&alert.Enabled,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price alert: %w", err)
		}

		alert.Asset = domain.Asset(asset)
		alert.Condition = domain.AlertCondition(condition)
		if alert.TargetPrice, err = decimal.NewFromString(targetStr); err != nil {
			return nil, fmt.Errorf("failed to parse target_price: %w", err)
		}

		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price alerts: %w", err)
	}

	return alerts, nil
}

// Delete removes an alert by ID
func (r *alertRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete price alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrAlertNotFound
	}

	return nil
}
