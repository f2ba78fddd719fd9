package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertCondition represents the trigger direction of a price alert
type AlertCondition string

const (
	AlertConditionAbove AlertCondition = "above"
	AlertConditionBelow AlertCondition = "below"
)

// PriceAlert represents a one-shot price threshold notification
// Lifecycle: created -> polled periodically -> triggered-and-removed,
// or deleted explicitly before triggering
type PriceAlert struct {
	ID          uuid.UUID
	Asset       Asset
	TargetPrice decimal.Decimal
	Condition   AlertCondition
	Email       string
	Description string
	Enabled     bool
	CreatedAt   time.Time
}

// Triggered reports whether the current price satisfies the alert condition
func (a *PriceAlert) Triggered(currentPrice decimal.Decimal) bool {
	switch a.Condition {
	case AlertConditionAbove:
		return currentPrice.GreaterThanOrEqual(a.TargetPrice)
	case AlertConditionBelow:
		return currentPrice.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// DefaultDescription builds the human-readable summary used when the client
// does not supply one
func (a *PriceAlert) DefaultDescription() string {
	return fmt.Sprintf("%s %s $%s", a.Asset.DisplayName(), a.Condition, a.TargetPrice.StringFixed(2))
}

// Validate ensures the alert adheres to domain rules
func (a *PriceAlert) Validate() error {
	if _, err := ParseAsset(string(a.Asset)); err != nil {
		return err
	}
	if a.Condition != AlertConditionAbove && a.Condition != AlertConditionBelow {
		return errors.New("condition must be either above or below")
	}
	if a.TargetPrice.LessThanOrEqual(decimal.Zero) {
		return errors.New("target price must be greater than 0")
	}
	email := strings.TrimSpace(a.Email)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return errors.New("invalid email format")
	}
	return nil
}
