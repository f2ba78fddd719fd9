package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared by repository implementations
var (
	// ErrPriceNotCached signals a price cache miss for a (date, asset) key
	ErrPriceNotCached = errors.New("price not cached for date")

	// ErrTransactionNotFound signals a delete/list miss on the manual ledger
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlertNotFound signals a delete miss on the alert store
	ErrAlertNotFound = errors.New("alert not found")
)

// PriceCacheRepository defines the interface for the persistent historical
// price cache. Entries are append-only: a date once stored is never refetched
// or overwritten.
type PriceCacheRepository interface {
	// Lookup retrieves the cached prices for every tracked asset on a day
	// Returns ErrPriceNotCached when any tracked asset is missing for the day
	Lookup(ctx context.Context, date time.Time) (SpotPrices, error)

	// Store persists one price point per asset for a day
	// Storing an already-cached (date, asset) pair is a no-op
	Store(ctx context.Context, date time.Time, prices SpotPrices) error
}

// TransactionRepository defines the interface for manual ledger persistence
type TransactionRepository interface {
	// Append adds a transaction to the end of the ledger
	Append(ctx context.Context, tx *ManualTransaction) error

	// List retrieves all transactions in ledger (date, then insertion) order
	List(ctx context.Context) ([]*ManualTransaction, error)

	// Delete removes a transaction by ID
	// Returns ErrTransactionNotFound if no such transaction exists
	Delete(ctx context.Context, id uuid.UUID) error
}

// AlertRepository defines the interface for price alert persistence
type AlertRepository interface {
	// Append adds a new alert
	Append(ctx context.Context, alert *PriceAlert) error

	// List retrieves all alerts in creation order
	List(ctx context.Context) ([]*PriceAlert, error)

	// Delete removes an alert by ID
	// Returns ErrAlertNotFound if no such alert exists
	Delete(ctx context.Context, id uuid.UUID) error
}
