package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=dcatracker sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the three durable collections when they do not exist yet:
// the historical price cache, the manual ledger, and the alert store.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS price_points (
			date DATE NOT NULL,
			asset TEXT NOT NULL,
			price_usd NUMERIC NOT NULL,
			PRIMARY KEY (date, asset)
		)`,
		`CREATE TABLE IF NOT EXISTS manual_transactions (
			id UUID PRIMARY KEY,
			date DATE NOT NULL,
			asset TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			price_usd NUMERIC NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			profit_loss NUMERIC,
			profit_loss_percent NUMERIC,
			average_buy_price NUMERIC
		)`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id UUID PRIMARY KEY,
			asset TEXT NOT NULL,
			target_price NUMERIC NOT NULL,
			condition TEXT NOT NULL,
			email TEXT NOT NULL,
			description TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
