package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies one of the two tracked cryptocurrencies
type Asset string

const (
	AssetBitcoin  Asset = "bitcoin"
	AssetEthereum Asset = "ethereum"
)

// Assets lists every tracked asset in a stable order (primary first)
var Assets = []Asset{AssetBitcoin, AssetEthereum}

// ParseAsset converts a string into an Asset
// Returns an error for anything other than the two tracked coins
func ParseAsset(s string) (Asset, error) {
	switch Asset(s) {
	case AssetBitcoin, AssetEthereum:
		return Asset(s), nil
	}
	return "", errors.New("asset must be either bitcoin or ethereum")
}

// DisplayName returns the human-readable coin name used in notifications and exports
func (a Asset) DisplayName() string {
	switch a {
	case AssetBitcoin:
		return "Bitcoin"
	case AssetEthereum:
		return "Ethereum"
	}
	return string(a)
}

// Ticker returns the exchange symbol for the asset
func (a Asset) Ticker() string {
	switch a {
	case AssetBitcoin:
		return "BTC"
	case AssetEthereum:
		return "ETH"
	}
	return ""
}

// SpotPrices holds one USD quote per asset for a single instant
type SpotPrices map[Asset]decimal.Decimal

// Complete reports whether a positive quote exists for every tracked asset
func (p SpotPrices) Complete() bool {
	for _, asset := range Assets {
		price, ok := p[asset]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			return false
		}
	}
	return true
}

// PricePoint represents a cached historical daily price for one asset
// Immutable once stored; uniqueness is enforced on (date, asset)
type PricePoint struct {
	Date     time.Time
	Asset    Asset
	PriceUSD decimal.Decimal
}

// Validate ensures the price point adheres to domain rules
func (p *PricePoint) Validate() error {
	if _, err := ParseAsset(string(p.Asset)); err != nil {
		return err
	}
	if p.PriceUSD.LessThanOrEqual(decimal.Zero) {
		return errors.New("price must be positive")
	}
	if p.Date.IsZero() {
		return errors.New("price point date cannot be zero")
	}
	return nil
}

// Day truncates a timestamp to calendar-day granularity in UTC
// All price cache keys and simulation steps operate on days, never times
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a day as DD-MM-YYYY, the cache key format shared with the
// CoinGecko history endpoint
func DateKey(t time.Time) string {
	return t.Format("02-01-2006")
}
