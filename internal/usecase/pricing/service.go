// Package pricing provides spot and historical prices to the rest of the
// system, layering caches and fallbacks over the upstream price API so that
// downstream computations always receive some price rather than failing.
package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

// historyCallDelay is the fixed pause between the per-asset history calls,
// respecting the upstream rate limit. A serialized delay, not a token bucket.
const historyCallDelay = time.Second

// FallbackPrices is the hardcoded pair served when the upstream API is down
// and no quote was ever cached
var FallbackPrices = domain.SpotPrices{
	domain.AssetBitcoin:  decimal.NewFromInt(50000),
	domain.AssetEthereum: decimal.NewFromInt(3000),
}

// PriceAPI is the upstream price source (CoinGecko in production)
type PriceAPI interface {
	// SpotPrices fetches the current quote for both assets in one call
	SpotPrices(ctx context.Context) (domain.SpotPrices, error)

	// PriceOnDate fetches the closing price of one asset on one day
	PriceOnDate(ctx context.Context, asset domain.Asset, date time.Time) (decimal.Decimal, error)
}

// SpotCache is the short-TTL quote cache with a stale last-good entry
type SpotCache interface {
	Get(ctx context.Context) (domain.SpotPrices, bool, error)
	GetStale(ctx context.Context) (domain.SpotPrices, bool, error)
	Set(ctx context.Context, prices domain.SpotPrices) error
}

// Service resolves prices through the cache/fallback chain
type Service struct {
	api        PriceAPI
	spotCache  SpotCache
	priceCache domain.PriceCacheRepository
	delay      time.Duration
	logger     zerolog.Logger
}

// NewService creates a pricing service
func NewService(api PriceAPI, spotCache SpotCache, priceCache domain.PriceCacheRepository, logger zerolog.Logger) *Service {
	return &Service{
		api:        api,
		spotCache:  spotCache,
		priceCache: priceCache,
		delay:      historyCallDelay,
		logger:     logger,
	}
}

// WithHistoryDelay overrides the inter-call pause; tests set it to zero
func (s *Service) WithHistoryDelay(d time.Duration) *Service {
	s.delay = d
	return s
}

// SpotPrices returns the current quote pair, degrading in order: fresh cache,
// upstream API, stale cached pair, hardcoded fallback. It never fails.
func (s *Service) SpotPrices(ctx context.Context) domain.SpotPrices {
	if cached, ok, err := s.spotCache.Get(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("spot cache read failed")
	} else if ok {
		return cached
	}

	prices, err := s.api.SpotPrices(ctx)
	if err == nil {
		if cacheErr := s.spotCache.Set(ctx, prices); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Msg("spot cache write failed")
		}
		s.logger.Info().
			Str("bitcoin", prices[domain.AssetBitcoin].String()).
			Str("ethereum", prices[domain.AssetEthereum].String()).
			Msg("fetched fresh spot prices")
		return prices
	}
	s.logger.Error().Err(err).Msg("spot price fetch failed")

	if stale, ok, cacheErr := s.spotCache.GetStale(ctx); cacheErr != nil {
		s.logger.Warn().Err(cacheErr).Msg("stale spot cache read failed")
	} else if ok {
		s.logger.Warn().Msg("serving stale spot prices after API failure")
		return stale
	}

	s.logger.Warn().Msg("serving fallback spot prices")
	return FallbackPrices
}

// LivePrices fetches the current quote pair directly from the upstream API,
// bypassing every cache. Used by the endpoints that promise fresh data; the
// error propagates.
func (s *Service) LivePrices(ctx context.Context) (domain.SpotPrices, error) {
	return s.api.SpotPrices(ctx)
}

// PricesOn returns the daily prices for both assets on a calendar day.
//
// The persistent cache is consulted first; a cached date never re-invokes the
// network adapter. On a miss both assets are fetched with the rate-limit
// pause in between and the pair is written through to the cache immediately,
// so a crash mid-simulation loses no progress. When either fetch fails the
// day is reported as unavailable (ok=false) and the caller skips it; the
// failure never aborts the surrounding computation.
func (s *Service) PricesOn(ctx context.Context, date time.Time) (domain.SpotPrices, bool) {
	day := domain.Day(date)

	cached, err := s.priceCache.Lookup(ctx, day)
	if err == nil {
		return cached, true
	}
	if err != domain.ErrPriceNotCached {
		s.logger.Warn().Err(err).Str("date", domain.DateKey(day)).Msg("price cache lookup failed")
		return nil, false
	}

	prices := make(domain.SpotPrices, len(domain.Assets))
	for _, asset := range domain.Assets {
		price, fetchErr := s.api.PriceOnDate(ctx, asset, day)
		if fetchErr != nil {
			s.logger.Warn().Err(fetchErr).
				Str("asset", string(asset)).
				Str("date", domain.DateKey(day)).
				Msg("historical price fetch failed")
			return nil, false
		}
		prices[asset] = price

		if !s.pause(ctx) {
			return nil, false
		}
	}

	if err := s.priceCache.Store(ctx, day, prices); err != nil {
		s.logger.Error().Err(err).Str("date", domain.DateKey(day)).Msg("price cache write failed")
	}

	return prices, true
}

// pause sleeps for the inter-call delay, returning false if the context was
// cancelled while waiting
func (s *Service) pause(ctx context.Context) bool {
	if s.delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
