// Package coingecko implements the upstream price source adapter against the
// CoinGecko REST API.
//
// Two endpoints are consumed: /simple/price for the current spot quote of
// both tracked assets in a single call, and /coins/{id}/history for the
// closing price of one asset on one calendar day. Any non-200 response or
// parse failure is treated as unavailable for that call only; retries and
// fallbacks are the caller's concern.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	requestTimeout = 10 * time.Second
)

// ErrPriceUnavailable indicates the API answered but carried no usable price
var ErrPriceUnavailable = errors.New("price unavailable from upstream")

// Client is a thin HTTP client for the CoinGecko v3 API
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a CoinGecko client. An empty baseURL selects the public
// API endpoint; tests point it at a local httptest server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// SpotPrices fetches the current USD quote for both tracked assets in a
// single call to /simple/price
func (c *Client) SpotPrices(ctx context.Context) (domain.SpotPrices, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s,%s&vs_currencies=usd",
		c.baseURL, domain.AssetBitcoin, domain.AssetEthereum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build spot price request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spot price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spot price request returned status %d", resp.StatusCode)
	}

	// {"bitcoin":{"usd":N},"ethereum":{"usd":N}}
	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode spot price response: %w", err)
	}

	prices := make(domain.SpotPrices, len(domain.Assets))
	for _, asset := range domain.Assets {
		quote, ok := raw[string(asset)]
		if !ok || quote.USD <= 0 {
			return nil, fmt.Errorf("%w: no usd quote for %s", ErrPriceUnavailable, asset)
		}
		prices[asset] = decimal.NewFromFloat(quote.USD)
	}

	return prices, nil
}

// PriceOnDate fetches the USD closing price of one asset for one calendar day
// via /coins/{id}/history. CoinGecko addresses history by DD-MM-YYYY.
func (c *Client) PriceOnDate(ctx context.Context, asset domain.Asset, date time.Time) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/history?date=%s",
		c.baseURL, url.PathEscape(string(asset)), domain.DateKey(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build history request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	var raw struct {
		MarketData *struct {
			CurrentPrice struct {
				USD float64 `json:"usd"`
			} `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode history response: %w", err)
	}

	// Dates before the coin's listing come back without market_data
	if raw.MarketData == nil || raw.MarketData.CurrentPrice.USD <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrPriceUnavailable, asset, domain.DateKey(date))
	}

	return decimal.NewFromFloat(raw.MarketData.CurrentPrice.USD), nil
}
