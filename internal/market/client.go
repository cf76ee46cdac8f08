// Package market provides the external price table: a CoinAPI REST client
// with a TTL cache, optionally refreshed live over a websocket feed.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	assetsPath = "/v1/assets"
	maxAssets  = 50
)

// Listing bounds: assets priced outside this USD range are dropped from the
// offerings table.
var (
	minPriceUSD = decimal.RequireFromString("0.0001")
	maxPriceUSD = decimal.NewFromInt(100_000)
)

// assetResponse mirrors one entry of the CoinAPI assets payload.
type assetResponse struct {
	AssetID      string   `json:"asset_id"`
	TypeIsCrypto int      `json:"type_is_crypto"`
	PriceUSD     *float64 `json:"price_usd"`
}

// Client fetches and caches the market price table. The cached table stays
// valid for the configured TTL and is refreshed lazily on the next read.
type Client struct {
	apiURL     string
	apiKey     string
	ttl        time.Duration
	httpClient *http.Client
	log        *slog.Logger

	mu        sync.RWMutex
	table     map[string]decimal.Decimal
	fetchedAt time.Time
}

// NewClient creates a price client. ttlMin caps how long a fetched table is
// served before a refresh.
func NewClient(apiURL, apiKey string, ttlMin int, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		ttl:    time.Duration(ttlMin) * time.Minute,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Prices returns a copy of the current price table, refreshing it from the
// API when the cache has expired.
func (c *Client) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	c.mu.RLock()
	if c.table != nil && time.Since(c.fetchedAt) < c.ttl {
		defer c.mu.RUnlock()
		return copyTable(c.table), nil
	}
	c.mu.RUnlock()

	table, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.table = table
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return copyTable(table), nil
}

// SetPrice overrides one cached entry. The websocket feed calls this between
// REST refreshes; unknown assets and prices outside the listing bounds are
// ignored, so the feed can neither grow the listed set past the REST filter
// nor push a cached price out of the tradable range.
func (c *Client) SetPrice(asset string, price decimal.Decimal) {
	if price.LessThan(minPriceUSD) || price.GreaterThan(maxPriceUSD) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table == nil {
		return
	}
	if _, ok := c.table[asset]; ok {
		c.table[asset] = price
	}
}

func (c *Client) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+assetsPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CoinAPI-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("price provider server error: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("price provider rejected request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var assets []assetResponse
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, fmt.Errorf("malformed price payload: %w", err)
	}

	table := make(map[string]decimal.Decimal)
	for _, a := range assets {
		if len(table) >= maxAssets {
			break
		}
		if a.TypeIsCrypto != 1 || a.PriceUSD == nil {
			continue
		}
		price := decimal.NewFromFloat(*a.PriceUSD)
		if price.LessThan(minPriceUSD) || price.GreaterThan(maxPriceUSD) {
			continue
		}
		table[a.AssetID] = price
	}

	c.log.Info("price table refreshed", slog.Int("assets", len(table)))
	return table, nil
}

func copyTable(table map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(table))
	for asset, price := range table {
		out[asset] = price
	}
	return out
}
