package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/httputil"
	"github.com/mwhitt/alphascreen/pkg/logger"
	"github.com/mwhitt/alphascreen/pkg/redis"
)

const quoteCacheTTL = 24 * time.Hour

// Client fetches quotes and historical bars from the market data API.
// Quote fetches fall back to the last cached price when the upstream is
// unavailable; bar fetches do not (backtests must not run on stale data).
type Client struct {
	http    *httputil.Client
	cache   *redis.Cache
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

// NewClient creates a market data client from config.
func NewClient(cfg *config.Config, cache *redis.Cache, log *logger.Logger) *Client {
	httpClient := httputil.New(log, cfg.MarketData.Timeout).
		WithRateLimit(cfg.MarketData.RequestsPerSec)

	return &Client{
		http:    httpClient,
		cache:   cache,
		baseURL: strings.TrimRight(cfg.MarketData.BaseURL, "/"),
		apiKey:  cfg.MarketData.APIKey,
		logger:  log,
	}
}

type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type barResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// GetQuote returns the latest price for a symbol. On upstream failure the
// last cached quote is returned with Cached set; with no cached value the
// failure surfaces as an ExternalDataError.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	quote, err := c.fetchQuote(ctx, symbol)
	if err == nil {
		if cacheErr := c.cache.Set(ctx, quoteCacheKey(symbol), quote, quoteCacheTTL); cacheErr != nil {
			c.logger.WithError(cacheErr).Warn("Failed to cache quote")
		}
		return quote, nil
	}

	var cached contracts.Quote
	hit, cacheErr := c.cache.Get(ctx, quoteCacheKey(symbol), &cached)
	if cacheErr == nil && hit {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Quote fetch failed, serving cached price")
		cached.Cached = true
		return &cached, nil
	}

	return nil, contracts.NewExternalData("marketdata", symbol, err)
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	resp, err := c.http.GetWithHeaders(ctx, endpoint, c.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request returned status %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	if body.Price <= 0 {
		return nil, fmt.Errorf("quote for %s has non-positive price %f", symbol, body.Price)
	}

	return &contracts.Quote{
		Symbol:    symbol,
		Price:     body.Price,
		Timestamp: time.Unix(body.Timestamp, 0).UTC(),
	}, nil
}

// GetBars returns daily bars per symbol for [start, end], oldest first.
// A symbol whose fetch fails or comes back empty is omitted from the
// result rather than failing the whole batch; an ExternalDataError
// surfaces only when every symbol failed.
func (c *Client) GetBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]contracts.Bar, error) {
	result := make(map[string][]contracts.Bar, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		bars, err := c.fetchBars(ctx, symbol, timeframe, start, end)
		if err != nil {
			lastErr = contracts.NewExternalData("marketdata", symbol, err)
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("Bars fetch failed, omitting symbol")
			continue
		}
		if len(bars) == 0 {
			c.logger.WithField("symbol", symbol).Warn("No bars returned for symbol")
			continue
		}
		result[symbol] = bars
	}

	if len(result) == 0 && lastErr != nil {
		return nil, lastErr
	}

	return result, nil
}

func (c *Client) fetchBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]contracts.Bar, error) {
	endpoint := fmt.Sprintf("%s/v1/bars?symbol=%s&timeframe=%s&start=%s&end=%s",
		c.baseURL,
		url.QueryEscape(symbol),
		url.QueryEscape(timeframe),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
	)

	resp, err := c.http.GetWithHeaders(ctx, endpoint, c.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bars request returned status %d", resp.StatusCode)
	}

	var body struct {
		Bars []barResponse `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode bars response: %w", err)
	}

	bars := make([]contracts.Bar, 0, len(body.Bars))
	for _, b := range body.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bar date %q: %w", b.Date, err)
		}
		bars = append(bars, contracts.Bar{
			Symbol: symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			Date:   date,
		})
	}

	return bars, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

func quoteCacheKey(symbol string) string {
	return "quote:" + strings.ToUpper(symbol)
}
