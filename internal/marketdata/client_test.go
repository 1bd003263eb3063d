package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/logger"
	"github.com/mwhitt/alphascreen/pkg/redis"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := &config.Config{
		MarketData: config.MarketDataConfig{
			BaseURL:        baseURL,
			RequestsPerSec: 100,
			Timeout:        5 * time.Second,
		},
		Redis: config.RedisConfig{Enabled: false},
	}

	redisClient, err := redis.New(cfg)
	require.NoError(t, err)
	cache := redis.NewCache(redisClient, "test")

	return NewClient(cfg, cache, logger.NewNop())
}

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		fmt.Fprintf(w, `{"symbol":"AAPL","price":187.5,"timestamp":%d}`, time.Now().Unix())
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	quote, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.InDelta(t, 187.5, quote.Price, 1e-9)
	assert.False(t, quote.Cached)
}

func TestGetQuoteUpstreamDownNoCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest) // non-retryable
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, contracts.IsExternalData(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetQuoteRejectsNonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"AAPL","price":0,"timestamp":0}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.True(t, contracts.IsExternalData(err))
}

func TestGetBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			fmt.Fprint(w, `{"bars":[
				{"date":"2026-03-02","open":100,"high":102,"low":99,"close":101,"volume":5000},
				{"date":"2026-03-03","open":101,"high":105,"low":101,"close":104,"volume":6000}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	bars, err := client.GetBars(context.Background(), []string{"AAPL", "MISSING"}, "1D", start, end)
	require.NoError(t, err)

	// Unknown symbols are omitted, not fatal.
	require.Contains(t, bars, "AAPL")
	assert.NotContains(t, bars, "MISSING")

	series := bars["AAPL"]
	require.Len(t, series, 2)
	assert.InDelta(t, 101.0, series[0].Close, 1e-9)
	assert.Equal(t, start, series[0].Date)
	assert.Equal(t, int64(6000), series[1].Volume)
}

func TestGetBarsFailingSymbolDoesNotAbortBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "GOOD":
			fmt.Fprint(w, `{"bars":[
				{"date":"2026-03-02","open":100,"high":102,"low":99,"close":101,"volume":5000}
			]}`)
		default:
			w.WriteHeader(http.StatusForbidden) // non-retryable
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars, err := client.GetBars(context.Background(), []string{"GOOD", "BAD"}, "1D", start, start)
	require.NoError(t, err)

	require.Contains(t, bars, "GOOD")
	assert.NotContains(t, bars, "BAD")
	require.Len(t, bars["GOOD"], 1)
}

func TestGetBarsAllSymbolsFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := client.GetBars(context.Background(), []string{"AAA", "BBB"}, "1D", start, start)
	require.Error(t, err)
	assert.True(t, contracts.IsExternalData(err))
}
