package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

const calendarHTML = `
<html><body>
<table class="earnings-calendar">
<tbody>
<tr><td class="symbol">AAPL</td><td class="eps-estimate">$1.25</td><td class="eps-actual">$1.40</td></tr>
<tr><td class="symbol">msft</td><td class="eps-estimate">2.10</td><td class="eps-actual">--</td></tr>
<tr><td class="symbol">UBER</td><td class="eps-estimate">(0.50)</td><td class="eps-actual">(0.40)</td></tr>
<tr><td class="symbol">BAD</td><td class="eps-estimate">N/A</td><td class="eps-actual">--</td></tr>
<tr><td class="symbol"></td><td class="eps-estimate">1.00</td><td class="eps-actual">--</td></tr>
</tbody>
</table>
</body></html>`

func testScraper(baseURL string) *CalendarScraper {
	cfg := &config.Config{
		MarketData: config.MarketDataConfig{
			CalendarBaseURL: baseURL,
			RequestsPerSec:  100,
			Timeout:         5 * time.Second,
		},
	}
	return NewCalendarScraper(cfg, logger.NewNop())
}

func TestFetchDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/earnings", r.URL.Path)
		assert.Equal(t, "2026-03-02", r.URL.Query().Get("day"))
		_, _ = w.Write([]byte(calendarHTML))
	}))
	defer server.Close()

	scraper := testScraper(server.URL)
	day := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	records, err := scraper.FetchDay(context.Background(), day)
	require.NoError(t, err)

	// BAD (no estimate) and the blank-symbol row are skipped.
	require.Len(t, records, 3)

	aapl := records[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.InDelta(t, 1.25, aapl.EstimatedEPS, 1e-9)
	require.True(t, aapl.Reported())
	assert.InDelta(t, 1.40, *aapl.ActualEPS, 1e-9)
	require.NotNil(t, aapl.Beat)
	assert.True(t, *aapl.Beat)

	msft := records[1]
	assert.Equal(t, "MSFT", msft.Symbol) // symbols upper-cased
	assert.False(t, msft.Reported())

	uber := records[2]
	assert.InDelta(t, -0.50, uber.EstimatedEPS, 1e-9)
	require.True(t, uber.Reported())
	assert.InDelta(t, -0.40, *uber.ActualEPS, 1e-9)
	require.NotNil(t, uber.Surprise)
	assert.InDelta(t, 20.0, *uber.Surprise, 1e-9)
}

func TestFetchDayUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	scraper := testScraper(server.URL)

	_, err := scraper.FetchDay(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestParseEPSCell(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
		ok       bool
	}{
		{"$1.25", 1.25, true},
		{" 2.10 ", 2.10, true},
		{"(0.50)", -0.50, true},
		{"1,234.56", 1234.56, true},
		{"0.123456789", 0.123456789, true},
		{"-", 0, false},
		{"--", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseEPSCell(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, *got, 1e-9)
			}
		})
	}
}
