package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/scoring"
	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/httputil"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

// CalendarScraper pulls the earnings calendar from the public HTML
// calendar page. The page lists one table row per reporting company with
// symbol, estimated EPS and, once reported, actual EPS.
type CalendarScraper struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewCalendarScraper creates a calendar scraper from config.
func NewCalendarScraper(cfg *config.Config, log *logger.Logger) *CalendarScraper {
	httpClient := httputil.New(log, cfg.MarketData.Timeout).
		WithRateLimit(cfg.MarketData.RequestsPerSec)

	return &CalendarScraper{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.MarketData.CalendarBaseURL, "/"),
		logger:  log,
	}
}

// FetchDay scrapes the earnings calendar for one day. Rows with an
// unparsable symbol or estimate are skipped with a warning, not fatal.
func (s *CalendarScraper) FetchDay(ctx context.Context, day time.Time) ([]contracts.EarningsRecord, error) {
	endpoint := fmt.Sprintf("%s/calendar/earnings?day=%s", s.baseURL, day.Format("2006-01-02"))

	resp, err := s.http.GetWithHeaders(ctx, endpoint, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; alphascreen/1.0)",
	})
	if err != nil {
		return nil, contracts.NewExternalData("earnings-calendar", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, contracts.NewExternalData("earnings-calendar", "",
			fmt.Errorf("calendar request returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, contracts.NewExternalData("earnings-calendar", "",
			fmt.Errorf("failed to parse calendar page: %w", err))
	}

	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	records := make([]contracts.EarningsRecord, 0)

	doc.Find("table.earnings-calendar tbody tr").Each(func(i int, row *goquery.Selection) {
		symbol := strings.TrimSpace(row.Find("td.symbol").Text())
		if symbol == "" {
			return
		}

		rec := contracts.EarningsRecord{
			Symbol:       strings.ToUpper(symbol),
			EarningsDate: date,
		}

		if est, ok := parseEPSCell(row.Find("td.eps-estimate").Text()); ok {
			rec.EstimatedEPS = *est
		} else {
			s.logger.WithField("symbol", symbol).Warn("Skipping calendar row without EPS estimate")
			return
		}

		if actual, ok := parseEPSCell(row.Find("td.eps-actual").Text()); ok {
			rec.ApplyActual(*actual)
		}

		records = append(records, rec)
	})

	s.logger.WithFields(map[string]interface{}{
		"date":  date.Format("2006-01-02"),
		"count": len(records),
	}).Info("Earnings calendar fetched")

	return records, nil
}

// parseEPSCell parses a calendar EPS cell. Cells use "-" or "--" for
// not-yet-reported values and may carry a currency prefix.
func parseEPSCell(text string) (*float64, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if cleaned == "" || cleaned == "-" || cleaned == "--" || cleaned == "N/A" {
		return nil, false
	}

	// Negative EPS renders as (0.42) on some pages.
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}

	value, err := scoring.NormalizeNumeric(cleaned)
	if err != nil || value == nil {
		return nil, false
	}

	return value, true
}
