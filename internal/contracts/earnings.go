package contracts

import (
	"math"
	"time"
)

// EarningsRecord is one scheduled or reported earnings event. Beat and
// Surprise stay nil until ActualEPS is reported; after that single update
// the record is immutable.
type EarningsRecord struct {
	Symbol       string
	EarningsDate time.Time
	EstimatedEPS float64
	ActualEPS    *float64
	Beat         *bool
	Surprise     *float64 // percent deviation from the estimate
}

// Reported reports whether actual EPS is known.
func (r *EarningsRecord) Reported() bool {
	return r.ActualEPS != nil
}

// ApplyActual records the reported EPS and derives Beat and Surprise.
// surprise = (actual - estimated) / |estimated| * 100.
func (r *EarningsRecord) ApplyActual(actualEPS float64) {
	r.ActualEPS = &actualEPS

	beat := actualEPS > r.EstimatedEPS
	r.Beat = &beat

	if r.EstimatedEPS != 0 {
		surprise := (actualEPS - r.EstimatedEPS) / math.Abs(r.EstimatedEPS) * 100
		r.Surprise = &surprise
	}
}

// EarningsOpportunity is a watchlist ticker with a reported, qualifying
// earnings beat.
type EarningsOpportunity struct {
	Ticker       string
	ScreenID     int64
	Score        float64
	EarningsDate time.Time
	EstimatedEPS float64
	ActualEPS    float64
	Surprise     float64
}

// EarningsSummary carries observability counts for one detector pass.
// Tickers without a qualifying beat are excluded from the opportunity list
// but still counted here.
type EarningsSummary struct {
	Scheduled int
	Reported  int
	Beats     int
	Misses    int
	Pending   int
}
