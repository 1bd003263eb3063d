package contracts

import "time"

// ScreenType classifies the strategy a screen implements.
type ScreenType string

const (
	ScreenTypeValue          ScreenType = "VALUE"
	ScreenTypeGrowth         ScreenType = "GROWTH"
	ScreenTypeEarningsDriven ScreenType = "EARNINGS_DRIVEN"
)

// FactorBounds is an optional min/max band with an optional weight for a
// single factor. A nil side is unbounded; min==max requires an exact match.
type FactorBounds struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// ScreenCriteria is a named multi-factor filter configuration. Factors is a
// sparse mapping from factor name to bounds so screens only carry the
// bounds they actually set.
type ScreenCriteria struct {
	ID                  int64
	Name                string
	Type                ScreenType
	Factors             map[string]FactorBounds
	MinScore            float64 // qualifying threshold for the watchlist
	MinEarningsSurprise float64 // percent, earnings-driven screens
	AllocatedCapital    float64
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// WatchlistEntry is one qualifying (ticker, screen) pair with its latest
// computed score. The score is always recomputed from the current snapshot
// at screening time, never incrementally updated.
type WatchlistEntry struct {
	Ticker    string
	ScreenID  int64
	Score     float64
	Price     float64
	PE        *float64
	MarketCap *float64
	DateAdded time.Time
	UpdatedAt time.Time
}
