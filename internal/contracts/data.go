package contracts

import "time"

// CompletenessTier classifies how much of a snapshot's optional data is
// populated.
type CompletenessTier string

const (
	TierFull    CompletenessTier = "FULL"
	TierPartial CompletenessTier = "PARTIAL"
	TierSparse  CompletenessTier = "SPARSE"
)

// StockSnapshot is one refresh-cycle view of a stock. Immutable per cycle;
// the next refresh overwrites it. Optional fundamentals are pointers so a
// missing value is distinguishable from zero.
type StockSnapshot struct {
	Symbol        string
	Price         float64
	PreviousClose float64

	// Valuation ratios
	PE  *float64
	PS  *float64
	PB  *float64
	PCF *float64

	// Quality ratios
	ROE          *float64
	DebtEquity   *float64
	CurrentRatio *float64

	// Growth rates, percent
	RevenueGrowth  *float64
	EarningsGrowth *float64

	DividendYield *float64
	MarketCap     *float64
	Volume        *float64

	// Momentum windows, percent return
	Momentum1M  *float64
	Momentum3M  *float64
	Momentum6M  *float64
	Momentum12M *float64

	DataQuality float64
	Tier        CompletenessTier
	HasError    bool
	RefreshedAt time.Time
}

// Factor names shared by ScreenCriteria bounds and snapshot lookup.
const (
	FactorPE             = "pe"
	FactorPS             = "ps"
	FactorPB             = "pb"
	FactorPCF            = "pcf"
	FactorROE            = "roe"
	FactorDebtEquity     = "debt_equity"
	FactorCurrentRatio   = "current_ratio"
	FactorRevenueGrowth  = "revenue_growth"
	FactorEarningsGrowth = "earnings_growth"
	FactorDividendYield  = "dividend_yield"
	FactorMarketCap      = "market_cap"
	FactorVolume         = "volume"
	FactorMomentum1M     = "momentum_1m"
	FactorMomentum3M     = "momentum_3m"
	FactorMomentum6M     = "momentum_6m"
	FactorMomentum12M    = "momentum_12m"
)

// FactorValue returns the snapshot value for a named factor, or nil when
// the factor is unknown or the value is missing.
func (s *StockSnapshot) FactorValue(factor string) *float64 {
	switch factor {
	case FactorPE:
		return s.PE
	case FactorPS:
		return s.PS
	case FactorPB:
		return s.PB
	case FactorPCF:
		return s.PCF
	case FactorROE:
		return s.ROE
	case FactorDebtEquity:
		return s.DebtEquity
	case FactorCurrentRatio:
		return s.CurrentRatio
	case FactorRevenueGrowth:
		return s.RevenueGrowth
	case FactorEarningsGrowth:
		return s.EarningsGrowth
	case FactorDividendYield:
		return s.DividendYield
	case FactorMarketCap:
		return s.MarketCap
	case FactorVolume:
		return s.Volume
	case FactorMomentum1M:
		return s.Momentum1M
	case FactorMomentum3M:
		return s.Momentum3M
	case FactorMomentum6M:
		return s.Momentum6M
	case FactorMomentum12M:
		return s.Momentum12M
	default:
		return nil
	}
}

// Bar is one OHLCV bar from the market-data source.
type Bar struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Date   time.Time
}

// Quote is a point-in-time price from the market-data source.
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
	Cached    bool // true when served from the fallback cache
}
