package scoring

import (
	"math"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/pkg/logger"
)

const (
	// MaxScore is the top of the composite scale.
	MaxScore = 10.0

	// outsideTolerance is the relative excursion beyond a violated bound at
	// which a factor sub-score reaches zero. A value 25% past its bound
	// scores nothing.
	outsideTolerance = 0.25
)

// Scorer computes composite quality scores for stock snapshots against a
// screen's factor bounds. Pure and deterministic: the same snapshot and
// criteria always produce the same score.
type Scorer struct {
	logger *logger.Logger
}

// NewScorer creates a new factor scorer.
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{logger: log}
}

// Score computes the composite score in [0, 10] for a snapshot under the
// given criteria. Missing snapshot fields are neutral: they contribute to
// neither the weighted sum nor the weight total, so a stock is never
// excluded solely for missing optional data. A screen with zero bounded
// factors scores 0 and qualifies only when its threshold is <= 0.
func (s *Scorer) Score(snapshot *contracts.StockSnapshot, criteria *contracts.ScreenCriteria) float64 {
	var weightedSum float64
	var totalWeight float64
	evaluated := 0

	for factor, bounds := range criteria.Factors {
		if bounds.Min == nil && bounds.Max == nil {
			continue
		}

		value := snapshot.FactorValue(factor)
		if value == nil {
			// Neutral: missing data neither rewards nor penalizes.
			continue
		}

		weight := 1.0
		if bounds.Weight != nil && *bounds.Weight > 0 {
			weight = *bounds.Weight
		}

		weightedSum += factorScore(*value, bounds) * weight
		totalWeight += weight
		evaluated++
	}

	if evaluated == 0 || totalWeight == 0 {
		return 0
	}

	score := weightedSum / totalWeight

	s.logger.WithFields(map[string]interface{}{
		"symbol":    snapshot.Symbol,
		"screen":    criteria.Name,
		"evaluated": evaluated,
		"score":     score,
	}).Debug("Computed factor score")

	return score
}

// factorScore scores one value against its band: MaxScore inside the band,
// linear falloff to zero at outsideTolerance relative excursion past the
// violated bound. A zero-width band (min == max) requires an exact match.
func factorScore(value float64, bounds contracts.FactorBounds) float64 {
	if bounds.Min != nil && bounds.Max != nil && *bounds.Min == *bounds.Max {
		if value == *bounds.Min {
			return MaxScore
		}
		return 0
	}

	if bounds.Min != nil && value < *bounds.Min {
		return falloff(*bounds.Min-value, *bounds.Min)
	}

	if bounds.Max != nil && value > *bounds.Max {
		return falloff(value-*bounds.Max, *bounds.Max)
	}

	return MaxScore
}

// falloff maps the distance past a bound to a sub-score. The distance is
// taken relative to the bound's magnitude so bands of different scales
// degrade comparably.
func falloff(excess, bound float64) float64 {
	ref := math.Abs(bound)
	if ref == 0 {
		return 0
	}

	relative := excess / ref
	if relative >= outsideTolerance {
		return 0
	}

	return MaxScore * (1 - relative/outsideTolerance)
}

// Qualifies reports whether a score meets the screen's qualifying
// threshold. The default threshold of 0 admits any positive score.
func Qualifies(score float64, criteria *contracts.ScreenCriteria) bool {
	if criteria.MinScore <= 0 {
		return score > criteria.MinScore
	}
	return score >= criteria.MinScore
}
