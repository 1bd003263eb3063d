package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Storage precision limits for numeric columns (NUMERIC(18,6)). Values are
// clamped to this range before persistence, never before scoring.
const (
	StorageMax = 999999999999.999999
	StorageMin = -999999999999.999999
)

// NormalizeNumeric converts an upstream numeric value to a plain float64
// before scoring. Upstream storage may hand back arbitrary-precision
// decimals or string-encoded numbers; scoring always works on floats.
// A nil input stays nil (missing data is neutral, not an error).
func NormalizeNumeric(raw interface{}) (*float64, error) {
	if raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int32:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case decimal.Decimal:
		f, _ := v.Float64()
		return &f, nil
	case *decimal.Decimal:
		if v == nil {
			return nil, nil
		}
		f, _ := v.Float64()
		return &f, nil
	case string:
		if v == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse numeric %q: %w", v, err)
		}
		f, _ := d.Float64()
		return &f, nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

// ClampForStorage bounds a value to the documented storage precision
// limits. Applied on the persistence path only.
func ClampForStorage(value float64) float64 {
	if value > StorageMax {
		return StorageMax
	}
	if value < StorageMin {
		return StorageMin
	}
	return value
}
