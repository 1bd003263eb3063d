package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyActual(t *testing.T) {
	tests := []struct {
		name         string
		estimated    float64
		actual       float64
		wantBeat     bool
		wantSurprise *float64
	}{
		{
			name:      "beat positive estimate",
			estimated: 1.00, actual: 1.10,
			wantBeat: true, wantSurprise: ptr(10.0),
		},
		{
			name:      "miss positive estimate",
			estimated: 2.00, actual: 1.80,
			wantBeat: false, wantSurprise: ptr(-10.0),
		},
		{
			name:      "beat negative estimate",
			estimated: -0.50, actual: -0.40,
			wantBeat: true, wantSurprise: ptr(20.0),
		},
		{
			name:      "zero estimate leaves surprise undefined",
			estimated: 0, actual: 0.10,
			wantBeat: true, wantSurprise: nil,
		},
		{
			name:      "exact match is not a beat",
			estimated: 1.00, actual: 1.00,
			wantBeat: false, wantSurprise: ptr(0.0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := EarningsRecord{Symbol: "TEST", EstimatedEPS: tt.estimated}
			assert.False(t, rec.Reported())

			rec.ApplyActual(tt.actual)

			assert.True(t, rec.Reported())
			require.NotNil(t, rec.Beat)
			assert.Equal(t, tt.wantBeat, *rec.Beat)

			if tt.wantSurprise == nil {
				assert.Nil(t, rec.Surprise)
			} else {
				require.NotNil(t, rec.Surprise)
				assert.InDelta(t, *tt.wantSurprise, *rec.Surprise, 1e-9)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }
