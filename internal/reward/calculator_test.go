package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForEvent(t *testing.T) {
	tests := []struct {
		name            string
		durationSeconds float64
		price           float64
		wantUnits       float64
		wantCash        float64
	}{
		{
			name:            "thirty seconds at two cents",
			durationSeconds: 30,
			price:           0.02,
			wantUnits:       0.5,
			wantCash:        0.01,
		},
		{
			name:            "one minute",
			durationSeconds: 60,
			price:           0.05,
			wantUnits:       1,
			wantCash:        0.05,
		},
		{
			name:            "zero duration",
			durationSeconds: 0,
			price:           0.02,
			wantUnits:       0,
			wantCash:        0,
		},
		{
			name:            "negative duration clamps to zero",
			durationSeconds: -10,
			price:           0.02,
			wantUnits:       0,
			wantCash:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForEvent(tt.durationSeconds, tt.price)
			assert.InDelta(t, tt.wantUnits, got.Units, 1e-9)
			assert.InDelta(t, tt.wantCash, got.CashUSD, 1e-9)
		})
	}
}

func TestForAccruedIsPriceIndependentInUnits(t *testing.T) {
	atLow := ForAccrued(120, 0.01)
	atHigh := ForAccrued(120, 0.50)

	assert.Equal(t, atLow.Units, atHigh.Units)
	assert.InDelta(t, 1.2, atLow.CashUSD, 1e-9)
	assert.InDelta(t, 60.0, atHigh.CashUSD, 1e-9)
}

func TestDaysUntilNextSettlement(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no prior settlement", func(t *testing.T) {
		assert.Equal(t, SettlementCadenceDays, DaysUntilNextSettlement(nil, now))
	})

	t.Run("mid cadence", func(t *testing.T) {
		last := now.AddDate(0, 0, -20)
		assert.Equal(t, SettlementCadenceDays-20, DaysUntilNextSettlement(&last, now))
	})

	t.Run("overdue clamps to zero", func(t *testing.T) {
		last := now.AddDate(0, 0, -90)
		assert.Equal(t, 0, DaysUntilNextSettlement(&last, now))
	})
}
