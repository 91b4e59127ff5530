package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{150, 150},
		{1.005, 1.01},
		{2.344, 2.34},
		{2.345, 2.35},
		{0.1 + 0.2, 0.3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestCalculateRentalCost(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		duration     time.Duration
		pricePerHour float64
		expected     float64
	}{
		{"two hours at 75", 2 * time.Hour, 75, 150.00},
		{"zero duration", 0, 75, 0},
		{"half hour", 30 * time.Minute, 10, 5.00},
		{"ninety minutes at 12.5", 90 * time.Minute, 12.5, 18.75},
		{"one millisecond", time.Millisecond, 3600, 0.00},
		{"rounds at the end", 20 * time.Minute, 10, 3.33},
		{"a day", 24 * time.Hour, 1.99, 47.76},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := CalculateRentalCost(start, start.Add(tt.duration), tt.pricePerHour)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cost)
		})
	}
}

func TestCalculateRentalCost_Deterministic(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(97*time.Minute + 13*time.Second + 250*time.Millisecond)

	first, err := CalculateRentalCost(start, end, 33.33)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := CalculateRentalCost(start, end, 33.33)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCalculateRentalCost_EndBeforeStart(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := CalculateRentalCost(start, start.Add(-time.Minute), 75)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "end time must be >= start time")
}

func TestCalculateRentalCostWithBreakdown(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b, err := CalculateRentalCostWithBreakdown(start, start.Add(45*time.Minute), 80)
	require.NoError(t, err)
	assert.Equal(t, 0.75, b.Hours)
	assert.Equal(t, 80.0, b.PricePerHour)
	assert.Equal(t, 60.0, b.TotalCost)
}

func TestFirstHourCharge(t *testing.T) {
	assert.Equal(t, 75.0, FirstHourCharge(75))
	assert.Equal(t, 12.35, FirstHourCharge(12.345))
}
