package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const millisPerHour = 3_600_000

// RentalCostBreakdown explains how a rental cost was derived.
type RentalCostBreakdown struct {
	Hours        float64 `json:"hours"`
	PricePerHour float64 `json:"pricePerHour"`
	TotalCost    float64 `json:"totalCost"`
}

// Round2 rounds half away from zero to two decimal places.
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// RentalHours returns the elapsed hours between start and end at millisecond precision.
func RentalHours(startTime, endTime time.Time) (decimal.Decimal, error) {
	if endTime.Before(startTime) {
		return decimal.Zero, fmt.Errorf("end time must be >= start time")
	}
	ms := endTime.Sub(startTime).Milliseconds()
	return decimal.NewFromInt(ms).Div(decimal.NewFromInt(millisPerHour)), nil
}

// CalculateRentalCost charges pricePerHour for every hour (or fraction of an hour) between
// start and end, rounded to cents once at the end.
func CalculateRentalCost(startTime, endTime time.Time, pricePerHour float64) (float64, error) {
	b, err := CalculateRentalCostWithBreakdown(startTime, endTime, pricePerHour)
	if err != nil {
		return 0, err
	}
	return b.TotalCost, nil
}

func CalculateRentalCostWithBreakdown(startTime, endTime time.Time, pricePerHour float64) (RentalCostBreakdown, error) {
	if pricePerHour < 0 {
		return RentalCostBreakdown{}, fmt.Errorf("price per hour must be >= 0")
	}
	hours, err := RentalHours(startTime, endTime)
	if err != nil {
		return RentalCostBreakdown{}, err
	}
	total := hours.Mul(decimal.NewFromFloat(pricePerHour)).Round(2)
	return RentalCostBreakdown{
		Hours:        hours.Round(4).InexactFloat64(),
		PricePerHour: pricePerHour,
		TotalCost:    total.InexactFloat64(),
	}, nil
}

// FirstHourCharge is the amount collected up front when a rental starts.
func FirstHourCharge(pricePerHour float64) float64 {
	return Round2(pricePerHour)
}
