// Package pricing computes the delivery fee fixed on an offer.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"courier-dispatch/internal/domain"
)

// Config holds fee components. Evening hours are inclusive and evaluated in Location.
type Config struct {
	BaseFee          decimal.Decimal
	PerKm            decimal.Decimal
	EveningBonusRate decimal.Decimal
	EveningFromHour  int
	EveningToHour    int
	MotorcycleBonus  decimal.Decimal
	CarBonus         decimal.Decimal
	Location         *time.Location
}

// DefaultConfig returns the standard tariff.
func DefaultConfig() Config {
	return Config{
		BaseFee:          decimal.NewFromInt(15),
		PerKm:            decimal.NewFromInt(2),
		EveningBonusRate: decimal.NewFromFloat(0.2),
		EveningFromHour:  18,
		EveningToHour:    22,
		MotorcycleBonus:  decimal.NewFromInt(5),
		CarBonus:         decimal.NewFromInt(10),
		Location:         time.UTC,
	}
}

// Calculator prices offers.
type Calculator struct {
	cfg Config
}

// New creates a Calculator.
func New(cfg Config) *Calculator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Calculator{cfg: cfg}
}

// Fee returns base + distance + evening + vehicle components rounded to cents.
func (c *Calculator) Fee(o domain.Order, vehicle domain.VehicleType, at time.Time) decimal.Decimal {
	km := decimal.NewFromFloat(o.Pickup.DistanceTo(o.Dropoff))
	fee := c.cfg.BaseFee.Add(km.Mul(c.cfg.PerKm))

	if h := at.In(c.cfg.Location).Hour(); h >= c.cfg.EveningFromHour && h <= c.cfg.EveningToHour {
		fee = fee.Add(c.cfg.BaseFee.Mul(c.cfg.EveningBonusRate))
	}

	switch vehicle {
	case domain.VehicleMotorcycle:
		fee = fee.Add(c.cfg.MotorcycleBonus)
	case domain.VehicleCar:
		fee = fee.Add(c.cfg.CarBonus)
	}
	return fee.Round(2)
}
