package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Charge is the derived part of a bill.
type Charge struct {
	Consumption int64
	Amount      decimal.Decimal
}

// CalculateCharge derives consumption and amount from two readings and a unit rate.
// Based on: consumption = current - previous, amount = consumption × rate.
func CalculateCharge(previous, current int64, rate decimal.Decimal) (Charge, error) {
	if previous < 0 {
		return Charge{}, fmt.Errorf("previous reading cannot be negative")
	}
	if current <= previous {
		return Charge{}, fmt.Errorf("current reading %d must exceed previous reading %d", current, previous)
	}
	if !rate.IsPositive() {
		return Charge{}, fmt.Errorf("rate must be positive")
	}

	consumption := current - previous
	return Charge{
		Consumption: consumption,
		Amount:      decimal.NewFromInt(consumption).Mul(rate),
	}, nil
}
