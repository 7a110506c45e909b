package catalog

import (
	"errors"
	"fmt"
	"math"
)

// ErrAmountOverflow is returned when a price computation leaves the representable range.
var ErrAmountOverflow = errors.New("amount overflow")

// Amount is a price in minor units (cents).
type Amount int64

// FromFloat converts a decimal price such as 12.64 to cents.
func FromFloat(v float64) (Amount, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid price %v", v)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative price %v", v)
	}
	cents := math.Round(v * 100)
	if cents > math.MaxInt64/2 {
		return 0, ErrAmountOverflow
	}
	return Amount(cents), nil
}

// Float returns the amount as a decimal number.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// String formats the amount with two decimals.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul multiplies by a positive quantity with overflow detection.
func (a Amount) Mul(qty int) (Amount, error) {
	if qty < 0 || a < 0 {
		return 0, fmt.Errorf("negative operand")
	}
	if qty == 0 || a == 0 {
		return 0, nil
	}
	if int64(a) > math.MaxInt64/int64(qty) {
		return 0, ErrAmountOverflow
	}
	return a * Amount(qty), nil
}

// Add sums two non-negative amounts with overflow detection.
func (a Amount) Add(b Amount) (Amount, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("negative operand")
	}
	if int64(a) > math.MaxInt64-int64(b) {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
