package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount occurs when an external amount is malformed, carries more
// precision than the currency supports, or is not strictly positive.
var ErrInvalidAmount = errors.New("invalid amount")

// scale is the number of decimal places carried by every supported currency.
const scale = 2

// Money is a fixed-point monetary amount held in integer minor units
// (cents). Arithmetic never touches binary floating point.
type Money struct {
	units int64
}

// Zero is the additive identity.
var Zero = Money{}

// FromMinorUnits builds a Money from an already-scaled integer amount.
func FromMinorUnits(units int64) Money {
	return Money{units: units}
}

// Parse converts external decimal text into a strictly positive Money.
// It fails with ErrInvalidAmount on malformed input, more than two decimal
// places, zero, or a negative value.
func Parse(text string) (Money, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if d.Sign() <= 0 {
		return Money{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	scaled := d.Shift(scale)
	if !scaled.IsInteger() {
		return Money{}, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, scale)
	}
	if !scaled.BigInt().IsInt64() {
		return Money{}, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Money{units: scaled.IntPart()}, nil
}

// MinorUnits exposes the scaled integer representation for storage.
func (m Money) MinorUnits() int64 { return m.units }

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{units: m.units + other.units} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{units: m.units - other.units} }

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money { return Money{units: -m.units} }

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	switch {
	case m.units < other.units:
		return -1
	case m.units > other.units:
		return 1
	default:
		return 0
	}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.units > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool { return m.units < 0 }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.units == 0 }

// String renders the canonical decimal form, e.g. "12.34" or "-0.50".
func (m Money) String() string {
	return decimal.New(m.units, -scale).StringFixed(scale)
}
