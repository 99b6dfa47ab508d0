// Package fixedpoint implements Wad (1e18) and Ray (1e27) fixed-point
// arithmetic on 256-bit unsigned integers.
//
// Conventions:
//   - Wad is used for balances and the health factor
//   - Ray is used for interest rates and cumulative indices
//   - Percentages use a 1e4 basis-point factor (10000 = 100%)
//
// All multiply/divide operations round half-up ((a*b + half) / unit) and
// report overflow instead of wrapping — never float64 for money.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrDivisionByZero is returned when a divisor is zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrArithmeticOverflow is returned when an intermediate product or sum
	// exceeds 256 bits.
	ErrArithmeticOverflow = errors.New("fixedpoint: arithmetic overflow")
)

var (
	// Wad is the 1e18 fixed-point unit.
	Wad = uint256.NewInt(1_000_000_000_000_000_000)

	// Ray is the 1e27 fixed-point unit.
	Ray = uint256.MustFromDecimal("1000000000000000000000000000")

	// PercentageFactor is the basis-point unit (10000 = 100%).
	PercentageFactor = uint256.NewInt(10_000)

	// SecondsPerYear is the accrual time base.
	SecondsPerYear = uint256.NewInt(31_536_000)

	halfWad     = uint256.NewInt(500_000_000_000_000_000)
	halfRay     = uint256.MustFromDecimal("500000000000000000000000000")
	halfPercent = uint256.NewInt(5_000)

	// wadRayRatio converts between the two precisions (9 decimal digits).
	wadRayRatio     = uint256.NewInt(1_000_000_000)
	halfWadRayRatio = uint256.NewInt(500_000_000)
)

// mulUnit computes (a*b + half) / unit with overflow detection.
func mulUnit(a, b, half, unit *uint256.Int) (*uint256.Int, error) {
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	p, carry := p.AddOverflow(p, half)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	return p.Div(p, unit), nil
}

// divUnit computes (a*unit + b/2) / b with overflow detection.
func divUnit(a, b, unit *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, unit)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	half := new(uint256.Int).Rsh(b, 1)
	p, carry := p.AddOverflow(p, half)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	return p.Div(p, b), nil
}

// WadMul multiplies two Wad values, rounding half-up.
func WadMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulUnit(a, b, halfWad, Wad)
}

// WadDiv divides two Wad values, rounding half-up.
func WadDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divUnit(a, b, Wad)
}

// RayMul multiplies two Ray values, rounding half-up.
func RayMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulUnit(a, b, halfRay, Ray)
}

// RayDiv divides two Ray values, rounding half-up.
func RayDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divUnit(a, b, Ray)
}

// RayToWad drops 9 decimal digits of precision, rounding half-up.
func RayToWad(a *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Add(a, halfWadRayRatio)
	return out.Div(out, wadRayRatio)
}

// WadToRay gains 9 decimal digits of precision. The conversion is exact but
// can overflow for values near the top of the range.
func WadToRay(a *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(a, wadRayRatio)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// PercentMul applies a basis-point percentage to a value, rounding half-up.
func PercentMul(a *uint256.Int, bps uint64) (*uint256.Int, error) {
	return mulUnit(a, uint256.NewInt(bps), halfPercent, PercentageFactor)
}

// PercentDiv divides a value by a basis-point percentage, rounding half-up.
func PercentDiv(a *uint256.Int, bps uint64) (*uint256.Int, error) {
	return divUnit(a, uint256.NewInt(bps), PercentageFactor)
}

// LinearInterest returns the cumulative growth factor 1 + rate*elapsed/year
// in Ray. Both indices accrue linearly; per-lot stable interest is the only
// other accrual form in the engine.
func LinearInterest(rate *uint256.Int, elapsedSeconds uint64) (*uint256.Int, error) {
	if rate.IsZero() || elapsedSeconds == 0 {
		return new(uint256.Int).Set(Ray), nil
	}
	p, overflow := new(uint256.Int).MulOverflow(rate, uint256.NewInt(elapsedSeconds))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	p.Div(p, SecondsPerYear)
	out, carry := p.AddOverflow(p, Ray)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// Pow10 returns 10^n for token-decimal scaling (n <= 77).
func Pow10(n uint8) *uint256.Int {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		out.Mul(out, ten)
	}
	return out
}

// Min returns the smaller of a and b as a fresh value.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
