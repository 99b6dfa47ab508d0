// Package rates implements the utilization-driven interest rate model: a
// kinked two-slope borrow curve with a fixed stable-rate premium and a
// reserve-factor cut on the depositor rate.
//
// The model is a pure function of reserve totals. It holds no state and
// never mutates its inputs.
package rates

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
)

// ErrInvalidOptimalUtilization is returned when the kink is outside (0, 100%].
var ErrInvalidOptimalUtilization = errors.New("rates: optimal utilization must be in (0, 10000]")

// stablePremiumBps is the fixed stable-over-variable premium: stable
// borrowers pay 125% of the variable rate.
const stablePremiumBps = 12_500

// Model holds the curve parameters. Rates are in ray, the kink in basis
// points.
type Model struct {
	OptimalUtilization uint64 // bps, e.g. 8000 = 80%
	BaseRate           *uint256.Int
	Slope1             *uint256.Int
	Slope2             *uint256.Int
}

// New constructs a model, validating the kink placement.
func New(optimalUtilizationBps uint64, baseRate, slope1, slope2 *uint256.Int) (*Model, error) {
	if optimalUtilizationBps == 0 || optimalUtilizationBps > 10_000 {
		return nil, ErrInvalidOptimalUtilization
	}
	return &Model{
		OptimalUtilization: optimalUtilizationBps,
		BaseRate:           new(uint256.Int).Set(baseRate),
		Slope1:             new(uint256.Int).Set(slope1),
		Slope2:             new(uint256.Int).Set(slope2),
	}, nil
}

// Default returns the standard curve: zero base, 4% slope to the 80% kink,
// then a steep 75% slope beyond it.
func Default() *Model {
	m, _ := New(8_000,
		uint256.NewInt(0),
		uint256.MustFromDecimal("40000000000000000000000000"),  // 4%
		uint256.MustFromDecimal("750000000000000000000000000"), // 75%
	)
	return m
}

// Rates is the model output, all in ray.
type Rates struct {
	LiquidityRate *uint256.Int
	VariableRate  *uint256.Int
	StableRate    *uint256.Int
}

func zeroRates() Rates {
	return Rates{
		LiquidityRate: new(uint256.Int),
		VariableRate:  new(uint256.Int),
		StableRate:    new(uint256.Int),
	}
}

// UtilizationBps returns totalDebt / (availableLiquidity + totalDebt) in
// basis points, clamped to [0, 10000]. An empty pool has zero utilization.
func UtilizationBps(availableLiquidity, totalDebt *uint256.Int) (uint64, error) {
	if totalDebt.IsZero() {
		return 0, nil
	}
	denom, carry := new(uint256.Int).AddOverflow(availableLiquidity, totalDebt)
	if carry {
		return 0, fixedpoint.ErrArithmeticOverflow
	}
	num, overflow := new(uint256.Int).MulOverflow(totalDebt, fixedpoint.PercentageFactor)
	if overflow {
		return 0, fixedpoint.ErrArithmeticOverflow
	}
	num.Div(num, denom)
	if !num.IsUint64() || num.Uint64() > 10_000 {
		return 10_000, nil
	}
	return num.Uint64(), nil
}

// Compute maps reserve totals to the three current rates. The liquidity rate
// is the average of the two borrow rates scaled by utilization, minus the
// reserve-factor share that accrues to the protocol treasury.
func (m *Model) Compute(availableLiquidity, totalStableDebt, totalVariableDebt *uint256.Int, reserveFactorBps uint64) (Rates, error) {
	totalDebt, carry := new(uint256.Int).AddOverflow(totalStableDebt, totalVariableDebt)
	if carry {
		return Rates{}, fixedpoint.ErrArithmeticOverflow
	}
	if totalDebt.IsZero() && availableLiquidity.IsZero() {
		return zeroRates(), nil
	}

	utilization, err := UtilizationBps(availableLiquidity, totalDebt)
	if err != nil {
		return Rates{}, err
	}

	variable := new(uint256.Int).Set(m.BaseRate)
	if utilization <= m.OptimalUtilization {
		slice, err := fixedpoint.PercentMul(m.Slope1, utilization)
		if err != nil {
			return Rates{}, err
		}
		variable.Add(variable, slice)
	} else {
		atKink, err := fixedpoint.PercentMul(m.Slope1, m.OptimalUtilization)
		if err != nil {
			return Rates{}, err
		}
		excess, err := fixedpoint.PercentMul(m.Slope2, utilization-m.OptimalUtilization)
		if err != nil {
			return Rates{}, err
		}
		variable.Add(variable, atKink)
		variable.Add(variable, excess)
	}

	stable, err := fixedpoint.PercentMul(variable, stablePremiumBps)
	if err != nil {
		return Rates{}, err
	}

	avgBorrow := new(uint256.Int).Add(variable, stable)
	avgBorrow.Rsh(avgBorrow, 1)
	liquidity, err := fixedpoint.PercentMul(avgBorrow, utilization)
	if err != nil {
		return Rates{}, err
	}
	if reserveFactorBps > 0 {
		liquidity, err = fixedpoint.PercentMul(liquidity, 10_000-reserveFactorBps)
		if err != nil {
			return Rates{}, err
		}
	}

	return Rates{
		LiquidityRate: liquidity,
		VariableRate:  variable,
		StableRate:    stable,
	}, nil
}
