// Package risk aggregates a user's positions across reserves into the
// base-currency totals, weighted risk parameters and the health factor that
// gate borrows, withdrawals and liquidations.
package risk

import (
	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/model"
)

// MaxHealthFactor is the health factor of an account with no debt. Any
// comparison against a liquidation threshold treats it as infinitely safe.
var MaxHealthFactor = new(uint256.Int).SetAllOne()

// PositionInput is one reserve's contribution to a user's risk picture.
// Balances are in underlying base units, the price in the oracle's 1e8 base
// currency unit per whole token.
type PositionInput struct {
	ReserveID            int
	CollateralBalance    *uint256.Int
	Debt                 *uint256.Int
	Price                *uint256.Int
	Decimals             uint8
	LTV                  uint64
	LiquidationThreshold uint64
}

// toBase converts an underlying amount to base currency: amount·price/10^dec.
func toBase(amount, price *uint256.Int, decimals uint8) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int), nil
	}
	p, overflow := new(uint256.Int).MulOverflow(amount, price)
	if overflow {
		return nil, fixedpoint.ErrArithmeticOverflow
	}
	return p.Div(p, fixedpoint.Pow10(decimals)), nil
}

// Aggregate folds the positions into one AccountData. Average LTV and
// liquidation threshold are collateral-weighted; the health factor is
// totalCollateral·avgThreshold / totalDebt in wad, saturating at
// MaxHealthFactor when the user has no debt.
func Aggregate(positions []PositionInput) (model.AccountData, error) {
	totalCollateral := new(uint256.Int)
	totalDebt := new(uint256.Int)
	weightedLTV := new(uint256.Int)
	weightedThreshold := new(uint256.Int)

	for _, p := range positions {
		collateralBase, err := toBase(p.CollateralBalance, p.Price, p.Decimals)
		if err != nil {
			return model.AccountData{}, err
		}
		debtBase, err := toBase(p.Debt, p.Price, p.Decimals)
		if err != nil {
			return model.AccountData{}, err
		}
		totalCollateral.Add(totalCollateral, collateralBase)
		totalDebt.Add(totalDebt, debtBase)
		weightedLTV.Add(weightedLTV, new(uint256.Int).Mul(collateralBase, uint256.NewInt(p.LTV)))
		weightedThreshold.Add(weightedThreshold, new(uint256.Int).Mul(collateralBase, uint256.NewInt(p.LiquidationThreshold)))
	}

	out := model.AccountData{
		TotalCollateralBase:  totalCollateral,
		TotalDebtBase:        totalDebt,
		AvailableBorrowsBase: new(uint256.Int),
		HealthFactor:         new(uint256.Int).Set(MaxHealthFactor),
	}
	if totalCollateral.IsZero() {
		if !totalDebt.IsZero() {
			out.HealthFactor = new(uint256.Int)
		}
		return out, nil
	}

	avgLTV := new(uint256.Int).Div(weightedLTV, totalCollateral)
	avgThreshold := new(uint256.Int).Div(weightedThreshold, totalCollateral)
	out.AvgLTV = avgLTV.Uint64()
	out.AvgLiquidationThreshold = avgThreshold.Uint64()

	borrowPower, err := fixedpoint.PercentMul(totalCollateral, out.AvgLTV)
	if err != nil {
		return model.AccountData{}, err
	}
	if borrowPower.Gt(totalDebt) {
		out.AvailableBorrowsBase = borrowPower.Sub(borrowPower, totalDebt)
	}

	if !totalDebt.IsZero() {
		adjusted, err := fixedpoint.PercentMul(totalCollateral, out.AvgLiquidationThreshold)
		if err != nil {
			return model.AccountData{}, err
		}
		hf, err := fixedpoint.WadDiv(adjusted, totalDebt)
		if err != nil {
			return model.AccountData{}, err
		}
		out.HealthFactor = hf
	}
	return out, nil
}

// IsHealthy reports whether the health factor clears the one-wad liquidation
// line.
func IsHealthy(hf *uint256.Int) bool {
	return !hf.Lt(fixedpoint.Wad)
}
