// Package liquidation sizes liquidation calls: how much debt a liquidator
// may cover given the account's health factor, and how much collateral that
// entitles them to at the configured bonus.
package liquidation

import (
	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
)

// closeFactorPivot is the health factor below which a position may be
// closed in full; above it only half the debt is coverable per call.
var closeFactorPivot = uint256.NewInt(950_000_000_000_000_000) // 0.95 wad

const (
	halfCloseFactorBps = 5_000
	fullCloseFactorBps = 10_000
)

// CloseFactorBps returns the maximum coverable share of the user's debt in
// one call, in basis points.
func CloseFactorBps(healthFactor *uint256.Int) uint64 {
	if healthFactor.Lt(closeFactorPivot) {
		return fullCloseFactorBps
	}
	return halfCloseFactorBps
}

// MaxDebtToCover clamps a requested cover amount to the close factor and
// the user's outstanding debt in the reserve.
func MaxDebtToCover(requested, userDebt, healthFactor *uint256.Int) (*uint256.Int, error) {
	limit, err := fixedpoint.PercentMul(userDebt, CloseFactorBps(healthFactor))
	if err != nil {
		return nil, err
	}
	return fixedpoint.Min(requested, limit), nil
}

// SeizeParams carries the cross-asset conversion inputs for one liquidation.
// Prices are in the oracle's 1e8 base unit; the bonus is in basis points
// above 10000.
type SeizeParams struct {
	CollateralPrice    *uint256.Int
	DebtPrice          *uint256.Int
	CollateralDecimals uint8
	DebtDecimals       uint8
	LiquidationBonus   uint64
	ProtocolFeeBps     uint64 // share of the bonus routed to the treasury
}

// CollateralToSeize converts covered debt into collateral units including
// the liquidation bonus, and splits out the protocol's cut of the bonus.
// seized is what leaves the user; the liquidator receives seized minus fee.
func (p SeizeParams) CollateralToSeize(debtToCover *uint256.Int) (seized, fee *uint256.Int, err error) {
	debtBase, err := toBase(debtToCover, p.DebtPrice, p.DebtDecimals)
	if err != nil {
		return nil, nil, err
	}
	grossBase, err := fixedpoint.PercentMul(debtBase, p.LiquidationBonus)
	if err != nil {
		return nil, nil, err
	}
	seized, err = fromBase(grossBase, p.CollateralPrice, p.CollateralDecimals)
	if err != nil {
		return nil, nil, err
	}
	fee = new(uint256.Int)
	if p.ProtocolFeeBps > 0 && p.LiquidationBonus > fullCloseFactorBps {
		bonusBase := new(uint256.Int).Sub(grossBase, debtBase)
		feeBase, err := fixedpoint.PercentMul(bonusBase, p.ProtocolFeeBps)
		if err != nil {
			return nil, nil, err
		}
		fee, err = fromBase(feeBase, p.CollateralPrice, p.CollateralDecimals)
		if err != nil {
			return nil, nil, err
		}
	}
	return seized, fee, nil
}

// DebtForCollateral is the inverse conversion, used to shrink the covered
// debt when the user's collateral balance cannot pay out the full seizure.
func (p SeizeParams) DebtForCollateral(collateral *uint256.Int) (*uint256.Int, error) {
	grossBase, err := toBase(collateral, p.CollateralPrice, p.CollateralDecimals)
	if err != nil {
		return nil, err
	}
	debtBase, err := fixedpoint.PercentDiv(grossBase, p.LiquidationBonus)
	if err != nil {
		return nil, err
	}
	return fromBase(debtBase, p.DebtPrice, p.DebtDecimals)
}

func toBase(amount, price *uint256.Int, decimals uint8) (*uint256.Int, error) {
	p, overflow := new(uint256.Int).MulOverflow(amount, price)
	if overflow {
		return nil, fixedpoint.ErrArithmeticOverflow
	}
	return p.Div(p, fixedpoint.Pow10(decimals)), nil
}

func fromBase(base, price *uint256.Int, decimals uint8) (*uint256.Int, error) {
	if price.IsZero() {
		return nil, fixedpoint.ErrDivisionByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(base, fixedpoint.Pow10(decimals))
	if overflow {
		return nil, fixedpoint.ErrArithmeticOverflow
	}
	return p.Div(p, price), nil
}
