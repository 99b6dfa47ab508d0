package pool

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/liquidation"
	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/risk"
)

// Liquidate lets a liquidator repay part of an unhealthy user's debt in one
// reserve and seize their deposit balance in another at the configured
// bonus. A nil debtToCover covers as much as the close factor allows.
//
// With receiveUnderlying false the seized collateral changes hands inside
// the deposit ledger, so the collateral reserve's liquidity is untouched and
// the liquidator can withdraw it like any depositor. With receiveUnderlying
// true the seized deposit is burned and paid out from the reserve's
// liquidity, which must cover it.
func (p *Pool) Liquidate(ctx context.Context, liquidator, user, collateralAsset, debtAsset string, debtToCover *uint256.Int, receiveUnderlying bool) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		colRes, err := st.reserveByAsset(collateralAsset)
		if err != nil {
			return nil, err
		}
		debtRes, err := st.reserveByAsset(debtAsset)
		if err != nil {
			return nil, err
		}
		if err := colRes.Accrue(now); err != nil {
			return nil, err
		}
		if err := debtRes.Accrue(now); err != nil {
			return nil, err
		}
		if err := colRes.EnsureUsable(); err != nil {
			return nil, err
		}
		if err := debtRes.EnsureUsable(); err != nil {
			return nil, err
		}

		data, err := p.accountData(ctx, st, user, now)
		if err != nil {
			return nil, err
		}
		if risk.IsHealthy(data.HealthFactor) {
			return nil, ErrHealthFactorNotBelowThreshold
		}

		cfg := st.userConfig(user)
		colBalance := colRes.Deposits.BalanceOf(user, colRes.LiquidityIndex)
		if !cfg.UsingAsCollateral(colRes.ID) || colRes.Config.LiquidationThreshold == 0 || colBalance.IsZero() {
			return nil, ErrCollateralCannotBeLiquidated
		}

		variableDebt := debtRes.VariableDebt.BalanceOf(user, debtRes.VariableBorrowIndex)
		stableDebt := debtRes.StableDebt.DebtWithInterest(user, now)
		totalDebt := new(uint256.Int).Add(variableDebt, stableDebt)
		if !cfg.Borrowing(debtRes.ID) || totalDebt.IsZero() {
			return nil, ErrNoDebtInReserve
		}

		requested := debtToCover
		if requested == nil {
			requested = totalDebt
		} else if requested.IsZero() {
			return nil, ErrInvalidAmount
		}
		requested = fixedpoint.Min(requested, totalDebt)
		actualDebt, err := liquidation.MaxDebtToCover(requested, totalDebt, data.HealthFactor)
		if err != nil {
			return nil, err
		}
		if actualDebt.IsZero() {
			return nil, ErrInvalidAmount
		}

		colPrice, err := p.oracle.Price(ctx, collateralAsset)
		if err != nil {
			return nil, err
		}
		debtPrice, err := p.oracle.Price(ctx, debtAsset)
		if err != nil {
			return nil, err
		}
		params := liquidation.SeizeParams{
			CollateralPrice:    colPrice,
			DebtPrice:          debtPrice,
			CollateralDecimals: colRes.Config.Decimals,
			DebtDecimals:       debtRes.Config.Decimals,
			LiquidationBonus:   colRes.Config.LiquidationBonus,
			ProtocolFeeBps:     p.liquidationFeeBps,
		}
		seized, fee, err := params.CollateralToSeize(actualDebt)
		if err != nil {
			return nil, err
		}
		if seized.Gt(colBalance) {
			// Shrink the covered debt to what the collateral can pay out.
			actualDebt, err = params.DebtForCollateral(colBalance)
			if err != nil {
				return nil, err
			}
			if actualDebt.IsZero() {
				return nil, ErrInvalidAmount
			}
			seized, fee, err = params.CollateralToSeize(actualDebt)
			if err != nil {
				return nil, err
			}
			seized = fixedpoint.Min(seized, colBalance)
		}

		// The liquidator pays the debt asset from their wallet.
		if err := st.bank.Transfer(debtAsset, liquidator, p.poolAddr, actualDebt); err != nil {
			return nil, err
		}
		burnVariable := fixedpoint.Min(actualDebt, variableDebt)
		if !burnVariable.IsZero() {
			if err := debtRes.VariableDebt.Burn(user, burnVariable, debtRes.VariableBorrowIndex); err != nil {
				return nil, err
			}
		}
		burnStable := new(uint256.Int).Sub(actualDebt, burnVariable)
		if !burnStable.IsZero() {
			if err := debtRes.StableDebt.Burn(user, burnStable, now); err != nil {
				return nil, err
			}
		}
		if err := debtRes.AddLiquidity(actualDebt); err != nil {
			return nil, err
		}

		// Hand over the seized deposit balance, treasury cut first.
		liquidatorTake := new(uint256.Int).Sub(seized, fee)
		if !fee.IsZero() {
			if err := colRes.Deposits.Transfer(user, TreasuryAddr, fee, colRes.LiquidityIndex); err != nil {
				return nil, err
			}
		}
		if receiveUnderlying {
			if err := colRes.RemoveLiquidity(liquidatorTake); err != nil {
				return nil, err
			}
			if err := colRes.Deposits.Burn(user, liquidatorTake, colRes.LiquidityIndex); err != nil {
				return nil, err
			}
			if err := st.bank.Transfer(collateralAsset, p.poolAddr, liquidator, liquidatorTake); err != nil {
				return nil, err
			}
		} else {
			firstForLiquidator := colRes.Deposits.ScaledBalanceOf(liquidator).IsZero()
			if err := colRes.Deposits.Transfer(user, liquidator, liquidatorTake, colRes.LiquidityIndex); err != nil {
				return nil, err
			}
			if firstForLiquidator && colRes.Config.LiquidationThreshold > 0 {
				st.userConfig(liquidator).SetCollateral(colRes.ID, true)
			}
		}

		if colRes.Deposits.ScaledBalanceOf(user).IsZero() {
			cfg.SetCollateral(colRes.ID, false)
		}
		if debtRes.VariableDebt.ScaledBalanceOf(user).IsZero() && debtRes.StableDebt.DebtWithInterest(user, now).IsZero() {
			cfg.SetBorrowing(debtRes.ID, false)
		}
		if err := debtRes.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		if err := colRes.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		metrics.LiquidationsTotal.Inc()
		return &opResult{
			kind:    "liquidate",
			user:    user,
			counter: liquidator,
			asset:   debtAsset,
			amount:  actualDebt,
			touched: []int{colRes.ID, debtRes.ID},
		}, nil
	})
}
