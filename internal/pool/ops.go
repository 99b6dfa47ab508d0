package pool

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/ledger"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/reserve"
	"github.com/itskumar666/LendingProtocol/internal/risk"
)

// ErrNoDepositBalance is returned when toggling collateral on an empty
// deposit balance.
var ErrNoDepositBalance = errors.New("pool: no deposit balance in reserve")

// accountData aggregates the user's positions over the given state. Prices
// fail closed: an unpriceable involved reserve aborts the whole aggregation.
func (p *Pool) accountData(ctx context.Context, st *state, user string, now int64) (model.AccountData, error) {
	cfg, ok := st.users[user]
	if !ok || cfg.IsEmpty() {
		return risk.Aggregate(nil)
	}
	var inputs []risk.PositionInput
	for id, r := range st.reserves {
		if !cfg.Involved(id) {
			continue
		}
		price, err := p.oracle.Price(ctx, r.Asset)
		if err != nil {
			return model.AccountData{}, err
		}
		in := risk.PositionInput{
			ReserveID:            id,
			CollateralBalance:    new(uint256.Int),
			Debt:                 new(uint256.Int),
			Price:                price,
			Decimals:             r.Config.Decimals,
			LTV:                  r.Config.LTV,
			LiquidationThreshold: r.Config.LiquidationThreshold,
		}
		if cfg.UsingAsCollateral(id) {
			in.CollateralBalance = r.Deposits.BalanceOf(user, r.LiquidityIndex)
		}
		if cfg.Borrowing(id) {
			in.Debt = r.VariableDebt.BalanceOf(user, r.VariableBorrowIndex)
			in.Debt.Add(in.Debt, r.StableDebt.DebtWithInterest(user, now))
		}
		inputs = append(inputs, in)
	}
	return risk.Aggregate(inputs)
}

// ensureHealthy aborts the operation when the user holds debt and the
// post-mutation health factor is below one.
func (p *Pool) ensureHealthy(ctx context.Context, st *state, user string, now int64) error {
	data, err := p.accountData(ctx, st, user, now)
	if err != nil {
		return err
	}
	if !data.TotalDebtBase.IsZero() && !risk.IsHealthy(data.HealthFactor) {
		return ErrHealthFactorTooLow
	}
	return nil
}

// AccountData returns the user's cross-reserve risk summary at the current
// state.
func (p *Pool) AccountData(ctx context.Context, user string) (model.AccountData, error) {
	return p.accountData(ctx, p.st.Load(), user, p.now())
}

// Deposit moves underlying tokens from the user's wallet into the reserve
// and mints an interest-bearing deposit balance. A user's first deposit in a
// collateral-eligible reserve enables it as collateral automatically.
func (p *Pool) Deposit(ctx context.Context, user, asset string, amount *uint256.Int) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if amount == nil || amount.IsZero() {
			return nil, ErrInvalidAmount
		}
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}
		if err := r.EnsureNotFrozen(); err != nil {
			return nil, err
		}
		if err := r.CheckSupplyCap(amount); err != nil {
			return nil, err
		}
		if err := st.bank.Transfer(asset, user, p.poolAddr, amount); err != nil {
			return nil, err
		}
		if err := r.AddLiquidity(amount); err != nil {
			return nil, err
		}
		first, err := r.Deposits.Mint(user, amount, r.LiquidityIndex)
		if err != nil {
			return nil, err
		}
		if first && r.Config.LiquidationThreshold > 0 {
			st.userConfig(user).SetCollateral(r.ID, true)
		}
		if err := r.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		return &opResult{
			kind:    "deposit",
			user:    user,
			asset:   asset,
			amount:  amount,
			touched: []int{r.ID},
		}, nil
	})
}

// Withdraw burns deposit balance and returns underlying tokens to the user's
// wallet. A nil amount withdraws the full balance. The operation fails if it
// would leave the account unhealthy.
func (p *Pool) Withdraw(ctx context.Context, user, asset string, amount *uint256.Int) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}
		balance := r.Deposits.BalanceOf(user, r.LiquidityIndex)
		if balance.IsZero() {
			return nil, ledger.ErrInsufficientScaledBalance
		}
		if amount == nil {
			amount = balance
		} else if amount.IsZero() {
			return nil, ErrInvalidAmount
		} else if amount.Gt(balance) {
			return nil, ledger.ErrInsufficientScaledBalance
		}
		if err := r.RemoveLiquidity(amount); err != nil {
			return nil, err
		}
		if err := r.Deposits.Burn(user, amount, r.LiquidityIndex); err != nil {
			return nil, err
		}
		if r.Deposits.ScaledBalanceOf(user).IsZero() {
			st.userConfig(user).SetCollateral(r.ID, false)
		}
		if err := st.bank.Transfer(asset, p.poolAddr, user, amount); err != nil {
			return nil, err
		}
		if err := p.ensureHealthy(ctx, st, user, now); err != nil {
			return nil, err
		}
		if err := r.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		return &opResult{
			kind:    "withdraw",
			user:    user,
			asset:   asset,
			amount:  amount,
			touched: []int{r.ID},
		}, nil
	})
}

// Borrow draws underlying tokens against the account's collateral at the
// chosen rate mode. Stable borrows lock in the reserve's current stable rate
// for the new lot.
func (p *Pool) Borrow(ctx context.Context, user, asset string, amount *uint256.Int, mode model.RateMode) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if amount == nil || amount.IsZero() {
			return nil, ErrInvalidAmount
		}
		if !mode.Valid() {
			return nil, model.ErrInvalidRateMode
		}
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}
		if err := r.EnsureNotFrozen(); err != nil {
			return nil, err
		}
		if err := r.EnsureBorrowable(mode); err != nil {
			return nil, err
		}
		if err := r.CheckBorrowCap(amount); err != nil {
			return nil, err
		}
		if r.AvailableLiquidity.Lt(amount) {
			return nil, reserve.ErrNotEnoughLiquidity
		}

		data, err := p.accountData(ctx, st, user, now)
		if err != nil {
			return nil, err
		}
		price, err := p.oracle.Price(ctx, asset)
		if err != nil {
			return nil, err
		}
		amountBase, overflow := new(uint256.Int).MulOverflow(amount, price)
		if overflow {
			return nil, fixedpoint.ErrArithmeticOverflow
		}
		amountBase.Div(amountBase, fixedpoint.Pow10(r.Config.Decimals))
		if amountBase.Gt(data.AvailableBorrowsBase) {
			return nil, ErrLTVExceeded
		}

		switch mode {
		case model.RateModeVariable:
			if _, err := r.VariableDebt.Mint(user, amount, r.VariableBorrowIndex); err != nil {
				return nil, err
			}
		case model.RateModeStable:
			// Lock the rate the reserve will quote once this borrow is part
			// of its utilization, not the pre-borrow rate.
			remaining := new(uint256.Int).Sub(r.AvailableLiquidity, amount)
			stableAfter := new(uint256.Int).Add(r.TotalStableDebt(), amount)
			prospective, err := p.model.Compute(remaining, stableAfter, r.TotalVariableDebt(), r.Config.ReserveFactor)
			if err != nil {
				return nil, err
			}
			if _, _, err := r.StableDebt.Mint(user, amount, prospective.StableRate, now); err != nil {
				return nil, err
			}
		}
		if err := r.RemoveLiquidity(amount); err != nil {
			return nil, err
		}
		if err := st.bank.Transfer(asset, p.poolAddr, user, amount); err != nil {
			return nil, err
		}
		st.userConfig(user).SetBorrowing(r.ID, true)
		if err := r.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		return &opResult{
			kind:     "borrow",
			user:     user,
			asset:    asset,
			amount:   amount,
			rateMode: mode,
			touched:  []int{r.ID},
		}, nil
	})
}

// Repay returns borrowed tokens. A nil amount repays the full debt in the
// given mode; an amount above the outstanding debt is clamped to it, so
// callers never overpay.
func (p *Pool) Repay(ctx context.Context, user, asset string, amount *uint256.Int, mode model.RateMode) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if !mode.Valid() {
			return nil, model.ErrInvalidRateMode
		}
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}

		var debt *uint256.Int
		switch mode {
		case model.RateModeVariable:
			debt = r.VariableDebt.BalanceOf(user, r.VariableBorrowIndex)
		case model.RateModeStable:
			debt = r.StableDebt.DebtWithInterest(user, now)
		}
		if debt.IsZero() {
			return nil, ErrNoDebtInReserve
		}
		pay := debt
		if amount != nil {
			if amount.IsZero() {
				return nil, ErrInvalidAmount
			}
			pay = fixedpoint.Min(amount, debt)
		}
		if err := st.bank.Transfer(asset, user, p.poolAddr, pay); err != nil {
			return nil, err
		}
		switch mode {
		case model.RateModeVariable:
			if err := r.VariableDebt.Burn(user, pay, r.VariableBorrowIndex); err != nil {
				return nil, err
			}
		case model.RateModeStable:
			if err := r.StableDebt.Burn(user, pay, now); err != nil {
				return nil, err
			}
		}
		if err := r.AddLiquidity(pay); err != nil {
			return nil, err
		}
		if r.VariableDebt.ScaledBalanceOf(user).IsZero() && r.StableDebt.DebtWithInterest(user, now).IsZero() {
			st.userConfig(user).SetBorrowing(r.ID, false)
		}
		if err := r.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		return &opResult{
			kind:     "repay",
			user:     user,
			asset:    asset,
			amount:   pay,
			rateMode: mode,
			touched:  []int{r.ID},
		}, nil
	})
}

// SetUseAsCollateral toggles a deposited reserve in or out of the user's
// collateral set. Disabling fails if it would leave the account unhealthy.
func (p *Pool) SetUseAsCollateral(ctx context.Context, user, asset string, on bool) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}
		if r.Deposits.ScaledBalanceOf(user).IsZero() {
			return nil, ErrNoDepositBalance
		}
		if on && r.Config.LiquidationThreshold == 0 {
			return nil, ErrCollateralCannotBeLiquidated
		}
		st.userConfig(user).SetCollateral(r.ID, on)
		if !on {
			if err := p.ensureHealthy(ctx, st, user, now); err != nil {
				return nil, err
			}
		}
		kind := "collateral_off"
		if on {
			kind = "collateral_on"
		}
		return &opResult{
			kind:    kind,
			user:    user,
			asset:   asset,
			amount:  new(uint256.Int),
			touched: []int{r.ID},
		}, nil
	})
}

// TransferDeposit moves deposit balance between users without touching
// underlying liquidity. The sender must stay healthy; a recipient's first
// balance in a collateral-eligible reserve enables it as collateral.
func (p *Pool) TransferDeposit(ctx context.Context, from, to, asset string, amount *uint256.Int) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if amount == nil || amount.IsZero() {
			return nil, ErrInvalidAmount
		}
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		if err := r.EnsureUsable(); err != nil {
			return nil, err
		}
		firstForRecipient := r.Deposits.ScaledBalanceOf(to).IsZero()
		if err := r.Deposits.Transfer(from, to, amount, r.LiquidityIndex); err != nil {
			return nil, err
		}
		if r.Deposits.ScaledBalanceOf(from).IsZero() {
			st.userConfig(from).SetCollateral(r.ID, false)
		}
		if firstForRecipient && r.Config.LiquidationThreshold > 0 {
			st.userConfig(to).SetCollateral(r.ID, true)
		}
		if err := p.ensureHealthy(ctx, st, from, now); err != nil {
			return nil, err
		}
		return &opResult{
			kind:    "transfer_deposit",
			user:    from,
			counter: to,
			asset:   asset,
			amount:  amount,
			touched: []int{r.ID},
		}, nil
	})
}
