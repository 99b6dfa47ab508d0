package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/bank"
	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/model"
)

// ErrFlashLoanMismatch is returned when the assets, amounts and modes slices
// do not line up.
var ErrFlashLoanMismatch = errors.New("pool: assets, amounts and modes length mismatch")

// ErrDuplicateAsset is returned when the same asset appears twice in a flash
// loan request. The per-asset repayment floor is snapshotted before the
// transfers, so a repeated asset would let one premium satisfy every entry.
var ErrDuplicateAsset = errors.New("pool: duplicate asset in flash loan")

// FlashLoanReceiver is the callback a flash-loan borrower implements. The
// funds book is the live token book of the in-flight operation: borrowed
// amounts arrive under the initiator's address, and for repay-mode assets
// the receiver must move principal plus premium back to the pool's address
// before returning.
//
// Calling any pool operation from inside the callback fails with
// ErrReentrantCall.
type FlashLoanReceiver interface {
	OnFlashLoan(ctx context.Context, funds *bank.Book, assets []string, amounts, premiums []*uint256.Int, initiator string, params []byte) error
}

// FlashLoan lends the requested amounts for the duration of the receiver
// callback. Per asset, modes selects what happens afterwards:
//
//   - RateModeNone: the callback must have returned principal plus premium,
//     or the whole operation rolls back including the outbound transfers.
//     The premium is cumulated into the reserve's liquidity index, so
//     depositors earn it immediately.
//   - RateModeVariable: the principal stays with the initiator and is opened
//     as variable debt against onBehalfOf's collateral; no premium is
//     collected.
//
// A nil modes slice means every asset must be repaid. An empty onBehalfOf
// defaults to the initiator.
func (p *Pool) FlashLoan(ctx context.Context, initiator string, receiver FlashLoanReceiver, assets []string, amounts []*uint256.Int, modes []model.RateMode, onBehalfOf string, params []byte) error {
	err := p.flashLoan(ctx, initiator, receiver, assets, amounts, modes, onBehalfOf, params)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	metrics.FlashLoansTotal.WithLabelValues(outcome).Inc()
	return err
}

func (p *Pool) flashLoan(ctx context.Context, initiator string, receiver FlashLoanReceiver, assets []string, amounts []*uint256.Int, modes []model.RateMode, onBehalfOf string, params []byte) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if len(assets) == 0 || len(assets) != len(amounts) {
			return nil, ErrFlashLoanMismatch
		}
		if modes == nil {
			modes = make([]model.RateMode, len(assets))
		}
		if len(modes) != len(assets) {
			return nil, ErrFlashLoanMismatch
		}
		for _, mode := range modes {
			if mode != model.RateModeNone && mode != model.RateModeVariable {
				return nil, model.ErrInvalidRateMode
			}
		}
		seen := make(map[string]struct{}, len(assets))
		for _, asset := range assets {
			if _, ok := seen[asset]; ok {
				return nil, ErrDuplicateAsset
			}
			seen[asset] = struct{}{}
		}
		if onBehalfOf == "" {
			onBehalfOf = initiator
		}

		premiums := make([]*uint256.Int, len(assets))
		balancesBefore := make([]*uint256.Int, len(assets))
		total := new(uint256.Int)
		for i, asset := range assets {
			amount := amounts[i]
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
			if err := r.EnsureFlashLoanable(); err != nil {
				return nil, err
			}
			premium, err := fixedpoint.PercentMul(amount, p.flashLoanPremium)
			if err != nil {
				return nil, err
			}
			premiums[i] = premium
			balancesBefore[i] = st.bank.BalanceOf(asset, p.poolAddr)

			if err := r.RemoveLiquidity(amount); err != nil {
				return nil, err
			}
			if err := st.bank.Transfer(asset, p.poolAddr, initiator, amount); err != nil {
				return nil, err
			}
			total.Add(total, amount)
		}

		if err := receiver.OnFlashLoan(ctx, st.bank, assets, amounts, premiums, initiator, params); err != nil {
			return nil, fmt.Errorf("flash loan callback: %w", err)
		}

		openedDebt := false
		for i, asset := range assets {
			r, err := st.reserveByAsset(asset)
			if err != nil {
				return nil, err
			}
			if modes[i] == model.RateModeVariable {
				// The principal stays out and becomes a variable borrow.
				if err := r.EnsureBorrowable(model.RateModeVariable); err != nil {
					return nil, err
				}
				if err := r.CheckBorrowCap(amounts[i]); err != nil {
					return nil, err
				}
				if _, err := r.VariableDebt.Mint(onBehalfOf, amounts[i], r.VariableBorrowIndex); err != nil {
					return nil, err
				}
				st.userConfig(onBehalfOf).SetBorrowing(r.ID, true)
				openedDebt = true
			} else {
				// Repayment check: the pool must hold at least what it had
				// before, plus the premium. The principal left and came back,
				// so before - amount + amount + premium is the floor.
				want := new(uint256.Int).Add(balancesBefore[i], premiums[i])
				if st.bank.BalanceOf(asset, p.poolAddr).Lt(want) {
					return nil, ErrFlashLoanRepayment
				}
				repaid := new(uint256.Int).Add(amounts[i], premiums[i])
				if err := r.AddLiquidity(repaid); err != nil {
					return nil, err
				}
				if err := r.CumulateToLiquidityIndex(premiums[i]); err != nil {
					return nil, err
				}
			}
			if err := r.RecomputeRates(p.model); err != nil {
				return nil, err
			}
		}

		if openedDebt {
			if err := p.ensureWithinBorrowPower(ctx, st, onBehalfOf, now); err != nil {
				return nil, err
			}
		}

		touched := make([]int, 0, len(assets))
		for _, asset := range assets {
			touched = append(touched, st.byAsset[asset])
		}
		return &opResult{
			kind:    "flash_loan",
			user:    initiator,
			counter: onBehalfOf,
			asset:   assets[0],
			amount:  total,
			touched: touched,
		}, nil
	})
}

// ensureWithinBorrowPower requires the user's total debt to fit inside the
// collateral's loan-to-value capacity, the same bound a plain borrow checks
// before minting.
func (p *Pool) ensureWithinBorrowPower(ctx context.Context, st *state, user string, now int64) error {
	data, err := p.accountData(ctx, st, user, now)
	if err != nil {
		return err
	}
	capacity, err := fixedpoint.PercentMul(data.TotalCollateralBase, data.AvgLTV)
	if err != nil {
		return err
	}
	if data.TotalDebtBase.Gt(capacity) {
		return ErrLTVExceeded
	}
	return nil
}
