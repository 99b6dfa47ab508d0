package pool

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/reserve"
)

// InitReserve registers a new reserve for an asset. The reserve list is
// append-only: ids are list positions and never reused.
func (p *Pool) InitReserve(ctx context.Context, asset string, cfg model.ReserveConfig, stableRateCeiling *uint256.Int) (int, error) {
	var id int
	err := p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if _, ok := st.byAsset[asset]; ok {
			return nil, ErrReserveAlreadyExists
		}
		if len(st.reserves) >= model.MaxReserves {
			return nil, ErrTooManyReserves
		}
		r, err := reserve.New(len(st.reserves), asset, cfg, stableRateCeiling, now)
		if err != nil {
			return nil, err
		}
		id = r.ID
		st.reserves = append(st.reserves, r)
		st.byAsset[asset] = id
		metrics.ActiveReserves.Inc()
		return &opResult{
			kind:    "init_reserve",
			user:    "admin",
			asset:   asset,
			amount:  new(uint256.Int),
			touched: []int{id},
		}, nil
	})
	return id, err
}

// ConfigureReserve replaces a reserve's risk configuration and flags.
// Existing positions are never force-closed by a configuration change; the
// new parameters apply to subsequent operations and health checks.
func (p *Pool) ConfigureReserve(ctx context.Context, asset string, cfg model.ReserveConfig) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		r, err := st.reserveByAsset(asset)
		if err != nil {
			return nil, err
		}
		if err := r.Accrue(now); err != nil {
			return nil, err
		}
		r.Config = cfg.Clone()
		// The new reserve factor must take effect now, not at the next
		// money operation.
		if err := r.RecomputeRates(p.model); err != nil {
			return nil, err
		}
		return &opResult{
			kind:    "configure_reserve",
			user:    "admin",
			asset:   asset,
			amount:  new(uint256.Int),
			touched: []int{r.ID},
		}, nil
	})
}

// Credit mints underlying tokens to a holder's wallet. This is the on-ramp
// for deposits and flash-loan repayments; a deployment bridging real tokens
// would replace it with transfer ingestion.
func (p *Pool) Credit(ctx context.Context, holder, asset string, amount *uint256.Int) error {
	return p.run(ctx, func(st *state, now int64) (*opResult, error) {
		if amount == nil || amount.IsZero() {
			return nil, ErrInvalidAmount
		}
		st.bank.Mint(asset, holder, amount)
		return &opResult{
			kind:   "credit",
			user:   holder,
			asset:  asset,
			amount: amount,
		}, nil
	})
}

// ReserveByAsset returns a deep copy of the reserve's current state.
func (p *Pool) ReserveByAsset(asset string) (*reserve.State, error) {
	st := p.st.Load()
	r, err := st.reserveByAsset(asset)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// Reserves returns deep copies of all reserves in id order.
func (p *Pool) Reserves() []*reserve.State {
	st := p.st.Load()
	out := make([]*reserve.State, len(st.reserves))
	for i, r := range st.reserves {
		out[i] = r.Clone()
	}
	return out
}

// WalletBalance returns a holder's underlying token balance.
func (p *Pool) WalletBalance(holder, asset string) *uint256.Int {
	return p.st.Load().bank.BalanceOf(asset, holder)
}

// DepositBalance returns the user's interest-bearing deposit balance in the
// asset at the current index.
func (p *Pool) DepositBalance(user, asset string) (*uint256.Int, error) {
	st := p.st.Load()
	r, err := st.reserveByAsset(asset)
	if err != nil {
		return nil, err
	}
	return r.Deposits.BalanceOf(user, r.LiquidityIndex), nil
}

// UsingAsCollateral reports whether the user's deposit in the asset backs
// their debt.
func (p *Pool) UsingAsCollateral(user, asset string) (bool, error) {
	st := p.st.Load()
	r, err := st.reserveByAsset(asset)
	if err != nil {
		return false, err
	}
	cfg, ok := st.users[user]
	if !ok {
		return false, nil
	}
	return cfg.UsingAsCollateral(r.ID), nil
}

// DebtBalances returns the user's variable and stable debt in the asset.
func (p *Pool) DebtBalances(user, asset string) (variable, stable *uint256.Int, err error) {
	st := p.st.Load()
	r, err := st.reserveByAsset(asset)
	if err != nil {
		return nil, nil, err
	}
	variable = r.VariableDebt.BalanceOf(user, r.VariableBorrowIndex)
	stable = r.StableDebt.DebtWithInterest(user, p.now())
	return variable, stable, nil
}
