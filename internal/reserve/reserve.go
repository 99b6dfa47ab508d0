// Package reserve holds the per-asset state machine: available liquidity,
// the two cumulative indices, current rates, and the three balance books.
// Interest accrues lazily, rolled into the indices on first touch of a
// timestamp.
package reserve

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/ledger"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/rates"
)

var (
	// ErrNotEnoughLiquidity is returned when an outflow exceeds the
	// reserve's available liquidity.
	ErrNotEnoughLiquidity = errors.New("reserve: not enough available liquidity")

	// ErrSupplyCap is returned when a deposit would push total supply past
	// the configured cap.
	ErrSupplyCap = errors.New("reserve: supply cap exceeded")

	// ErrBorrowCap is returned when a borrow would push total debt past the
	// configured cap.
	ErrBorrowCap = errors.New("reserve: borrow cap exceeded")

	// ErrNotActive is returned for any operation on an inactive reserve.
	ErrNotActive = errors.New("reserve: reserve is not active")

	// ErrPaused is returned for any operation on a paused reserve.
	ErrPaused = errors.New("reserve: reserve is paused")

	// ErrFrozen is returned for deposits and borrows on a frozen reserve.
	// Withdrawals, repayments and liquidations still pass.
	ErrFrozen = errors.New("reserve: reserve is frozen")

	// ErrBorrowingDisabled is returned when borrowing is switched off.
	ErrBorrowingDisabled = errors.New("reserve: borrowing is disabled")

	// ErrStableBorrowingDisabled is returned when stable-rate borrowing is
	// switched off.
	ErrStableBorrowingDisabled = errors.New("reserve: stable borrowing is disabled")

	// ErrFlashLoanDisabled is returned when the reserve does not participate
	// in flash loans.
	ErrFlashLoanDisabled = errors.New("reserve: flash loans are disabled")
)

// State is the complete mutable state of one reserve. It is not safe for
// concurrent use; the engine mutates clones and swaps them in atomically.
type State struct {
	ID     int
	Asset  string
	Config model.ReserveConfig

	AvailableLiquidity  *uint256.Int
	LiquidityIndex      *uint256.Int // ray
	VariableBorrowIndex *uint256.Int // ray

	LiquidityRate *uint256.Int // ray
	VariableRate  *uint256.Int // ray
	StableRate    *uint256.Int // ray

	LastUpdate int64

	Deposits     *ledger.ScaledLedger
	VariableDebt *ledger.ScaledLedger
	StableDebt   *ledger.StableLotLedger
}

// New initializes a reserve with both indices at one ray and empty books.
func New(id int, asset string, cfg model.ReserveConfig, stableRateCeiling *uint256.Int, now int64) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &State{
		ID:                  id,
		Asset:               asset,
		Config:              cfg.Clone(),
		AvailableLiquidity:  new(uint256.Int),
		LiquidityIndex:      new(uint256.Int).Set(fixedpoint.Ray),
		VariableBorrowIndex: new(uint256.Int).Set(fixedpoint.Ray),
		LiquidityRate:       new(uint256.Int),
		VariableRate:        new(uint256.Int),
		StableRate:          new(uint256.Int),
		LastUpdate:          now,
		Deposits:            ledger.NewDepositLedger(),
		VariableDebt:        ledger.NewDebtLedger(),
		StableDebt:          ledger.NewStableLotLedger(stableRateCeiling),
	}, nil
}

// Accrue rolls interest earned since LastUpdate into both cumulative
// indices. Calling it twice at the same timestamp is a no-op, so every
// operation can accrue unconditionally before mutating.
func (s *State) Accrue(now int64) error {
	if now <= s.LastUpdate {
		return nil
	}
	elapsed := uint64(now - s.LastUpdate)

	if !s.LiquidityRate.IsZero() && !s.Deposits.ScaledTotal().IsZero() {
		growth, err := fixedpoint.LinearInterest(s.LiquidityRate, elapsed)
		if err != nil {
			return err
		}
		next, err := fixedpoint.RayMul(s.LiquidityIndex, growth)
		if err != nil {
			return err
		}
		s.LiquidityIndex = next
		if err := s.Deposits.UpdateIndex(next); err != nil {
			return err
		}
	}
	if !s.VariableRate.IsZero() && !s.VariableDebt.ScaledTotal().IsZero() {
		growth, err := fixedpoint.LinearInterest(s.VariableRate, elapsed)
		if err != nil {
			return err
		}
		next, err := fixedpoint.RayMul(s.VariableBorrowIndex, growth)
		if err != nil {
			return err
		}
		s.VariableBorrowIndex = next
		if err := s.VariableDebt.UpdateIndex(next); err != nil {
			return err
		}
	}
	s.LastUpdate = now
	return nil
}

// TotalVariableDebt returns the nominal variable debt at the current index.
func (s *State) TotalVariableDebt() *uint256.Int {
	return s.VariableDebt.TotalSupply(s.VariableBorrowIndex)
}

// TotalStableDebt returns the outstanding stable principal. Accrued stable
// interest is capitalized into principal on repayment, so principal is the
// rate-model input.
func (s *State) TotalStableDebt() *uint256.Int {
	return s.StableDebt.TotalPrincipal()
}

// TotalDebt returns variable plus stable debt.
func (s *State) TotalDebt() *uint256.Int {
	return new(uint256.Int).Add(s.TotalVariableDebt(), s.TotalStableDebt())
}

// RecomputeRates re-derives the three current rates from the rate model.
// Call after every mutation of liquidity or debt.
func (s *State) RecomputeRates(m *rates.Model) error {
	out, err := m.Compute(s.AvailableLiquidity, s.TotalStableDebt(), s.TotalVariableDebt(), s.Config.ReserveFactor)
	if err != nil {
		return err
	}
	s.LiquidityRate = out.LiquidityRate
	s.VariableRate = out.VariableRate
	s.StableRate = out.StableRate
	return nil
}

// AddLiquidity credits underlying tokens to the reserve.
func (s *State) AddLiquidity(amount *uint256.Int) error {
	next, carry := new(uint256.Int).AddOverflow(s.AvailableLiquidity, amount)
	if carry {
		return fixedpoint.ErrArithmeticOverflow
	}
	s.AvailableLiquidity = next
	return nil
}

// RemoveLiquidity debits underlying tokens from the reserve.
func (s *State) RemoveLiquidity(amount *uint256.Int) error {
	if s.AvailableLiquidity.Lt(amount) {
		return ErrNotEnoughLiquidity
	}
	s.AvailableLiquidity = new(uint256.Int).Sub(s.AvailableLiquidity, amount)
	return nil
}

// CheckSupplyCap rejects a deposit that would push total supply past the
// cap. A zero cap means uncapped.
func (s *State) CheckSupplyCap(amount *uint256.Int) error {
	limit := s.Config.SupplyCap
	if limit == nil || limit.IsZero() {
		return nil
	}
	next, carry := new(uint256.Int).AddOverflow(s.Deposits.TotalSupply(s.LiquidityIndex), amount)
	if carry || next.Gt(limit) {
		return ErrSupplyCap
	}
	return nil
}

// CheckBorrowCap rejects a borrow that would push total debt past the cap.
// A zero cap means uncapped.
func (s *State) CheckBorrowCap(amount *uint256.Int) error {
	limit := s.Config.BorrowCap
	if limit == nil || limit.IsZero() {
		return nil
	}
	next, carry := new(uint256.Int).AddOverflow(s.TotalDebt(), amount)
	if carry || next.Gt(limit) {
		return ErrBorrowCap
	}
	return nil
}

// EnsureUsable gates every operation: the reserve must be active and not
// paused.
func (s *State) EnsureUsable() error {
	if !s.Config.Flags.Active {
		return ErrNotActive
	}
	if s.Config.Flags.Paused {
		return ErrPaused
	}
	return nil
}

// EnsureNotFrozen additionally gates new exposure (deposits and borrows).
func (s *State) EnsureNotFrozen() error {
	if s.Config.Flags.Frozen {
		return ErrFrozen
	}
	return nil
}

// EnsureBorrowable gates borrows by rate mode.
func (s *State) EnsureBorrowable(mode model.RateMode) error {
	if !s.Config.Flags.BorrowingEnabled {
		return ErrBorrowingDisabled
	}
	if mode == model.RateModeStable && !s.Config.Flags.StableBorrowingEnabled {
		return ErrStableBorrowingDisabled
	}
	return nil
}

// EnsureFlashLoanable gates flash-loan participation.
func (s *State) EnsureFlashLoanable() error {
	if !s.Config.Flags.FlashLoanEnabled {
		return ErrFlashLoanDisabled
	}
	return nil
}

// CumulateToLiquidityIndex distributes a windfall amount (flash-loan
// premiums) to all depositors by bumping the liquidity index. A reserve with
// no deposits keeps the amount as protocol-owned liquidity.
func (s *State) CumulateToLiquidityIndex(amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	total := s.Deposits.TotalSupply(s.LiquidityIndex)
	if total.IsZero() {
		return nil
	}
	ratio, err := fixedpoint.RayDiv(amount, total)
	if err != nil {
		return err
	}
	factor, carry := ratio.AddOverflow(ratio, fixedpoint.Ray)
	if carry {
		return fixedpoint.ErrArithmeticOverflow
	}
	next, err := fixedpoint.RayMul(s.LiquidityIndex, factor)
	if err != nil {
		return err
	}
	s.LiquidityIndex = next
	return s.Deposits.UpdateIndex(next)
}

// Snapshot renders the reserve for persistence.
func (s *State) Snapshot() model.ReserveSnapshot {
	return model.ReserveSnapshot{
		ReserveID:           s.ID,
		Asset:               s.Asset,
		AvailableLiquidity:  s.AvailableLiquidity.Dec(),
		TotalVariableDebt:   s.TotalVariableDebt().Dec(),
		TotalStableDebt:     s.TotalStableDebt().Dec(),
		LiquidityIndex:      s.LiquidityIndex.Dec(),
		VariableBorrowIndex: s.VariableBorrowIndex.Dec(),
		LiquidityRate:       s.LiquidityRate.Dec(),
		VariableRate:        s.VariableRate.Dec(),
		StableRate:          s.StableRate.Dec(),
		LastUpdate:          s.LastUpdate,
		UpdatedAt:           time.Now().UTC(),
	}
}

// Clone returns a deep copy for the engine's working-state commit protocol.
func (s *State) Clone() *State {
	return &State{
		ID:                  s.ID,
		Asset:               s.Asset,
		Config:              s.Config.Clone(),
		AvailableLiquidity:  new(uint256.Int).Set(s.AvailableLiquidity),
		LiquidityIndex:      new(uint256.Int).Set(s.LiquidityIndex),
		VariableBorrowIndex: new(uint256.Int).Set(s.VariableBorrowIndex),
		LiquidityRate:       new(uint256.Int).Set(s.LiquidityRate),
		VariableRate:        new(uint256.Int).Set(s.VariableRate),
		StableRate:          new(uint256.Int).Set(s.StableRate),
		LastUpdate:          s.LastUpdate,
		Deposits:            s.Deposits.Clone(),
		VariableDebt:        s.VariableDebt.Clone(),
		StableDebt:          s.StableDebt.Clone(),
	}
}
