// Package model defines the core domain types shared across the lending
// engine. All monetary values use 256-bit fixed-point integers — never
// float64 for money.
package model

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
)

// MaxReserves bounds the append-only reserve list; reserve ids are stable
// small integers assigned at initialization.
const MaxReserves = 128

// RateMode selects which debt flavor an operation targets.
type RateMode int

const (
	RateModeNone RateMode = iota
	RateModeStable
	RateModeVariable
)

var ErrInvalidRateMode = errors.New("model: invalid interest rate mode")

// Valid reports whether the mode names a borrowable flavor.
func (m RateMode) Valid() bool {
	return m == RateModeStable || m == RateModeVariable
}

func (m RateMode) String() string {
	switch m {
	case RateModeStable:
		return "stable"
	case RateModeVariable:
		return "variable"
	default:
		return "none"
	}
}

// ReserveFlags are the operational switches for one reserve.
type ReserveFlags struct {
	Active                 bool `json:"active"`
	Frozen                 bool `json:"frozen"`
	Paused                 bool `json:"paused"`
	BorrowingEnabled       bool `json:"borrowing_enabled"`
	StableBorrowingEnabled bool `json:"stable_borrowing_enabled"`
	FlashLoanEnabled       bool `json:"flash_loan_enabled"`
}

// ReserveConfig is the risk configuration for one reserve. Ratios are in
// basis points (10000 = 100%); caps are in underlying base units with zero
// meaning uncapped.
type ReserveConfig struct {
	LTV                  uint64       `json:"ltv"`
	LiquidationThreshold uint64       `json:"liquidation_threshold"`
	LiquidationBonus     uint64       `json:"liquidation_bonus"` // >10000, e.g. 10500 = 5% bonus
	ReserveFactor        uint64       `json:"reserve_factor"`
	SupplyCap            *uint256.Int `json:"supply_cap"`
	BorrowCap            *uint256.Int `json:"borrow_cap"`
	Decimals             uint8        `json:"decimals"`
	Flags                ReserveFlags `json:"flags"`
}

var (
	ErrInvalidLTV              = errors.New("model: ltv exceeds liquidation threshold")
	ErrInvalidThreshold        = errors.New("model: liquidation threshold exceeds 100%")
	ErrInvalidLiquidationBonus = errors.New("model: liquidation bonus must exceed 100%")
	ErrInvalidReserveFactor    = errors.New("model: reserve factor exceeds 100%")
)

// Validate checks internal consistency of the risk parameters.
func (c ReserveConfig) Validate() error {
	if c.LiquidationThreshold > 10_000 {
		return ErrInvalidThreshold
	}
	if c.LTV > c.LiquidationThreshold {
		return ErrInvalidLTV
	}
	if c.LiquidationThreshold > 0 && c.LiquidationBonus <= 10_000 {
		return ErrInvalidLiquidationBonus
	}
	if c.ReserveFactor > 10_000 {
		return ErrInvalidReserveFactor
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c ReserveConfig) Clone() ReserveConfig {
	out := c
	if c.SupplyCap != nil {
		out.SupplyCap = new(uint256.Int).Set(c.SupplyCap)
	}
	if c.BorrowCap != nil {
		out.BorrowCap = new(uint256.Int).Set(c.BorrowCap)
	}
	return out
}

// StableLot is one fixed-rate borrow position. Interest is simple, accrued
// from Origin at the locked-in Rate.
type StableLot struct {
	Principal *uint256.Int `json:"principal"`
	Rate      *uint256.Int `json:"rate"` // ray
	Origin    int64        `json:"origin"`
}

// Clone returns a deep copy of the lot.
func (l StableLot) Clone() StableLot {
	return StableLot{
		Principal: new(uint256.Int).Set(l.Principal),
		Rate:      new(uint256.Int).Set(l.Rate),
		Origin:    l.Origin,
	}
}

// AccountData is the cross-reserve risk summary for one user. Base-currency
// values use the oracle's 1e8 unit; the health factor is in wad.
type AccountData struct {
	TotalCollateralBase     *uint256.Int `json:"total_collateral_base"`
	TotalDebtBase           *uint256.Int `json:"total_debt_base"`
	AvailableBorrowsBase    *uint256.Int `json:"available_borrows_base"`
	AvgLTV                  uint64       `json:"avg_ltv"`
	AvgLiquidationThreshold uint64       `json:"avg_liquidation_threshold"`
	HealthFactor            *uint256.Int `json:"health_factor"`
}

// UserConfig marks which reserves a user supplies as collateral and borrows
// from. Two 64-bit words cover the 128-reserve maximum; the bitset bounds
// risk-aggregation iteration.
type UserConfig struct {
	collateral [2]uint64
	borrowing  [2]uint64
}

func bit(id int) (word int, mask uint64) { return id / 64, 1 << (uint(id) % 64) }

// SetCollateral marks or clears the reserve as active collateral.
func (u *UserConfig) SetCollateral(id int, on bool) {
	w, m := bit(id)
	if on {
		u.collateral[w] |= m
	} else {
		u.collateral[w] &^= m
	}
}

// UsingAsCollateral reports whether the reserve backs the user's debt.
func (u *UserConfig) UsingAsCollateral(id int) bool {
	w, m := bit(id)
	return u.collateral[w]&m != 0
}

// SetBorrowing marks or clears the reserve as borrowed from.
func (u *UserConfig) SetBorrowing(id int, on bool) {
	w, m := bit(id)
	if on {
		u.borrowing[w] |= m
	} else {
		u.borrowing[w] &^= m
	}
}

// Borrowing reports whether the user has debt in the reserve.
func (u *UserConfig) Borrowing(id int) bool {
	w, m := bit(id)
	return u.borrowing[w]&m != 0
}

// IsEmpty reports whether the user touches no reserve at all.
func (u *UserConfig) IsEmpty() bool {
	return u.collateral[0] == 0 && u.collateral[1] == 0 &&
		u.borrowing[0] == 0 && u.borrowing[1] == 0
}

// Involved reports whether the reserve matters for risk aggregation.
func (u *UserConfig) Involved(id int) bool {
	return u.UsingAsCollateral(id) || u.Borrowing(id)
}

// Clone returns a copy of the bitset.
func (u *UserConfig) Clone() *UserConfig {
	out := *u
	return &out
}

// OperationRecord is an immutable journal row for one committed operation.
// Once written these are never modified or deleted.
type OperationRecord struct {
	ID        string    `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	User      string    `json:"user_id" db:"user_id"`
	Counter   string    `json:"counterparty,omitempty" db:"counterparty"` // liquidator, recipient, ...
	Asset     string    `json:"asset" db:"asset"`
	Amount    string    `json:"amount" db:"amount"` // underlying base units, decimal string
	RateMode  string    `json:"rate_mode,omitempty" db:"rate_mode"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// ReserveSnapshot is the persisted view of one reserve after a committed
// operation. Numeric fields are decimal strings so NUMERIC round trips are
// exact.
type ReserveSnapshot struct {
	ReserveID           int       `json:"reserve_id" db:"reserve_id"`
	Asset               string    `json:"asset" db:"asset"`
	AvailableLiquidity  string    `json:"available_liquidity" db:"available_liquidity"`
	TotalVariableDebt   string    `json:"total_variable_debt" db:"total_variable_debt"`
	TotalStableDebt     string    `json:"total_stable_debt" db:"total_stable_debt"`
	LiquidityIndex      string    `json:"liquidity_index" db:"liquidity_index"`
	VariableBorrowIndex string    `json:"variable_borrow_index" db:"variable_borrow_index"`
	LiquidityRate       string    `json:"liquidity_rate" db:"liquidity_rate"`
	VariableRate        string    `json:"variable_rate" db:"variable_rate"`
	StableRate          string    `json:"stable_rate" db:"stable_rate"`
	LastUpdate          int64     `json:"last_update" db:"last_update"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
