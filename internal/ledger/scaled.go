// Package ledger implements the two interest-bearing balance books of the
// engine: index-scaled balances (deposits and variable debt) and fixed-rate
// stable borrow lots.
//
// A scaled balance stores amount·RAY/index at write time, so every holder's
// nominal balance grows with the index without per-holder writes on interest
// ticks. Deposit ledgers are transferable; debt ledgers are liabilities and
// reject all transfers.
package ledger

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
)

var (
	// ErrInsufficientScaledBalance is returned when a burn or transfer
	// exceeds the holder's scaled balance.
	ErrInsufficientScaledBalance = errors.New("ledger: insufficient scaled balance")

	// ErrTransferNotAllowed is returned for any transfer on a debt ledger.
	ErrTransferNotAllowed = errors.New("ledger: debt balances are not transferable")

	// ErrIndexMustNotDecrease is returned when an index update would move
	// backwards.
	ErrIndexMustNotDecrease = errors.New("ledger: index must not decrease")

	// ErrZeroIndex is returned when an operation is given a zero index.
	ErrZeroIndex = errors.New("ledger: index must be positive")
)

// Kind distinguishes transferable deposit receipts from debt liabilities.
type Kind int

const (
	KindDeposit Kind = iota
	KindDebt
)

// ScaledLedger tracks scaled balances per holder plus the global scaled
// total. Nominal value = scaled × index / RAY.
type ScaledLedger struct {
	kind        Kind
	balances    map[string]*uint256.Int
	scaledTotal *uint256.Int
	index       *uint256.Int // floor for monotonicity checks
}

// NewDepositLedger creates a transferable scaled-balance book.
func NewDepositLedger() *ScaledLedger { return newScaled(KindDeposit) }

// NewDebtLedger creates a non-transferable scaled-balance book.
func NewDebtLedger() *ScaledLedger { return newScaled(KindDebt) }

func newScaled(kind Kind) *ScaledLedger {
	return &ScaledLedger{
		kind:        kind,
		balances:    make(map[string]*uint256.Int),
		scaledTotal: new(uint256.Int),
		index:       new(uint256.Int).Set(fixedpoint.Ray),
	}
}

// Kind returns the ledger flavor.
func (l *ScaledLedger) Kind() Kind { return l.kind }

// UpdateIndex records the reserve's new cumulative index. Indices only move
// forward.
func (l *ScaledLedger) UpdateIndex(newIndex *uint256.Int) error {
	if newIndex == nil || newIndex.IsZero() {
		return ErrZeroIndex
	}
	if newIndex.Lt(l.index) {
		return ErrIndexMustNotDecrease
	}
	l.index.Set(newIndex)
	return nil
}

// Index returns the last recorded index.
func (l *ScaledLedger) Index() *uint256.Int { return new(uint256.Int).Set(l.index) }

// scaleDown computes amount·RAY/index rounded down (protocol-favorable for
// mints and debt burns).
func scaleDown(amount, index *uint256.Int) (*uint256.Int, error) {
	if index.IsZero() {
		return nil, ErrZeroIndex
	}
	p, overflow := new(uint256.Int).MulOverflow(amount, fixedpoint.Ray)
	if overflow {
		return nil, fixedpoint.ErrArithmeticOverflow
	}
	return p.Div(p, index), nil
}

// scaleUp computes amount·RAY/index rounded up (protocol-favorable for
// deposit burns: a withdrawer cannot leave phantom dust supply).
func scaleUp(amount, index *uint256.Int) (*uint256.Int, error) {
	down, err := scaleDown(amount, index)
	if err != nil {
		return nil, err
	}
	rem := new(uint256.Int).Mul(amount, fixedpoint.Ray)
	rem.Mod(rem, index)
	if !rem.IsZero() {
		down.AddUint64(down, 1)
	}
	return down, nil
}

// Mint credits amount at the given index and reports whether this is the
// holder's first scaled balance.
func (l *ScaledLedger) Mint(holder string, amount, currentIndex *uint256.Int) (bool, error) {
	scaled, err := scaleDown(amount, currentIndex)
	if err != nil {
		return false, err
	}
	bal, ok := l.balances[holder]
	first := !ok || bal.IsZero()
	if !ok {
		bal = new(uint256.Int)
		l.balances[holder] = bal
	}
	bal.Add(bal, scaled)
	l.scaledTotal.Add(l.scaledTotal, scaled)
	return first, nil
}

// Burn debits amount at the given index. Deposit ledgers round the scaled
// amount up, debt ledgers round it down; both directions favor the protocol.
// When amount covers the holder's whole nominal balance the burn clamps to
// the exact scaled balance so no rounding dust survives.
func (l *ScaledLedger) Burn(holder string, amount, currentIndex *uint256.Int) error {
	var scaled *uint256.Int
	var err error
	if l.kind == KindDeposit {
		scaled, err = scaleUp(amount, currentIndex)
	} else {
		scaled, err = scaleDown(amount, currentIndex)
	}
	if err != nil {
		return err
	}
	bal, ok := l.balances[holder]
	if !ok || bal.Lt(scaled) {
		// Full-balance burns may overshoot by one scaled unit of rounding.
		if ok && amount.Cmp(l.BalanceOf(holder, currentIndex)) >= 0 {
			scaled = new(uint256.Int).Set(bal)
		} else {
			return ErrInsufficientScaledBalance
		}
	}
	bal.Sub(bal, scaled)
	l.scaledTotal.Sub(l.scaledTotal, scaled)
	if bal.IsZero() {
		delete(l.balances, holder)
	}
	return nil
}

// BalanceOf returns the holder's nominal balance at the given index.
func (l *ScaledLedger) BalanceOf(holder string, currentIndex *uint256.Int) *uint256.Int {
	bal, ok := l.balances[holder]
	if !ok {
		return new(uint256.Int)
	}
	p := new(uint256.Int).Mul(bal, currentIndex)
	return p.Div(p, fixedpoint.Ray)
}

// ScaledBalanceOf returns the holder's raw scaled balance.
func (l *ScaledLedger) ScaledBalanceOf(holder string) *uint256.Int {
	bal, ok := l.balances[holder]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(bal)
}

// TotalSupply returns the aggregate nominal balance at the given index.
func (l *ScaledLedger) TotalSupply(currentIndex *uint256.Int) *uint256.Int {
	p := new(uint256.Int).Mul(l.scaledTotal, currentIndex)
	return p.Div(p, fixedpoint.Ray)
}

// ScaledTotal returns the global scaled total.
func (l *ScaledLedger) ScaledTotal() *uint256.Int {
	return new(uint256.Int).Set(l.scaledTotal)
}

// Transfer moves nominal amount between holders without touching the index.
// Debt ledgers reject this: debt is a liability, never tradable.
func (l *ScaledLedger) Transfer(from, to string, amount, currentIndex *uint256.Int) error {
	if l.kind == KindDebt {
		return ErrTransferNotAllowed
	}
	scaled, err := scaleDown(amount, currentIndex)
	if err != nil {
		return err
	}
	src, ok := l.balances[from]
	if !ok || src.Lt(scaled) {
		if ok && amount.Cmp(l.BalanceOf(from, currentIndex)) >= 0 {
			scaled = new(uint256.Int).Set(src)
		} else {
			return ErrInsufficientScaledBalance
		}
	}
	src.Sub(src, scaled)
	if src.IsZero() {
		delete(l.balances, from)
	}
	dst, ok := l.balances[to]
	if !ok {
		dst = new(uint256.Int)
		l.balances[to] = dst
	}
	dst.Add(dst, scaled)
	return nil
}

// Clone returns a deep copy for the engine's working-state commit protocol.
func (l *ScaledLedger) Clone() *ScaledLedger {
	out := &ScaledLedger{
		kind:        l.kind,
		balances:    make(map[string]*uint256.Int, len(l.balances)),
		scaledTotal: new(uint256.Int).Set(l.scaledTotal),
		index:       new(uint256.Int).Set(l.index),
	}
	for h, b := range l.balances {
		out.balances[h] = new(uint256.Int).Set(b)
	}
	return out
}
