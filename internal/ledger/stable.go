package ledger

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/model"
)

var (
	// ErrRepayExceedsDebt is returned when a burn exceeds the holder's total
	// outstanding stable debt.
	ErrRepayExceedsDebt = errors.New("ledger: repay exceeds outstanding stable debt")

	// ErrStableRateCeiling is returned when a lot's rate exceeds the
	// configured ceiling.
	ErrStableRateCeiling = errors.New("ledger: stable rate exceeds ceiling")
)

// StableLotLedger tracks fixed-rate borrow lots per holder. Each lot accrues
// simple interest independently from its origin timestamp — not compounded,
// so per-lot accounting stays O(1) in state writes. Repayment consumes lots
// oldest-first.
//
// Aggregates (total principal and the principal-weighted average rate) are
// maintained incrementally on every mint and burn; the query path never
// iterates holders.
type StableLotLedger struct {
	lots        map[string][]model.StableLot
	rateCeiling *uint256.Int // ray; zero = no ceiling

	totalPrincipal *uint256.Int
	weightedRate   *uint256.Int // Σ principal·rate, ray-weighted
}

// NewStableLotLedger creates a stable-debt book with the given rate ceiling
// in ray (zero disables the ceiling).
func NewStableLotLedger(rateCeiling *uint256.Int) *StableLotLedger {
	ceiling := new(uint256.Int)
	if rateCeiling != nil {
		ceiling.Set(rateCeiling)
	}
	return &StableLotLedger{
		lots:           make(map[string][]model.StableLot),
		rateCeiling:    ceiling,
		totalPrincipal: new(uint256.Int),
		weightedRate:   new(uint256.Int),
	}
}

// lotInterest returns the simple interest accrued by one lot up to now.
func lotInterest(lot model.StableLot, now int64) *uint256.Int {
	if now <= lot.Origin || lot.Rate.IsZero() || lot.Principal.IsZero() {
		return new(uint256.Int)
	}
	elapsed := uint256.NewInt(uint64(now - lot.Origin))
	p := new(uint256.Int).Mul(lot.Principal, lot.Rate)
	p.Mul(p, elapsed)
	p.Div(p, fixedpoint.SecondsPerYear)
	return p.Div(p, fixedpoint.Ray)
}

// lotDebt returns principal plus accrued interest for one lot.
func lotDebt(lot model.StableLot, now int64) *uint256.Int {
	return new(uint256.Int).Add(lot.Principal, lotInterest(lot, now))
}

func (l *StableLotLedger) addAggregate(principal, rate *uint256.Int) {
	l.totalPrincipal.Add(l.totalPrincipal, principal)
	w := new(uint256.Int).Mul(principal, rate)
	l.weightedRate.Add(l.weightedRate, w)
}

func (l *StableLotLedger) subAggregate(principal, rate *uint256.Int) {
	l.totalPrincipal.Sub(l.totalPrincipal, principal)
	w := new(uint256.Int).Mul(principal, rate)
	if w.Gt(l.weightedRate) {
		// Rounding of partial-lot reductions can leave the weighted sum one
		// unit short; never underflow.
		l.weightedRate.Clear()
		return
	}
	l.weightedRate.Sub(l.weightedRate, w)
}

// Mint appends a new lot at the locked-in rate. Reports whether this is the
// holder's first stable borrow and the new overall average rate.
func (l *StableLotLedger) Mint(holder string, amount, rate *uint256.Int, now int64) (bool, *uint256.Int, error) {
	if !l.rateCeiling.IsZero() && rate.Gt(l.rateCeiling) {
		return false, nil, ErrStableRateCeiling
	}
	first := len(l.lots[holder]) == 0
	l.lots[holder] = append(l.lots[holder], model.StableLot{
		Principal: new(uint256.Int).Set(amount),
		Rate:      new(uint256.Int).Set(rate),
		Origin:    now,
	})
	l.addAggregate(amount, rate)
	return first, l.AverageRate(), nil
}

// DebtWithInterest sums principal plus simple interest over the holder's
// lots.
func (l *StableLotLedger) DebtWithInterest(holder string, now int64) *uint256.Int {
	total := new(uint256.Int)
	for _, lot := range l.lots[holder] {
		total.Add(total, lotDebt(lot, now))
	}
	return total
}

// Burn repays amount against the holder's lots oldest-first. A partially
// repaid lot first settles its accrued interest, then principal; the
// remainder is re-principalized at the lot's original rate with a fresh
// origin, so the locked-in rate survives partial repayment.
func (l *StableLotLedger) Burn(holder string, amount *uint256.Int, now int64) error {
	outstanding := l.DebtWithInterest(holder, now)
	if amount.Gt(outstanding) {
		return ErrRepayExceedsDebt
	}
	remaining := new(uint256.Int).Set(amount)
	lots := l.lots[holder]
	kept := lots[:0]
	for i, lot := range lots {
		if remaining.IsZero() {
			kept = append(kept, lots[i:]...)
			break
		}
		debt := lotDebt(lot, now)
		if remaining.Cmp(debt) >= 0 {
			remaining.Sub(remaining, debt)
			l.subAggregate(lot.Principal, lot.Rate)
			continue
		}
		// Partial: capitalize the unpaid interest into principal.
		l.subAggregate(lot.Principal, lot.Rate)
		newPrincipal := new(uint256.Int).Sub(debt, remaining)
		remaining.Clear()
		l.addAggregate(newPrincipal, lot.Rate)
		kept = append(kept, model.StableLot{
			Principal: newPrincipal,
			Rate:      new(uint256.Int).Set(lot.Rate),
			Origin:    now,
		})
	}
	if len(kept) == 0 {
		delete(l.lots, holder)
	} else {
		l.lots[holder] = kept
	}
	return nil
}

// WeightedAverageRate returns the holder's interest-weighted average rate,
// using post-interest debt amounts as weights.
func (l *StableLotLedger) WeightedAverageRate(holder string, now int64) *uint256.Int {
	totalDebt := new(uint256.Int)
	weighted := new(uint256.Int)
	for _, lot := range l.lots[holder] {
		debt := lotDebt(lot, now)
		totalDebt.Add(totalDebt, debt)
		weighted.Add(weighted, new(uint256.Int).Mul(debt, lot.Rate))
	}
	if totalDebt.IsZero() {
		return new(uint256.Int)
	}
	return weighted.Div(weighted, totalDebt)
}

// Lots returns a copy of the holder's lots in FIFO order.
func (l *StableLotLedger) Lots(holder string) []model.StableLot {
	src := l.lots[holder]
	out := make([]model.StableLot, len(src))
	for i, lot := range src {
		out[i] = lot.Clone()
	}
	return out
}

// TotalPrincipal returns the aggregate outstanding principal.
func (l *StableLotLedger) TotalPrincipal() *uint256.Int {
	return new(uint256.Int).Set(l.totalPrincipal)
}

// AverageRate returns the principal-weighted average rate across all lots.
func (l *StableLotLedger) AverageRate() *uint256.Int {
	if l.totalPrincipal.IsZero() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(l.weightedRate, l.totalPrincipal)
}

// Clone returns a deep copy for the engine's working-state commit protocol.
func (l *StableLotLedger) Clone() *StableLotLedger {
	out := &StableLotLedger{
		lots:           make(map[string][]model.StableLot, len(l.lots)),
		rateCeiling:    new(uint256.Int).Set(l.rateCeiling),
		totalPrincipal: new(uint256.Int).Set(l.totalPrincipal),
		weightedRate:   new(uint256.Int).Set(l.weightedRate),
	}
	for h, lots := range l.lots {
		cp := make([]model.StableLot, len(lots))
		for i, lot := range lots {
			cp[i] = lot.Clone()
		}
		out.lots[h] = cp
	}
	return out
}
