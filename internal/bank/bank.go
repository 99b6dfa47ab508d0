// Package bank is the in-memory token book: per-asset balances keyed by
// holder address. The pool's own holdings live under its address like any
// other holder's, so flash-loan repayment checks are plain balance reads.
package bank

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientFunds = errors.New("bank: insufficient funds")

// Book tracks asset balances per holder. It is not safe for concurrent use;
// the engine mutates clones and swaps them in atomically.
type Book struct {
	balances map[string]map[string]*uint256.Int // asset -> holder -> balance
}

// NewBook creates an empty token book.
func NewBook() *Book {
	return &Book{balances: make(map[string]map[string]*uint256.Int)}
}

func (b *Book) holderMap(asset string) map[string]*uint256.Int {
	m, ok := b.balances[asset]
	if !ok {
		m = make(map[string]*uint256.Int)
		b.balances[asset] = m
	}
	return m
}

// BalanceOf returns the holder's balance in the asset.
func (b *Book) BalanceOf(asset, holder string) *uint256.Int {
	if m, ok := b.balances[asset]; ok {
		if bal, ok := m[holder]; ok {
			return new(uint256.Int).Set(bal)
		}
	}
	return new(uint256.Int)
}

// Mint credits freshly issued tokens to the holder.
func (b *Book) Mint(asset, holder string, amount *uint256.Int) {
	m := b.holderMap(asset)
	bal, ok := m[holder]
	if !ok {
		bal = new(uint256.Int)
		m[holder] = bal
	}
	bal.Add(bal, amount)
}

// Transfer moves tokens between holders.
func (b *Book) Transfer(asset, from, to string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	m := b.holderMap(asset)
	src, ok := m[from]
	if !ok || src.Lt(amount) {
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)
	if src.IsZero() {
		delete(m, from)
	}
	dst, ok := m[to]
	if !ok {
		dst = new(uint256.Int)
		m[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

// Clone returns a deep copy for the engine's working-state commit protocol.
func (b *Book) Clone() *Book {
	out := NewBook()
	for asset, holders := range b.balances {
		m := make(map[string]*uint256.Int, len(holders))
		for h, bal := range holders {
			m[h] = new(uint256.Int).Set(bal)
		}
		out.balances[asset] = m
	}
	return out
}
