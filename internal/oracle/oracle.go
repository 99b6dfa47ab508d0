// Package oracle provides asset prices in a common base currency with 1e8
// precision. Pricing fails closed: a missing or zero price is an error, and
// callers abort the operation rather than assume a value.
package oracle

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"
)

// ErrPriceUnavailable is returned when no positive price is known for an
// asset.
var ErrPriceUnavailable = errors.New("oracle: price unavailable")

// PriceSource serves base-currency prices (1e8 units per whole token).
type PriceSource interface {
	Price(ctx context.Context, asset string) (*uint256.Int, error)
}

// StaticSource is an administratively fed price table.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]*uint256.Int
}

// NewStaticSource creates an empty price table.
func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[string]*uint256.Int)}
}

// SetPrice installs or updates an asset's price. A zero price removes the
// asset, taking it out of circulation for risk purposes.
func (s *StaticSource) SetPrice(asset string, price *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price == nil || price.IsZero() {
		delete(s.prices, asset)
		return
	}
	s.prices[asset] = new(uint256.Int).Set(price)
}

// Price returns the asset's price or ErrPriceUnavailable.
func (s *StaticSource) Price(_ context.Context, asset string) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[asset]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return new(uint256.Int).Set(p), nil
}
