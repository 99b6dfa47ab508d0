package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
)

// CachedSource wraps a primary PriceSource with a Redis read-through cache.
// Reads check Redis first then fall back to the primary; a fresh price is
// cached with a short TTL so stale quotes age out on their own.
type CachedSource struct {
	primary PriceSource
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedSource creates a cached wrapper around a primary price source.
func NewCachedSource(primary PriceSource, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// Price returns the cached price if present, otherwise reads through to the
// primary and populates the cache. Cache failures degrade to the primary,
// never to a missing price.
func (s *CachedSource) Price(ctx context.Context, asset string) (*uint256.Int, error) {
	data, err := s.rdb.Get(ctx, priceKey(asset)).Result()
	if err == nil {
		if p, parseErr := uint256.FromDecimal(data); parseErr == nil && !p.IsZero() {
			return p, nil
		}
	}

	p, err := s.primary.Price(ctx, asset)
	if err != nil {
		return nil, err
	}

	s.rdb.Set(ctx, priceKey(asset), p.Dec(), s.ttl)
	return p, nil
}

func priceKey(asset string) string { return fmt.Sprintf("price:%s", asset) }
