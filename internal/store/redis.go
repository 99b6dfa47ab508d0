package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itskumar666/LendingProtocol/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for reserve snapshots. Journal writes invalidate the affected user's
// operation list; snapshot writes re-populate the cache directly.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, maintain cache) ---

func (s *CachedStore) InsertOperation(ctx context.Context, op *model.OperationRecord) error {
	if err := s.primary.InsertOperation(ctx, op); err != nil {
		return err
	}
	// Invalidate operation lists touched by this record.
	s.rdb.Del(ctx, userOpsKey(op.User))
	if op.Counter != "" {
		s.rdb.Del(ctx, userOpsKey(op.Counter))
	}
	return nil
}

func (s *CachedStore) UpsertReserveSnapshot(ctx context.Context, snap *model.ReserveSnapshot) error {
	if err := s.primary.UpsertReserveSnapshot(ctx, snap); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, snap)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetReserveSnapshot(ctx context.Context, reserveID int) (*model.ReserveSnapshot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, snapshotKey(reserveID)).Bytes()
	if err == nil {
		var snap model.ReserveSnapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.GetReserveSnapshot(ctx, reserveID)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (s *CachedStore) ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.OperationRecord, error) {
	// Only the unbounded list is cached; limited queries pass through.
	if limit > 0 {
		return s.primary.ListOperationsByUser(ctx, user, limit)
	}

	data, err := s.rdb.Get(ctx, userOpsKey(user)).Bytes()
	if err == nil {
		var ops []model.OperationRecord
		if json.Unmarshal(data, &ops) == nil {
			return ops, nil
		}
	}

	ops, err := s.primary.ListOperationsByUser(ctx, user, 0)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ops); err == nil {
		s.rdb.Set(ctx, userOpsKey(user), data, s.ttl)
	}
	return ops, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListOperationsByAsset(ctx context.Context, asset string, limit int) ([]model.OperationRecord, error) {
	return s.primary.ListOperationsByAsset(ctx, asset, limit)
}

func (s *CachedStore) ListReserveSnapshots(ctx context.Context) ([]model.ReserveSnapshot, error) {
	return s.primary.ListReserveSnapshots(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *model.ReserveSnapshot) {
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(snap.ReserveID), data, s.ttl)
	}
}

func snapshotKey(id int) string     { return fmt.Sprintf("reserve:%d", id) }
func userOpsKey(user string) string { return fmt.Sprintf("ops:%s", user) }
