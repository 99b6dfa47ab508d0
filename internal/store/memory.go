package store

import (
	"context"
	"sort"
	"sync"

	"github.com/itskumar666/LendingProtocol/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	journal   []model.OperationRecord
	snapshots map[int]*model.ReserveSnapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[int]*model.ReserveSnapshot),
	}
}

func (s *MemoryStore) InsertOperation(_ context.Context, op *model.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(s.journal, *op)
	return nil
}

func (s *MemoryStore) ListOperationsByUser(_ context.Context, user string, limit int) ([]model.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNewestFirst(limit, func(op *model.OperationRecord) bool {
		return op.User == user || op.Counter == user
	}), nil
}

func (s *MemoryStore) ListOperationsByAsset(_ context.Context, asset string, limit int) ([]model.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNewestFirst(limit, func(op *model.OperationRecord) bool {
		return op.Asset == asset
	}), nil
}

// filterNewestFirst walks the journal backwards, so results come newest
// first without sorting. Callers must hold the lock.
func (s *MemoryStore) filterNewestFirst(limit int, match func(*model.OperationRecord) bool) []model.OperationRecord {
	var result []model.OperationRecord
	for i := len(s.journal) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if match(&s.journal[i]) {
			result = append(result, s.journal[i])
		}
	}
	return result
}

func (s *MemoryStore) UpsertReserveSnapshot(_ context.Context, snap *model.ReserveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *snap
	s.snapshots[snap.ReserveID] = &copy
	return nil
}

func (s *MemoryStore) GetReserveSnapshot(_ context.Context, reserveID int) (*model.ReserveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[reserveID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	copy := *snap
	return &copy, nil
}

func (s *MemoryStore) ListReserveSnapshots(_ context.Context) ([]model.ReserveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ReserveSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReserveID < out[j].ReserveID })
	return out, nil
}
