// Package store defines the persistence interface for the lending engine's
// audit surface: an append-only operation journal and per-reserve state
// snapshots. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
//
// The engine itself is the ledger of record; the store trails it and is
// never read back to reconstruct balances.
package store

import (
	"context"
	"errors"

	"github.com/itskumar666/LendingProtocol/internal/model"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a reserve.
var ErrSnapshotNotFound = errors.New("store: reserve snapshot not found")

// Store is the persistence interface.
type Store interface {
	// --- Immutable operation journal ---

	// InsertOperation appends an immutable operation record.
	InsertOperation(ctx context.Context, op *model.OperationRecord) error

	// ListOperationsByUser returns a user's operations, newest first.
	ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.OperationRecord, error)

	// ListOperationsByAsset returns a reserve's operations, newest first.
	ListOperationsByAsset(ctx context.Context, asset string, limit int) ([]model.OperationRecord, error)

	// --- Reserve snapshots ---

	// UpsertReserveSnapshot replaces the stored state of one reserve.
	UpsertReserveSnapshot(ctx context.Context, snap *model.ReserveSnapshot) error

	// GetReserveSnapshot retrieves one reserve's last snapshot.
	GetReserveSnapshot(ctx context.Context, reserveID int) (*model.ReserveSnapshot, error)

	// ListReserveSnapshots returns all reserve snapshots in id order.
	ListReserveSnapshots(ctx context.Context) ([]model.ReserveSnapshot, error)
}
