package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/store"
)

func seedJournal(t *testing.T, ms *store.MemoryStore, ops ...model.OperationRecord) {
	t.Helper()
	for i := range ops {
		if err := ms.InsertOperation(context.Background(), &ops[i]); err != nil {
			t.Fatalf("InsertOperation: %v", err)
		}
	}
}

func op(id, kind, user, counter, asset string) model.OperationRecord {
	return model.OperationRecord{
		ID:        id,
		Kind:      kind,
		User:      user,
		Counter:   counter,
		Asset:     asset,
		Amount:    "100",
		Timestamp: time.Now().UTC(),
	}
}

func TestListOperationsByUser(t *testing.T) {
	ms := store.NewMemoryStore()
	seedJournal(t, ms,
		op("1", "deposit", "alice", "", "USDC"),
		op("2", "deposit", "bob", "", "USDC"),
		op("3", "borrow", "alice", "", "ETH"),
	)

	ops, err := ms.ListOperationsByUser(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("ListOperationsByUser: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != "3" || ops[1].ID != "1" {
		t.Fatalf("expected newest first (3, 1), got (%s, %s)", ops[0].ID, ops[1].ID)
	}
}

func TestListOperationsByUser_MatchesCounterparty(t *testing.T) {
	ms := store.NewMemoryStore()
	seedJournal(t, ms,
		op("1", "transfer_deposit", "alice", "bob", "USDC"),
		op("2", "deposit", "carol", "", "USDC"),
	)

	// Bob only appears as the transfer recipient but the operation is his
	// history too.
	ops, err := ms.ListOperationsByUser(context.Background(), "bob", 0)
	if err != nil {
		t.Fatalf("ListOperationsByUser: %v", err)
	}
	if len(ops) != 1 || ops[0].ID != "1" {
		t.Fatalf("expected the transfer, got %+v", ops)
	}
}

func TestListOperationsByUser_Limit(t *testing.T) {
	ms := store.NewMemoryStore()
	for i := 1; i <= 5; i++ {
		seedJournal(t, ms, op(fmt.Sprint(i), "deposit", "alice", "", "USDC"))
	}

	ops, err := ms.ListOperationsByUser(context.Background(), "alice", 2)
	if err != nil {
		t.Fatalf("ListOperationsByUser: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != "5" || ops[1].ID != "4" {
		t.Fatalf("expected the two newest (5, 4), got (%s, %s)", ops[0].ID, ops[1].ID)
	}
}

func TestListOperationsByAsset(t *testing.T) {
	ms := store.NewMemoryStore()
	seedJournal(t, ms,
		op("1", "deposit", "alice", "", "USDC"),
		op("2", "deposit", "bob", "", "ETH"),
		op("3", "withdraw", "alice", "", "USDC"),
	)

	ops, err := ms.ListOperationsByAsset(context.Background(), "USDC", 0)
	if err != nil {
		t.Fatalf("ListOperationsByAsset: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != "3" {
		t.Fatalf("expected newest first, got %s", ops[0].ID)
	}
}

func TestReserveSnapshots(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.GetReserveSnapshot(ctx, 0); !errors.Is(err, store.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	snap := model.ReserveSnapshot{
		ReserveID:          1,
		Asset:              "ETH",
		AvailableLiquidity: "1000",
		LiquidityIndex:     "1000000000000000000000000000",
	}
	if err := ms.UpsertReserveSnapshot(ctx, &snap); err != nil {
		t.Fatalf("UpsertReserveSnapshot: %v", err)
	}

	// Upsert replaces, never duplicates.
	snap.AvailableLiquidity = "900"
	if err := ms.UpsertReserveSnapshot(ctx, &snap); err != nil {
		t.Fatalf("UpsertReserveSnapshot: %v", err)
	}

	got, err := ms.GetReserveSnapshot(ctx, 1)
	if err != nil {
		t.Fatalf("GetReserveSnapshot: %v", err)
	}
	if got.AvailableLiquidity != "900" {
		t.Fatalf("expected updated liquidity 900, got %s", got.AvailableLiquidity)
	}

	// Mutating the returned copy must not leak into the store.
	got.AvailableLiquidity = "0"
	again, _ := ms.GetReserveSnapshot(ctx, 1)
	if again.AvailableLiquidity != "900" {
		t.Fatalf("stored snapshot was mutated through the returned copy")
	}
}

func TestListReserveSnapshots_Ordered(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	for _, id := range []int{2, 0, 1} {
		snap := model.ReserveSnapshot{ReserveID: id, Asset: fmt.Sprintf("A%d", id)}
		if err := ms.UpsertReserveSnapshot(ctx, &snap); err != nil {
			t.Fatalf("UpsertReserveSnapshot: %v", err)
		}
	}

	snaps, err := ms.ListReserveSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListReserveSnapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i, snap := range snaps {
		if snap.ReserveID != i {
			t.Fatalf("expected snapshots ordered by id, got %d at %d", snap.ReserveID, i)
		}
	}
}
