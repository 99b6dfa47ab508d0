package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itskumar666/LendingProtocol/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertOperation(ctx context.Context, op *model.OperationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO operations (id, kind, user_id, counterparty, asset, amount, rate_mode, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8)`,
		op.ID, op.Kind, op.User, op.Counter, op.Asset,
		op.Amount, op.RateMode, op.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListOperationsByUser(ctx context.Context, user string, limit int) ([]model.OperationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, user_id, counterparty, asset, amount::TEXT, rate_mode, timestamp
		 FROM operations
		 WHERE user_id = $1 OR counterparty = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`, user, nullableLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperations(rows)
}

func (s *PostgresStore) ListOperationsByAsset(ctx context.Context, asset string, limit int) ([]model.OperationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, user_id, counterparty, asset, amount::TEXT, rate_mode, timestamp
		 FROM operations
		 WHERE asset = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`, asset, nullableLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperations(rows)
}

func (s *PostgresStore) UpsertReserveSnapshot(ctx context.Context, snap *model.ReserveSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reserve_snapshots
		     (reserve_id, asset, available_liquidity, total_variable_debt, total_stable_debt,
		      liquidity_index, variable_borrow_index, liquidity_rate, variable_rate, stable_rate,
		      last_update, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC,
		         $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC,
		         $11, $12)
		 ON CONFLICT (reserve_id) DO UPDATE SET
		     available_liquidity = EXCLUDED.available_liquidity,
		     total_variable_debt = EXCLUDED.total_variable_debt,
		     total_stable_debt = EXCLUDED.total_stable_debt,
		     liquidity_index = EXCLUDED.liquidity_index,
		     variable_borrow_index = EXCLUDED.variable_borrow_index,
		     liquidity_rate = EXCLUDED.liquidity_rate,
		     variable_rate = EXCLUDED.variable_rate,
		     stable_rate = EXCLUDED.stable_rate,
		     last_update = EXCLUDED.last_update,
		     updated_at = EXCLUDED.updated_at`,
		snap.ReserveID, snap.Asset,
		snap.AvailableLiquidity, snap.TotalVariableDebt, snap.TotalStableDebt,
		snap.LiquidityIndex, snap.VariableBorrowIndex,
		snap.LiquidityRate, snap.VariableRate, snap.StableRate,
		snap.LastUpdate, snap.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetReserveSnapshot(ctx context.Context, reserveID int) (*model.ReserveSnapshot, error) {
	var snap model.ReserveSnapshot
	err := s.pool.QueryRow(ctx,
		`SELECT reserve_id, asset,
		        available_liquidity::TEXT, total_variable_debt::TEXT, total_stable_debt::TEXT,
		        liquidity_index::TEXT, variable_borrow_index::TEXT,
		        liquidity_rate::TEXT, variable_rate::TEXT, stable_rate::TEXT,
		        last_update, updated_at
		 FROM reserve_snapshots WHERE reserve_id = $1`, reserveID).
		Scan(&snap.ReserveID, &snap.Asset,
			&snap.AvailableLiquidity, &snap.TotalVariableDebt, &snap.TotalStableDebt,
			&snap.LiquidityIndex, &snap.VariableBorrowIndex,
			&snap.LiquidityRate, &snap.VariableRate, &snap.StableRate,
			&snap.LastUpdate, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reserve snapshot %d: %w", reserveID, err)
	}
	return &snap, nil
}

func (s *PostgresStore) ListReserveSnapshots(ctx context.Context) ([]model.ReserveSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT reserve_id, asset,
		        available_liquidity::TEXT, total_variable_debt::TEXT, total_stable_debt::TEXT,
		        liquidity_index::TEXT, variable_borrow_index::TEXT,
		        liquidity_rate::TEXT, variable_rate::TEXT, stable_rate::TEXT,
		        last_update, updated_at
		 FROM reserve_snapshots ORDER BY reserve_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReserveSnapshot
	for rows.Next() {
		var snap model.ReserveSnapshot
		if err := rows.Scan(&snap.ReserveID, &snap.Asset,
			&snap.AvailableLiquidity, &snap.TotalVariableDebt, &snap.TotalStableDebt,
			&snap.LiquidityIndex, &snap.VariableBorrowIndex,
			&snap.LiquidityRate, &snap.VariableRate, &snap.StableRate,
			&snap.LastUpdate, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// nullableLimit maps "no limit" to NULL so LIMIT is a no-op.
func nullableLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func scanOperations(rows pgx.Rows) ([]model.OperationRecord, error) {
	var ops []model.OperationRecord
	for rows.Next() {
		var op model.OperationRecord
		if err := rows.Scan(&op.ID, &op.Kind, &op.User, &op.Counter, &op.Asset,
			&op.Amount, &op.RateMode, &op.Timestamp); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
