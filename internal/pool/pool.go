// Package pool is the lending engine: it owns all reserve state, the user
// configuration bitsets and the token book, and exposes the supply, borrow,
// liquidation and flash-loan operations.
//
// Every operation follows the same protocol: clone the current state, accrue
// interest, validate, mutate the clone, recompute rates, then swap the clone
// in atomically. A failure at any step discards the clone, so operations are
// all-or-nothing including their token movements.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/bank"
	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/oracle"
	"github.com/itskumar666/LendingProtocol/internal/rates"
	"github.com/itskumar666/LendingProtocol/internal/reserve"
)

var (
	// ErrInvalidAmount is returned for zero or missing amounts.
	ErrInvalidAmount = errors.New("pool: amount must be positive")

	// ErrReserveNotFound is returned for an unknown asset or reserve id.
	ErrReserveNotFound = errors.New("pool: reserve not found")

	// ErrReserveAlreadyExists is returned when initializing a second reserve
	// for the same asset.
	ErrReserveAlreadyExists = errors.New("pool: reserve already exists for asset")

	// ErrTooManyReserves is returned when the reserve list is full.
	ErrTooManyReserves = errors.New("pool: reserve limit reached")

	// ErrReentrantCall is returned when an operation is attempted while
	// another one is mid-flight, e.g. from inside a flash-loan callback.
	ErrReentrantCall = errors.New("pool: reentrant call")

	// ErrHealthFactorTooLow is returned when an operation would leave the
	// account below the liquidation line.
	ErrHealthFactorTooLow = errors.New("pool: health factor would fall below one")

	// ErrLTVExceeded is returned when a borrow exceeds the account's
	// remaining borrow power.
	ErrLTVExceeded = errors.New("pool: borrow exceeds loan-to-value limit")

	// ErrNoDebtInReserve is returned when repaying or liquidating debt the
	// user does not have.
	ErrNoDebtInReserve = errors.New("pool: no outstanding debt in reserve")

	// ErrHealthFactorNotBelowThreshold is returned when liquidating a
	// healthy account.
	ErrHealthFactorNotBelowThreshold = errors.New("pool: health factor is not below one")

	// ErrCollateralCannotBeLiquidated is returned when the chosen collateral
	// is not seizable for this user.
	ErrCollateralCannotBeLiquidated = errors.New("pool: collateral cannot be liquidated")

	// ErrFlashLoanRepayment is returned when the flash-loan callback did not
	// return principal plus premium.
	ErrFlashLoanRepayment = errors.New("pool: flash loan was not repaid with premium")
)

// TreasuryAddr holds protocol-owned deposit positions such as liquidation
// fees.
const TreasuryAddr = "treasury"

// Recorder receives the committed-operation journal and reserve snapshots.
// Persistence is an audit surface, not the ledger of record: failures are
// logged and never roll back a committed operation.
type Recorder interface {
	InsertOperation(ctx context.Context, op *model.OperationRecord) error
	UpsertReserveSnapshot(ctx context.Context, snap *model.ReserveSnapshot) error
}

// Config wires a pool's collaborators.
type Config struct {
	Oracle            oracle.PriceSource
	RateModel         *rates.Model
	Recorder          Recorder // optional
	Logger            *slog.Logger
	FlashLoanPremium  uint64 // bps of principal
	LiquidationFeeBps uint64 // protocol share of the liquidation bonus
	PoolAddr          string // the pool's own holder address in the token book
	Now               func() int64
}

// Pool is the engine. All operations are serialized; concurrent callers get
// ErrReentrantCall and should retry, which the HTTP layer handles by queuing
// on its own mutex.
type Pool struct {
	st   atomic.Pointer[state]
	busy atomic.Bool

	oracle            oracle.PriceSource
	model             *rates.Model
	recorder          Recorder
	logger            *slog.Logger
	flashLoanPremium  uint64
	liquidationFeeBps uint64
	poolAddr          string
	now               func() int64
}

// state is the engine's immutable-once-published snapshot.
type state struct {
	reserves []*reserve.State
	byAsset  map[string]int
	users    map[string]*model.UserConfig
	bank     *bank.Book
}

func (s *state) clone() *state {
	out := &state{
		reserves: make([]*reserve.State, len(s.reserves)),
		byAsset:  make(map[string]int, len(s.byAsset)),
		users:    make(map[string]*model.UserConfig, len(s.users)),
		bank:     s.bank.Clone(),
	}
	for i, r := range s.reserves {
		out.reserves[i] = r.Clone()
	}
	for a, id := range s.byAsset {
		out.byAsset[a] = id
	}
	for u, cfg := range s.users {
		out.users[u] = cfg.Clone()
	}
	return out
}

func (s *state) userConfig(user string) *model.UserConfig {
	cfg, ok := s.users[user]
	if !ok {
		cfg = &model.UserConfig{}
		s.users[user] = cfg
	}
	return cfg
}

func (s *state) reserveByAsset(asset string) (*reserve.State, error) {
	id, ok := s.byAsset[asset]
	if !ok {
		return nil, ErrReserveNotFound
	}
	return s.reserves[id], nil
}

// New creates an empty pool.
func New(cfg Config) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().Unix() }
	}
	if cfg.PoolAddr == "" {
		cfg.PoolAddr = "pool"
	}
	p := &Pool{
		oracle:            cfg.Oracle,
		model:             cfg.RateModel,
		recorder:          cfg.Recorder,
		logger:            cfg.Logger,
		flashLoanPremium:  cfg.FlashLoanPremium,
		liquidationFeeBps: cfg.LiquidationFeeBps,
		poolAddr:          cfg.PoolAddr,
		now:               cfg.Now,
	}
	p.st.Store(&state{
		byAsset: make(map[string]int),
		users:   make(map[string]*model.UserConfig),
		bank:    bank.NewBook(),
	})
	return p
}

// opResult describes a committed operation for the journal.
type opResult struct {
	kind     string
	user     string
	counter  string
	asset    string
	amount   *uint256.Int
	rateMode model.RateMode
	touched  []int
}

// run executes one operation under the commit protocol.
func (p *Pool) run(ctx context.Context, fn func(st *state, now int64) (*opResult, error)) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer p.busy.Store(false)

	now := p.now()
	start := time.Now()
	work := p.st.Load().clone()
	res, err := fn(work, now)
	if err != nil {
		return err
	}
	p.st.Store(work)
	if res != nil {
		metrics.OperationsTotal.WithLabelValues(res.kind).Inc()
		metrics.OperationLatency.WithLabelValues(res.kind).Observe(time.Since(start).Seconds())
	}
	p.record(ctx, work, res, now)
	return nil
}

// record journals the committed operation and snapshots touched reserves.
func (p *Pool) record(ctx context.Context, st *state, res *opResult, now int64) {
	if res == nil {
		return
	}
	p.logger.Info("operation committed",
		"kind", res.kind,
		"user", res.user,
		"asset", res.asset,
		"amount", res.amount.Dec(),
	)
	for _, id := range res.touched {
		r := st.reserves[id]
		util, err := rates.UtilizationBps(r.AvailableLiquidity, r.TotalDebt())
		if err == nil {
			metrics.UtilizationBps.WithLabelValues(r.Asset).Set(float64(util))
		}
	}
	if p.recorder == nil {
		return
	}
	op := &model.OperationRecord{
		ID:        uuid.New().String(),
		Kind:      res.kind,
		User:      res.user,
		Counter:   res.counter,
		Asset:     res.asset,
		Amount:    res.amount.Dec(),
		RateMode:  "",
		Timestamp: time.Unix(now, 0).UTC(),
	}
	if res.rateMode.Valid() {
		op.RateMode = res.rateMode.String()
	}
	if err := p.recorder.InsertOperation(ctx, op); err != nil {
		p.logger.Warn("journal write failed", "kind", res.kind, "error", err)
	}
	for _, id := range res.touched {
		snap := st.reserves[id].Snapshot()
		if err := p.recorder.UpsertReserveSnapshot(ctx, &snap); err != nil {
			p.logger.Warn("snapshot write failed", "reserve", id, "error", err)
		}
	}
}
