// Package service provides the HTTP handlers for the lending pool:
// reserve administration, deposits, borrows, repayments, liquidations and
// account queries.
//
// Request and response bodies carry token amounts as decimal strings in
// whole-token units; the handlers convert to underlying base units using the
// reserve's configured decimals. All monetary values use shopspring/decimal
// at the API boundary — never float64 for money.
package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/itskumar666/LendingProtocol/internal/bank"
	"github.com/itskumar666/LendingProtocol/internal/ledger"
	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/oracle"
	"github.com/itskumar666/LendingProtocol/internal/pool"
	"github.com/itskumar666/LendingProtocol/internal/rates"
	"github.com/itskumar666/LendingProtocol/internal/reserve"
	"github.com/itskumar666/LendingProtocol/internal/store"
)

// Service handles lending pool operations over HTTP. A mutex serializes
// mutating requests so concurrent callers queue instead of bouncing off the
// engine's reentrancy guard (single-instance). For horizontal scaling,
// replace with distributed locking.
type Service struct {
	pool   *pool.Pool
	store  store.Store
	prices *oracle.StaticSource // nil when prices come from elsewhere
	mu     sync.Mutex
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new lending service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(p *pool.Pool, st store.Store, prices *oracle.StaticSource, hub *WSHub) *Service {
	return &Service{
		pool:   p,
		store:  st,
		prices: prices,
		wsHub:  hub,
	}
}

// --- Request/Response types ---

// CreateReserveRequest is the JSON body for reserve initialization.
type CreateReserveRequest struct {
	Asset             string              `json:"asset"`
	Config            model.ReserveConfig `json:"config"`
	StableRateCeiling decimal.Decimal     `json:"stable_rate_ceiling"` // annual rate as a fraction, e.g. 0.5 = 50%; 0 → no ceiling
}

// ConfigureReserveRequest is the JSON body for PUT /reserves/{asset}.
type ConfigureReserveRequest struct {
	Config model.ReserveConfig `json:"config"`
}

// OperationRequest is the JSON body shared by the money operations. Amount
// is in whole tokens; an empty amount means "the full balance" for withdraw
// and repay. RateMode is "stable" or "variable" and only read by borrow and
// repay.
type OperationRequest struct {
	UserID   string          `json:"user_id"`
	Asset    string          `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
	RateMode string          `json:"rate_mode,omitempty"`
}

// CollateralRequest is the JSON body for POST /collateral.
type CollateralRequest struct {
	UserID          string `json:"user_id"`
	Asset           string `json:"asset"`
	UseAsCollateral bool   `json:"use_as_collateral"`
}

// TransferRequest is the JSON body for POST /transfer.
type TransferRequest struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Asset      string          `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
}

// LiquidationRequest is the JSON body for POST /liquidate. An empty
// DebtToCover covers as much debt as the close factor allows. With
// ReceiveUnderlying the liquidator is paid in underlying tokens instead of
// receiving the seized deposit position.
type LiquidationRequest struct {
	LiquidatorID      string          `json:"liquidator_id"`
	UserID            string          `json:"user_id"`
	CollateralAsset   string          `json:"collateral_asset"`
	DebtAsset         string          `json:"debt_asset"`
	DebtToCover       decimal.Decimal `json:"debt_to_cover"`
	ReceiveUnderlying bool            `json:"receive_underlying"`
}

// PriceRequest is the JSON body for POST /prices. Price is in the base
// currency per whole token.
type PriceRequest struct {
	Asset string          `json:"asset"`
	Price decimal.Decimal `json:"price"`
}

// OperationResponse is returned from the money operation endpoints.
type OperationResponse struct {
	UserID  string          `json:"user_id"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Reserve ReserveView     `json:"reserve"`
}

// ReserveView is the reserve snapshot included in responses.
type ReserveView struct {
	ReserveID           int             `json:"reserve_id"`
	Asset               string          `json:"asset"`
	AvailableLiquidity  decimal.Decimal `json:"available_liquidity"`
	TotalVariableDebt   decimal.Decimal `json:"total_variable_debt"`
	TotalStableDebt     decimal.Decimal `json:"total_stable_debt"`
	UtilizationBps      uint64          `json:"utilization_bps"`
	LiquidityRate       decimal.Decimal `json:"liquidity_rate"`
	VariableRate        decimal.Decimal `json:"variable_rate"`
	StableRate          decimal.Decimal `json:"stable_rate"`
	LiquidityIndex      decimal.Decimal `json:"liquidity_index"`
	VariableBorrowIndex decimal.Decimal `json:"variable_borrow_index"`
	LastUpdate          int64           `json:"last_update"`
}

// AccountPosition is one reserve's slice of an account response.
type AccountPosition struct {
	Asset          string          `json:"asset"`
	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	DepositBalance decimal.Decimal `json:"deposit_balance"`
	VariableDebt   decimal.Decimal `json:"variable_debt"`
	StableDebt     decimal.Decimal `json:"stable_debt"`
	Collateral     bool            `json:"collateral"`
}

// AccountResponse is returned from GET /accounts/{userID}.
type AccountResponse struct {
	UserID                  string            `json:"user_id"`
	TotalCollateralBase     decimal.Decimal   `json:"total_collateral_base"`
	TotalDebtBase           decimal.Decimal   `json:"total_debt_base"`
	AvailableBorrowsBase    decimal.Decimal   `json:"available_borrows_base"`
	AvgLTV                  uint64            `json:"avg_ltv"`
	AvgLiquidationThreshold uint64            `json:"avg_liquidation_threshold"`
	HealthFactor            decimal.Decimal   `json:"health_factor"`
	Positions               []AccountPosition `json:"positions"`
}

// --- Amount conversion helpers ---

var (
	errAmountNegative = errors.New("amount must not be negative")
	errAmountTooFine  = errors.New("amount has more decimal places than the asset supports")
)

// toUnits converts a whole-token decimal to underlying base units.
func toUnits(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, errAmountNegative
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, errAmountTooFine
	}
	v, err := uint256.FromDecimal(shifted.String())
	if err != nil {
		return nil, err
	}
	return v, nil
}

// fromUnits converts underlying base units back to a whole-token decimal.
func fromUnits(v *uint256.Int, decimals uint8) decimal.Decimal {
	return decimal.RequireFromString(v.Dec()).Shift(-int32(decimals))
}

// fromWad renders a wad-scaled value such as the health factor.
func fromWad(v *uint256.Int) decimal.Decimal {
	return decimal.RequireFromString(v.Dec()).Shift(-18)
}

// fromOracleBase renders an oracle base-currency amount (1e8 units).
func fromOracleBase(v *uint256.Int) decimal.Decimal {
	return decimal.RequireFromString(v.Dec()).Shift(-8)
}

func parseRateMode(s string) (model.RateMode, error) {
	switch s {
	case "stable":
		return model.RateModeStable, nil
	case "variable":
		return model.RateModeVariable, nil
	default:
		return model.RateModeNone, model.ErrInvalidRateMode
	}
}

// assetDecimals looks up the reserve's configured decimals for amount
// conversion.
func (s *Service) assetDecimals(asset string) (uint8, error) {
	r, err := s.pool.ReserveByAsset(asset)
	if err != nil {
		return 0, err
	}
	return r.Config.Decimals, nil
}

func reserveView(r *reserve.State) ReserveView {
	snap := r.Snapshot()
	util, _ := rates.UtilizationBps(r.AvailableLiquidity, r.TotalDebt())
	dec := r.Config.Decimals
	return ReserveView{
		ReserveID:           snap.ReserveID,
		Asset:               snap.Asset,
		AvailableLiquidity:  decimal.RequireFromString(snap.AvailableLiquidity).Shift(-int32(dec)),
		TotalVariableDebt:   decimal.RequireFromString(snap.TotalVariableDebt).Shift(-int32(dec)),
		TotalStableDebt:     decimal.RequireFromString(snap.TotalStableDebt).Shift(-int32(dec)),
		UtilizationBps:      util,
		LiquidityRate:       decimal.RequireFromString(snap.LiquidityRate).Shift(-27),
		VariableRate:        decimal.RequireFromString(snap.VariableRate).Shift(-27),
		StableRate:          decimal.RequireFromString(snap.StableRate).Shift(-27),
		LiquidityIndex:      decimal.RequireFromString(snap.LiquidityIndex).Shift(-27),
		VariableBorrowIndex: decimal.RequireFromString(snap.VariableBorrowIndex).Shift(-27),
		LastUpdate:          snap.LastUpdate,
	}
}

// --- Error mapping ---

// errorStatus maps engine errors to HTTP status codes. Validation problems
// are 400s, unknown reserves 404s, and anything the risk or liquidity rules
// reject is a 409.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pool.ErrReserveNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidRateMode),
		errors.Is(err, model.ErrInvalidLTV),
		errors.Is(err, model.ErrInvalidThreshold),
		errors.Is(err, model.ErrInvalidLiquidationBonus),
		errors.Is(err, model.ErrInvalidReserveFactor),
		errors.Is(err, pool.ErrNoDepositBalance):
		return http.StatusBadRequest
	case errors.Is(err, oracle.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrReserveAlreadyExists),
		errors.Is(err, pool.ErrTooManyReserves),
		errors.Is(err, pool.ErrReentrantCall),
		errors.Is(err, pool.ErrHealthFactorTooLow),
		errors.Is(err, pool.ErrLTVExceeded),
		errors.Is(err, pool.ErrNoDebtInReserve),
		errors.Is(err, pool.ErrHealthFactorNotBelowThreshold),
		errors.Is(err, pool.ErrCollateralCannotBeLiquidated),
		errors.Is(err, reserve.ErrNotEnoughLiquidity),
		errors.Is(err, reserve.ErrSupplyCap),
		errors.Is(err, reserve.ErrBorrowCap),
		errors.Is(err, reserve.ErrNotActive),
		errors.Is(err, reserve.ErrPaused),
		errors.Is(err, reserve.ErrFrozen),
		errors.Is(err, reserve.ErrBorrowingDisabled),
		errors.Is(err, reserve.ErrStableBorrowingDisabled),
		errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientScaledBalance),
		errors.Is(err, ledger.ErrRepayExceedsDebt),
		errors.Is(err, ledger.ErrStableRateCeiling):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectionReason labels risk-driven rejections for metrics; empty means the
// error is not a risk rejection.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, pool.ErrHealthFactorTooLow):
		return "health_factor"
	case errors.Is(err, pool.ErrLTVExceeded):
		return "ltv"
	case errors.Is(err, reserve.ErrSupplyCap):
		return "supply_cap"
	case errors.Is(err, reserve.ErrBorrowCap):
		return "borrow_cap"
	case errors.Is(err, reserve.ErrNotEnoughLiquidity):
		return "liquidity"
	default:
		return ""
	}
}

// writeEngineError maps an engine error to an HTTP response and records risk
// rejections.
func writeEngineError(w http.ResponseWriter, err error) {
	if reason := rejectionReason(err); reason != "" {
		metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	}
	writeError(w, err.Error(), errorStatus(err))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// broadcastReserve pushes the reserve's post-operation state to WebSocket
// clients.
func (s *Service) broadcastReserve(kind, asset string) {
	if s.wsHub == nil {
		return
	}
	r, err := s.pool.ReserveByAsset(asset)
	if err != nil {
		return
	}
	view := reserveView(r)
	s.wsHub.Broadcast(WSMessage{
		Type:           kind,
		Asset:          asset,
		LiquidityRate:  view.LiquidityRate.String(),
		VariableRate:   view.VariableRate.String(),
		StableRate:     view.StableRate.String(),
		LiquidityIndex: view.LiquidityIndex.String(),
		UtilizationBps: view.UtilizationBps,
	})
}
