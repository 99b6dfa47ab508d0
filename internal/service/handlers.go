package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/itskumar666/LendingProtocol/internal/model"
)

// CreateReserve handles POST /api/v1/reserves
func (s *Service) CreateReserve(w http.ResponseWriter, r *http.Request) {
	var req CreateReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Asset == "" {
		writeError(w, "asset is required", http.StatusBadRequest)
		return
	}
	if err := req.Config.Validate(); err != nil {
		writeEngineError(w, err)
		return
	}

	var ceiling *uint256.Int
	if req.StableRateCeiling.IsPositive() {
		ray := req.StableRateCeiling.Shift(27)
		if !ray.IsInteger() {
			writeError(w, "stable_rate_ceiling has too many decimal places", http.StatusBadRequest)
			return
		}
		v, err := uint256.FromDecimal(ray.String())
		if err != nil {
			writeError(w, "invalid stable_rate_ceiling", http.StatusBadRequest)
			return
		}
		ceiling = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.pool.InitReserve(r.Context(), req.Asset, req.Config, ceiling)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("reserve created", "id", id, "asset", req.Asset, "ltv", req.Config.LTV)

	res, err := s.pool.ReserveByAsset(req.Asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reserveView(res))
}

// ListReserves handles GET /api/v1/reserves
func (s *Service) ListReserves(w http.ResponseWriter, r *http.Request) {
	views := []ReserveView{}
	for _, res := range s.pool.Reserves() {
		views = append(views, reserveView(res))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetReserve handles GET /api/v1/reserves/{asset}
func (s *Service) GetReserve(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	res, err := s.pool.ReserveByAsset(asset)
	if err != nil {
		writeError(w, "reserve not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, reserveView(res))
}

// ConfigureReserve handles PUT /api/v1/reserves/{asset}
func (s *Service) ConfigureReserve(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req ConfigureReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.ConfigureReserve(r.Context(), asset, req.Config); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("reserve configured", "asset", asset, "ltv", req.Config.LTV, "threshold", req.Config.LiquidationThreshold)

	res, err := s.pool.ReserveByAsset(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveView(res))
}

// SetPrice handles POST /api/v1/prices
// Updates the oracle's quote for an asset; a zero price removes the quote.
func (s *Service) SetPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeError(w, "price administration is not enabled", http.StatusNotFound)
		return
	}
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Asset == "" {
		writeError(w, "asset is required", http.StatusBadRequest)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, "price must not be negative", http.StatusBadRequest)
		return
	}

	scaled := req.Price.Shift(8)
	if !scaled.IsInteger() {
		writeError(w, "price has more than 8 decimal places", http.StatusBadRequest)
		return
	}
	v, err := uint256.FromDecimal(scaled.String())
	if err != nil {
		writeError(w, "invalid price", http.StatusBadRequest)
		return
	}
	s.prices.SetPrice(req.Asset, v)

	slog.Info("price updated", "asset", req.Asset, "price", req.Price.String())
	writeJSON(w, http.StatusOK, map[string]string{"asset": req.Asset, "price": req.Price.String()})
}

// Faucet handles POST /api/v1/faucet
// Credits underlying tokens to a user's wallet for deposits and repayments.
func (s *Service) Faucet(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := s.decodeOperation(w, r, false)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Credit(r.Context(), req.UserID, req.Asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeOperation(w, req.UserID, req.Asset)
}

// Deposit handles POST /api/v1/deposit
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := s.decodeOperation(w, r, false)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Deposit(r.Context(), req.UserID, req.Asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.broadcastReserve("deposit", req.Asset)
	s.writeOperation(w, req.UserID, req.Asset)
}

// Withdraw handles POST /api/v1/withdraw
// An omitted or zero amount withdraws the full balance.
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := s.decodeOperation(w, r, true)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Withdraw(r.Context(), req.UserID, req.Asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.broadcastReserve("withdraw", req.Asset)
	s.writeOperation(w, req.UserID, req.Asset)
}

// Borrow handles POST /api/v1/borrow
func (s *Service) Borrow(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := s.decodeOperation(w, r, false)
	if !ok {
		return
	}
	mode, err := parseRateMode(req.RateMode)
	if err != nil {
		writeError(w, "rate_mode must be stable or variable", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Borrow(r.Context(), req.UserID, req.Asset, amount, mode); err != nil {
		writeEngineError(w, err)
		return
	}
	s.broadcastReserve("borrow", req.Asset)
	s.writeOperation(w, req.UserID, req.Asset)
}

// Repay handles POST /api/v1/repay
// An omitted or zero amount repays the full debt in the given mode.
func (s *Service) Repay(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := s.decodeOperation(w, r, true)
	if !ok {
		return
	}
	mode, err := parseRateMode(req.RateMode)
	if err != nil {
		writeError(w, "rate_mode must be stable or variable", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Repay(r.Context(), req.UserID, req.Asset, amount, mode); err != nil {
		writeEngineError(w, err)
		return
	}
	s.broadcastReserve("repay", req.Asset)
	s.writeOperation(w, req.UserID, req.Asset)
}

// SetCollateral handles POST /api/v1/collateral
func (s *Service) SetCollateral(w http.ResponseWriter, r *http.Request) {
	var req CollateralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.SetUseAsCollateral(r.Context(), req.UserID, req.Asset, req.UseAsCollateral); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeOperation(w, req.UserID, req.Asset)
}

// Transfer handles POST /api/v1/transfer
// Moves deposit balance between users without touching liquidity.
func (s *Service) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FromUserID == "" || req.ToUserID == "" {
		writeError(w, "from_user_id and to_user_id are required", http.StatusBadRequest)
		return
	}
	decimals, err := s.assetDecimals(req.Asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	amount, err := toUnits(req.Amount, decimals)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.TransferDeposit(r.Context(), req.FromUserID, req.ToUserID, req.Asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeOperation(w, req.FromUserID, req.Asset)
}

// Liquidate handles POST /api/v1/liquidate
func (s *Service) Liquidate(w http.ResponseWriter, r *http.Request) {
	var req LiquidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LiquidatorID == "" || req.UserID == "" {
		writeError(w, "liquidator_id and user_id are required", http.StatusBadRequest)
		return
	}

	var debtToCover *uint256.Int
	if !req.DebtToCover.IsZero() {
		decimals, err := s.assetDecimals(req.DebtAsset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		debtToCover, err = toUnits(req.DebtToCover, decimals)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Liquidate(r.Context(), req.LiquidatorID, req.UserID, req.CollateralAsset, req.DebtAsset, debtToCover, req.ReceiveUnderlying); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("liquidation executed",
		"liquidator", req.LiquidatorID,
		"user", req.UserID,
		"collateral", req.CollateralAsset,
		"debt", req.DebtAsset,
	)

	s.broadcastReserve("liquidation", req.DebtAsset)
	s.writeOperation(w, req.UserID, req.DebtAsset)
}

// GetAccount handles GET /api/v1/accounts/{userID}
// Returns the cross-reserve risk summary plus per-reserve balances.
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	data, err := s.pool.AccountData(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	positions := []AccountPosition{}
	for _, res := range s.pool.Reserves() {
		wallet := s.pool.WalletBalance(userID, res.Asset)
		deposit, err := s.pool.DepositBalance(userID, res.Asset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		variable, stable, err := s.pool.DebtBalances(userID, res.Asset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if wallet.IsZero() && deposit.IsZero() && variable.IsZero() && stable.IsZero() {
			continue
		}
		collateral, err := s.pool.UsingAsCollateral(userID, res.Asset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		dec := res.Config.Decimals
		positions = append(positions, AccountPosition{
			Asset:          res.Asset,
			WalletBalance:  fromUnits(wallet, dec),
			DepositBalance: fromUnits(deposit, dec),
			VariableDebt:   fromUnits(variable, dec),
			StableDebt:     fromUnits(stable, dec),
			Collateral:     collateral,
		})
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		UserID:                  userID,
		TotalCollateralBase:     fromOracleBase(data.TotalCollateralBase),
		TotalDebtBase:           fromOracleBase(data.TotalDebtBase),
		AvailableBorrowsBase:    fromOracleBase(data.AvailableBorrowsBase),
		AvgLTV:                  data.AvgLTV,
		AvgLiquidationThreshold: data.AvgLiquidationThreshold,
		HealthFactor:            healthFactorView(data),
		Positions:               positions,
	})
}

// GetUserOperations handles GET /api/v1/accounts/{userID}/operations
// Returns the user's journal, newest first, optionally bounded by ?limit.
func (s *Service) GetUserOperations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ops, err := s.store.ListOperationsByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		writeError(w, "failed to load operations", http.StatusInternalServerError)
		return
	}
	if ops == nil {
		ops = []model.OperationRecord{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// GetReserveOperations handles GET /api/v1/reserves/{asset}/operations
func (s *Service) GetReserveOperations(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	ops, err := s.store.ListOperationsByAsset(r.Context(), asset, queryLimit(r))
	if err != nil {
		writeError(w, "failed to load operations", http.StatusInternalServerError)
		return
	}
	if ops == nil {
		ops = []model.OperationRecord{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// decodeOperation parses and validates the common money-operation body. When
// allowZero is set, a zero amount decodes to nil meaning "the full balance".
func (s *Service) decodeOperation(w http.ResponseWriter, r *http.Request, allowZero bool) (OperationRequest, *uint256.Int, bool) {
	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, nil, false
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return req, nil, false
	}
	if allowZero && req.Amount.IsZero() {
		return req, nil, true
	}
	decimals, err := s.assetDecimals(req.Asset)
	if err != nil {
		writeEngineError(w, err)
		return req, nil, false
	}
	amount, err := toUnits(req.Amount, decimals)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return req, nil, false
	}
	return req, amount, true
}

// writeOperation responds with the user's resulting amount view and the
// reserve's fresh state.
func (s *Service) writeOperation(w http.ResponseWriter, userID, asset string) {
	res, err := s.pool.ReserveByAsset(asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	deposit, err := s.pool.DepositBalance(userID, asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{
		UserID:  userID,
		Asset:   asset,
		Amount:  fromUnits(deposit, res.Config.Decimals),
		Reserve: reserveView(res),
	})
}

func healthFactorView(data model.AccountData) decimal.Decimal {
	// An unleveraged account has no meaningful health factor; render the
	// engine's all-ones sentinel as -1.
	if data.TotalDebtBase.IsZero() {
		return decimal.NewFromInt(-1)
	}
	return fromWad(data.HealthFactor)
}

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
