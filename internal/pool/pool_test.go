package pool

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/bank"
	"github.com/itskumar666/LendingProtocol/internal/ledger"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/oracle"
	"github.com/itskumar666/LendingProtocol/internal/rates"
	"github.com/itskumar666/LendingProtocol/internal/reserve"
)

func u(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

type clock struct{ t int64 }

func (c *clock) now() int64 { return c.t }

func newTestPool(t *testing.T) (*Pool, *oracle.StaticSource, *clock) {
	t.Helper()
	src := oracle.NewStaticSource()
	src.SetPrice("USDC", u("1"))
	src.SetPrice("ETH", u("2000"))
	clk := &clock{}
	p := New(Config{
		Oracle:            src,
		RateModel:         rates.Default(),
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		FlashLoanPremium:  100, // 1%
		LiquidationFeeBps: 0,
		Now:               clk.now,
	})
	return p, src, clk
}

func reserveConfig() model.ReserveConfig {
	return model.ReserveConfig{
		LTV:                  7_500,
		LiquidationThreshold: 8_000,
		LiquidationBonus:     10_500,
		Decimals:             0,
		Flags: model.ReserveFlags{
			Active:                 true,
			BorrowingEnabled:       true,
			StableBorrowingEnabled: true,
			FlashLoanEnabled:       true,
		},
	}
}

func mustInit(t *testing.T, p *Pool, asset string, cfg model.ReserveConfig) int {
	t.Helper()
	id, err := p.InitReserve(context.Background(), asset, cfg, nil)
	if err != nil {
		t.Fatalf("init reserve %s: %v", asset, err)
	}
	return id
}

func mustCredit(t *testing.T, p *Pool, holder, asset, amount string) {
	t.Helper()
	if err := p.Credit(context.Background(), holder, asset, u(amount)); err != nil {
		t.Fatalf("credit %s: %v", holder, err)
	}
}

func mustDeposit(t *testing.T, p *Pool, user, asset, amount string) {
	t.Helper()
	if err := p.Deposit(context.Background(), user, asset, u(amount)); err != nil {
		t.Fatalf("deposit %s %s for %s: %v", amount, asset, user, err)
	}
}

func TestInitReserve(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()

	id, err := p.InitReserve(ctx, "USDC", reserveConfig(), nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if id != 0 {
		t.Errorf("first reserve should have id 0, got %d", id)
	}
	id, err = p.InitReserve(ctx, "ETH", reserveConfig(), nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if id != 1 {
		t.Errorf("second reserve should have id 1, got %d", id)
	}
	if _, err := p.InitReserve(ctx, "USDC", reserveConfig(), nil); err != ErrReserveAlreadyExists {
		t.Errorf("expected ErrReserveAlreadyExists, got %v", err)
	}
}

func TestConfigureReserve_RecomputesRates(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "10000")
	mustDeposit(t, p, "alice", "USDC", "10000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("5000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	r, err := p.ReserveByAsset("USDC")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	before := new(uint256.Int).Set(r.LiquidityRate)
	if before.IsZero() {
		t.Fatal("expected a nonzero liquidity rate at 50% utilization")
	}

	// A 50% reserve factor must halve the stored liquidity rate right away,
	// not at the next money operation.
	cfg := reserveConfig()
	cfg.ReserveFactor = 5_000
	if err := p.ConfigureReserve(ctx, "USDC", cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	r, err = p.ReserveByAsset("USDC")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	want := new(uint256.Int).Div(before, uint256.NewInt(2))
	if !r.LiquidityRate.Eq(want) {
		t.Errorf("expected liquidity rate %s after reconfigure, got %s",
			want.Dec(), r.LiquidityRate.Dec())
	}
}

func TestDeposit(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "1000")

	if err := p.Deposit(ctx, "alice", "USDC", u("0")); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if err := p.Deposit(ctx, "alice", "DAI", u("10")); err != ErrReserveNotFound {
		t.Errorf("expected ErrReserveNotFound, got %v", err)
	}
	if err := p.Deposit(ctx, "alice", "USDC", u("1001")); err != bank.ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	mustDeposit(t, p, "alice", "USDC", "1000")
	if got := p.WalletBalance("alice", "USDC"); !got.IsZero() {
		t.Errorf("wallet should be drained, got %s", got.Dec())
	}
	bal, err := p.DepositBalance("alice", "USDC")
	if err != nil {
		t.Fatalf("deposit balance: %v", err)
	}
	if !bal.Eq(u("1000")) {
		t.Errorf("expected 1000 deposited, got %s", bal.Dec())
	}
	r, err := p.ReserveByAsset("USDC")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !r.AvailableLiquidity.Eq(u("1000")) {
		t.Errorf("expected 1000 of liquidity, got %s", r.AvailableLiquidity.Dec())
	}

	// First deposit enables the reserve as collateral.
	data, err := p.AccountData(ctx, "alice")
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	if !data.TotalCollateralBase.Eq(u("1000")) {
		t.Errorf("expected 1000 of collateral, got %s", data.TotalCollateralBase.Dec())
	}
}

func TestDeposit_SupplyCap(t *testing.T) {
	p, _, _ := newTestPool(t)
	cfg := reserveConfig()
	cfg.SupplyCap = u("500")
	mustInit(t, p, "USDC", cfg)
	mustCredit(t, p, "alice", "USDC", "1000")

	if err := p.Deposit(context.Background(), "alice", "USDC", u("501")); err != reserve.ErrSupplyCap {
		t.Errorf("expected ErrSupplyCap, got %v", err)
	}
	mustDeposit(t, p, "alice", "USDC", "500")
}

func TestWithdraw(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "1000")
	mustDeposit(t, p, "alice", "USDC", "1000")

	if err := p.Withdraw(ctx, "alice", "USDC", u("400")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := p.WalletBalance("alice", "USDC"); !got.Eq(u("400")) {
		t.Errorf("wallet: got %s, want 400", got.Dec())
	}
	if err := p.Withdraw(ctx, "alice", "USDC", u("601")); err != ledger.ErrInsufficientScaledBalance {
		t.Errorf("expected ErrInsufficientScaledBalance, got %v", err)
	}

	// Nil amount drains the rest and clears the collateral flag.
	if err := p.Withdraw(ctx, "alice", "USDC", nil); err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if got := p.WalletBalance("alice", "USDC"); !got.Eq(u("1000")) {
		t.Errorf("wallet: got %s, want 1000", got.Dec())
	}
	data, err := p.AccountData(ctx, "alice")
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	if !data.TotalCollateralBase.IsZero() {
		t.Errorf("collateral should be zero after full withdrawal, got %s", data.TotalCollateralBase.Dec())
	}
}

func TestBorrow_Variable(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")

	// 10 ETH at 2000 with a 75% LTV gives 15000 of borrow power.
	if err := p.Borrow(ctx, "bob", "USDC", u("15001"), model.RateModeVariable); err != ErrLTVExceeded {
		t.Errorf("expected ErrLTVExceeded, got %v", err)
	}
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got := p.WalletBalance("bob", "USDC"); !got.Eq(u("10000")) {
		t.Errorf("wallet: got %s, want 10000", got.Dec())
	}
	variable, stable, err := p.DebtBalances("bob", "USDC")
	if err != nil {
		t.Fatalf("debt balances: %v", err)
	}
	if !variable.Eq(u("10000")) || !stable.IsZero() {
		t.Errorf("expected 10000 variable debt, got %s variable %s stable", variable.Dec(), stable.Dec())
	}
	r, err := p.ReserveByAsset("USDC")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if r.VariableRate.IsZero() {
		t.Error("borrowing must move the variable rate off zero")
	}
}

func TestBorrow_NoCollateral(t *testing.T) {
	p, _, _ := newTestPool(t)
	mustInit(t, p, "USDC", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "1000")
	mustDeposit(t, p, "alice", "USDC", "1000")

	if err := p.Borrow(context.Background(), "bob", "USDC", u("100"), model.RateModeVariable); err != ErrLTVExceeded {
		t.Errorf("expected ErrLTVExceeded, got %v", err)
	}
}

func TestBorrow_NotEnoughLiquidity(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "100")
	mustDeposit(t, p, "alice", "USDC", "100")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")

	if err := p.Borrow(ctx, "bob", "USDC", u("101"), model.RateModeVariable); err != reserve.ErrNotEnoughLiquidity {
		t.Errorf("expected ErrNotEnoughLiquidity, got %v", err)
	}
}

func TestBorrow_Stable(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")

	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeStable); err != nil {
		t.Fatalf("stable borrow: %v", err)
	}
	r, err := p.ReserveByAsset("USDC")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	lots := r.StableDebt.Lots("bob")
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	// The lot locks the post-borrow quote, which is nonzero at 50%
	// utilization.
	if lots[0].Rate.IsZero() {
		t.Error("stable lot must lock a nonzero rate")
	}
}

func TestBorrow_StableDisabled(t *testing.T) {
	p, _, _ := newTestPool(t)
	cfg := reserveConfig()
	cfg.Flags.StableBorrowingEnabled = false
	mustInit(t, p, "USDC", cfg)
	mustCredit(t, p, "alice", "USDC", "1000")
	mustDeposit(t, p, "alice", "USDC", "1000")

	err := p.Borrow(context.Background(), "alice", "USDC", u("100"), model.RateModeStable)
	if err != reserve.ErrStableBorrowingDisabled {
		t.Errorf("expected ErrStableBorrowingDisabled, got %v", err)
	}
}

func TestRepay(t *testing.T) {
	p, _, clk := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := p.Repay(ctx, "bob", "USDC", u("4000"), model.RateModeVariable); err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	variable, _, err := p.DebtBalances("bob", "USDC")
	if err != nil {
		t.Fatalf("debt balances: %v", err)
	}
	if !variable.Eq(u("6000")) {
		t.Errorf("expected 6000 left, got %s", variable.Dec())
	}

	// Debt accrues while time passes; a nil repay still clears it in full.
	clk.t += 31_536_000
	variable, _, err = p.DebtBalances("bob", "USDC")
	if err != nil {
		t.Fatalf("debt balances: %v", err)
	}
	if !variable.Gt(u("6000")) {
		t.Errorf("debt should accrue interest, got %s", variable.Dec())
	}
	mustCredit(t, p, "bob", "USDC", "2000") // cover the interest
	if err := p.Repay(ctx, "bob", "USDC", nil, model.RateModeVariable); err != nil {
		t.Fatalf("full repay: %v", err)
	}
	variable, _, err = p.DebtBalances("bob", "USDC")
	if err != nil {
		t.Fatalf("debt balances: %v", err)
	}
	if !variable.IsZero() {
		t.Errorf("expected zero debt, got %s", variable.Dec())
	}
	if err := p.Repay(ctx, "bob", "USDC", nil, model.RateModeVariable); err != ErrNoDebtInReserve {
		t.Errorf("expected ErrNoDebtInReserve, got %v", err)
	}
}

func TestWithdraw_HealthGate(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := p.Withdraw(ctx, "bob", "ETH", nil); err != ErrHealthFactorTooLow {
		t.Errorf("expected ErrHealthFactorTooLow, got %v", err)
	}
	// The rejected withdrawal must leave no trace.
	bal, err := p.DepositBalance("bob", "ETH")
	if err != nil {
		t.Fatalf("deposit balance: %v", err)
	}
	if !bal.Eq(u("10")) {
		t.Errorf("failed withdrawal mutated state: %s", bal.Dec())
	}

	// A small withdrawal that keeps the account healthy passes.
	if err := p.Withdraw(ctx, "bob", "ETH", u("1")); err != nil {
		t.Errorf("healthy withdrawal rejected: %v", err)
	}
}

func TestSetUseAsCollateral(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")

	if err := p.SetUseAsCollateral(ctx, "bob", "USDC", true); err != ErrNoDepositBalance {
		t.Errorf("expected ErrNoDepositBalance, got %v", err)
	}

	// No debt: toggling off is free.
	if err := p.SetUseAsCollateral(ctx, "alice", "USDC", false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	data, err := p.AccountData(ctx, "alice")
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	if !data.TotalCollateralBase.IsZero() {
		t.Errorf("disabled collateral still counted: %s", data.TotalCollateralBase.Dec())
	}

	// With debt, dropping the backing collateral is rejected.
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := p.SetUseAsCollateral(ctx, "bob", "ETH", false); err != ErrHealthFactorTooLow {
		t.Errorf("expected ErrHealthFactorTooLow, got %v", err)
	}
}

func TestTransferDeposit(t *testing.T) {
	p, _, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "1000")
	mustDeposit(t, p, "alice", "USDC", "1000")

	if err := p.TransferDeposit(ctx, "alice", "bob", "USDC", u("400")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, err := p.DepositBalance("alice", "USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bobBal, err := p.DepositBalance("bob", "USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !aliceBal.Eq(u("600")) || !bobBal.Eq(u("400")) {
		t.Errorf("got %s/%s, want 600/400", aliceBal.Dec(), bobBal.Dec())
	}
	// The recipient's first balance counts as collateral.
	data, err := p.AccountData(ctx, "bob")
	if err != nil {
		t.Fatalf("account data: %v", err)
	}
	if !data.TotalCollateralBase.Eq(u("400")) {
		t.Errorf("expected 400 of collateral for bob, got %s", data.TotalCollateralBase.Dec())
	}
}

func TestLiquidate(t *testing.T) {
	p, src, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	mustCredit(t, p, "carol", "USDC", "10000")

	// Healthy accounts cannot be liquidated.
	if err := p.Liquidate(ctx, "carol", "bob", "ETH", "USDC", nil, false); err != ErrHealthFactorNotBelowThreshold {
		t.Errorf("expected ErrHealthFactorNotBelowThreshold, got %v", err)
	}

	// ETH crashes from 2000 to 600: collateral 6000 against 10000 of debt.
	src.SetPrice("ETH", u("600"))

	if err := p.Liquidate(ctx, "carol", "bob", "ETH", "USDC", nil, false); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// The 10 ETH only pays out 5714 of debt at the 5% bonus; the rest stays
	// as bad debt.
	carolETH, err := p.DepositBalance("carol", "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !carolETH.Eq(u("10")) {
		t.Errorf("carol should hold the seized 10 ETH, got %s", carolETH.Dec())
	}
	bobETH, err := p.DepositBalance("bob", "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bobETH.IsZero() {
		t.Errorf("bob's collateral should be gone, got %s", bobETH.Dec())
	}
	variable, _, err := p.DebtBalances("bob", "USDC")
	if err != nil {
		t.Fatalf("debt balances: %v", err)
	}
	if !variable.Eq(u("4286")) {
		t.Errorf("expected 4286 of residual debt, got %s", variable.Dec())
	}
	if got := p.WalletBalance("carol", "USDC"); !got.Eq(u("4286")) {
		t.Errorf("carol should have paid 5714, got %s left", got.Dec())
	}
}

func TestLiquidate_ReceiveUnderlying(t *testing.T) {
	p, src, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	src.SetPrice("ETH", u("600"))
	mustCredit(t, p, "carol", "USDC", "10000")

	if err := p.Liquidate(ctx, "carol", "bob", "ETH", "USDC", nil, true); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// Carol is paid in underlying ETH instead of a deposit position.
	if got := p.WalletBalance("carol", "ETH"); !got.Eq(u("10")) {
		t.Errorf("carol should hold 10 ETH in her wallet, got %s", got.Dec())
	}
	carolETH, err := p.DepositBalance("carol", "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !carolETH.IsZero() {
		t.Errorf("carol should hold no deposit position, got %s", carolETH.Dec())
	}
	r, err := p.ReserveByAsset("ETH")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !r.AvailableLiquidity.IsZero() {
		t.Errorf("the payout should drain the reserve, got %s", r.AvailableLiquidity.Dec())
	}
}

func TestLiquidate_WrongTargets(t *testing.T) {
	p, src, _ := newTestPool(t)
	ctx := context.Background()
	mustInit(t, p, "USDC", reserveConfig())
	mustInit(t, p, "ETH", reserveConfig())
	mustCredit(t, p, "alice", "USDC", "20000")
	mustDeposit(t, p, "alice", "USDC", "20000")
	mustCredit(t, p, "bob", "ETH", "10")
	mustDeposit(t, p, "bob", "ETH", "10")
	if err := p.Borrow(ctx, "bob", "USDC", u("10000"), model.RateModeVariable); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	src.SetPrice("ETH", u("600"))
	mustCredit(t, p, "carol", "USDC", "10000")
	mustCredit(t, p, "carol", "ETH", "10")

	// Bob has no USDC collateral and no ETH debt.
	if err := p.Liquidate(ctx, "carol", "bob", "USDC", "USDC", nil, false); err != ErrCollateralCannotBeLiquidated {
		t.Errorf("expected ErrCollateralCannotBeLiquidated, got %v", err)
	}
	if err := p.Liquidate(ctx, "carol", "bob", "ETH", "ETH", nil, false); err != ErrNoDebtInReserve {
		t.Errorf("expected ErrNoDebtInReserve, got %v", err)
	}
}
