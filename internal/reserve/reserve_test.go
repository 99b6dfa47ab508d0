package reserve

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/itskumar666/LendingProtocol/internal/fixedpoint"
	"github.com/itskumar666/LendingProtocol/internal/model"
	"github.com/itskumar666/LendingProtocol/internal/rates"
)

func u(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

func testConfig() model.ReserveConfig {
	return model.ReserveConfig{
		LTV:                  7_500,
		LiquidationThreshold: 8_000,
		LiquidationBonus:     10_500,
		ReserveFactor:        0,
		Decimals:             18,
		Flags: model.ReserveFlags{
			Active:                 true,
			BorrowingEnabled:       true,
			StableBorrowingEnabled: true,
			FlashLoanEnabled:       true,
		},
	}
}

func newTestReserve(t *testing.T, cfg model.ReserveConfig) *State {
	t.Helper()
	s, err := New(0, "USDC", cfg, nil, 0)
	if err != nil {
		t.Fatalf("new reserve: %v", err)
	}
	return s
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LTV = 9_000 // above threshold
	if _, err := New(0, "USDC", cfg, nil, 0); err != model.ErrInvalidLTV {
		t.Errorf("expected ErrInvalidLTV, got %v", err)
	}
}

func TestAccrue_SameTimestampNoop(t *testing.T) {
	s := newTestReserve(t, testConfig())
	s.LiquidityRate = u("100000000000000000000000000") // 10%
	if err := s.Accrue(0); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !s.LiquidityIndex.Eq(fixedpoint.Ray) {
		t.Errorf("index must not move without elapsed time, got %s", s.LiquidityIndex.Dec())
	}
}

func TestAccrue_GrowsIndexAndBalances(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if err := s.AddLiquidity(u("1000")); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, err := s.Deposits.Mint("alice", u("1000"), s.LiquidityIndex); err != nil {
		t.Fatalf("mint: %v", err)
	}
	s.LiquidityRate = u("100000000000000000000000000") // 10%

	if err := s.Accrue(31_536_000); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !s.LiquidityIndex.Eq(u("1100000000000000000000000000")) {
		t.Errorf("expected 1.1 ray index after a year at 10%%, got %s", s.LiquidityIndex.Dec())
	}
	if got := s.Deposits.BalanceOf("alice", s.LiquidityIndex); !got.Eq(u("1100")) {
		t.Errorf("expected 1100 balance, got %s", got.Dec())
	}

	// Accruing again at the same timestamp must change nothing.
	before := new(uint256.Int).Set(s.LiquidityIndex)
	if err := s.Accrue(31_536_000); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !s.LiquidityIndex.Eq(before) {
		t.Errorf("repeat accrual moved the index: %s", s.LiquidityIndex.Dec())
	}
}

func TestAccrue_VariableIndex(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if _, err := s.VariableDebt.Mint("bob", u("1000"), s.VariableBorrowIndex); err != nil {
		t.Fatalf("mint debt: %v", err)
	}
	s.VariableRate = u("50000000000000000000000000") // 5%
	if err := s.Accrue(31_536_000); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := s.TotalVariableDebt(); !got.Eq(u("1050")) {
		t.Errorf("expected 1050 debt after a year at 5%%, got %s", got.Dec())
	}
}

func TestRemoveLiquidity_Insufficient(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if err := s.AddLiquidity(u("100")); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := s.RemoveLiquidity(u("101")); err != ErrNotEnoughLiquidity {
		t.Errorf("expected ErrNotEnoughLiquidity, got %v", err)
	}
	if err := s.RemoveLiquidity(u("100")); err != nil {
		t.Errorf("exact drain should pass, got %v", err)
	}
}

func TestCaps(t *testing.T) {
	cfg := testConfig()
	cfg.SupplyCap = u("1000")
	cfg.BorrowCap = u("500")
	s := newTestReserve(t, cfg)

	if err := s.CheckSupplyCap(u("1000")); err != nil {
		t.Errorf("deposit up to the cap should pass, got %v", err)
	}
	if err := s.CheckSupplyCap(u("1001")); err != ErrSupplyCap {
		t.Errorf("expected ErrSupplyCap, got %v", err)
	}
	if err := s.CheckBorrowCap(u("501")); err != ErrBorrowCap {
		t.Errorf("expected ErrBorrowCap, got %v", err)
	}

	// Zero caps mean uncapped.
	s2 := newTestReserve(t, testConfig())
	if err := s2.CheckSupplyCap(u("115792089237316195423570985008687907853269984665640564039457584007913129639935")); err != nil {
		t.Errorf("uncapped reserve rejected a deposit: %v", err)
	}
}

func TestFlagGates(t *testing.T) {
	cfg := testConfig()
	cfg.Flags.Active = false
	if err := newTestReserve(t, cfg).EnsureUsable(); err != ErrNotActive {
		t.Errorf("expected ErrNotActive, got %v", err)
	}

	cfg = testConfig()
	cfg.Flags.Paused = true
	if err := newTestReserve(t, cfg).EnsureUsable(); err != ErrPaused {
		t.Errorf("expected ErrPaused, got %v", err)
	}

	cfg = testConfig()
	cfg.Flags.Frozen = true
	s := newTestReserve(t, cfg)
	if err := s.EnsureUsable(); err != nil {
		t.Errorf("frozen reserve is still usable for repay/withdraw, got %v", err)
	}
	if err := s.EnsureNotFrozen(); err != ErrFrozen {
		t.Errorf("expected ErrFrozen, got %v", err)
	}

	cfg = testConfig()
	cfg.Flags.BorrowingEnabled = false
	if err := newTestReserve(t, cfg).EnsureBorrowable(model.RateModeVariable); err != ErrBorrowingDisabled {
		t.Errorf("expected ErrBorrowingDisabled, got %v", err)
	}

	cfg = testConfig()
	cfg.Flags.StableBorrowingEnabled = false
	s = newTestReserve(t, cfg)
	if err := s.EnsureBorrowable(model.RateModeVariable); err != nil {
		t.Errorf("variable borrowing should still pass, got %v", err)
	}
	if err := s.EnsureBorrowable(model.RateModeStable); err != ErrStableBorrowingDisabled {
		t.Errorf("expected ErrStableBorrowingDisabled, got %v", err)
	}

	cfg = testConfig()
	cfg.Flags.FlashLoanEnabled = false
	if err := newTestReserve(t, cfg).EnsureFlashLoanable(); err != ErrFlashLoanDisabled {
		t.Errorf("expected ErrFlashLoanDisabled, got %v", err)
	}
}

func TestRecomputeRates_AtKink(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if err := s.AddLiquidity(u("200")); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, err := s.VariableDebt.Mint("bob", u("800"), s.VariableBorrowIndex); err != nil {
		t.Fatalf("mint debt: %v", err)
	}
	if err := s.RecomputeRates(rates.Default()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !s.VariableRate.Eq(u("32000000000000000000000000")) {
		t.Errorf("variable rate at 80%% utilization: got %s", s.VariableRate.Dec())
	}
	if !s.LiquidityRate.Eq(u("28800000000000000000000000")) {
		t.Errorf("liquidity rate at 80%% utilization: got %s", s.LiquidityRate.Dec())
	}
}

func TestCumulateToLiquidityIndex(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if _, err := s.Deposits.Mint("alice", u("1000"), s.LiquidityIndex); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := s.CumulateToLiquidityIndex(u("10")); err != nil {
		t.Fatalf("cumulate: %v", err)
	}
	if !s.LiquidityIndex.Eq(u("1010000000000000000000000000")) {
		t.Errorf("expected 1.01 ray index, got %s", s.LiquidityIndex.Dec())
	}
	if got := s.Deposits.BalanceOf("alice", s.LiquidityIndex); !got.Eq(u("1010")) {
		t.Errorf("premium should reach the depositor, got %s", got.Dec())
	}
}

func TestClone_Isolated(t *testing.T) {
	s := newTestReserve(t, testConfig())
	if err := s.AddLiquidity(u("1000")); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	cp := s.Clone()
	if err := cp.RemoveLiquidity(u("1000")); err != nil {
		t.Fatalf("remove on clone: %v", err)
	}
	cp.Config.Flags.Paused = true
	if !s.AvailableLiquidity.Eq(u("1000")) {
		t.Errorf("original liquidity mutated through clone: %s", s.AvailableLiquidity.Dec())
	}
	if s.Config.Flags.Paused {
		t.Error("original flags mutated through clone")
	}
}
