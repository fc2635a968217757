package nftstake

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
)

func bruteForceIntegral(t *testing.T, ledger *RateLedger, t0, t1 uint64) *big.Int {
	t.Helper()
	total := new(big.Int)
	for ts := t0; ts < t1; ts++ {
		rate, err := ledger.RateAt(ts)
		if err != nil {
			t.Fatalf("rate at %d: %v", ts, err)
		}
		total.Add(total, rate)
	}
	return total
}

func TestIntegralMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		start := uint64(rng.Intn(50))
		ledger, err := NewRateLedger(big.NewInt(int64(rng.Intn(1000))), start)
		if err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
		at := start
		for i := 0; i < rng.Intn(12); i++ {
			// Zero gaps exercise same-instant appends.
			at += uint64(rng.Intn(40))
			if err := ledger.AppendRate(big.NewInt(int64(rng.Intn(1000))), at); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		horizon := at + 60
		t0 := start + uint64(rng.Int63n(int64(horizon-start)))
		t1 := t0 + uint64(rng.Int63n(int64(horizon-t0)+1))

		got, err := ledger.Integral(t0, t1)
		if err != nil {
			t.Fatalf("round %d: integral: %v", round, err)
		}
		want := bruteForceIntegral(t, ledger, t0, t1)
		if got.Cmp(want) != 0 {
			t.Fatalf("round %d: integral(%d,%d) = %s, brute force %s", round, t0, t1, got, want)
		}
	}
}

func TestLedgerSameInstantAppendSupersedes(t *testing.T) {
	ledger, err := NewRateLedger(big.NewInt(5), 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ledger.AppendRate(big.NewInt(7), 20); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ledger.AppendRate(big.NewInt(9), 20); err != nil {
		t.Fatalf("same-instant append: %v", err)
	}
	rate, err := ledger.RateAt(20)
	if err != nil || rate.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("expected latest same-instant rate 9, got %v err=%v", rate, err)
	}
	integral, err := ledger.Integral(10, 30)
	if err != nil {
		t.Fatalf("integral: %v", err)
	}
	if integral.Cmp(big.NewInt(10*5+10*9)) != 0 {
		t.Fatalf("unexpected integral %s", integral)
	}
	if ledger.Len() != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", ledger.Len())
	}
}

func TestLedgerRejections(t *testing.T) {
	ledger, err := NewRateLedger(big.NewInt(1), 100)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ledger.AppendRate(big.NewInt(-1), 200); !errors.Is(err, ErrNegativeRate) {
		t.Fatalf("expected negative rate error, got %v", err)
	}
	if err := ledger.AppendRate(big.NewInt(2), 99); !errors.Is(err, ErrNonMonotonicTime) {
		t.Fatalf("expected backdating error, got %v", err)
	}
	if _, err := ledger.RateAt(99); !errors.Is(err, ErrBeforeFirstCheckpoint) {
		t.Fatalf("expected before-first error, got %v", err)
	}
	if _, err := ledger.Integral(150, 120); !errors.Is(err, ErrNonMonotonicTime) {
		t.Fatalf("expected reversed interval error, got %v", err)
	}
	if _, err := ledger.Integral(50, 120); !errors.Is(err, ErrBeforeFirstCheckpoint) {
		t.Fatalf("expected before-first integral error, got %v", err)
	}
	zero, err := ledger.Integral(150, 150)
	if err != nil || zero.Sign() != 0 {
		t.Fatalf("zero-length interval must integrate to 0, got %v err=%v", zero, err)
	}
	if err := ledger.AppendRate(big.NewInt(0), 100); err != nil {
		t.Fatalf("zero rate must be accepted: %v", err)
	}
	cps := ledger.Checkpoints()
	cps[0].Rate.SetInt64(999)
	if rate, _ := ledger.RateAt(100); rate.Sign() != 0 {
		t.Fatalf("checkpoint copy leaked into ledger")
	}
}

func TestEarnedStates(t *testing.T) {
	ledger, _ := NewRateLedger(big.NewInt(10), 0)
	deposited := &DepositRecord{State: StateDeposited, AccrualStart: 5, Dust: big.NewInt(0)}
	amount, _, err := Earned(deposited, ledger, 15, 1)
	if err != nil || amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("deposited earned %v err=%v", amount, err)
	}
	if _, _, err := Earned(deposited, ledger, 4, 1); !errors.Is(err, ErrNonMonotonicTime) {
		t.Fatalf("expected non-monotonic time, got %v", err)
	}
	exiting := &DepositRecord{State: StateExiting, AccrualStart: 5, ExitRequestedAt: 8, Dust: big.NewInt(0)}
	for _, now := range []uint64{8, 100, 10_000} {
		amount, _, err := Earned(exiting, ledger, now, 1)
		if err != nil || amount.Cmp(big.NewInt(30)) != 0 {
			t.Fatalf("exiting earned at %d = %v err=%v", now, amount, err)
		}
	}
	if _, _, err := Earned(exiting, ledger, 7, 1); !errors.Is(err, ErrNonMonotonicTime) {
		t.Fatalf("expected non-monotonic time before exit, got %v", err)
	}
	empty, _, err := Earned(&DepositRecord{State: StateEmpty}, ledger, 0, 1)
	if err != nil || empty.Sign() != 0 {
		t.Fatalf("empty record must earn 0")
	}
	coarse, rem, err := Earned(&DepositRecord{State: StateDeposited, AccrualStart: 0, Dust: big.NewInt(3)}, ledger, 2, 7)
	if err != nil || coarse.Cmp(big.NewInt(3)) != 0 || rem.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("coarse unit earned %v rem %v err=%v", coarse, rem, err)
	}
}
