package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStakingMetrics(t *testing.T) {
	m := Staking()
	before := testutil.ToFloat64(m.operations.WithLabelValues("stake", "success"))
	m.RecordOperation("stake", 3, nil)
	m.RecordOperation("stake", 3, errors.New("boom"))
	if got := testutil.ToFloat64(m.operations.WithLabelValues("stake", "success")); got != before+1 {
		t.Fatalf("expected success counter %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("stake")); got < 3 {
		t.Fatalf("expected token counter >= 3, got %v", got)
	}

	paid := testutil.ToFloat64(m.rewardsPaid)
	m.RecordPayout(big.NewInt(250))
	m.RecordPayout(big.NewInt(-1))
	if got := testutil.ToFloat64(m.rewardsPaid); got != paid+250 {
		t.Fatalf("expected rewards %v, got %v", paid+250, got)
	}

	m.SetRate(big.NewInt(1200))
	if got := testutil.ToFloat64(m.currentRate); got != 1200 {
		t.Fatalf("unexpected rate gauge %v", got)
	}
	m.SetCustody(2)
	m.AddCustody(-1)
	if got := testutil.ToFloat64(m.custody); got != 1 {
		t.Fatalf("unexpected custody gauge %v", got)
	}
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("nftstake", "nftstake_claim", "-32041"))
	m.Observe("nftstake_claim", -32041, 5*time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("nftstake", "nftstake_claim", "-32041")); got != before+1 {
		t.Fatalf("expected error counter increment, got %v", got)
	}
	if moduleOf("bogus") != "unknown" {
		t.Fatalf("methods without a module prefix must map to unknown")
	}
}

func TestEventMetrics(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues("nftstake.staked"))
	m.RecordEvent(" nftstake.staked ")
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("nftstake.staked")); got != before+1 {
		t.Fatalf("expected event counter increment, got %v", got)
	}
}
