package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerCountersAccumulate(t *testing.T) {
	m := Ledger()

	before := testutil.ToFloat64(m.opsRejected.WithLabelValues("audit"))
	m.OpRejected("audit")
	if got := testutil.ToFloat64(m.opsRejected.WithLabelValues("audit")); got != before+1 {
		t.Fatalf("rejected counter = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(m.opsApplied.WithLabelValues("audit"))
	m.OpApplied("audit")
	if got := testutil.ToFloat64(m.opsApplied.WithLabelValues("audit")); got != before+1 {
		t.Fatalf("applied counter = %v, want %v", got, before+1)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var m *LedgerMetrics
	m.OpApplied("x")
	m.OpRejected("x")
	m.Rollback("x")
	m.Minted("1", 1)
	m.Burned("1", 1)
	m.FeeCharged("currency", "global")
	m.SetLiveTokens(0)
}
