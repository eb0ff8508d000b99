package fees

import (
	"math/big"
	"testing"
)

func TestAmountPerMilleForm(t *testing.T) {
	sched := Schedule{PerMille: 3}
	// floor(2500/1000) = 2 whole thousands, times the rate.
	if got := sched.Amount(big.NewInt(2500)); got.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("per-mille fee = %s, want 6", got)
	}
	if got := sched.Amount(big.NewInt(999)); got.Sign() != 0 {
		t.Fatalf("sub-thousand base should floor to zero, got %s", got)
	}
}

func TestAmountFixedPlusPercent(t *testing.T) {
	sched := Schedule{Fixed: 10, PercentBips: 25}
	// 10 + floor(40000 * 25 / 10000) = 10 + 100.
	if got := sched.Amount(big.NewInt(40_000)); got.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("fixed+percent fee = %s, want 110", got)
	}
	if got := sched.Amount(big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero base fee = %s, want 0", got)
	}
}

func TestPerMilleTakesPrecedenceOverFixed(t *testing.T) {
	sched := Schedule{PerMille: 1, Fixed: 50, PercentBips: 100}
	if got := sched.Amount(big.NewInt(5000)); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("fee = %s, want per-mille form result 5", got)
	}
}

func TestAmountClamping(t *testing.T) {
	sched := Schedule{Fixed: 100, Min: 5, Max: 30}
	if got := sched.Amount(big.NewInt(1)); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("capped fee = %s, want 30", got)
	}
	sched = Schedule{PercentBips: 1, Min: 5}
	if got := sched.Amount(big.NewInt(100)); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("floored fee = %s, want 5", got)
	}
	// Max of zero means uncapped.
	sched = Schedule{Fixed: 1_000_000}
	if got := sched.Amount(big.NewInt(1)); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("uncapped fee = %s, want 1000000", got)
	}
}

func TestQuantityAmountSaturatesAtCap(t *testing.T) {
	sched := Schedule{Fixed: 500}
	if got := sched.QuantityAmount(10, 100); got != 100 {
		t.Fatalf("saturated quantity fee = %d, want 100", got)
	}
	sched = Schedule{Fixed: 7}
	if got := sched.QuantityAmount(10, 100); got != 7 {
		t.Fatalf("quantity fee = %d, want 7", got)
	}
}

type mapStore map[[2]uint64]Schedule

func storeKey(flow FlowKind, typeID uint32, owner [20]byte) [2]uint64 {
	var tag uint64
	for _, b := range owner[:8] {
		tag = tag<<8 | uint64(b)
	}
	return [2]uint64{uint64(flow)<<32 | uint64(typeID), tag}
}

func (m mapStore) ScheduleGet(flow FlowKind, typeID uint32, owner [20]byte) (Schedule, bool) {
	sched, ok := m[storeKey(flow, typeID, owner)]
	return sched, ok
}

func TestResolvePrecedence(t *testing.T) {
	owner := [20]byte{0x01}
	other := [20]byte{0x02}
	store := mapStore{
		storeKey(FlowCurrency, 1, GlobalOwner): {Fixed: 10},
		storeKey(FlowCurrency, 1, owner):       {Fixed: 2},
	}
	if got := Resolve(store, FlowCurrency, 1, owner); got.Fixed != 2 {
		t.Fatalf("owner-specific schedule not preferred: %+v", got)
	}
	if got := Resolve(store, FlowCurrency, 1, other); got.Fixed != 10 {
		t.Fatalf("global fall-back not applied: %+v", got)
	}
	if got := Resolve(store, FlowCurrency, 2, owner); !got.IsZero() {
		t.Fatalf("unknown type should resolve to zero schedule: %+v", got)
	}
	if got := Resolve(nil, FlowCurrency, 1, owner); !got.IsZero() {
		t.Fatalf("nil store should resolve to zero schedule: %+v", got)
	}
}

func TestExempt(t *testing.T) {
	a := [20]byte{0xaa}
	b := [20]byte{0xbb}
	if !Exempt(a, a) {
		t.Fatalf("self-payment must be exempt")
	}
	if Exempt(a, b) {
		t.Fatalf("distinct accounts must not be exempt")
	}
}

func TestIssuerCut(t *testing.T) {
	if got := IssuerCut(big.NewInt(10), 5000); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("issuer cut = %s, want 5", got)
	}
	// floor(3 * 2500 / 10000) = 0; the remainder stays with the fee receiver.
	if got := IssuerCut(big.NewInt(3), 2500); got.Sign() != 0 {
		t.Fatalf("issuer cut = %s, want 0", got)
	}
	if got := IssuerCut(nil, 5000); got.Sign() != 0 {
		t.Fatalf("nil fee cut = %s, want 0", got)
	}
}

func TestProRataFloors(t *testing.T) {
	if got := ProRata(big.NewInt(10), 1, 3); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("pro-rata = %s, want 3", got)
	}
	if got := ProRata(big.NewInt(10), 3, 3); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("full pro-rata = %s, want 10", got)
	}
	if got := ProRata(big.NewInt(10), 0, 3); got.Sign() != 0 {
		t.Fatalf("zero part pro-rata = %s, want 0", got)
	}
}

func TestParseFlowRoundTrip(t *testing.T) {
	for _, kind := range []FlowKind{FlowAsset, FlowCurrency, FlowIssuerShare} {
		parsed, err := ParseFlow(kind.String())
		if err != nil {
			t.Fatalf("parse %q: %v", kind.String(), err)
		}
		if parsed != kind {
			t.Fatalf("parse %q = %v, want %v", kind.String(), parsed, kind)
		}
	}
	if _, err := ParseFlow("bogus"); err == nil {
		t.Fatalf("expected error for unknown flow kind")
	}
}

func TestScheduleConfigKey(t *testing.T) {
	entry := ScheduleConfig{Flow: "currency", TypeID: 7, Owner: "0x0102030405060708090a0b0c0d0e0f1011121314"}
	flow, typeID, owner, err := entry.Key()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if flow != FlowCurrency || typeID != 7 {
		t.Fatalf("key = (%v, %d), want (currency, 7)", flow, typeID)
	}
	if owner[0] != 0x01 || owner[19] != 0x14 {
		t.Fatalf("owner decoded incorrectly: %x", owner)
	}

	entry.Owner = ""
	_, _, owner, err = entry.Key()
	if err != nil {
		t.Fatalf("key with empty owner: %v", err)
	}
	if owner != GlobalOwner {
		t.Fatalf("empty owner should map to the global sentinel")
	}

	entry.TypeID = 0
	if _, _, _, err := entry.Key(); err == nil {
		t.Fatalf("expected error for zero type id")
	}
}
