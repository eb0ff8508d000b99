package state

import (
	"math/big"
	"testing"

	"batchledger/native/fees"
	"batchledger/native/ledger"
)

var (
	alice = [20]byte{0xa1}
	bob   = [20]byte{0xb0}
)

func newSeededState(t *testing.T) *LedgerState {
	t.Helper()
	st := NewLedgerState()
	if err := st.RegisterAssetType(ledger.AssetType{ID: 1, Name: "GRAIN"}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	if err := st.RegisterCurrencyType(ledger.CurrencyType{ID: 1, Name: "USD", Unit: "cent"}); err != nil {
		t.Fatalf("register currency: %v", err)
	}
	return st
}

func TestRegistriesRejectDuplicatesAndZeroIDs(t *testing.T) {
	st := newSeededState(t)
	if err := st.RegisterAssetType(ledger.AssetType{ID: 1, Name: "DUP"}); err == nil {
		t.Fatalf("expected duplicate asset id error")
	}
	if err := st.RegisterAssetType(ledger.AssetType{ID: 0, Name: "ZERO"}); err == nil {
		t.Fatalf("expected zero asset id error")
	}
	if err := st.RegisterCurrencyType(ledger.CurrencyType{ID: 1, Name: "DUP"}); err == nil {
		t.Fatalf("expected duplicate currency id error")
	}
}

func TestBalancesAreDefensiveCopies(t *testing.T) {
	st := newSeededState(t)
	if err := st.SetBalance(alice, 1, big.NewInt(100)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	got := st.Balance(alice, 1)
	got.SetInt64(0)
	if st.Balance(alice, 1).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored balance mutated through returned copy")
	}
	if err := st.SetBalance(alice, 1, big.NewInt(-1)); err == nil {
		t.Fatalf("expected error for negative balance")
	}
}

func TestTokenOwnerReindexing(t *testing.T) {
	st := newSeededState(t)
	tok := &ledger.Token{ID: st.NextTokenID(), Batch: 1, Asset: 1, Owner: alice, Minted: 50, Current: 50}
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := len(st.TokensByOwner(alice, 1)); got != 1 {
		t.Fatalf("alice tokens = %d, want 1", got)
	}

	tok.Owner = bob
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("re-home: %v", err)
	}
	if got := len(st.TokensByOwner(alice, 1)); got != 0 {
		t.Fatalf("alice still indexed after re-home")
	}
	if got := len(st.TokensByOwner(bob, 1)); got != 1 {
		t.Fatalf("bob tokens = %d, want 1", got)
	}

	if err := st.TokenRemove(tok.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if st.TokenCount() != 0 {
		t.Fatalf("token count = %d, want 0", st.TokenCount())
	}
	if err := st.TokenRemove(tok.ID); err == nil {
		t.Fatalf("expected error removing unknown token")
	}
}

func TestTokensByOwnerFiltersAndSorts(t *testing.T) {
	st := newSeededState(t)
	if err := st.RegisterAssetType(ledger.AssetType{ID: 2, Name: "FLOUR"}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	for _, spec := range []struct {
		asset uint32
		qty   uint64
	}{{1, 10}, {2, 20}, {1, 30}} {
		tok := &ledger.Token{ID: st.NextTokenID(), Batch: 1, Asset: spec.asset, Owner: alice, Minted: spec.qty, Current: spec.qty}
		if err := st.TokenPut(tok); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	all := st.TokensByOwner(alice, 0)
	if len(all) != 3 {
		t.Fatalf("all tokens = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("tokens not sorted ascending by id")
		}
	}
	filtered := st.TokensByOwner(alice, 1)
	if len(filtered) != 2 {
		t.Fatalf("filtered tokens = %d, want 2", len(filtered))
	}
}

func TestIDAllocationIsMonotonic(t *testing.T) {
	st := newSeededState(t)
	first := st.NextTokenID()
	tok := &ledger.Token{ID: first, Batch: 1, Asset: 1, Owner: alice, Minted: 5, Current: 5}
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.TokenRemove(first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// A destroyed token's id is never reused.
	if next := st.NextTokenID(); next != first+1 {
		t.Fatalf("next token id = %d, want %d", next, first+1)
	}
	if st.NextBatchID() != 1 || st.NextBatchID() != 2 {
		t.Fatalf("batch ids not monotonic from 1")
	}
}

func TestSnapshotRestore(t *testing.T) {
	st := newSeededState(t)
	if err := st.SetBalance(alice, 1, big.NewInt(100)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	tok := &ledger.Token{ID: st.NextTokenID(), Batch: 1, Asset: 1, Owner: alice, Minted: 50, Current: 50}
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.AggregateAdd(alice, 1, 50); err != nil {
		t.Fatalf("aggregate add: %v", err)
	}

	restore := st.Snapshot()

	if err := st.SetBalance(alice, 1, big.NewInt(1)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	tok.Owner = bob
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("re-home: %v", err)
	}
	if err := st.AggregateSub(alice, 1, 50); err != nil {
		t.Fatalf("aggregate sub: %v", err)
	}
	if err := st.SchedulePut(fees.FlowCurrency, 1, fees.GlobalOwner, fees.Schedule{Fixed: 9}); err != nil {
		t.Fatalf("schedule put: %v", err)
	}
	_ = st.NextTokenID()

	restore()

	if st.Balance(alice, 1).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance not restored: %s", st.Balance(alice, 1))
	}
	restored, ok := st.TokenGet(tok.ID)
	if !ok || restored.Owner != alice {
		t.Fatalf("token ownership not restored: %+v", restored)
	}
	if len(st.TokensByOwner(bob, 1)) != 0 {
		t.Fatalf("bob's token index not restored")
	}
	if st.Aggregate(alice, 1) != 50 {
		t.Fatalf("aggregate not restored: %d", st.Aggregate(alice, 1))
	}
	if _, ok := st.ScheduleGet(fees.FlowCurrency, 1, fees.GlobalOwner); ok {
		t.Fatalf("schedule write not restored")
	}
	if next := st.NextTokenID(); next != tok.ID+1 {
		t.Fatalf("id counter not restored: %d", next)
	}
}

func TestSnapshotIsolatesDeepState(t *testing.T) {
	st := newSeededState(t)
	tok := &ledger.Token{ID: st.NextTokenID(), Batch: 1, Asset: 1, Owner: alice, Minted: 50, Current: 50}
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("put: %v", err)
	}

	restore := st.Snapshot()
	// Mutating through the live state must not leak into the snapshot copy.
	tok.Current = 10
	if err := st.TokenPut(tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	restore()

	restored, _ := st.TokenGet(tok.ID)
	if restored.Current != 50 {
		t.Fatalf("snapshot shared token storage: current = %d", restored.Current)
	}
}

func TestAggregateOverflowGuards(t *testing.T) {
	st := newSeededState(t)
	if err := st.AggregateAdd(alice, 1, ledger.MaxQuantity); err != nil {
		t.Fatalf("aggregate add: %v", err)
	}
	if err := st.AggregateAdd(alice, 1, 1); err == nil {
		t.Fatalf("expected overflow error")
	}
	if err := st.AggregateSub(alice, 1, ledger.MaxQuantity+1); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestAccessAndEntityViews(t *testing.T) {
	st := newSeededState(t)
	admin := [20]byte{0xad}
	if st.IsAdministrator(admin) {
		t.Fatalf("unexpected administrator")
	}
	st.AddAdministrator(admin)
	if !st.IsAdministrator(admin) {
		t.Fatalf("administrator not recorded")
	}
	if st.HasEntity(alice) {
		t.Fatalf("unexpected entity")
	}
	st.RegisterEntity(alice)
	if !st.HasEntity(alice) {
		t.Fatalf("entity not recorded")
	}
	st.SetReadOnly(true)
	if !st.ReadOnly() {
		t.Fatalf("read-only flag not set")
	}
}
