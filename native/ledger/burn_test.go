package ledger

import (
	"errors"
	"testing"

	"batchledger/native/common"
)

func TestBurnPartialThenFull(t *testing.T) {
	engine, st := newTestEngine(t)
	const issued = uint64(1_000_000_000)
	batch := mustIssue(t, engine, testAsset, issued, alice)
	token := st.TokensByOwner(alice, testAsset)[0]

	receipt, err := engine.Burn(admin, alice, testAsset, 400_000_000, nil)
	if err != nil {
		t.Fatalf("partial burn: %v", err)
	}
	if len(receipt.Records) != 1 || receipt.Records[0].Full {
		t.Fatalf("records = %+v, want one partial record", receipt.Records)
	}
	live, _ := st.TokenGet(token.ID)
	if live.Current != 600_000_000 {
		t.Fatalf("token current = %d, want 600000000", live.Current)
	}
	stored, _ := st.BatchGet(batch.ID)
	if stored.Burned != 400_000_000 || stored.FullyBurned {
		t.Fatalf("batch after partial burn = %+v", stored)
	}

	receipt, err = engine.Burn(admin, alice, testAsset, 600_000_000, nil)
	if err != nil {
		t.Fatalf("full burn: %v", err)
	}
	if !receipt.Records[0].Full {
		t.Fatalf("record should be full: %+v", receipt.Records[0])
	}
	if _, ok := st.TokenGet(token.ID); ok {
		t.Fatalf("fully burned token should leave the live set")
	}
	stored, _ = st.BatchGet(batch.ID)
	if stored.Burned != issued || !stored.FullyBurned {
		t.Fatalf("batch after full burn = %+v", stored)
	}
	if st.Aggregate(alice, testAsset) != 0 {
		t.Fatalf("aggregate = %d, want 0", st.Aggregate(alice, testAsset))
	}
	if st.AccountBurned(alice, testAsset) != issued || st.TotalBurned(testAsset) != issued {
		t.Fatalf("burn counters = %d/%d, want %d", st.AccountBurned(alice, testAsset), st.TotalBurned(testAsset), issued)
	}
}

func TestBurnRequiresAdmin(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustIssue(t, engine, testAsset, 100, alice)
	if _, err := engine.Burn(alice, alice, testAsset, 10, nil); !errors.Is(err, common.ErrRestricted) {
		t.Fatalf("err = %v, want ErrRestricted", err)
	}
}

func TestBurnInsufficientRollsBack(t *testing.T) {
	engine, st := newTestEngine(t)
	batch := mustIssue(t, engine, testAsset, 100, alice)

	if _, err := engine.Burn(admin, alice, testAsset, 101, nil); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
	stored, _ := st.BatchGet(batch.ID)
	if stored.Burned != 0 {
		t.Fatalf("batch burned mutated by failed burn: %d", stored.Burned)
	}
	if st.Aggregate(alice, testAsset) != 100 {
		t.Fatalf("aggregate mutated by failed burn")
	}
}

func TestBurnValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustIssue(t, engine, testAsset, 100, alice)

	if _, err := engine.Burn(admin, alice, testAsset, 0, nil); !errors.Is(err, ErrBadBurnQty) {
		t.Fatalf("zero qty err = %v, want ErrBadBurnQty", err)
	}
	if _, err := engine.Burn(admin, carol, testAsset, 10, nil); !errors.Is(err, ErrBadLedgerOwner) {
		t.Fatalf("unknown owner err = %v, want ErrBadLedgerOwner", err)
	}
	if _, err := engine.Burn(admin, alice, 99, 10, nil); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("unknown asset err = %v, want ErrUnknownAsset", err)
	}
}

func TestRetokenizeCombinesOwners(t *testing.T) {
	engine, st := newTestEngine(t)
	batchA := mustIssue(t, engine, testAsset, 300, alice)
	batchB := mustIssue(t, engine, testAsset, 700, bob)

	receipt, err := engine.Retokenize(admin, 2, 1000, carol, 100, []MetadataPair{{Key: "process", Value: "milling"}}, []BurnSpec{
		{Owner: alice, Asset: testAsset, Quantity: 300},
		{Owner: bob, Asset: testAsset, Quantity: 700},
	})
	if err != nil {
		t.Fatalf("retokenize: %v", err)
	}
	if len(receipt.Burns) != 2 || receipt.Minted != 1000 {
		t.Fatalf("receipt = %+v", receipt)
	}

	// Source batches are fully burned.
	for _, id := range []uint64{batchA.ID, batchB.ID} {
		batch, _ := st.BatchGet(id)
		if !batch.FullyBurned {
			t.Fatalf("batch %d not fully burned: %+v", id, batch)
		}
	}
	if st.Aggregate(alice, testAsset) != 0 || st.Aggregate(bob, testAsset) != 0 {
		t.Fatalf("source aggregates not cleared")
	}

	// One fresh batch credited to the recipient, issued by the caller.
	newBatch, ok := st.BatchGet(receipt.Batch)
	if !ok {
		t.Fatalf("new batch missing")
	}
	if newBatch.Asset != 2 || newBatch.Minted != 1000 || newBatch.Issuer != admin {
		t.Fatalf("new batch = %+v", newBatch)
	}
	if newBatch.IssuerShareBps != 100 {
		t.Fatalf("issuer share = %d, want 100", newBatch.IssuerShareBps)
	}
	if st.Aggregate(carol, 2) != 1000 {
		t.Fatalf("recipient aggregate = %d, want 1000", st.Aggregate(carol, 2))
	}
}

func TestRetokenizeRequiresRegisteredRecipient(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustIssue(t, engine, testAsset, 100, alice)
	stranger := [20]byte{0xee}

	_, err := engine.Retokenize(admin, 2, 100, stranger, 0, nil, []BurnSpec{
		{Owner: alice, Asset: testAsset, Quantity: 100},
	})
	if !errors.Is(err, common.ErrUnknownEntity) {
		t.Fatalf("err = %v, want ErrUnknownEntity", err)
	}
}

func TestRetokenizeAtomicOnBurnFailure(t *testing.T) {
	engine, st := newTestEngine(t)
	mustIssue(t, engine, testAsset, 300, alice)
	mustIssue(t, engine, testAsset, 100, bob)

	// The second burn leg exceeds bob's holdings; alice's burn must unwind.
	_, err := engine.Retokenize(admin, 2, 1000, carol, 0, nil, []BurnSpec{
		{Owner: alice, Asset: testAsset, Quantity: 300},
		{Owner: bob, Asset: testAsset, Quantity: 700},
	})
	if !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
	if st.Aggregate(alice, testAsset) != 300 || st.Aggregate(bob, testAsset) != 100 {
		t.Fatalf("aggregates mutated by failed retokenization")
	}
	if st.TotalBurned(testAsset) != 0 {
		t.Fatalf("burn counters mutated by failed retokenization")
	}
	if st.Aggregate(carol, 2) != 0 {
		t.Fatalf("mint leaked from failed retokenization")
	}
}

func TestRetokenizeEmitsDedicatedEvents(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustIssue(t, engine, testAsset, 100, alice)

	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	if _, err := engine.Retokenize(admin, 2, 50, bob, 0, nil, []BurnSpec{
		{Owner: alice, Asset: testAsset, Quantity: 100},
	}); err != nil {
		t.Fatalf("retokenize: %v", err)
	}

	seen := emitter.typesSeen()
	want := map[string]bool{}
	for _, typ := range seen {
		want[typ] = true
	}
	if !want["ledger.retokenization.burn"] || !want["ledger.retokenization.mint"] {
		t.Fatalf("event types = %v, want retokenization burn and mint", seen)
	}
	if want["ledger.batch.issued"] || want["ledger.quantity.burned"] {
		t.Fatalf("standard events must be suppressed on the retokenization path: %v", seen)
	}
}
