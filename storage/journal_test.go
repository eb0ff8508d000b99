package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"batchledger/core/types"
)

type testEvent struct {
	typ   string
	attrs map[string]string
}

func (e testEvent) EventType() string { return e.typ }

func (e testEvent) Event() *types.Event {
	return &types.Event{Type: e.typ, Attributes: e.attrs}
}

func TestJournalAppendAndReplay(t *testing.T) {
	db := NewMemDB()
	journal, err := OpenJournal(db)
	require.NoError(t, err)
	journal.SetNowFunc(func() int64 { return 42 })

	journal.Emit(testEvent{typ: "ledger.batch.issued", attrs: map[string]string{"batch": "1", "quantity": "100"}})
	journal.Emit(testEvent{typ: "ledger.quantity.moved", attrs: map[string]string{"from": "0xa1", "to": "0xb0"}})
	require.Equal(t, uint64(2), journal.Len())

	var seqs []uint64
	var typesSeen []string
	err = journal.Replay(func(seq uint64, unix int64, evt *types.Event) error {
		seqs = append(seqs, seq)
		typesSeen = append(typesSeen, evt.Type)
		require.Equal(t, int64(42), unix)
		if evt.Type == "ledger.batch.issued" {
			require.Equal(t, "100", evt.Attributes["quantity"])
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, seqs)
	require.Equal(t, []string{"ledger.batch.issued", "ledger.quantity.moved"}, typesSeen)
}

func TestJournalResumesSequenceAcrossReopen(t *testing.T) {
	db := NewMemDB()
	journal, err := OpenJournal(db)
	require.NoError(t, err)
	journal.Emit(testEvent{typ: "ledger.currency.funded", attrs: map[string]string{"amount": "5"}})
	require.Equal(t, uint64(1), journal.Len())

	reopened, err := OpenJournal(db)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reopened.Len())

	reopened.Emit(testEvent{typ: "ledger.currency.withdrawn", attrs: nil})
	require.Equal(t, uint64(2), reopened.Len())

	var typesSeen []string
	err = reopened.Replay(func(seq uint64, unix int64, evt *types.Event) error {
		typesSeen = append(typesSeen, evt.Type)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ledger.currency.funded", "ledger.currency.withdrawn"}, typesSeen)
}

func TestJournalEventWithoutAttributes(t *testing.T) {
	db := NewMemDB()
	journal, err := OpenJournal(db)
	require.NoError(t, err)

	journal.Emit(testEvent{typ: "ledger.readonly.toggled"})
	err = journal.Replay(func(seq uint64, unix int64, evt *types.Event) error {
		require.Equal(t, "ledger.readonly.toggled", evt.Type)
		require.Empty(t, evt.Attributes)
		return nil
	})
	require.NoError(t, err)
}
