package storage

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"batchledger/core/events"
	"batchledger/core/types"
)

var (
	journalHeadKey   = []byte("journal:head")
	journalEntryTag  = "journal:entry:"
	journalRecordVer = uint8(1)
)

// journalRecord is the persisted form of one emitted event. Attributes are
// stored as a key-sorted pair list because RLP has no map encoding.
type journalRecord struct {
	Version uint8
	Seq     uint64
	Unix    uint64
	Type    string
	Attrs   []journalAttr
}

type journalAttr struct {
	Key   string
	Value string
}

// Journal is an append-only persisted event stream. It satisfies the emitter
// interface of the engines so every applied operation leaves a durable audit
// record that survives restarts.
type Journal struct {
	db     Database
	seq    uint64
	nowFn  func() int64
	logger *slog.Logger
}

// OpenJournal attaches a journal to the database, resuming the sequence
// counter from the persisted head.
func OpenJournal(db Database) (*Journal, error) {
	j := &Journal{db: db, nowFn: func() int64 { return time.Now().Unix() }}
	ok, err := db.Has(journalHeadKey)
	if err != nil {
		return nil, fmt.Errorf("journal: read head: %w", err)
	}
	if ok {
		raw, err := db.Get(journalHeadKey)
		if err != nil {
			return nil, fmt.Errorf("journal: read head: %w", err)
		}
		if len(raw) != 8 {
			return nil, fmt.Errorf("journal: head record has %d bytes, want 8", len(raw))
		}
		j.seq = binary.BigEndian.Uint64(raw)
	}
	return j, nil
}

// SetLogger routes append failures to a structured logger. Emit cannot return
// an error, so failures are reported out of band.
func (j *Journal) SetLogger(logger *slog.Logger) { j.logger = logger }

// SetNowFunc overrides the record timestamp source.
func (j *Journal) SetNowFunc(now func() int64) {
	if now != nil {
		j.nowFn = now
	}
}

// Len reports the number of appended records.
func (j *Journal) Len() uint64 {
	if j == nil {
		return 0
	}
	return j.seq
}

// Emit appends one event record. The emitter contract is fire-and-forget, so
// persistence failures are logged rather than surfaced to the engines.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	record := journalRecord{
		Version: journalRecordVer,
		Seq:     j.seq + 1,
		Unix:    uint64(j.nowFn()),
		Type:    evt.EventType(),
	}
	if detailed, ok := evt.(interface{ Event() *types.Event }); ok {
		if full := detailed.Event(); full != nil {
			record.Attrs = make([]journalAttr, 0, len(full.Attributes))
			for key, value := range full.Attributes {
				record.Attrs = append(record.Attrs, journalAttr{Key: key, Value: value})
			}
			sort.Slice(record.Attrs, func(a, b int) bool {
				return record.Attrs[a].Key < record.Attrs[b].Key
			})
		}
	}
	if err := j.append(record); err != nil {
		if j.logger != nil {
			j.logger.Error("journal append failed", "type", record.Type, "seq", record.Seq, "error", err)
		}
		return
	}
	j.seq = record.Seq
}

func (j *Journal) append(record journalRecord) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("journal: encode record: %w", err)
	}
	if err := j.db.Put(entryKey(record.Seq), encoded); err != nil {
		return fmt.Errorf("journal: write record: %w", err)
	}
	head := make([]byte, 8)
	binary.BigEndian.PutUint64(head, record.Seq)
	if err := j.db.Put(journalHeadKey, head); err != nil {
		return fmt.Errorf("journal: write head: %w", err)
	}
	return nil
}

// Replay walks the journal oldest first. The callback receives the sequence
// number, the record timestamp and the reconstructed event; a non-nil callback
// error stops the walk.
func (j *Journal) Replay(fn func(seq uint64, unix int64, evt *types.Event) error) error {
	if j == nil || fn == nil {
		return nil
	}
	for seq := uint64(1); seq <= j.seq; seq++ {
		raw, err := j.db.Get(entryKey(seq))
		if err != nil {
			return fmt.Errorf("journal: read record %d: %w", seq, err)
		}
		var record journalRecord
		if err := rlp.DecodeBytes(raw, &record); err != nil {
			return fmt.Errorf("journal: decode record %d: %w", seq, err)
		}
		evt := &types.Event{Type: record.Type, Attributes: make(map[string]string, len(record.Attrs))}
		for _, attr := range record.Attrs {
			evt.Attributes[attr.Key] = attr.Value
		}
		if err := fn(record.Seq, int64(record.Unix), evt); err != nil {
			return err
		}
	}
	return nil
}

func entryKey(seq uint64) []byte {
	key := make([]byte, len(journalEntryTag)+8)
	copy(key, journalEntryTag)
	binary.BigEndian.PutUint64(key[len(journalEntryTag):], seq)
	return key
}
