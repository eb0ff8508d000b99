package ledger

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// MaxQuantity bounds every asset quantity handled by the engine. Quantities
// are whole units; exceeding the bound is reported as ErrTypeOverflow.
const MaxQuantity uint64 = math.MaxInt64

// AssetType classifies fungible quantity-tracked tokens. Decimals is carried
// for completeness but is always zero in the supported domain.
type AssetType struct {
	ID       uint32
	Name     string
	Decimals uint8
}

// CurrencyType describes a settlement currency. Balances are kept as
// non-negative integers denominated in Unit.
type CurrencyType struct {
	ID   uint32
	Name string
	Unit string
}

// MetadataPair is one entry of the ordered provenance metadata attached to a
// batch at issuance.
type MetadataPair struct {
	Key   string
	Value string
}

// Batch is an issuance lot. It is immutable after creation except for the
// burned counter and the fully-burned flag.
type Batch struct {
	ID             uint64
	Asset          uint32
	Issuer         [20]byte
	IssuedAt       int64
	Minted         uint64
	Burned         uint64
	IssuerShareBps uint32
	Metadata       []MetadataPair
	FullyBurned    bool
}

// Clone returns a deep copy so callers can never mutate stored batches.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	clone := *b
	if len(b.Metadata) > 0 {
		clone.Metadata = append([]MetadataPair(nil), b.Metadata...)
	}
	return &clone
}

// Token is the unit of quantity conservation. A token belongs to exactly one
// account and one batch; its current quantity only decreases, except when a
// split remainder is merged into it.
type Token struct {
	ID        uint64
	Batch     uint64
	Asset     uint32
	Owner     [20]byte
	Minted    uint64
	Current   uint64
	CreatedAt int64
}

// Clone returns a copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// SanitizeBatch validates a batch definition and returns a defensive copy.
func SanitizeBatch(b *Batch) (*Batch, error) {
	if b == nil {
		return nil, fmt.Errorf("ledger: nil batch")
	}
	clone := b.Clone()
	if clone.Minted == 0 || clone.Minted > MaxQuantity {
		return nil, fmt.Errorf("ledger: batch minted quantity out of range: %d", clone.Minted)
	}
	if clone.Burned > clone.Minted {
		return nil, fmt.Errorf("ledger: batch burned %d exceeds minted %d", clone.Burned, clone.Minted)
	}
	if clone.IssuerShareBps > 10_000 {
		return nil, fmt.Errorf("ledger: issuer share bps out of range: %d", clone.IssuerShareBps)
	}
	for i, pair := range clone.Metadata {
		if strings.TrimSpace(pair.Key) == "" {
			return nil, fmt.Errorf("ledger: batch metadata key %d empty", i)
		}
	}
	return clone, nil
}

// SanitizeToken validates a token record and returns a defensive copy.
func SanitizeToken(t *Token) (*Token, error) {
	if t == nil {
		return nil, fmt.Errorf("ledger: nil token")
	}
	clone := t.Clone()
	if clone.Minted == 0 || clone.Minted > MaxQuantity {
		return nil, fmt.Errorf("ledger: token minted quantity out of range: %d", clone.Minted)
	}
	if clone.Current > MaxQuantity {
		return nil, fmt.Errorf("ledger: token current quantity out of range: %d", clone.Current)
	}
	return clone, nil
}

// LedgerEntry is the read-only holdings view of one account: live tokens plus
// currency balances and the per-asset aggregate counters.
type LedgerEntry struct {
	Address     [20]byte
	Tokens      []*Token
	Balances    map[uint32]*big.Int
	Holdings    map[uint32]uint64
	MintedTo    map[uint32]uint64
	BurnedFrom  map[uint32]uint64
	TotalHeld   uint64
	TotalMinted uint64
	TotalBurned uint64
}

// MoveKind tags the sub-events of a single move.
type MoveKind uint8

const (
	// MoveFull consumed a source token entirely and re-homed it.
	MoveFull MoveKind = iota
	// MoveSplit carved the terminal partial quantity into a fresh token.
	MoveSplit
	// MoveMerge folded arriving quantity into an existing same-batch token of
	// the receiving account. A fully consumed source token is destroyed by the
	// merge; a split remainder never materializes as its own token.
	MoveMerge
)

func (k MoveKind) String() string {
	switch k {
	case MoveFull:
		return "full"
	case MoveSplit:
		return "split"
	case MoveMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// MoveRecord describes one step of the split/merge walk. Token is the source
// token consumed or split; Created is the freshly minted split token (zero
// when not applicable); MergedInto is the receiver token the quantity was
// folded into.
type MoveRecord struct {
	Kind       MoveKind
	Token      uint64
	Created    uint64
	MergedInto uint64
	Batch      uint64
	Quantity   uint64
}

// MoveReceipt enumerates the sub-events of a move for the caller to propagate.
type MoveReceipt struct {
	Asset    uint32
	From     [20]byte
	To       [20]byte
	Quantity uint64
	Records  []MoveRecord
}

// BatchQuantities reports how much of the moved quantity was drawn from each
// batch, in walk order. Used by fee logic to attribute issuer shares.
func (r *MoveReceipt) BatchQuantities() []BatchQuantity {
	if r == nil {
		return nil
	}
	out := make([]BatchQuantity, 0, len(r.Records))
	index := make(map[uint64]int)
	for _, rec := range r.Records {
		if i, ok := index[rec.Batch]; ok {
			out[i].Quantity += rec.Quantity
			continue
		}
		index[rec.Batch] = len(out)
		out = append(out, BatchQuantity{Batch: rec.Batch, Quantity: rec.Quantity})
	}
	return out
}

// BatchQuantity pairs a batch id with a quantity drawn from it.
type BatchQuantity struct {
	Batch    uint64
	Quantity uint64
}

// BurnRecord describes one token touched by a burn. Full marks tokens whose
// entire remaining quantity was destroyed and which left the live set.
type BurnRecord struct {
	Token    uint64
	Batch    uint64
	Quantity uint64
	Full     bool
}

// BurnReceipt summarises a completed burn.
type BurnReceipt struct {
	Owner    [20]byte
	Asset    uint32
	Quantity uint64
	Records  []BurnRecord
}

// RetokenizeBurn records one burn leg of a retokenization.
type RetokenizeBurn struct {
	Owner    [20]byte
	Asset    uint32
	Quantity uint64
	Records  []BurnRecord
}

// RetokenizeReceipt summarises the atomic burn-then-mint compound operation.
type RetokenizeReceipt struct {
	Burns     []RetokenizeBurn
	Batch     uint64
	Asset     uint32
	Minted    uint64
	Recipient [20]byte
}
