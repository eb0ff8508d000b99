package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"batchledger/core/types"
)

const (
	TypeBatchIssued      = "ledger.batch.issued"
	TypeQuantityMoved    = "ledger.quantity.moved"
	TypeQuantityBurned   = "ledger.quantity.burned"
	TypeCurrencyFunded   = "ledger.currency.funded"
	TypeCurrencyDebited  = "ledger.currency.withdrawn"
	TypeCurrencyMoved    = "ledger.currency.transferred"
	TypeFeeCharged       = "ledger.fee.charged"
	TypeSettled          = "ledger.settlement.completed"
	TypeRetokenBurn      = "ledger.retokenization.burn"
	TypeRetokenMint      = "ledger.retokenization.mint"
	TypeScheduleUpdated  = "ledger.fee.schedule.updated"
	TypeReadOnlyToggled  = "ledger.readonly.toggled"
)

func addr(a [20]byte) string { return "0x" + hex.EncodeToString(a[:]) }

func uintToString(v uint64) string { return strconv.FormatUint(v, 10) }

func intToString(v int64) string { return strconv.FormatInt(v, 10) }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// BatchIssued is emitted once per standard batch issuance.
type BatchIssued struct {
	Batch     uint64
	Asset     uint32
	Issuer    [20]byte
	Recipient [20]byte
	Quantity  uint64
	IssuedAt  int64
}

func (BatchIssued) EventType() string { return TypeBatchIssued }

func (e BatchIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeBatchIssued,
		Attributes: map[string]string{
			"batch":     uintToString(e.Batch),
			"asset":     uintToString(uint64(e.Asset)),
			"issuer":    addr(e.Issuer),
			"recipient": addr(e.Recipient),
			"quantity":  uintToString(e.Quantity),
			"issuedAt":  intToString(e.IssuedAt),
		},
	}
}

// QuantityMoved is emitted for every completed asset-quantity move. Kind is
// the transfer-kind tag of the leg that triggered the move.
type QuantityMoved struct {
	Asset    uint32
	From     [20]byte
	To       [20]byte
	Quantity uint64
	Kind     string
	Splits   int
	Merges   int
}

func (QuantityMoved) EventType() string { return TypeQuantityMoved }

func (e QuantityMoved) Event() *types.Event {
	return &types.Event{
		Type: TypeQuantityMoved,
		Attributes: map[string]string{
			"asset":    uintToString(uint64(e.Asset)),
			"from":     addr(e.From),
			"to":       addr(e.To),
			"quantity": uintToString(e.Quantity),
			"kind":     e.Kind,
			"splits":   strconv.Itoa(e.Splits),
			"merges":   strconv.Itoa(e.Merges),
		},
	}
}

// QuantityBurned is emitted once per standard burn operation.
type QuantityBurned struct {
	Asset    uint32
	Owner    [20]byte
	Quantity uint64
	Tokens   int
	Full     bool
}

func (QuantityBurned) EventType() string { return TypeQuantityBurned }

func (e QuantityBurned) Event() *types.Event {
	mode := "partial"
	if e.Full {
		mode = "full"
	}
	return &types.Event{
		Type: TypeQuantityBurned,
		Attributes: map[string]string{
			"asset":    uintToString(uint64(e.Asset)),
			"owner":    addr(e.Owner),
			"quantity": uintToString(e.Quantity),
			"tokens":   strconv.Itoa(e.Tokens),
			"mode":     mode,
		},
	}
}

// CurrencyChanged captures funding, withdrawal and transfer currency moves.
type CurrencyChanged struct {
	Type     string
	Currency uint32
	From     [20]byte
	To       [20]byte
	Amount   *big.Int
	Kind     string
}

func (e CurrencyChanged) EventType() string { return e.Type }

func (e CurrencyChanged) Event() *types.Event {
	attrs := map[string]string{
		"currency": uintToString(uint64(e.Currency)),
		"amount":   formatAmount(e.Amount),
	}
	var zero [20]byte
	if e.From != zero {
		attrs["from"] = addr(e.From)
	}
	if e.To != zero {
		attrs["to"] = addr(e.To)
	}
	if e.Kind != "" {
		attrs["kind"] = e.Kind
	}
	return &types.Event{Type: e.Type, Attributes: attrs}
}

// FeeCharged is emitted for every applied fee leg. Source distinguishes the
// schedule that produced the fee (global, override, issuer, custom).
type FeeCharged struct {
	Flow     string
	Source   string
	Payer    [20]byte
	Receiver [20]byte
	Currency uint32
	Asset    uint32
	Amount   *big.Int
	Quantity uint64
}

func (FeeCharged) EventType() string { return TypeFeeCharged }

func (e FeeCharged) Event() *types.Event {
	attrs := map[string]string{
		"flow":     e.Flow,
		"source":   e.Source,
		"payer":    addr(e.Payer),
		"receiver": addr(e.Receiver),
	}
	if e.Amount != nil {
		attrs["currency"] = uintToString(uint64(e.Currency))
		attrs["amount"] = formatAmount(e.Amount)
	}
	if e.Quantity > 0 {
		attrs["asset"] = uintToString(uint64(e.Asset))
		attrs["quantity"] = uintToString(e.Quantity)
	}
	return &types.Event{Type: TypeFeeCharged, Attributes: attrs}
}

// Settled is emitted once per completed bilateral settlement.
type Settled struct {
	ID       [32]byte
	AccountA [20]byte
	AccountB [20]byte
	Legs     int
	Fees     int
}

func (Settled) EventType() string { return TypeSettled }

func (e Settled) Event() *types.Event {
	return &types.Event{
		Type: TypeSettled,
		Attributes: map[string]string{
			"id":       "0x" + hex.EncodeToString(e.ID[:]),
			"accountA": addr(e.AccountA),
			"accountB": addr(e.AccountB),
			"legs":     strconv.Itoa(e.Legs),
			"fees":     strconv.Itoa(e.Fees),
		},
	}
}

// RetokenBurn is the dedicated burn record of a retokenization. Standard burn
// events are suppressed on this path.
type RetokenBurn struct {
	Owner    [20]byte
	Asset    uint32
	Quantity uint64
	Tokens   int
}

func (RetokenBurn) EventType() string { return TypeRetokenBurn }

func (e RetokenBurn) Event() *types.Event {
	return &types.Event{
		Type: TypeRetokenBurn,
		Attributes: map[string]string{
			"owner":    addr(e.Owner),
			"asset":    uintToString(uint64(e.Asset)),
			"quantity": uintToString(e.Quantity),
			"tokens":   strconv.Itoa(e.Tokens),
		},
	}
}

// RetokenMint is the dedicated mint record of a retokenization. Standard
// issuance events are suppressed on this path.
type RetokenMint struct {
	Batch     uint64
	Asset     uint32
	Recipient [20]byte
	Quantity  uint64
}

func (RetokenMint) EventType() string { return TypeRetokenMint }

func (e RetokenMint) Event() *types.Event {
	return &types.Event{
		Type: TypeRetokenMint,
		Attributes: map[string]string{
			"batch":     uintToString(e.Batch),
			"asset":     uintToString(uint64(e.Asset)),
			"recipient": addr(e.Recipient),
			"quantity":  uintToString(e.Quantity),
		},
	}
}

// ReadOnlyToggled is emitted when an administrator engages or releases the
// global maintenance flag.
type ReadOnlyToggled struct {
	Admin   [20]byte
	Enabled bool
}

func (ReadOnlyToggled) EventType() string { return TypeReadOnlyToggled }

func (e ReadOnlyToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeReadOnlyToggled,
		Attributes: map[string]string{
			"admin":   addr(e.Admin),
			"enabled": strconv.FormatBool(e.Enabled),
		},
	}
}

// ScheduleUpdated is emitted when an administrator mutates a fee schedule.
type ScheduleUpdated struct {
	Flow   string
	TypeID uint32
	Owner  [20]byte
	Global bool
}

func (ScheduleUpdated) EventType() string { return TypeScheduleUpdated }

func (e ScheduleUpdated) Event() *types.Event {
	attrs := map[string]string{
		"flow":   e.Flow,
		"typeId": uintToString(uint64(e.TypeID)),
	}
	if e.Global {
		attrs["scope"] = "global"
	} else {
		attrs["scope"] = "owner"
		attrs["owner"] = addr(e.Owner)
	}
	return &types.Event{Type: TypeScheduleUpdated, Attributes: attrs}
}
