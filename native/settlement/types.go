package settlement

import (
	"errors"
	"fmt"
	"math/big"

	"batchledger/native/fees"
	"batchledger/native/ledger"
)

// Transfer-kind tags attached to every leg for downstream auditing.
const (
	KindTransfer      = "transfer"
	KindExchangeFee   = "exchangeFee"
	KindOriginatorFee = "originatorFee"
	KindOther         = "other"
)

var (
	// ErrNullTransfer rejects a settlement where every quantity and amount on
	// both sides is zero.
	ErrNullTransfer = errors.New("settlement: transfer has no non-zero leg")

	// Side-tagged solvency errors. They wrap the generic ledger sentinels so
	// errors.Is matches either form.
	ErrInsufficientTokensA   = fmt.Errorf("%w (side A)", ledger.ErrInsufficientTokens)
	ErrInsufficientTokensB   = fmt.Errorf("%w (side B)", ledger.ErrInsufficientTokens)
	ErrInsufficientCurrencyA = fmt.Errorf("%w (side A)", ledger.ErrInsufficientCurrency)
	ErrInsufficientCurrencyB = fmt.Errorf("%w (side B)", ledger.ErrInsufficientCurrency)
)

// Side describes one party's consideration: an optional asset leg and an
// optional currency leg, both flowing to the counterparty.
type Side struct {
	Account        [20]byte
	Asset          uint32
	AssetQuantity  uint64
	Currency       uint32
	CurrencyAmount *big.Int
}

func (s Side) assetLeg() bool { return s.AssetQuantity > 0 }

func (s Side) currencyLeg() bool {
	return s.CurrencyAmount != nil && s.CurrencyAmount.Sign() > 0
}

// Leg identifies one of the up-to-four nominal legs of a settlement.
type Leg uint8

const (
	LegAssetA Leg = iota
	LegAssetB
	LegCurrencyA
	LegCurrencyB
)

func (l Leg) String() string {
	switch l {
	case LegAssetA:
		return "assetA"
	case LegAssetB:
		return "assetB"
	case LegCurrencyA:
		return "currencyA"
	case LegCurrencyB:
		return "currencyB"
	default:
		return "unknown"
	}
}

// Options tune a settlement call.
type Options struct {
	// ApplyFees enables schedule resolution and fee legs.
	ApplyFees bool
	// Kind overrides the transfer-kind tag of the nominal legs; empty means
	// KindTransfer. Initialization-only moves with no consideration use
	// KindOther.
	Kind string
	// Nonce disambiguates otherwise identical settlements in the derived id.
	Nonce [32]byte
	// FeeOverrides replaces schedule-based computation for a leg with a flat
	// caller-supplied amount. Asset-leg overrides are interpreted as whole
	// quantity units. The issuer fee-share carve-out still applies.
	FeeOverrides map[Leg]*big.Int
}

// LegRecord is the audit record of one settled nominal leg.
type LegRecord struct {
	Leg      Leg
	Kind     string
	From     [20]byte
	To       [20]byte
	Asset    uint32
	Quantity uint64
	Currency uint32
	Amount   *big.Int
	Move     *ledger.MoveReceipt
}

// FeeRecord is the audit record of one applied fee leg.
type FeeRecord struct {
	Leg      Leg
	Flow     fees.FlowKind
	Source   string
	Payer    [20]byte
	Receiver [20]byte
	Asset    uint32
	Quantity uint64
	Currency uint32
	Amount   *big.Int
}

// Fee sources recorded on FeeRecord and the fee event.
const (
	SourceGlobal   = "global"
	SourceOverride = "override"
	SourceCustom   = "custom"
	SourceIssuer   = "issuer"
)

// Receipt summarises one atomic settlement.
type Receipt struct {
	ID       [32]byte
	AccountA [20]byte
	AccountB [20]byte
	Legs     []LegRecord
	Fees     []FeeRecord
}
