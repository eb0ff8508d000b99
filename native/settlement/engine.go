package settlement

import (
	"encoding/binary"
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"batchledger/core/events"
	"batchledger/core/types"
	"batchledger/native/common"
	"batchledger/native/fees"
	"batchledger/native/ledger"
	"batchledger/observability/metrics"
)

var (
	errNilState  = errors.New("settlement engine: state not configured")
	errNilLedger = errors.New("settlement engine: ledger engine not configured")
)

// State abstracts the schedule store and transaction support the orchestrator
// needs beyond the ledger engine itself.
type State interface {
	Snapshot() (restore func())
	ScheduleGet(flow fees.FlowKind, typeID uint32, owner [20]byte) (fees.Schedule, bool)
	SchedulePut(flow fees.FlowKind, typeID uint32, owner [20]byte, sched fees.Schedule) error
	FeeReceiver() [20]byte
}

type settlementEvent struct {
	evt *types.Event
}

func (e settlementEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settlementEvent) Event() *types.Event { return e.evt }

// Engine composes up to four nominal legs plus fee legs into one atomic
// settlement on top of the ledger engine's move primitive.
type Engine struct {
	state   State
	ledger  *ledger.Engine
	emitter events.Emitter
	access  common.AccessView
}

// NewEngine constructs a settlement engine bound to the supplied ledger engine.
func NewEngine(led *ledger.Engine) *Engine {
	return &Engine{
		ledger:  led,
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state State) { e.state = state }

// SetAccess configures the access-control collaborator.
func (e *Engine) SetAccess(v common.AccessView) { e.access = v }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt interface{ Event() *types.Event }) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(settlementEvent{evt: evt.Event()})
}

// SetFeeSchedule installs or replaces a fee schedule. Schedule mutation
// requires the administrator capability.
func (e *Engine) SetFeeSchedule(caller [20]byte, flow fees.FlowKind, typeID uint32, owner [20]byte, sched fees.Schedule) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.GuardAdmin(e.access, caller); err != nil {
		metrics.Ledger().OpRejected("setFeeSchedule")
		return err
	}
	if !flow.Valid() {
		return errors.New("settlement: invalid fee flow kind")
	}
	if err := e.state.SchedulePut(flow, typeID, owner, sched); err != nil {
		return err
	}
	metrics.Ledger().OpApplied("setFeeSchedule")
	e.emit(events.ScheduleUpdated{
		Flow:   flow.String(),
		TypeID: typeID,
		Owner:  owner,
		Global: owner == fees.GlobalOwner,
	})
	return nil
}

// Settle executes a bilateral exchange: up to two asset legs and two currency
// legs, plus fee legs when enabled. The whole settlement commits or none of it
// does; fee solvency is part of leg solvency and reports the same side-tagged
// errors.
func (e *Engine) Settle(sideA, sideB Side, opts Options) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := common.Guard(e.access); err != nil {
		metrics.Ledger().OpRejected("settle")
		return nil, err
	}
	if err := validateSide(sideA); err != nil {
		return nil, err
	}
	if err := validateSide(sideB); err != nil {
		return nil, err
	}
	if !sideA.assetLeg() && !sideA.currencyLeg() && !sideB.assetLeg() && !sideB.currencyLeg() {
		return nil, ErrNullTransfer
	}
	kind := opts.Kind
	if kind == "" {
		kind = KindTransfer
	}
	receipt := &Receipt{
		ID:       settlementID(sideA, sideB, opts.Nonce),
		AccountA: sideA.Account,
		AccountB: sideB.Account,
	}
	restore := e.state.Snapshot()
	fail := func(err error) (*Receipt, error) {
		restore()
		metrics.Ledger().Rollback("settle")
		return nil, err
	}

	// Nominal asset legs.
	var moveA, moveB *ledger.MoveReceipt
	if sideA.assetLeg() {
		move, err := e.ledger.MoveTagged(sideA.Account, sideA.Asset, sideA.AssetQuantity, sideB.Account, nil, kind)
		if err != nil {
			return fail(tagTokens(true, err))
		}
		moveA = move
		receipt.Legs = append(receipt.Legs, LegRecord{
			Leg: LegAssetA, Kind: kind,
			From: sideA.Account, To: sideB.Account,
			Asset: sideA.Asset, Quantity: sideA.AssetQuantity,
			Move: move,
		})
	}
	if sideB.assetLeg() {
		move, err := e.ledger.MoveTagged(sideB.Account, sideB.Asset, sideB.AssetQuantity, sideA.Account, nil, kind)
		if err != nil {
			return fail(tagTokens(false, err))
		}
		moveB = move
		receipt.Legs = append(receipt.Legs, LegRecord{
			Leg: LegAssetB, Kind: kind,
			From: sideB.Account, To: sideA.Account,
			Asset: sideB.Asset, Quantity: sideB.AssetQuantity,
			Move: move,
		})
	}

	// Nominal currency legs. The payee receives exactly the nominal amount;
	// fees are additive debits applied afterwards.
	if sideA.currencyLeg() {
		if err := e.ledger.TransferCurrency(sideA.Account, sideB.Account, sideA.Currency, sideA.CurrencyAmount, kind); err != nil {
			return fail(tagCurrency(true, err))
		}
		receipt.Legs = append(receipt.Legs, LegRecord{
			Leg: LegCurrencyA, Kind: kind,
			From: sideA.Account, To: sideB.Account,
			Currency: sideA.Currency, Amount: new(big.Int).Set(sideA.CurrencyAmount),
		})
	}
	if sideB.currencyLeg() {
		if err := e.ledger.TransferCurrency(sideB.Account, sideA.Account, sideB.Currency, sideB.CurrencyAmount, kind); err != nil {
			return fail(tagCurrency(false, err))
		}
		receipt.Legs = append(receipt.Legs, LegRecord{
			Leg: LegCurrencyB, Kind: kind,
			From: sideB.Account, To: sideA.Account,
			Currency: sideB.Currency, Amount: new(big.Int).Set(sideB.CurrencyAmount),
		})
	}

	if opts.ApplyFees {
		if sideA.assetLeg() {
			if err := e.applyAssetFees(receipt, LegAssetA, true, sideA.Account, sideB.Account, sideA.Asset, sideA.AssetQuantity, moveA, opts); err != nil {
				return fail(err)
			}
		}
		if sideB.assetLeg() {
			if err := e.applyAssetFees(receipt, LegAssetB, false, sideB.Account, sideA.Account, sideB.Asset, sideB.AssetQuantity, moveB, opts); err != nil {
				return fail(err)
			}
		}
		if sideA.currencyLeg() {
			if err := e.applyCurrencyFees(receipt, LegCurrencyA, true, sideA.Account, sideB.Account, sideA.Currency, sideA.CurrencyAmount, moveB, opts); err != nil {
				return fail(err)
			}
		}
		if sideB.currencyLeg() {
			if err := e.applyCurrencyFees(receipt, LegCurrencyB, false, sideB.Account, sideA.Account, sideB.Currency, sideB.CurrencyAmount, moveA, opts); err != nil {
				return fail(err)
			}
		}
	}

	metrics.Ledger().OpApplied("settle")
	e.emit(events.Settled{
		ID:       receipt.ID,
		AccountA: sideA.Account,
		AccountB: sideB.Account,
		Legs:     len(receipt.Legs),
		Fees:     len(receipt.Fees),
	})
	return receipt, nil
}

// applyAssetFees charges the asset-quantity fee of one leg. The fee is paid in
// asset units and routed to the issuers of the batches the nominal move drew
// from, pro rata by quantity with floor division. A mirrored schedule charges
// the counterparty as well under its own resolution.
func (e *Engine) applyAssetFees(receipt *Receipt, leg Leg, sideA bool, payer, counterparty [20]byte, asset uint32, qty uint64, move *ledger.MoveReceipt, opts Options) error {
	if override, ok := opts.FeeOverrides[leg]; ok {
		feeQty, err := quantityFromAmount(override)
		if err != nil {
			return err
		}
		return e.chargeAssetFee(receipt, leg, sideA, payer, asset, feeQty, move, SourceCustom)
	}
	sched, source := e.resolveWithSource(fees.FlowAsset, asset, payer)
	feeQty := sched.QuantityAmount(qty, ledger.MaxQuantity)
	if err := e.chargeAssetFee(receipt, leg, sideA, payer, asset, feeQty, move, source); err != nil {
		return err
	}
	if sched.Mirrored {
		other, otherSource := e.resolveWithSource(fees.FlowAsset, asset, counterparty)
		otherFee := other.QuantityAmount(qty, ledger.MaxQuantity)
		if err := e.chargeAssetFee(receipt, leg, !sideA, counterparty, asset, otherFee, move, otherSource); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) chargeAssetFee(receipt *Receipt, leg Leg, sideA bool, payer [20]byte, asset uint32, feeQty uint64, move *ledger.MoveReceipt, source string) error {
	if feeQty == 0 || move == nil || move.Quantity == 0 {
		return nil
	}
	fee := new(big.Int).SetUint64(feeQty)
	for _, portion := range move.BatchQuantities() {
		cut := fees.ProRata(fee, portion.Quantity, move.Quantity)
		if cut.Sign() == 0 {
			continue
		}
		batch, ok := e.ledger.GetBatch(portion.Batch)
		if !ok {
			continue
		}
		if fees.Exempt(payer, batch.Issuer) {
			continue
		}
		cutQty := cut.Uint64()
		if _, err := e.ledger.MoveTagged(payer, asset, cutQty, batch.Issuer, nil, KindExchangeFee); err != nil {
			return tagTokens(sideA, err)
		}
		receipt.Fees = append(receipt.Fees, FeeRecord{
			Leg: leg, Flow: fees.FlowAsset, Source: source,
			Payer: payer, Receiver: batch.Issuer,
			Asset: asset, Quantity: cutQty,
		})
		metrics.Ledger().FeeCharged(fees.FlowAsset.String(), source)
		e.emit(events.FeeCharged{
			Flow: fees.FlowAsset.String(), Source: source,
			Payer: payer, Receiver: batch.Issuer,
			Asset: asset, Quantity: cutQty,
		})
	}
	return nil
}

// applyCurrencyFees charges the currency fee of one leg additively against the
// payer. A portion of the computed fee may be carved out for the issuers of
// the batches backing the opposite asset leg, proportional to each batch's
// issuer fee share; the remainder flows to the global fee receiver. Each fee
// source applies the self-exemption rule independently.
func (e *Engine) applyCurrencyFees(receipt *Receipt, leg Leg, sideA bool, payer, counterparty [20]byte, currency uint32, amount *big.Int, oppositeMove *ledger.MoveReceipt, opts Options) error {
	if override, ok := opts.FeeOverrides[leg]; ok {
		if override == nil || override.Sign() < 0 {
			return ledger.ErrBadAmount
		}
		return e.chargeCurrencyFee(receipt, leg, sideA, payer, currency, new(big.Int).Set(override), oppositeMove, SourceCustom)
	}
	sched, source := e.resolveWithSource(fees.FlowCurrency, currency, payer)
	if err := e.chargeCurrencyFee(receipt, leg, sideA, payer, currency, sched.Amount(amount), oppositeMove, source); err != nil {
		return err
	}
	if sched.Mirrored {
		other, otherSource := e.resolveWithSource(fees.FlowCurrency, currency, counterparty)
		if err := e.chargeCurrencyFee(receipt, leg, !sideA, counterparty, currency, other.Amount(amount), oppositeMove, otherSource); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) chargeCurrencyFee(receipt *Receipt, leg Leg, sideA bool, payer [20]byte, currency uint32, fee *big.Int, oppositeMove *ledger.MoveReceipt, source string) error {
	if fee == nil || fee.Sign() <= 0 {
		return nil
	}
	remaining := new(big.Int).Set(fee)
	if oppositeMove != nil && oppositeMove.Quantity > 0 {
		for _, portion := range oppositeMove.BatchQuantities() {
			batch, ok := e.ledger.GetBatch(portion.Batch)
			if !ok || batch.IssuerShareBps == 0 {
				continue
			}
			cut := fees.IssuerCut(fees.ProRata(fee, portion.Quantity, oppositeMove.Quantity), batch.IssuerShareBps)
			if cut.Sign() == 0 || fees.Exempt(payer, batch.Issuer) {
				continue
			}
			if err := e.ledger.TransferCurrency(payer, batch.Issuer, currency, cut, KindOriginatorFee); err != nil {
				return tagCurrency(sideA, err)
			}
			remaining.Sub(remaining, cut)
			receipt.Fees = append(receipt.Fees, FeeRecord{
				Leg: leg, Flow: fees.FlowIssuerShare, Source: SourceIssuer,
				Payer: payer, Receiver: batch.Issuer,
				Currency: currency, Amount: cut,
			})
			metrics.Ledger().FeeCharged(fees.FlowIssuerShare.String(), SourceIssuer)
			e.emit(events.FeeCharged{
				Flow: fees.FlowIssuerShare.String(), Source: SourceIssuer,
				Payer: payer, Receiver: batch.Issuer,
				Currency: currency, Amount: cut,
			})
		}
	}
	receiver := e.state.FeeReceiver()
	if remaining.Sign() > 0 && !fees.Exempt(payer, receiver) {
		if err := e.ledger.TransferCurrency(payer, receiver, currency, remaining, KindExchangeFee); err != nil {
			return tagCurrency(sideA, err)
		}
		receipt.Fees = append(receipt.Fees, FeeRecord{
			Leg: leg, Flow: fees.FlowCurrency, Source: source,
			Payer: payer, Receiver: receiver,
			Currency: currency, Amount: remaining,
		})
		metrics.Ledger().FeeCharged(fees.FlowCurrency.String(), source)
		e.emit(events.FeeCharged{
			Flow: fees.FlowCurrency.String(), Source: source,
			Payer: payer, Receiver: receiver,
			Currency: currency, Amount: remaining,
		})
	}
	return nil
}

// resolveWithSource mirrors fees.Resolve but reports which tier matched so
// audit records can distinguish owner overrides from the global schedule.
func (e *Engine) resolveWithSource(flow fees.FlowKind, typeID uint32, owner [20]byte) (fees.Schedule, string) {
	if sched, ok := e.state.ScheduleGet(flow, typeID, owner); ok {
		return sched, SourceOverride
	}
	if sched, ok := e.state.ScheduleGet(flow, typeID, fees.GlobalOwner); ok {
		return sched, SourceGlobal
	}
	return fees.Schedule{}, SourceGlobal
}

func validateSide(s Side) error {
	if s.AssetQuantity > ledger.MaxQuantity {
		return ledger.ErrTypeOverflow
	}
	if s.CurrencyAmount != nil && s.CurrencyAmount.Sign() < 0 {
		return ledger.ErrBadAmount
	}
	return nil
}

func quantityFromAmount(v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 {
		return 0, ledger.ErrBadAmount
	}
	if !v.IsUint64() || v.Uint64() > ledger.MaxQuantity {
		return 0, ledger.ErrTypeOverflow
	}
	return v.Uint64(), nil
}

func tagTokens(sideA bool, err error) error {
	if !errors.Is(err, ledger.ErrInsufficientTokens) {
		return err
	}
	if sideA {
		return ErrInsufficientTokensA
	}
	return ErrInsufficientTokensB
}

func tagCurrency(sideA bool, err error) error {
	if !errors.Is(err, ledger.ErrInsufficientCurrency) {
		return err
	}
	if sideA {
		return ErrInsufficientCurrencyA
	}
	return ErrInsufficientCurrencyB
}

// settlementID derives a deterministic identifier from both side definitions
// and the caller nonce.
func settlementID(a, b Side, nonce [32]byte) [32]byte {
	buf := make([]byte, 0, 128)
	buf = appendSide(buf, a)
	buf = appendSide(buf, b)
	buf = append(buf, nonce[:]...)
	return ethcrypto.Keccak256Hash(buf)
}

func appendSide(buf []byte, s Side) []byte {
	buf = append(buf, s.Account[:]...)
	buf = binary.BigEndian.AppendUint32(buf, s.Asset)
	buf = binary.BigEndian.AppendUint64(buf, s.AssetQuantity)
	buf = binary.BigEndian.AppendUint32(buf, s.Currency)
	if s.CurrencyAmount != nil {
		buf = append(buf, s.CurrencyAmount.Bytes()...)
	}
	return buf
}
