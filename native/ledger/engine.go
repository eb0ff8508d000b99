package ledger

import (
	"errors"
	"math/big"
	"sort"
	"time"

	"batchledger/core/events"
	"batchledger/core/types"
	"batchledger/native/common"
	"batchledger/observability/metrics"
)

var errNilState = errors.New("ledger engine: state not configured")

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Engine owns every quantity and balance mutation. All callers, including the
// fungible-token adapter and the settlement orchestrator, route state changes
// through it so the conservation invariants hold.
type Engine struct {
	state    State
	emitter  events.Emitter
	access   common.AccessView
	entities common.EntityView
	nowFn    func() int64
}

// NewEngine creates a ledger engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetAccess configures the access-control collaborator consulted before any
// mutation.
func (e *Engine) SetAccess(v common.AccessView) { e.access = v }

// SetEntities configures the identity-registry collaborator.
func (e *Engine) SetEntities(v common.EntityView) { e.entities = v }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt interface{ Event() *types.Event }) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: evt.Event()})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Access returns the configured access view so composed engines can share it.
func (e *Engine) Access() common.AccessView {
	if e == nil {
		return nil
	}
	return e.access
}

// Entities returns the configured entity view.
func (e *Engine) Entities() common.EntityView {
	if e == nil {
		return nil
	}
	return e.entities
}

// SetReadOnly engages or releases the global maintenance flag. The toggle
// requires the administrator capability but skips the read-only guard, so an
// engaged flag can be released again through the same path.
func (e *Engine) SetReadOnly(caller [20]byte, enabled bool) error {
	if e == nil {
		return errNilState
	}
	ctl, ok := e.access.(common.AccessControl)
	if !ok {
		return common.ErrStaticAccess
	}
	if !ctl.IsAdministrator(caller) {
		metrics.Ledger().OpRejected("setReadOnly")
		return common.ErrRestricted
	}
	if ctl.ReadOnly() == enabled {
		return nil
	}
	ctl.SetReadOnly(enabled)
	metrics.Ledger().OpApplied("setReadOnly")
	e.emit(events.ReadOnlyToggled{Admin: caller, Enabled: enabled})
	return nil
}

// Credit adds funds to an account balance. This is the funding path; the
// global funded counter tracks it separately from trading volume.
func (e *Engine) Credit(addr [20]byte, currency uint32, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.access); err != nil {
		metrics.Ledger().OpRejected("credit")
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrBadAmount
	}
	if _, ok := e.state.CurrencyType(currency); !ok {
		return ErrUnknownCurrency
	}
	if amount.Sign() == 0 {
		return nil
	}
	e.state.EnsureAccount(addr)
	balance := e.state.Balance(addr, currency)
	if err := e.state.SetBalance(addr, currency, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	e.state.VolumeAdd(VolumeFunded, currency, amount)
	metrics.Ledger().OpApplied("credit")
	e.emit(events.CurrencyChanged{
		Type:     events.TypeCurrencyFunded,
		Currency: currency,
		To:       addr,
		Amount:   new(big.Int).Set(amount),
	})
	return nil
}

// Debit removes funds from an account balance, failing with
// ErrInsufficientCurrency when the balance cannot cover the amount. This is
// the withdrawal path.
func (e *Engine) Debit(addr [20]byte, currency uint32, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.access); err != nil {
		metrics.Ledger().OpRejected("debit")
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrBadAmount
	}
	if _, ok := e.state.CurrencyType(currency); !ok {
		return ErrUnknownCurrency
	}
	if !e.state.HasAccount(addr) {
		return ErrBadLedgerOwner
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance := e.state.Balance(addr, currency)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientCurrency
	}
	if err := e.state.SetBalance(addr, currency, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	e.state.VolumeAdd(VolumeWithdrawn, currency, amount)
	metrics.Ledger().OpApplied("debit")
	e.emit(events.CurrencyChanged{
		Type:     events.TypeCurrencyDebited,
		Currency: currency,
		From:     addr,
		Amount:   new(big.Int).Set(amount),
	})
	return nil
}

// TransferCurrency moves funds between two accounts in one step. Shortfalls
// fail with ErrInsufficientCurrency before any mutation. The transferred
// counter tracks this path so trading volume stays separate from funding.
func (e *Engine) TransferCurrency(from, to [20]byte, currency uint32, amount *big.Int, kind string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.access); err != nil {
		metrics.Ledger().OpRejected("transferCurrency")
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrBadAmount
	}
	if _, ok := e.state.CurrencyType(currency); !ok {
		return ErrUnknownCurrency
	}
	if !e.state.HasAccount(from) {
		return ErrBadLedgerOwner
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance := e.state.Balance(from, currency)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientCurrency
	}
	e.state.EnsureAccount(to)
	if err := e.state.SetBalance(from, currency, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance := e.state.Balance(to, currency)
	if err := e.state.SetBalance(to, currency, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	e.state.VolumeAdd(VolumeTransferred, currency, amount)
	metrics.Ledger().OpApplied("transferCurrency")
	e.emit(events.CurrencyChanged{
		Type:     events.TypeCurrencyMoved,
		Currency: currency,
		From:     from,
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Kind:     kind,
	})
	return nil
}

// AggregateQuantity reports the aggregate live quantity an account holds for
// the supplied asset type.
func (e *Engine) AggregateQuantity(addr [20]byte, asset uint32) uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.Aggregate(addr, asset)
}

// Entry returns the full read-only holdings view of an account. The second
// return reports whether the account has any ledger presence.
func (e *Engine) Entry(addr [20]byte) (*LedgerEntry, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	if !e.state.HasAccount(addr) {
		return nil, false
	}
	tokens := e.state.TokensByOwner(addr, 0)
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	entry := &LedgerEntry{
		Address:    addr,
		Tokens:     tokens,
		Balances:   e.state.Balances(addr),
		Holdings:   make(map[uint32]uint64),
		MintedTo:   make(map[uint32]uint64),
		BurnedFrom: make(map[uint32]uint64),
	}
	for _, at := range e.state.AssetTypes() {
		if held := e.state.Aggregate(addr, at.ID); held > 0 {
			entry.Holdings[at.ID] = held
			entry.TotalHeld += held
		}
		if minted := e.state.AccountMinted(addr, at.ID); minted > 0 {
			entry.MintedTo[at.ID] = minted
			entry.TotalMinted += minted
		}
		if burned := e.state.AccountBurned(addr, at.ID); burned > 0 {
			entry.BurnedFrom[at.ID] = burned
			entry.TotalBurned += burned
		}
	}
	return entry, true
}

// GetToken returns a copy of a live token record.
func (e *Engine) GetToken(id uint64) (*Token, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.TokenGet(id)
}
