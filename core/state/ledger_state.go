package state

import (
	"fmt"
	"math/big"
	"sort"

	"batchledger/native/fees"
	"batchledger/native/ledger"
)

// account is the mutable per-account record: currency balances, the live
// token id set, and the aggregate quantity counters.
type account struct {
	balances map[uint32]*big.Int
	tokens   map[uint64]struct{}
	holdings map[uint32]uint64
	minted   map[uint32]uint64
	burned   map[uint32]uint64
}

func newAccount() *account {
	return &account{
		balances: make(map[uint32]*big.Int),
		tokens:   make(map[uint64]struct{}),
		holdings: make(map[uint32]uint64),
		minted:   make(map[uint32]uint64),
		burned:   make(map[uint32]uint64),
	}
}

func (a *account) clone() *account {
	clone := newAccount()
	for cur, bal := range a.balances {
		clone.balances[cur] = new(big.Int).Set(bal)
	}
	for id := range a.tokens {
		clone.tokens[id] = struct{}{}
	}
	for asset, qty := range a.holdings {
		clone.holdings[asset] = qty
	}
	for asset, qty := range a.minted {
		clone.minted[asset] = qty
	}
	for asset, qty := range a.burned {
		clone.burned[asset] = qty
	}
	return clone
}

type scheduleKey struct {
	flow   fees.FlowKind
	typeID uint32
	owner  [20]byte
}

type volumeKey struct {
	kind     ledger.VolumeKind
	currency uint32
}

// LedgerState is the explicit context object owning all mutable ledger state.
// It is constructed once, mutated in place by the engines for the process
// lifetime, and assumes a single logical thread of control: the caller
// serializes all mutating calls.
type LedgerState struct {
	assets      map[uint32]ledger.AssetType
	currencies  map[uint32]ledger.CurrencyType
	accounts    map[[20]byte]*account
	tokens      map[uint64]*ledger.Token
	batches     map[uint64]*ledger.Batch
	schedules   map[scheduleKey]fees.Schedule
	volumes     map[volumeKey]*big.Int
	totalMinted map[uint32]uint64
	totalBurned map[uint32]uint64
	nextToken   uint64
	nextBatch   uint64

	feeReceiver [20]byte
	admins      map[[20]byte]struct{}
	entities    map[[20]byte]struct{}
	readOnly    bool
}

// NewLedgerState constructs an empty state. Asset and currency types, the fee
// receiver, administrators and entities are registered before the engines
// start mutating.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		assets:      make(map[uint32]ledger.AssetType),
		currencies:  make(map[uint32]ledger.CurrencyType),
		accounts:    make(map[[20]byte]*account),
		tokens:      make(map[uint64]*ledger.Token),
		batches:     make(map[uint64]*ledger.Batch),
		schedules:   make(map[scheduleKey]fees.Schedule),
		volumes:     make(map[volumeKey]*big.Int),
		totalMinted: make(map[uint32]uint64),
		totalBurned: make(map[uint32]uint64),
		admins:      make(map[[20]byte]struct{}),
		entities:    make(map[[20]byte]struct{}),
	}
}

// --- registration / genesis surface ---

// RegisterAssetType installs an asset type. Ids are caller-assigned, non-zero
// and unique.
func (s *LedgerState) RegisterAssetType(at ledger.AssetType) error {
	if at.ID == 0 {
		return fmt.Errorf("state: asset type id must be non-zero")
	}
	if _, exists := s.assets[at.ID]; exists {
		return fmt.Errorf("state: asset type %d already registered", at.ID)
	}
	s.assets[at.ID] = at
	return nil
}

// RegisterCurrencyType installs a currency type.
func (s *LedgerState) RegisterCurrencyType(ct ledger.CurrencyType) error {
	if ct.ID == 0 {
		return fmt.Errorf("state: currency type id must be non-zero")
	}
	if _, exists := s.currencies[ct.ID]; exists {
		return fmt.Errorf("state: currency type %d already registered", ct.ID)
	}
	s.currencies[ct.ID] = ct
	return nil
}

// SetFeeReceiver configures the account credited with schedule-based fees.
func (s *LedgerState) SetFeeReceiver(addr [20]byte) { s.feeReceiver = addr }

// AddAdministrator grants the administrator capability.
func (s *LedgerState) AddAdministrator(addr [20]byte) {
	s.admins[addr] = struct{}{}
}

// RegisterEntity records an account as a classified ledger participant.
func (s *LedgerState) RegisterEntity(addr [20]byte) {
	s.entities[addr] = struct{}{}
}

// SetReadOnly toggles the global mutation lock.
func (s *LedgerState) SetReadOnly(v bool) { s.readOnly = v }

// --- common.AccessView / common.EntityView ---

func (s *LedgerState) ReadOnly() bool { return s.readOnly }

func (s *LedgerState) IsAdministrator(addr [20]byte) bool {
	_, ok := s.admins[addr]
	return ok
}

func (s *LedgerState) HasEntity(addr [20]byte) bool {
	_, ok := s.entities[addr]
	return ok
}

// --- transaction support ---

type snapshot struct {
	accounts    map[[20]byte]*account
	tokens      map[uint64]*ledger.Token
	batches     map[uint64]*ledger.Batch
	schedules   map[scheduleKey]fees.Schedule
	volumes     map[volumeKey]*big.Int
	totalMinted map[uint32]uint64
	totalBurned map[uint32]uint64
	nextToken   uint64
	nextBatch   uint64
}

// Snapshot deep-copies the mutable state and returns a restore function.
// There is no native rollback primitive to lean on; every compound engine
// operation brackets itself with this.
func (s *LedgerState) Snapshot() (restore func()) {
	snap := &snapshot{
		accounts:    make(map[[20]byte]*account, len(s.accounts)),
		tokens:      make(map[uint64]*ledger.Token, len(s.tokens)),
		batches:     make(map[uint64]*ledger.Batch, len(s.batches)),
		schedules:   make(map[scheduleKey]fees.Schedule, len(s.schedules)),
		volumes:     make(map[volumeKey]*big.Int, len(s.volumes)),
		totalMinted: make(map[uint32]uint64, len(s.totalMinted)),
		totalBurned: make(map[uint32]uint64, len(s.totalBurned)),
		nextToken:   s.nextToken,
		nextBatch:   s.nextBatch,
	}
	for addr, acc := range s.accounts {
		snap.accounts[addr] = acc.clone()
	}
	for id, tok := range s.tokens {
		snap.tokens[id] = tok.Clone()
	}
	for id, batch := range s.batches {
		snap.batches[id] = batch.Clone()
	}
	for key, sched := range s.schedules {
		snap.schedules[key] = sched
	}
	for key, vol := range s.volumes {
		snap.volumes[key] = new(big.Int).Set(vol)
	}
	for asset, qty := range s.totalMinted {
		snap.totalMinted[asset] = qty
	}
	for asset, qty := range s.totalBurned {
		snap.totalBurned[asset] = qty
	}
	return func() {
		s.accounts = snap.accounts
		s.tokens = snap.tokens
		s.batches = snap.batches
		s.schedules = snap.schedules
		s.volumes = snap.volumes
		s.totalMinted = snap.totalMinted
		s.totalBurned = snap.totalBurned
		s.nextToken = snap.nextToken
		s.nextBatch = snap.nextBatch
	}
}

// --- type registries ---

func (s *LedgerState) AssetType(id uint32) (ledger.AssetType, bool) {
	at, ok := s.assets[id]
	return at, ok
}

func (s *LedgerState) AssetTypes() []ledger.AssetType {
	out := make([]ledger.AssetType, 0, len(s.assets))
	for _, at := range s.assets {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *LedgerState) CurrencyType(id uint32) (ledger.CurrencyType, bool) {
	ct, ok := s.currencies[id]
	return ct, ok
}

func (s *LedgerState) CurrencyTypes() []ledger.CurrencyType {
	out := make([]ledger.CurrencyType, 0, len(s.currencies))
	for _, ct := range s.currencies {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- accounts and balances ---

func (s *LedgerState) HasAccount(addr [20]byte) bool {
	_, ok := s.accounts[addr]
	return ok
}

func (s *LedgerState) EnsureAccount(addr [20]byte) {
	if _, ok := s.accounts[addr]; !ok {
		s.accounts[addr] = newAccount()
	}
}

func (s *LedgerState) Balance(addr [20]byte, currency uint32) *big.Int {
	acc, ok := s.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := acc.balances[currency]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (s *LedgerState) SetBalance(addr [20]byte, currency uint32, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	s.EnsureAccount(addr)
	s.accounts[addr].balances[currency] = new(big.Int).Set(amount)
	return nil
}

func (s *LedgerState) Balances(addr [20]byte) map[uint32]*big.Int {
	out := make(map[uint32]*big.Int)
	acc, ok := s.accounts[addr]
	if !ok {
		return out
	}
	for cur, bal := range acc.balances {
		out[cur] = new(big.Int).Set(bal)
	}
	return out
}

// --- tokens ---

func (s *LedgerState) TokenGet(id uint64) (*ledger.Token, bool) {
	tok, ok := s.tokens[id]
	if !ok {
		return nil, false
	}
	return tok.Clone(), true
}

func (s *LedgerState) TokenPut(tok *ledger.Token) error {
	sanitized, err := ledger.SanitizeToken(tok)
	if err != nil {
		return err
	}
	if existing, ok := s.tokens[sanitized.ID]; ok && existing.Owner != sanitized.Owner {
		if acc, ok := s.accounts[existing.Owner]; ok {
			delete(acc.tokens, sanitized.ID)
		}
	}
	s.EnsureAccount(sanitized.Owner)
	s.accounts[sanitized.Owner].tokens[sanitized.ID] = struct{}{}
	s.tokens[sanitized.ID] = sanitized
	return nil
}

func (s *LedgerState) TokenRemove(id uint64) error {
	tok, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("state: token %d not found", id)
	}
	if acc, ok := s.accounts[tok.Owner]; ok {
		delete(acc.tokens, id)
	}
	delete(s.tokens, id)
	return nil
}

// TokensByOwner returns copies of the owner's live tokens, oldest first.
// Asset id zero selects all asset types.
func (s *LedgerState) TokensByOwner(addr [20]byte, asset uint32) []*ledger.Token {
	acc, ok := s.accounts[addr]
	if !ok {
		return nil
	}
	out := make([]*ledger.Token, 0, len(acc.tokens))
	for id := range acc.tokens {
		tok, ok := s.tokens[id]
		if !ok {
			continue
		}
		if asset != 0 && tok.Asset != asset {
			continue
		}
		out = append(out, tok.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TokenCount reports the number of live token records.
func (s *LedgerState) TokenCount() int { return len(s.tokens) }

// --- batches ---

func (s *LedgerState) BatchGet(id uint64) (*ledger.Batch, bool) {
	batch, ok := s.batches[id]
	if !ok {
		return nil, false
	}
	return batch.Clone(), true
}

func (s *LedgerState) BatchPut(b *ledger.Batch) error {
	sanitized, err := ledger.SanitizeBatch(b)
	if err != nil {
		return err
	}
	s.batches[sanitized.ID] = sanitized
	return nil
}

// NextBatchID allocates a monotonic batch id. Ids are never reused.
func (s *LedgerState) NextBatchID() uint64 {
	s.nextBatch++
	return s.nextBatch
}

// NextTokenID allocates a monotonic token id. Ids are never reused; a
// destroyed token is dropped from the live index, not recycled.
func (s *LedgerState) NextTokenID() uint64 {
	s.nextToken++
	return s.nextToken
}

// --- aggregate counters ---

func (s *LedgerState) AggregateAdd(addr [20]byte, asset uint32, qty uint64) error {
	s.EnsureAccount(addr)
	acc := s.accounts[addr]
	if acc.holdings[asset] > ledger.MaxQuantity-qty {
		return ledger.ErrTypeOverflow
	}
	acc.holdings[asset] += qty
	return nil
}

func (s *LedgerState) AggregateSub(addr [20]byte, asset uint32, qty uint64) error {
	acc, ok := s.accounts[addr]
	if !ok || acc.holdings[asset] < qty {
		return fmt.Errorf("state: aggregate underflow for asset %d", asset)
	}
	acc.holdings[asset] -= qty
	return nil
}

func (s *LedgerState) Aggregate(addr [20]byte, asset uint32) uint64 {
	acc, ok := s.accounts[addr]
	if !ok {
		return 0
	}
	return acc.holdings[asset]
}

func (s *LedgerState) MintedAdd(addr [20]byte, asset uint32, qty uint64) error {
	s.EnsureAccount(addr)
	acc := s.accounts[addr]
	if acc.minted[asset] > ledger.MaxQuantity-qty {
		return ledger.ErrTypeOverflow
	}
	acc.minted[asset] += qty
	return nil
}

func (s *LedgerState) BurnedAdd(addr [20]byte, asset uint32, qty uint64) error {
	s.EnsureAccount(addr)
	acc := s.accounts[addr]
	if acc.burned[asset] > ledger.MaxQuantity-qty {
		return ledger.ErrTypeOverflow
	}
	acc.burned[asset] += qty
	return nil
}

func (s *LedgerState) AccountMinted(addr [20]byte, asset uint32) uint64 {
	acc, ok := s.accounts[addr]
	if !ok {
		return 0
	}
	return acc.minted[asset]
}

func (s *LedgerState) AccountBurned(addr [20]byte, asset uint32) uint64 {
	acc, ok := s.accounts[addr]
	if !ok {
		return 0
	}
	return acc.burned[asset]
}

func (s *LedgerState) TotalMintedAdd(asset uint32, qty uint64) error {
	if s.totalMinted[asset] > ledger.MaxQuantity-qty {
		return ledger.ErrTypeOverflow
	}
	s.totalMinted[asset] += qty
	return nil
}

func (s *LedgerState) TotalBurnedAdd(asset uint32, qty uint64) error {
	if s.totalBurned[asset] > ledger.MaxQuantity-qty {
		return ledger.ErrTypeOverflow
	}
	s.totalBurned[asset] += qty
	return nil
}

func (s *LedgerState) TotalMinted(asset uint32) uint64 { return s.totalMinted[asset] }

func (s *LedgerState) TotalBurned(asset uint32) uint64 { return s.totalBurned[asset] }

// --- volume counters ---

func (s *LedgerState) VolumeAdd(kind ledger.VolumeKind, currency uint32, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	key := volumeKey{kind: kind, currency: currency}
	if vol, ok := s.volumes[key]; ok {
		vol.Add(vol, amount)
		return
	}
	s.volumes[key] = new(big.Int).Set(amount)
}

func (s *LedgerState) Volume(kind ledger.VolumeKind, currency uint32) *big.Int {
	if vol, ok := s.volumes[volumeKey{kind: kind, currency: currency}]; ok {
		return new(big.Int).Set(vol)
	}
	return big.NewInt(0)
}

// --- fee schedules ---

func (s *LedgerState) ScheduleGet(flow fees.FlowKind, typeID uint32, owner [20]byte) (fees.Schedule, bool) {
	sched, ok := s.schedules[scheduleKey{flow: flow, typeID: typeID, owner: owner}]
	return sched, ok
}

func (s *LedgerState) SchedulePut(flow fees.FlowKind, typeID uint32, owner [20]byte, sched fees.Schedule) error {
	if !flow.Valid() {
		return fmt.Errorf("state: invalid fee flow kind %d", flow)
	}
	s.schedules[scheduleKey{flow: flow, typeID: typeID, owner: owner}] = sched
	return nil
}

func (s *LedgerState) FeeReceiver() [20]byte { return s.feeReceiver }
