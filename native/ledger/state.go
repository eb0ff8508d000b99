package ledger

import "math/big"

// VolumeKind distinguishes the running global currency counters so funding
// and trading volumes stay independently auditable.
type VolumeKind uint8

const (
	VolumeFunded VolumeKind = iota
	VolumeWithdrawn
	VolumeTransferred
)

// State abstracts the single-writer ledger state consumed by the engine. The
// concrete implementation lives in core/state; tests may supply their own.
// All record-returning methods hand out defensive copies.
type State interface {
	// Snapshot captures the full mutable state and returns a restore
	// function. Engines take a snapshot at the top of every compound
	// operation and invoke restore on the first failing step.
	Snapshot() (restore func())

	AssetType(id uint32) (AssetType, bool)
	AssetTypes() []AssetType
	CurrencyType(id uint32) (CurrencyType, bool)
	CurrencyTypes() []CurrencyType

	HasAccount(addr [20]byte) bool
	EnsureAccount(addr [20]byte)

	Balance(addr [20]byte, currency uint32) *big.Int
	SetBalance(addr [20]byte, currency uint32, amount *big.Int) error
	Balances(addr [20]byte) map[uint32]*big.Int

	TokenGet(id uint64) (*Token, bool)
	TokenPut(tok *Token) error
	TokenRemove(id uint64) error
	TokensByOwner(addr [20]byte, asset uint32) []*Token
	TokenCount() int

	BatchGet(id uint64) (*Batch, bool)
	BatchPut(b *Batch) error
	NextBatchID() uint64
	NextTokenID() uint64

	AggregateAdd(addr [20]byte, asset uint32, qty uint64) error
	AggregateSub(addr [20]byte, asset uint32, qty uint64) error
	Aggregate(addr [20]byte, asset uint32) uint64
	MintedAdd(addr [20]byte, asset uint32, qty uint64) error
	BurnedAdd(addr [20]byte, asset uint32, qty uint64) error
	AccountMinted(addr [20]byte, asset uint32) uint64
	AccountBurned(addr [20]byte, asset uint32) uint64

	TotalMintedAdd(asset uint32, qty uint64) error
	TotalBurnedAdd(asset uint32, qty uint64) error
	TotalMinted(asset uint32) uint64
	TotalBurned(asset uint32) uint64

	VolumeAdd(kind VolumeKind, currency uint32, amount *big.Int)
	Volume(kind VolumeKind, currency uint32) *big.Int
}
