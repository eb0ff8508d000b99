package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"batchledger/core/state"
	"batchledger/native/fees"
	"batchledger/native/ledger"
)

// Genesis describes the initial ledger contents: the type registries, the
// capability lists and the starting fee schedules. Token batches are never
// part of genesis; quantity only enters the ledger through issuance.
type Genesis struct {
	FeeReceiver    string                `toml:"FeeReceiver"`
	Administrators []string              `toml:"Administrators"`
	Entities       []string              `toml:"Entities"`
	Assets         []AssetConfig         `toml:"asset"`
	Currencies     []CurrencyConfig      `toml:"currency"`
	Fees           []fees.ScheduleConfig `toml:"fee"`
	Balances       []BalanceConfig       `toml:"balance"`
}

type AssetConfig struct {
	ID       uint32 `toml:"id"`
	Name     string `toml:"name"`
	Decimals uint8  `toml:"decimals"`
}

type CurrencyConfig struct {
	ID   uint32 `toml:"id"`
	Name string `toml:"name"`
	Unit string `toml:"unit"`
}

type BalanceConfig struct {
	Account  string `toml:"account"`
	Currency uint32 `toml:"currency"`
	Amount   string `toml:"amount"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	gen := &Genesis{}
	meta, err := toml.DecodeFile(path, gen)
	if err != nil {
		return nil, fmt.Errorf("genesis file %s: %w", path, err)
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("genesis file %s: unknown key %q", path, undecoded.String())
	}
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("genesis file %s: %w", path, err)
	}
	return gen, nil
}

// Validate checks internal consistency without touching any state.
func (g *Genesis) Validate() error {
	assetIDs := make(map[uint32]struct{}, len(g.Assets))
	for _, asset := range g.Assets {
		if asset.ID == 0 {
			return fmt.Errorf("asset type %q requires a non-zero id", asset.Name)
		}
		if _, dup := assetIDs[asset.ID]; dup {
			return fmt.Errorf("duplicate asset type id %d", asset.ID)
		}
		assetIDs[asset.ID] = struct{}{}
	}
	currencyIDs := make(map[uint32]struct{}, len(g.Currencies))
	for _, currency := range g.Currencies {
		if currency.ID == 0 {
			return fmt.Errorf("currency type %q requires a non-zero id", currency.Name)
		}
		if _, dup := currencyIDs[currency.ID]; dup {
			return fmt.Errorf("duplicate currency type id %d", currency.ID)
		}
		currencyIDs[currency.ID] = struct{}{}
	}
	if strings.TrimSpace(g.FeeReceiver) != "" {
		if _, err := parseAddress(g.FeeReceiver); err != nil {
			return fmt.Errorf("fee receiver: %w", err)
		}
	}
	for _, admin := range g.Administrators {
		if _, err := parseAddress(admin); err != nil {
			return fmt.Errorf("administrator: %w", err)
		}
	}
	for _, entity := range g.Entities {
		if _, err := parseAddress(entity); err != nil {
			return fmt.Errorf("entity: %w", err)
		}
	}
	for i, entry := range g.Fees {
		flow, typeID, _, err := entry.Key()
		if err != nil {
			return fmt.Errorf("fee entry %d: %w", i, err)
		}
		switch flow {
		case fees.FlowAsset:
			if _, ok := assetIDs[typeID]; !ok {
				return fmt.Errorf("fee entry %d references unknown asset type %d", i, typeID)
			}
		case fees.FlowCurrency:
			if _, ok := currencyIDs[typeID]; !ok {
				return fmt.Errorf("fee entry %d references unknown currency type %d", i, typeID)
			}
		}
	}
	for i, balance := range g.Balances {
		if _, err := parseAddress(balance.Account); err != nil {
			return fmt.Errorf("balance entry %d: %w", i, err)
		}
		if _, ok := currencyIDs[balance.Currency]; !ok {
			return fmt.Errorf("balance entry %d references unknown currency type %d", i, balance.Currency)
		}
		if _, err := parseAmount(balance.Amount); err != nil {
			return fmt.Errorf("balance entry %d: %w", i, err)
		}
	}
	return nil
}

// Apply builds a fresh state from the genesis description.
func (g *Genesis) Apply() (*state.LedgerState, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	st := state.NewLedgerState()
	for _, asset := range g.Assets {
		if err := st.RegisterAssetType(ledger.AssetType{ID: asset.ID, Name: asset.Name, Decimals: asset.Decimals}); err != nil {
			return nil, err
		}
	}
	for _, currency := range g.Currencies {
		if err := st.RegisterCurrencyType(ledger.CurrencyType{ID: currency.ID, Name: currency.Name, Unit: currency.Unit}); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(g.FeeReceiver) != "" {
		receiver, err := parseAddress(g.FeeReceiver)
		if err != nil {
			return nil, err
		}
		st.SetFeeReceiver(receiver)
		st.EnsureAccount(receiver)
	}
	for _, admin := range g.Administrators {
		addr, err := parseAddress(admin)
		if err != nil {
			return nil, err
		}
		st.AddAdministrator(addr)
	}
	for _, entity := range g.Entities {
		addr, err := parseAddress(entity)
		if err != nil {
			return nil, err
		}
		st.RegisterEntity(addr)
		st.EnsureAccount(addr)
	}
	for _, entry := range g.Fees {
		flow, typeID, owner, err := entry.Key()
		if err != nil {
			return nil, err
		}
		if err := st.SchedulePut(flow, typeID, owner, entry.Schedule()); err != nil {
			return nil, err
		}
	}
	for _, balance := range g.Balances {
		addr, err := parseAddress(balance.Account)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(balance.Amount)
		if err != nil {
			return nil, err
		}
		if err := st.SetBalance(addr, balance.Currency, amount); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must be non-negative", s)
	}
	return amount, nil
}
