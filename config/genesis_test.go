package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"batchledger/native/fees"
)

const sampleGenesis = `
FeeReceiver = "0xfefefefefefefefefefefefefefefefefefefefe"
Administrators = ["0xadadadadadadadadadadadadadadadadadadadad"]
Entities = ["0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"]

[[asset]]
id = 1
name = "GRAIN-2026"

[[currency]]
id = 1
name = "USD"
unit = "cent"

[[fee]]
flow = "currency"
type_id = 1
fixed = 5

[[fee]]
flow = "currency"
type_id = 1
owner = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
fixed = 1

[[balance]]
account = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
currency = 1
amount = "100000"
`

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestLoadGenesisAndApply(t *testing.T) {
	gen, err := LoadGenesis(writeGenesis(t, sampleGenesis))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	st, err := gen.Apply()
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, ok := st.AssetType(1); !ok {
		t.Fatalf("asset type not registered")
	}
	if _, ok := st.CurrencyType(1); !ok {
		t.Fatalf("currency type not registered")
	}

	var admin [20]byte
	for i := range admin {
		admin[i] = 0xad
	}
	if !st.IsAdministrator(admin) {
		t.Fatalf("administrator not registered")
	}

	var entity [20]byte
	for i := range entity {
		entity[i] = 0xa1
	}
	if !st.HasEntity(entity) {
		t.Fatalf("entity not registered")
	}
	if got := st.Balance(entity, 1); got.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("seeded balance = %s, want 100000", got)
	}

	var receiver [20]byte
	for i := range receiver {
		receiver[i] = 0xfe
	}
	if st.FeeReceiver() != receiver {
		t.Fatalf("fee receiver not configured")
	}

	// Owner-specific schedule installed alongside the global fall-back.
	if sched, ok := st.ScheduleGet(fees.FlowCurrency, 1, entity); !ok || sched.Fixed != 1 {
		t.Fatalf("owner schedule = %+v ok=%v", sched, ok)
	}
	if sched, ok := st.ScheduleGet(fees.FlowCurrency, 1, fees.GlobalOwner); !ok || sched.Fixed != 5 {
		t.Fatalf("global schedule = %+v ok=%v", sched, ok)
	}
}

func TestLoadGenesisRejectsUnknownKeys(t *testing.T) {
	path := writeGenesis(t, sampleGenesis+"\nBogusKey = true\n")
	if _, err := LoadGenesis(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestGenesisValidation(t *testing.T) {
	cases := []struct {
		name string
		gen  Genesis
	}{
		{"duplicate asset id", Genesis{Assets: []AssetConfig{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}}},
		{"zero asset id", Genesis{Assets: []AssetConfig{{ID: 0, Name: "Z"}}}},
		{"duplicate currency id", Genesis{Currencies: []CurrencyConfig{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}}},
		{"bad administrator", Genesis{Administrators: []string{"nothex"}}},
		{"bad fee receiver", Genesis{FeeReceiver: "0x1234"}},
		{"fee references unknown currency", Genesis{
			Fees: []fees.ScheduleConfig{{Flow: "currency", TypeID: 9, Fixed: 1}},
		}},
		{"fee references unknown asset", Genesis{
			Fees: []fees.ScheduleConfig{{Flow: "asset", TypeID: 9, Fixed: 1}},
		}},
		{"balance references unknown currency", Genesis{
			Balances: []BalanceConfig{{Account: "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", Currency: 9, Amount: "1"}},
		}},
		{"negative balance amount", Genesis{
			Currencies: []CurrencyConfig{{ID: 1, Name: "USD"}},
			Balances:   []BalanceConfig{{Account: "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", Currency: 1, Amount: "-5"}},
		}},
	}
	for _, tc := range cases {
		if err := tc.gen.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
