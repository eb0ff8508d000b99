package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	GenesisFile    string `toml:"GenesisFile"`
	JournalFile    string `toml:"JournalFile"`
	MetricsAddress string `toml:"MetricsAddress"`
	ServiceName    string `toml:"ServiceName"`
	Environment    string `toml:"Environment"`
	ReadOnly       bool   `toml:"ReadOnly"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded.String())
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "batchledger"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ledger-data"
	}
	if strings.TrimSpace(cfg.JournalFile) == "" {
		cfg.JournalFile = filepath.Join(cfg.DataDir, "journal")
	}

	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./ledger-data",
		GenesisFile:    "",
		JournalFile:    filepath.Join("./ledger-data", "journal"),
		MetricsAddress: ":9090",
		ServiceName:    "batchledger",
		Environment:    "",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
