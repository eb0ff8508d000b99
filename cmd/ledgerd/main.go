package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"batchledger/config"
	"batchledger/native/ledger"
	"batchledger/native/settlement"
	"batchledger/observability/logging"
	"batchledger/storage"
)

const (
	envKey        = "LEDGER_ENV"
	genesisEnvKey = "LEDGER_GENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis TOML file (overrides LEDGER_GENESIS and config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envKey))
	logger := logging.Setup("ledgerd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath == "" {
		logger.Error("No genesis file configured; set GenesisFile, LEDGER_GENESIS or --genesis")
		os.Exit(1)
	}

	gen, err := config.LoadGenesis(genesisPath)
	if err != nil {
		logger.Error("Failed to load genesis", slog.Any("error", err))
		os.Exit(1)
	}
	st, err := gen.Apply()
	if err != nil {
		logger.Error("Failed to apply genesis", slog.Any("error", err))
		os.Exit(1)
	}
	st.SetReadOnly(cfg.ReadOnly)

	db, err := storage.NewLevelDB(cfg.JournalFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	journal, err := storage.OpenJournal(db)
	if err != nil {
		logger.Error("Failed to open journal", slog.Any("error", err))
		os.Exit(1)
	}
	journal.SetLogger(logger)

	ledgerEngine := ledger.NewEngine()
	ledgerEngine.SetState(st)
	ledgerEngine.SetAccess(st)
	ledgerEngine.SetEntities(st)
	ledgerEngine.SetEmitter(journal)

	settlementEngine := settlement.NewEngine(ledgerEngine)
	settlementEngine.SetState(st)
	settlementEngine.SetAccess(st)
	settlementEngine.SetEmitter(journal)

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("Ledger started",
		slog.String("genesis", genesisPath),
		slog.String("journal", cfg.JournalFile),
		slog.Uint64("journalRecords", journal.Len()),
		slog.Bool("readOnly", cfg.ReadOnly),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")
}

// resolveGenesisPath picks the genesis file with CLI flag taking precedence
// over the environment, then the config file.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if fromEnv, ok := lookup(genesisEnvKey); ok {
		if trimmed := strings.TrimSpace(fromEnv); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(configValue)
}
