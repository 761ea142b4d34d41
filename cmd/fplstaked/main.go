package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"fplstake/config"
	"fplstake/core"
	"fplstake/crypto"
	"fplstake/native/fpl"
	"fplstake/native/stake"
	"fplstake/observability/logging"
	"fplstake/rpc"
	"fplstake/services/stakeindex"
	"fplstake/storage"
)

const adminPassEnv = "FPLSTAKE_ADMIN_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FPLSTAKE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("fplstaked", env, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	adminKey, err := crypto.LoadFromKeystore(cfg.AdminKeystorePath, os.Getenv(adminPassEnv))
	if err != nil {
		logger.Error("Failed to load admin keystore", slog.Any("error", err))
		os.Exit(1)
	}
	adminAddr := adminKey.PubKey().Address()

	node := core.NewNode(db)

	if strings.TrimSpace(cfg.IndexerDSN) != "" {
		indexer, err := stakeindex.Open(cfg.IndexerDSN, logger)
		if err != nil {
			logger.Error("Failed to open stake indexer", slog.Any("error", err))
			os.Exit(1)
		}
		defer indexer.Close()
		node.SetEmitter(indexer)

		if strings.TrimSpace(cfg.IndexerAddress) != "" {
			api := stakeindex.NewAPI(indexer)
			go func() {
				logger.Info("Starting indexer API", slog.String("address", cfg.IndexerAddress))
				if err := http.ListenAndServe(cfg.IndexerAddress, api.Handler()); err != nil {
					logger.Error("Indexer API stopped", slog.Any("error", err))
				}
			}()
		}
	}

	if err := bootstrap(node, cfg, adminAddr, logger); err != nil {
		logger.Error("Failed to bootstrap state", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("admin", adminAddr.String()),
		slog.String("stakeVault", crypto.MustNewAddress(vaultBytes(node.StakeVaultAddress())).String()),
		slog.String("treasuryVault", crypto.MustNewAddress(vaultBytes(node.TreasuryVaultAddress())).String()),
	)

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func vaultBytes(addr [20]byte) []byte {
	return addr[:]
}

// bootstrap seeds the season configuration and validation rules on first run.
// Subsequent starts leave the stored state untouched so admin updates made over
// RPC survive restarts.
func bootstrap(node *core.Node, cfg *config.Config, admin crypto.Address, logger *slog.Logger) error {
	adminArr := admin.Array()

	if _, err := node.FplGlobal(); err != nil {
		if !errors.Is(err, fpl.ErrGlobalNotSet) {
			return err
		}
		if _, err := node.InitializeFplGlobal(adminArr, fpl.GlobalParams{
			CurrentGameweek: cfg.Fpl.CurrentGameweek,
			SeasonStart:     cfg.Fpl.SeasonStart,
			SeasonEnd:       cfg.Fpl.SeasonEnd,
			APIURL:          cfg.Fpl.APIURL,
		}); err != nil {
			return err
		}
		logger.Info("Initialised season state", slog.Int("gameweek", int(cfg.Fpl.CurrentGameweek)))
	}

	if _, err := node.StakeConfig(); err != nil {
		if !errors.Is(err, stake.ErrConfigNotSet) {
			return err
		}
		rules, err := cfg.StakeRules()
		if err != nil {
			return err
		}
		if err := node.SetStakeConfig(adminArr, rules); err != nil {
			return err
		}
		logger.Info("Installed staking rules",
			slog.String("min", rules.MinStakeAmount.String()),
			slog.String("max", rules.MaxStakeAmount.String()),
		)
	}
	return nil
}
