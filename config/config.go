package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"fplstake/crypto"
	"fplstake/native/stake"
)

// StakingConfig carries the default validation rules applied at first boot.
// Amounts are decimal strings so operators can express values beyond 2^63.
type StakingConfig struct {
	MinStakeAmount            string   `toml:"MinStakeAmount"`
	MaxStakeAmount            string   `toml:"MaxStakeAmount"`
	EarlyWithdrawalFeePercent uint8    `toml:"EarlyWithdrawalFeePercent"`
	LockOptions               []uint64 `toml:"LockOptions"`
}

// FplConfig carries the season bootstrap parameters.
type FplConfig struct {
	CurrentGameweek uint8  `toml:"CurrentGameweek"`
	SeasonStart     int64  `toml:"SeasonStart"`
	SeasonEnd       int64  `toml:"SeasonEnd"`
	APIURL          string `toml:"APIURL"`
}

type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	DataDir           string `toml:"DataDir"`
	NetworkName       string `toml:"NetworkName"`
	AdminKeystorePath string `toml:"AdminKeystorePath"`
	LogFile           string `toml:"LogFile"`
	LogMaxSizeMB      int    `toml:"LogMaxSizeMB"`
	LogMaxBackups     int    `toml:"LogMaxBackups"`
	IndexerDSN        string `toml:"IndexerDSN"`
	IndexerAddress    string `toml:"IndexerAddress"`

	Staking StakingConfig `toml:"Staking"`
	Fpl     FplConfig     `toml:"Fpl"`
}

// Load reads the configuration from the given path, creating a default file
// (and bootstrap admin keystore) when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if cfg.AdminKeystorePath == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./fplstake-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "fplstake-local"
	}
	if strings.TrimSpace(cfg.Staking.MinStakeAmount) == "" {
		cfg.Staking.MinStakeAmount = "1000000"
	}
	if strings.TrimSpace(cfg.Staking.MaxStakeAmount) == "" {
		cfg.Staking.MaxStakeAmount = "1000000000"
	}
	if len(cfg.Staking.LockOptions) == 0 {
		cfg.Staking.LockOptions = []uint64{86400, 604800, 2592000}
	}
	if strings.TrimSpace(cfg.Fpl.APIURL) == "" {
		cfg.Fpl.APIURL = "https://fantasy.premierleague.com/api"
	}
	if cfg.Fpl.CurrentGameweek == 0 {
		cfg.Fpl.CurrentGameweek = 1
	}
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "admin-keystore.json")
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := defaultKeystorePath(configPath)
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv("FPLSTAKE_ADMIN_PASS")); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	cfg.AdminKeystorePath = keystorePath
	return persist(configPath, cfg)
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{Staking: StakingConfig{EarlyWithdrawalFeePercent: 10}}
	applyDefaults(cfg)
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// StakeRules converts the staking section into the engine's config record.
func (c *Config) StakeRules() (*stake.Config, error) {
	min, ok := new(big.Int).SetString(strings.TrimSpace(c.Staking.MinStakeAmount), 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid MinStakeAmount %q", c.Staking.MinStakeAmount)
	}
	max, ok := new(big.Int).SetString(strings.TrimSpace(c.Staking.MaxStakeAmount), 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid MaxStakeAmount %q", c.Staking.MaxStakeAmount)
	}
	return stake.SanitizeConfig(&stake.Config{
		MinStakeAmount:            min,
		MaxStakeAmount:            max,
		EarlyWithdrawalFeePercent: c.Staking.EarlyWithdrawalFeePercent,
		LockOptions:               c.Staking.LockOptions,
	})
}
