// Package config loads backend configuration from an optional YAML file
// overridden by environment variables. The ledger gateway variant follows
// from LEDGER_RPC_URL: set means the RPC variant, empty means the
// deterministic stand-in.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every startup setting.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	LedgerRPCURL      string `yaml:"ledger_rpc_url"`
	NetworkPassphrase string `yaml:"network_passphrase"`

	StudyRegistryContractID  string `yaml:"study_registry_contract_id"`
	BiocreditTokenContractID string `yaml:"biocredit_token_contract_id"`
	PaymentContractID        string `yaml:"payment_contract_id"`
	TreasuryWalletAddress    string `yaml:"treasury_wallet_address"`
}

// Defaults mirror the reference deployment's testnet settings.
func defaults() Config {
	return Config{
		Port:              "8080",
		NetworkPassphrase: "Test SDF Network ; September 2015",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// is absent), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	overrideEnv(&cfg.Port, "PORT")
	overrideEnv(&cfg.DatabaseURL, "DATABASE_URL")
	overrideEnv(&cfg.RedisURL, "REDIS_URL")
	overrideEnv(&cfg.LedgerRPCURL, "LEDGER_RPC_URL")
	overrideEnv(&cfg.NetworkPassphrase, "NETWORK_PASSPHRASE")
	overrideEnv(&cfg.StudyRegistryContractID, "STUDY_REGISTRY_CONTRACT_ID")
	overrideEnv(&cfg.BiocreditTokenContractID, "BIOCREDIT_TOKEN_CONTRACT_ID")
	overrideEnv(&cfg.PaymentContractID, "PAYMENT_CONTRACT_ID")
	overrideEnv(&cfg.TreasuryWalletAddress, "TREASURY_WALLET_ADDRESS")

	return cfg, nil
}

// UseRPCGateway reports whether a live ledger endpoint is configured.
func (c Config) UseRPCGateway() bool { return c.LedgerRPCURL != "" }

func overrideEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
