package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LEDGER_RPC_URL", "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.UseRPCGateway() {
		t.Error("no endpoint configured: should use the stub gateway")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `port: "9090"
ledger_rpc_url: https://soroban-testnet.example.org
treasury_wallet_address: GTREASURY
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.UseRPCGateway() {
		t.Error("endpoint configured: should use the RPC gateway")
	}
	if cfg.TreasuryWalletAddress != "GTREASURY" {
		t.Errorf("unexpected treasury: %s", cfg.TreasuryWalletAddress)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("LEDGER_RPC_URL", "http://localhost:8000")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("env should override the file, got %s", cfg.Port)
	}
	if cfg.LedgerRPCURL != "http://localhost:8000" {
		t.Errorf("env-only key missing, got %s", cfg.LedgerRPCURL)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("a missing file should not be an error: %v", err)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not scalar\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("malformed YAML should fail loudly")
	}
}
