package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Ledger.Transport != "gateway" {
		t.Fatalf("unexpected default transport %q", cfg.Ledger.Transport)
	}
	if cfg.Sync.FreshnessWindow != time.Minute {
		t.Fatalf("unexpected default freshness window %v", cfg.Sync.FreshnessWindow)
	}
	if cfg.Daemon.RPCAddr == "" || cfg.Daemon.DataDir == "" {
		t.Fatal("daemon defaults must be populated")
	}
}

func TestLoadFromPathMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatd.yaml")
	body := []byte("ledger:\n  transport: mock\nsync:\n  freshnessWindow: 30s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFromPath(path)
	if cfg.Ledger.Transport != "mock" {
		t.Fatalf("file value must win: got %q", cfg.Ledger.Transport)
	}
	if cfg.Sync.FreshnessWindow != 30*time.Second {
		t.Fatalf("file value must win: got %v", cfg.Sync.FreshnessWindow)
	}
	if cfg.Daemon.RPCAddr != Default().Daemon.RPCAddr {
		t.Fatal("fields absent from the file keep defaults")
	}
}

func TestLoadFromPathMissingFileFallsBack(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Ledger.Endpoint != Default().Ledger.Endpoint {
		t.Fatal("missing file must yield defaults")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatd.yaml")
	if err := os.WriteFile(path, []byte("daemon:\n  rpcAddr: 127.0.0.1:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGERCHAT_RPC_ADDR", "127.0.0.1:9100")
	t.Setenv("LEDGERCHAT_POLL_INTERVAL", "5s")
	t.Setenv("LEDGERCHAT_FRESHNESS_WINDOW", "not-a-duration")

	cfg := LoadFromPath(path)
	if cfg.Daemon.RPCAddr != "127.0.0.1:9100" {
		t.Fatalf("env must win over file: got %q", cfg.Daemon.RPCAddr)
	}
	if cfg.Sync.PollInterval != 5*time.Second {
		t.Fatalf("env duration must apply: got %v", cfg.Sync.PollInterval)
	}
	if cfg.Sync.FreshnessWindow != time.Minute {
		t.Fatal("malformed env duration must be ignored")
	}
}

func TestMergeIgnoresZeroValues(t *testing.T) {
	dst := Default()
	Merge(&dst, Config{})
	if dst != Default() {
		t.Fatal("merging an empty config must not change anything")
	}
}
