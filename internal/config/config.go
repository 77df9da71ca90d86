// Package config loads daemon configuration with the precedence
// defaults < yaml file < environment, leaving flag overrides to main.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ledger LedgerConfig `yaml:"ledger"`
	Daemon DaemonConfig `yaml:"daemon"`
	Sync   SyncConfig   `yaml:"sync"`
	Limits LimitsConfig `yaml:"limits"`
}

type LedgerConfig struct {
	// Transport selects the ledger backend: "gateway" (JSON-RPC over HTTP)
	// or "mock" (in-process, for development and tests).
	Transport string `yaml:"transport"`
	Endpoint  string `yaml:"endpoint"`
}

type DaemonConfig struct {
	RPCAddr string `yaml:"rpcAddr"`
	DataDir string `yaml:"dataDir"`
}

type SyncConfig struct {
	// FreshnessWindow is how long a cached chat list stays authoritative
	// before a non-forced refresh hits the ledger again.
	FreshnessWindow time.Duration `yaml:"freshnessWindow"`
	PollInterval    time.Duration `yaml:"pollInterval"`
}

type LimitsConfig struct {
	InviteRPS   float64 `yaml:"inviteRps"`
	InviteBurst int     `yaml:"inviteBurst"`
}

func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			Transport: "gateway",
			Endpoint:  "http://127.0.0.1:7740/rpc",
		},
		Daemon: DaemonConfig{
			RPCAddr: "127.0.0.1:8787",
			DataDir: defaultDataDir(),
		},
		Sync: SyncConfig{
			FreshnessWindow: time.Minute,
			PollInterval:    15 * time.Second,
		},
		Limits: LimitsConfig{
			InviteRPS:   0.5,
			InviteBurst: 5,
		},
	}
}

// LoadFromPath reads the yaml file at configPath (or well-known locations
// when empty), merges it over the defaults, and applies env overrides.
// Missing or unreadable files fall back silently; a daemon must start with
// defaults alone.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "configs/chatd.yaml", "chatd.yaml")
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies set fields of src over dst; zero values in src leave dst
// untouched.
func Merge(dst *Config, src Config) {
	if src.Ledger.Transport != "" {
		dst.Ledger.Transport = src.Ledger.Transport
	}
	if src.Ledger.Endpoint != "" {
		dst.Ledger.Endpoint = src.Ledger.Endpoint
	}
	if src.Daemon.RPCAddr != "" {
		dst.Daemon.RPCAddr = src.Daemon.RPCAddr
	}
	if src.Daemon.DataDir != "" {
		dst.Daemon.DataDir = src.Daemon.DataDir
	}
	if src.Sync.FreshnessWindow > 0 {
		dst.Sync.FreshnessWindow = src.Sync.FreshnessWindow
	}
	if src.Sync.PollInterval > 0 {
		dst.Sync.PollInterval = src.Sync.PollInterval
	}
	if src.Limits.InviteRPS > 0 {
		dst.Limits.InviteRPS = src.Limits.InviteRPS
	}
	if src.Limits.InviteBurst > 0 {
		dst.Limits.InviteBurst = src.Limits.InviteBurst
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_TRANSPORT")); v != "" {
		cfg.Ledger.Transport = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_LEDGER_ENDPOINT")); v != "" {
		cfg.Ledger.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_RPC_ADDR")); v != "" {
		cfg.Daemon.RPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_DATA_DIR")); v != "" {
		cfg.Daemon.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_FRESHNESS_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Sync.FreshnessWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_POLL_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Sync.PollInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_INVITE_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Limits.InviteRPS = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEDGERCHAT_INVITE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.InviteBurst = n
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerchat"
	}
	return home + "/.ledgerchat"
}
