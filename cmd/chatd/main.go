package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerchat/go-client/internal/api"
	"ledgerchat/go-client/internal/chat"
	"ledgerchat/go-client/internal/config"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
	"ledgerchat/go-client/internal/platform/privacylog"
	"ledgerchat/go-client/internal/platform/ratelimiter"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address")
	configPath := flag.String("config", "", "Path to chatd.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for local daemon data (optional)")
	transport := flag.String("transport", "", "Ledger transport override: gateway | mock")
	flag.Parse()
	if *showVersion {
		fmt.Printf("chatd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg := config.LoadFromPath(*configPath)
	if *rpcAddr != "" {
		cfg.Daemon.RPCAddr = *rpcAddr
	}
	if *dataDir != "" {
		cfg.Daemon.DataDir = *dataDir
	}
	if *transport != "" {
		cfg.Ledger.Transport = *transport
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewTextHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var led ledger.Ledger
	switch cfg.Ledger.Transport {
	case "mock":
		led = ledger.NewMemory()
	case "gateway", "":
		led = ledger.NewClient(cfg.Ledger.Endpoint)
	default:
		log.Fatalf("chatd: unknown ledger transport %q", cfg.Ledger.Transport)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := chat.NewMetrics(registry)

	idRegistry := identity.NewRegistry(led, logger)
	ids := identity.NewManager(idRegistry, identity.NewSeedStore(cfg.Daemon.DataDir))
	engine := chat.NewEngine(led, ids, metrics, logger)
	engine.SetFreshnessWindow(cfg.Sync.FreshnessWindow)
	limiter := ratelimiter.New(cfg.Limits.InviteRPS, cfg.Limits.InviteBurst, 0)
	membership := chat.NewMembership(led, ids, idRegistry, engine, limiter, metrics, logger)

	go engine.RunPoller(ctx, cfg.Sync.PollInterval)

	service := api.NewService(ids, engine, membership)
	server := api.NewServer(cfg.Daemon.RPCAddr, service, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)

	logger.Info("chatd starting",
		"rpc_addr", cfg.Daemon.RPCAddr,
		"transport", cfg.Ledger.Transport,
		"freshness_window", cfg.Sync.FreshnessWindow.String(),
	)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("chatd failed: %v", err)
	}
	engine.Close()
	ids.Logout()
	logger.Info("chatd stopped")
}
