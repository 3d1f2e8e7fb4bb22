package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest/gravitus"
	"github.com/claude/liftlog/internal/ingest/manual"
	liftmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log.Info("LiftLog starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	version, err := storage.RunMigrations(dsn, cfg.Server.Migrations)
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "version", version)

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Lookup tables
	table, err := cfg.Tables.RPETable()
	if err != nil {
		log.Error("failed to load RPE table", "error", err)
		os.Exit(1)
	}
	names, err := cfg.Tables.Renamer()
	if err != nil {
		log.Error("failed to load exercise renames", "error", err)
		os.Exit(1)
	}
	policy := cfg.Units.Policy()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("liftlog", "", reg)

	// Create providers
	manualProvider := manual.NewProvider(db, names, m, log)
	scrapedNames := names
	if !cfg.Gravitus.NormalizeNames {
		scrapedNames = nil
	}
	gravitusProvider := gravitus.NewProvider(db, scrapedNames, m, log)

	// Create server
	srv := server.New(db, manualProvider, gravitusProvider, table, policy, m, cfg.Auth.APIKey, log)

	scraper, closeScraper, err := newScraper(cfg.Gravitus, m, log)
	if err != nil {
		log.Error("failed to set up gravitus scraper", "error", err)
		os.Exit(1)
	}
	defer closeScraper()
	srv.SetScraper(scraper, cfg.Gravitus.User)
	log.Info("gravitus scraper ready", "default_user", cfg.Gravitus.User, "workers", cfg.Gravitus.Workers)

	// MCP over streamable HTTP, scoped to the identified user
	mcpSrv := liftmcp.New(db, table, policy, Version, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return liftmcp.WithUserID(ctx, server.UserID(r))
		}),
	))

	// Serve over tsnet or plain HTTP.
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// newScraper builds the server-side scraper and its fetch cache.
func newScraper(cfg config.GravitusConfig, m *metrics.Manager, log *slog.Logger) (*gravitus.Scraper, func(), error) {
	client := gravitus.NewClient(cfg.BaseURL, log,
		gravitus.WithRetry(cfg.Attempts, cfg.Backoff),
		gravitus.WithPageDelay(cfg.PageDelay),
		gravitus.WithMetrics(m),
	)

	var state *gravitus.StateDB
	if cfg.StateDir != "" {
		var err error
		state, err = gravitus.OpenStateDB(filepath.Clean(cfg.StateDir))
		if err != nil {
			return nil, nil, err
		}
	}
	closeFn := func() {
		if state != nil {
			state.Close()
		}
	}
	return gravitus.NewScraper(client, state, cfg.OutDir, cfg.Workers, log), closeFn, nil
}
