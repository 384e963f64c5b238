package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/logging"
	"github.com/me/labflow/internal/scheduler"
	"github.com/me/labflow/internal/server"
	"github.com/me/labflow/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	defaults := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", defaults.Addr, "Listen address")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.LogFormat, "Log format (text, json)")
	backend := flag.String("backend", defaults.Backend, "Store backend (sqlite, memory)")
	dbPath := flag.String("db", "", "Database path (default ~/.labflow/labflow.db)")
	demo := flag.Bool("demo", false, "Serve an in-memory store seeded with sample workflows")
	noUI := flag.Bool("no-ui", false, "Serve only the JSON API")
	secure := flag.Bool("secure-cookies", false, "Mark session cookies Secure (behind HTTPS)")
	sweep := flag.Duration("session-sweep", 10*time.Minute, "Interval between expired-session cleanups")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "backend":
			cfg.Backend = *backend
		case "db":
			cfg.DBPath = *dbPath
		case "demo":
			cfg.Demo = *demo
		case "secure-cookies":
			cfg.SecureCookies = *secure
		}
	})
	if cfg.Demo {
		cfg.Backend = config.BackendMemory
	}
	cfg.MergeAdminsFromEnv("LABFLOW_ADMINS")
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, *debug)

	path, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg, path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("store ready", "backend", cfg.Backend, "path", path)
	if len(cfg.Admins) > 0 {
		logger.Info("admin users configured", "admins", cfg.Admins)
	}

	cat := catalog.New(st, logger)
	if cfg.Demo {
		if _, err := cat.LoadDemo(ctx); err != nil {
			return fmt.Errorf("load demo catalog: %w", err)
		}
	}

	sessions := auth.NewSessionManager(st, cfg.SessionTTL)
	accounts := auth.NewAccounts(st, sessions, cfg, logger)

	var opts []server.Option
	if *noUI {
		opts = append(opts, server.WithoutUI())
	}
	srv := server.New(cfg, cat, accounts, logger, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr, "ui", !*noUI, "demo", cfg.Demo)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	loop := scheduler.NewLoop(scheduler.Config{PollInterval: *sweep}, logger,
		scheduler.SessionSweep(sessions, logger))
	g.Go(func() error {
		return loop.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// resolveDBPath returns the SQLite path, creating ~/.labflow when the
// default is used. The memory backend needs no path.
func resolveDBPath(cfg config.ServerConfig) (string, error) {
	if cfg.Backend == config.BackendMemory || cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".labflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "labflow.db"), nil
}
