package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casewire/casewire/internal/authz"
	"github.com/casewire/casewire/internal/config"
	"github.com/casewire/casewire/internal/logger"
	"github.com/casewire/casewire/internal/realtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	fs := flag.NewFlagSet("casewire", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (default: user config dir)")
	listenAddr := fs.String("listen", "", "listen address override")
	logLevel := fs.String("log-level", "", "log level override (debug, info, warn, error)")
	if parseErr := fs.Parse(os.Args[1:]); parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	path := *configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	authorizer, cleanup, err := buildAuthorizer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := realtime.NewServer(cfg, authorizer)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Re-apply the log level when the config file changes on disk.
	go func() {
		watchErr := config.Watch(ctx, path, func(updated *config.Config) {
			logger.Global().SetLevel(logger.ParseLevel(updated.LogLevel))
			logger.Info("Configuration reloaded from %s", path)
		})
		if watchErr != nil && !errors.Is(watchErr, context.Canceled) {
			logger.Warn("Config watcher stopped: %v", watchErr)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received signal %v, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Stop(shutdownCtx)
}

// buildAuthorizer selects the membership backend: a SQLite store when a
// database path is configured, otherwise a static in-memory store.
func buildAuthorizer(cfg *config.Config) (authz.CaseAuthorizer, func(), error) {
	if cfg.ACLDBPath != "" {
		store, err := authz.OpenSQLiteStore(cfg.ACLDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open ACL database: %w", err)
		}
		logger.Info("Using SQLite case membership store at %s", cfg.ACLDBPath)
		return store, func() { store.Close() }, nil
	}

	if cfg.AllowAllCases {
		logger.Warn("allow_all_cases is enabled: every authenticated user can join any case")
	}
	return authz.NewStaticStore(cfg.AllowAllCases), func() {}, nil
}
