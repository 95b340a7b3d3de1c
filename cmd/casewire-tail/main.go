// Command casewire-tail follows the live analysis stream for a case and
// prints the text as it arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/casewire/casewire/internal/config"
	"github.com/casewire/casewire/internal/logger"
	"github.com/casewire/casewire/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("casewire-tail", flag.ContinueOnError)
	baseURL := fs.String("base-url", "", "analysis service base URL (default: from config)")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: casewire-tail [flags] <case-id>")
	}
	caseID := fs.Arg(0)

	if err := logger.Init(logger.ParseLevel(*logLevel), ""); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	url := *baseURL
	if url == "" {
		cfg, err := config.Load(config.GetConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		url = cfg.AnalysisBaseURL
	}
	if url == "" {
		return fmt.Errorf("no analysis base URL: pass -base-url or set analysis_base_url in the config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := stream.NewClient(url)
	err := client.Stream(ctx, caseID, func(text string) error {
		fmt.Print(text)
		return nil
	})
	fmt.Println()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
