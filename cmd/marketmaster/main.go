package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aouyang1/go-marketmaster/config"
	"github.com/aouyang1/go-marketmaster/server"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/pkg/profile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startProfile(mode, dir string) interface{ Stop() } {
	opts := []func(*profile.Profile){profile.ProfilePath(dir), profile.NoShutdownHook}
	switch mode {
	case "cpu":
		opts = append(opts, profile.CPUProfile)
	case "mem":
		opts = append(opts, profile.MemProfile)
	case "block":
		opts = append(opts, profile.BlockProfile)
	case "mutex":
		opts = append(opts, profile.MutexProfile)
	case "goroutine":
		opts = append(opts, profile.GoroutineProfile)
	default:
		return nil
	}
	return profile.Start(opts...)
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file, overrides "+config.FileEnv)
	profileMode := flag.String("profile", "", "write a profile on exit: cpu, mem, block, mutex or goroutine")
	profileDir := flag.String("profile-dir", ".", "directory profiles are written to")
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv(config.FileEnv, *configPath); err != nil {
			return fmt.Errorf("unable to set config path, %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("unable to load config, %w", err)
	}
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		return fmt.Errorf("unable to create logger, %w", err)
	}
	slog.SetDefault(logger)

	if *profileMode != "" {
		p := startProfile(*profileMode, *profileDir)
		if p == nil {
			return fmt.Errorf("unknown profile mode %q", *profileMode)
		}
		defer p.Stop()
	}

	yahoo := source.NewYahooFetcher(cfg.YahooOptions(logger))
	fetcher := source.NewRetryFetcher(yahoo, cfg.RetryOptions(logger))

	opt := server.NewDefaultOptions()
	opt.Logger = logger
	opt.Fetcher = fetcher
	opt.Pipeline = cfg.PipelineOptions()
	opt.MaxUploadBytes = cfg.Server.MaxUploadBytes
	srv := server.New(opt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Server)
}
