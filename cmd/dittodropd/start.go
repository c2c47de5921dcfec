package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/adapter/transfer"
	"github.com/marmos91/dittodrop/pkg/config"
	"github.com/marmos91/dittodrop/pkg/gc"
	"github.com/marmos91/dittodrop/pkg/server"
	"github.com/spf13/pflag"
)

func runStart(args []string) error {
	cfg, err := loadStartConfig(args)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// loadStartConfig parses the start flags and merges them over the config
// file and environment.
func loadStartConfig(args []string) (*config.Config, error) {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	flags.IntP("port", "p", config.DefaultPort, "Port to listen on")
	flags.IntP("backlog", "b", transfer.DefaultBacklog, "Listen backlog")
	flags.StringP("storage", "s", config.DefaultStoragePath, "Storage root for the filesystem store")
	flags.StringP("dir", "d", config.DefaultStoragePath, "Alias for --storage")
	flags.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	configPath := flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodrop/config.yaml)")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// --storage wins when both are given.
	if dir := flags.Lookup("dir"); dir.Changed && !flags.Changed("storage") {
		if err := flags.Set("storage", dir.Value.String()); err != nil {
			return nil, err
		}
	}

	return config.Load(*configPath,
		config.FlagBinding{Key: "daemon.port", Flag: flags.Lookup("port")},
		config.FlagBinding{Key: "daemon.backlog", Flag: flags.Lookup("backlog")},
		config.FlagBinding{Key: "storage.filesystem.path", Flag: flags.Lookup("storage")},
		config.FlagBinding{Key: "logging.level", Flag: flags.Lookup("log-level")},
	)
}

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("DittoDrop daemon starting")
	log.Debug("Log level: %s, storage: %s", cfg.Logging.Level, cfg.Storage.Type)

	store, err := config.CreateContentStore(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create content store: %w", err)
	}
	defer store.Close()

	j, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	defer j.Close()

	if cfg.GC.Enabled {
		collector, err := gc.NewCollector(store, cfg.GC, log.With("component", "gc"))
		if err != nil {
			log.Warn("Garbage collection unavailable for %s storage: %v", cfg.Storage.Type, err)
		} else {
			collector.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = collector.Stop(stopCtx)
			}()
		}
	}

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				log.Error("Metrics server error: %v", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsResult.Server.Stop(stopCtx); err != nil {
				log.Warn("Metrics server shutdown: %v", err)
			}
		}()
		log.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	adapter, err := transfer.New(cfg.Daemon, metricsResult.Transfer, log.With("adapter", "dittodrop"))
	if err != nil {
		return err
	}

	srv := server.New(store, j)
	if err := srv.AddAdapter(adapter); err != nil {
		return err
	}

	log.Info("Server is running. Press Ctrl+C to stop.")
	err = srv.Serve(ctx)
	if ctx.Err() != nil {
		log.Info("Shutdown signal received, daemon stopped")
		return nil
	}
	return err
}
