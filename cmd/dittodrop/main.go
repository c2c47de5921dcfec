// Command dittodrop sends files to a dittodropd daemon.
//
// Usage:
//
//	dittodrop [-a address] [-p port] [-f file]... [file...]
//	dittodrop --cat file...
//
// Counts and sizes go out big-endian (XDR) whatever the host byte order, so
// dittodrop only talks to dittodropd, not to native-endian peers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/config"
	"github.com/marmos91/dittodrop/pkg/file"
	"github.com/marmos91/dittodrop/pkg/session"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("dittodrop", pflag.ContinueOnError)
	flags.StringP("address", "a", config.DefaultAddress, "Daemon address")
	flags.IntP("port", "p", config.DefaultPort, "Daemon port")
	files := flags.StringArrayP("file", "f", nil, "File to send (repeatable)")
	flags.BoolP("cat", "c", false, "Print the files instead of sending them")
	configPath := flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodrop/config.yaml)")
	flags.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dittodrop [flags] [file...]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath,
		config.FlagBinding{Key: "client.address", Flag: flags.Lookup("address")},
		config.FlagBinding{Key: "client.port", Flag: flags.Lookup("port")},
		config.FlagBinding{Key: "client.cat", Flag: flags.Lookup("cat")},
		config.FlagBinding{Key: "logging.level", Flag: flags.Lookup("log-level")},
	)
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

	paths := append(append([]string(nil), *files...), flags.Args()...)
	if len(paths) == 0 {
		flags.Usage()
		return fmt.Errorf("no files given")
	}

	records, err := loadRecords(paths)
	if err != nil {
		return err
	}

	if cfg.Client.Cat {
		return catFiles(os.Stdout, records)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := session.NewClient(session.ClientConfig{DialTimeout: cfg.Client.DialTimeout}, log)
	defer client.Close()

	if err := client.Push(ctx, cfg.Client.Address, uint16(cfg.Client.Port), records); err != nil {
		if ctx.Err() != nil {
			log.Warn("Interrupted, transfer aborted")
		}
		return err
	}
	return nil
}

// loadRecords measures every path up front so a bad argument fails before
// anything is sent.
func loadRecords(paths []string) ([]*file.Record, error) {
	records := make([]*file.Record, 0, len(paths))
	for _, p := range paths {
		rec, err := file.FromPath(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
