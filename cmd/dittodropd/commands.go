package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrop/pkg/config"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func runInit(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := flags.Bool("force", false, "Overwrite an existing config file")
	configPath := flags.String("config", "", "Where to write the config file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration written to %s\n", path)
	return nil
}

func runConfig(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	configPath := flags.String("config", "", "Path to config file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func runJournal(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("journal", pflag.ContinueOnError)
	configPath := flags.String("config", "", "Path to config file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	var peer string
	if flags.NArg() > 0 {
		peer = flags.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.Journal.Type != "badger" {
		return fmt.Errorf("journal type %q is not persistent, nothing to list", cfg.Journal.Type)
	}

	ctx := context.Background()
	j, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List(ctx, peer)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPEER\tNAME\tSIZE\tSTATUS\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format("2006-01-02 15:04:05"), e.Peer, e.Name, humanize.IBytes(e.Size), e.Status, e.Error)
	}
	return tw.Flush()
}
