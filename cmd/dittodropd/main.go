// Command dittodropd receives files sent by dittodrop clients.
//
// Usage:
//
//	dittodropd [start] [-p port] [-b backlog] [-s|-d storage] [--config file]
//	dittodropd init [--force] [--config file]
//	dittodropd config [--config file]
//	dittodropd journal [--config file] [peer]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/spf13/pflag"
)

const usage = `Usage: dittodropd <command> [flags]

Commands:
  start     Run the daemon (default)
  init      Write a default config file
  config    Print the effective configuration
  journal   List recorded transfers, optionally for one peer

Run 'dittodropd <command> --help' for command flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	command := "start"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "start":
		return runStart(args)
	case "init":
		return runInit(args, out)
	case "config":
		return runConfig(args, out)
	case "journal":
		return runJournal(args, out)
	case "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
