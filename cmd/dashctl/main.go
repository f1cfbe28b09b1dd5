package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerview/ledgerview/cmd/dashctl/cli"
	"github.com/ledgerview/ledgerview/internal/app"
	"github.com/ledgerview/ledgerview/internal/client"
)

const usage = `usage: dashctl [flags] <command> [company]

commands:
  companies         list configured companies
  show <company>    print the dashboard of a company
  sync <company>    synchronize a company and print its refreshed dashboard

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return cli.ExitError
	}

	fs := flag.NewFlagSet("dashctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	baseURL := fs.String("api", cfg.APIBaseURL, "API base URL")
	jsonOut := fs.Bool("json", false, "print JSON instead of tables")
	depth := fs.Int("depth", 0, "hierarchy levels to print (0 = all)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return 2
	}

	// stdout carries command output; diagnostics go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	api, err := client.New(*baseURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return cli.ExitError
	}
	cmds, err := cli.NewDashCLI(api, cfg.PollInterval, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return cli.ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{JSONOutput: *jsonOut, Depth: *depth}
	switch args[0] {
	case "companies":
		return cmds.CompaniesCommand(ctx, opts)
	case "show", "sync":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "%s: company id required\n", args[0])
			return 2
		}
		if args[0] == "show" {
			return cmds.ShowCommand(ctx, args[1], opts)
		}
		return cmds.SyncCommand(ctx, args[1], opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		fs.Usage()
		return 2
	}
}
