// Command ingestor watches a directory for rig metrics files, loads them into
// the store and serves the read API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/samobrien878/Williams-Data-Pipline/internal/app"
	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
)

type options struct {
	configFile string
	dir        string
	once       bool
	noAPI      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ingestor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: ingestor [options]

Scans the watch directory for metrics_*.csv/.xls/.xlsx files, stores raw
trials and daily summaries, then keeps watching for new files.

Options:
`)
		fs.PrintDefaults()
	}

	fs.StringVarP(&opts.configFile, "config", "c", "", "YAML config file (default: config.yaml or configs/config.yaml)")
	fs.StringVarP(&opts.dir, "dir", "d", "", "watch directory, overrides ingest.watch_dir")
	fs.BoolVar(&opts.once, "once", false, "scan the directory once and exit")
	fs.BoolVar(&opts.noAPI, "no-api", false, "do not start the HTTP server")
	fs.BoolVarP(&opts.version, "version", "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// apply folds the command line into cfg.
func (o options) apply(cfg *config.Config) error {
	if o.dir != "" {
		paths, err := config.GetPaths()
		if err != nil {
			return err
		}
		cfg.Ingest.WatchDir = paths.Resolve(o.dir)
	}
	if o.once {
		cfg.Ingest.ScanOnStart = true
		cfg.Ingest.Watch = false
		cfg.Server.Enabled = false
	}
	if o.noAPI {
		cfg.Server.Enabled = false
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = infrastructure.CloseLogFile() }()

	paths, err := cfg.Paths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	st, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to store",
			slog.String("driver", cfg.Store.Driver),
			slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Error("Failed to close store", slog.String("error", err.Error()))
		}
	}()

	application, err := app.New(cfg, st, logger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "ingestor: %v\n", err)
		stop()
		os.Exit(1)
	}
}
