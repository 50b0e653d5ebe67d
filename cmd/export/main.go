// Command export writes stored daily summaries to a CSV file.
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

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/internal/exporter"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/internal/services"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
)

type options struct {
	configFile       string
	output           string
	rats             []int
	stages           []int
	excludeStageZero bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: export [options]

Writes the stored daily summaries as CSV.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Examples:
  export -o summaries.csv
  export --rat 3,4 --exclude-stage0 -o -
`)
	}

	fs.StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	fs.StringVarP(&opts.output, "output", "o", "daily_summaries.csv", `output file, "-" for stdout`)
	fs.IntSliceVar(&opts.rats, "rat", nil, "only these subject ids")
	fs.IntSliceVar(&opts.stages, "stage", nil, "only these stages (0-3)")
	fs.BoolVar(&opts.excludeStageZero, "exclude-stage0", false, "drop head-hold (stage 0) rows")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	filter, err := services.NewFilter(opts.rats, opts.stages, opts.excludeStageZero)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	// Logs go to stderr so "-o -" output stays clean.
	logger := infrastructure.NewLogger(stderr, cfg.Logging.Level)

	st, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	svc := services.NewSummaryService(st, logger)

	if opts.output == "-" {
		n, err := svc.ExportCSV(ctx, stdout, filter)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "summaries exported", slog.String("file", "stdout"), slog.Int("rows", n))
		return nil
	}

	rows, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}
	paths, err := cfg.Paths()
	if err != nil {
		return err
	}
	return exporter.NewCSVWriter(paths, logger).ExportSummaries(opts.output, rows)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		stop()
		os.Exit(1)
	}
}
