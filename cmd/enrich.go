package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/voterstat/internal/config"
	"github.com/JakeFAU/voterstat/internal/dispatcher"
	"github.com/JakeFAU/voterstat/internal/extract"
	collyfetcher "github.com/JakeFAU/voterstat/internal/fetcher/colly"
	"github.com/JakeFAU/voterstat/internal/lookup"
	"github.com/JakeFAU/voterstat/internal/progress"
	"github.com/JakeFAU/voterstat/internal/schema"
	"github.com/JakeFAU/voterstat/internal/sink"
	"github.com/JakeFAU/voterstat/internal/source"
	"github.com/JakeFAU/voterstat/internal/worker"
)

type enrichOptions struct {
	input  string
	output string
}

// newEnrichCmd creates the 'enrich' subcommand, which streams rows from the
// input through the lookup pipeline to the output.
func newEnrichCmd() *cobra.Command {
	opts := &enrichOptions{}
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Look up every input row and append its voter status",
		Long: `Reads CSV rows from stdin (or --input), maps each row to a voter identity
using the selected column layout, looks it up against the status service with
bounded concurrency, and writes the row plus registration status, party, and
ballot status to stdout (or --output). Rows that cannot be mapped or looked up
are left out of the output; see --rejects to capture them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "input CSV file (default stdin)")
	flags.StringVarP(&opts.output, "output", "o", "", "output CSV file (default stdout)")
	flags.String("layout", schema.DefaultLayout, "input column layout (roll, county-data, or a configured layout)")
	flags.Int("concurrency", dispatcher.DefaultMaxConcurrency, "maximum lookups in flight")
	flags.String("endpoint", config.DefaultEndpoint, "lookup service URL")
	flags.String("rejects", "", "write dropped rows with stage and reason to this CSV file")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")

	return cmd
}

func runEnrich(cmd *cobra.Command, opts *enrichOptions) (err error) {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger().Named("enrich")

	layout, err := cfg.ResolveLayout()
	if err != nil {
		return err
	}

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		Endpoint:      cfg.Lookup.Endpoint,
		UserAgent:     cfg.Lookup.UserAgent,
		FormNamespace: cfg.Lookup.FormNamespace,
		Timeout:       cfg.Timeout(),
		MaxConns:      cfg.Dispatch.MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	in, closeIn, err := openInput(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(opts.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var (
		rejects    lookup.RejectRecorder
		rejectsOut *sink.Rejects
	)
	if cfg.Output.RejectsPath != "" {
		rf, rerr := os.Create(cfg.Output.RejectsPath)
		if rerr != nil {
			return fmt.Errorf("create rejects file: %w", rerr)
		}
		defer func() {
			if cerr := rf.Close(); cerr != nil {
				logger.Warn("close rejects file", zap.Error(cerr))
			}
		}()
		rejectsOut = sink.NewRejects(rf)
		rejects = rejectsOut
	}

	output := sink.NewCSV(out)
	src := source.NewCSV(in)
	unit := worker.New(layout, fetcher, extract.New(), output, rejects, logger.Named("lookup"))

	var reporter *progress.Reporter
	dcfg := dispatcher.Config{MaxConcurrency: cfg.Dispatch.MaxConcurrency}
	if cfg.Progress.Enabled {
		reporter = progress.NewReporter(progress.Config{
			Interval: cfg.Progress.Interval,
			Logger:   logger,
			Total:    countInputRows(opts.input, logger),
		})
		dcfg.OnSettle = reporter.Observe
	}
	d := dispatcher.New(unit, dcfg, logger.Named("dispatch"))

	logger.Info("enrichment starting",
		zap.String("layout", cfg.Schema.Layout),
		zap.Int("min_columns", layout.MaxIndex()+1),
		zap.Int("max_concurrency", cfg.Dispatch.MaxConcurrency),
		zap.String("endpoint", cfg.Lookup.Endpoint),
	)

	runCtx, stopAux := context.WithCancel(cmd.Context())
	defer stopAux()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return appInstance.ServeOperator(gctx)
	})
	if reporter != nil {
		g.Go(func() error {
			return reporter.Run(gctx)
		})
	}

	var stats dispatcher.Stats
	g.Go(func() error {
		// The operator server and reporter only live as long as dispatch.
		defer stopAux()
		appInstance.SetReady(true)
		defer appInstance.SetReady(false)

		var derr error
		stats, derr = d.Run(gctx, src)
		return derr
	})

	err = g.Wait()
	if reporter != nil {
		reporter.Close()
	}
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	fields := []zap.Field{
		zap.Int("input_rows", src.Rows()),
		zap.Int64("output_rows", output.Rows()),
		zap.Int("dropped", stats.Dropped),
		zap.Int("failed", stats.Failed),
	}
	if rejectsOut != nil {
		fields = append(fields, zap.Int64("rejected_rows", rejectsOut.Rows()))
	}
	logger.Info("enrichment finished", fields...)
	return nil
}

// countInputRows pre-scans a regular input file so progress lines can show
// percent and ETA. Stdin and non-regular files report zero, meaning unknown.
func countInputRows(path string, logger *zap.Logger) int64 {
	if path == "" || path == "-" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	n, err := source.Count(f)
	if err != nil {
		logger.Debug("input pre-scan failed, progress total unknown", zap.Error(err))
		return 0
	}
	return int64(n)
}

func openInput(path string, fallback io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return fallback, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
