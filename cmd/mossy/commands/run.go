package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mossy/mossy/pkg/config"
	"github.com/mossy/mossy/pkg/engine"
	"github.com/mossy/mossy/pkg/progress"
	"github.com/mossy/mossy/pkg/settings"
)

type runOptions struct {
	execute      []string
	output       string
	eta          bool
	workers      int
	format       string
	record       bool
	seed         uint64
	appendRandom bool
	metricsAddr  string
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
}

func newRunCommand(flags *globalFlags, version string) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [CONFIG...]",
		Short: "Compare the groups of a configuration",
		Long: `Interpret the configuration files, then compare every group with the
configured comparer and print one line per group.

Multiple files are interpreted as if they were concatenated; statements
given with -e follow them. Without files the configuration is read from
standard input.

A group that cannot be compared is printed with a NaN similarity and the
reason is logged.`,
		Example: `  # Compare with a configuration file
  mossy run pairs.conf

  # Override the comparer and show an ETA
  mossy run pairs.conf -e 'comparer = jiang("seco")' -t

  # Four workers, JSON lines into a file, and logs on stderr
  mossy run pairs.conf --workers 4 --format jsonl -o out.jsonl -l`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.stdin = cmd.InOrStdin()
			opts.stdout = cmd.OutOrStdout()
			opts.stderr = cmd.ErrOrStderr()
			return runRun(cmd, flags, version, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.execute, "execute", "e", nil, "execute `STMT` as if it came from a configuration file (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "", "write results to `FILE` instead of standard output")
	f.BoolVarP(&opts.eta, "eta", "t", false, "show an estimate of the remaining time on standard error")
	f.IntVar(&opts.workers, "workers", 0, "number of concurrent comparisons (overrides settings)")
	f.StringVar(&opts.format, "format", "", "output format: tsv or jsonl (overrides settings)")
	f.BoolVar(&opts.record, "record", false, "record the run and its results in the database")
	f.Uint64Var(&opts.seed, "seed", 0, "seed for add_random_pairs")
	f.BoolVar(&opts.appendRandom, "append-random-pairs", false, "make add_random_pairs keep the groups declared before it")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on `ADDR` while running")

	return cmd
}

func runRun(cmd *cobra.Command, flags *globalFlags, version string, opts *runOptions, args []string) error {
	env, err := setup(cmd, flags, version, func(s *settings.Settings) {
		if opts.workers > 0 {
			s.Run.Workers = opts.workers
		}
		if opts.format != "" {
			s.Run.Format = opts.format
		}
		if opts.record {
			s.Run.Record = true
		}
		if opts.metricsAddr != "" {
			s.Telemetry.MetricsAddr = opts.metricsAddr
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if err := env.tel.StartMetricsServer(env.ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	format, err := engine.ParseFormat(env.settings.Run.Format)
	if err != nil {
		return err
	}

	sources, err := readSources(args, opts.execute, opts.stdin)
	if err != nil {
		return err
	}

	store, err := env.openStore(false)
	if err != nil {
		return err
	}
	reg, err := env.registry(store)
	if err != nil {
		return err
	}

	var interpOpts []config.Option
	if cmd.Flags().Changed("seed") {
		interpOpts = append(interpOpts, config.WithSeed(opts.seed))
	}
	if opts.appendRandom {
		interpOpts = append(interpOpts, config.WithRandomPairsMode(config.RandomPairsAppend))
	}
	cfg, err := env.interpret(env.interpreter(reg, interpOpts...), sources)
	if err != nil {
		return err
	}

	out := opts.stdout
	var file io.Closer
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		file, out = f, f
	}
	writer := engine.NewWriter(out, format)

	runnerOpts := []engine.RunnerOption{
		engine.WithWorkers(env.settings.Run.Workers),
		engine.WithRetries(env.settings.Run.MaxRetries, engine.DefaultRetryDelay),
	}
	if env.settings.Run.Record {
		runnerOpts = append(runnerOpts, engine.WithRecorder(store, sourceNames(sources)))
	}
	var eta *progress.ETA
	if opts.eta {
		eta = progress.New(opts.stderr, cfg.Total())
		eta.Start()
		runnerOpts = append(runnerOpts, engine.WithProgress(eta))
	}

	summary, runErr := engine.NewRunner(runnerOpts...).Run(env.ctx, cfg, writer.Write)
	if err := finishOutput(writer, file); err != nil && runErr == nil {
		runErr = err
	}
	if eta != nil {
		eta.Finish()
	}
	if summary != nil && env.settings.Run.Record {
		fmt.Fprintf(opts.stderr, "Recorded run %s: %s\n", summary.RunID, summary)
	}
	return runErr
}

// finishOutput flushes writer and then closes file, if any. The file is
// closed even when the flush fails.
func finishOutput(writer *engine.Writer, file io.Closer) error {
	err := writer.Flush()
	if err != nil {
		err = fmt.Errorf("failed to write results: %w", err)
	}
	if file != nil {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}
	return err
}

func sourceNames(sources []config.Source) string {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	return strings.Join(names, ",")
}
