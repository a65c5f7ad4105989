// Package commands implements CLI command handlers for githarvest.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/githarvest/pkg/config"
	"github.com/Sumatoshi-tech/githarvest/pkg/extract"
	"github.com/Sumatoshi-tech/githarvest/pkg/observability"
	"github.com/Sumatoshi-tech/githarvest/pkg/sink"
	"github.com/Sumatoshi-tech/githarvest/pkg/version"
)

// Sentinel errors for the extract command.
var (
	ErrNoRepositories    = errors.New("no repositories provided; pass paths or --parent-dir")
	ErrInvalidTimeFormat = errors.New("cannot parse time")
	ErrReposFailed       = errors.New("one or more repositories failed")
)

// ExtractCommand holds the configuration for the extract command.
type ExtractCommand struct {
	configPath  string
	output      string
	parentDirs  []string
	since       string
	until       string
	branch      string
	firstParent bool
	workers     int
	flushEvery  int
	format      string
	noColor     bool
}

// NewExtractCommand creates and configures the extract command.
func NewExtractCommand() *cobra.Command {
	ec := &ExtractCommand{}

	cobraCmd := &cobra.Command{
		Use:   "extract [repository...]",
		Short: "Extract commit history from git repositories",
		Long: `Extract walks the commit history of one or more local git repositories
and writes one newline-delimited JSON record per commit.

Commits are emitted oldest first, in reverse chronological-topological
order. Merge commits are diffed against their first parent. Output ending
in .gz is gzip-compressed, .lz4 is lz4-compressed.`,
		RunE: ec.run,
	}

	cobraCmd.Flags().StringVarP(&ec.configPath, "config", "c", "", "Config file path")
	cobraCmd.Flags().StringVarP(&ec.output, "output", "o", "", "Output file path (default commits.json.gz)")
	cobraCmd.Flags().StringSliceVar(&ec.parentDirs, "parent-dir", nil, "Scan immediate subdirectories for git repositories")
	cobraCmd.Flags().StringVar(&ec.since, "since", "", "Only extract commits after this time (e.g. '24h', '2024-01-01', RFC3339)")
	cobraCmd.Flags().StringVar(&ec.until, "until", "", "Only extract commits before this time")
	cobraCmd.Flags().StringVar(&ec.branch, "branch", "", "Walk this branch instead of HEAD")
	cobraCmd.Flags().BoolVar(&ec.firstParent, "first-parent", false, "Follow only first parent of merge commits")
	cobraCmd.Flags().IntVar(&ec.workers, "workers", 0, "Parallel repository workers (0 = CPU count)")
	cobraCmd.Flags().IntVar(&ec.flushEvery, "flush-every", 0, "Records between forced output flushes")
	cobraCmd.Flags().StringVarP(&ec.format, "format", "f", "table", "Run summary format (table, json, yaml)")
	cobraCmd.Flags().BoolVar(&ec.noColor, "no-color", false, "Disable colorized summary output")

	return cobraCmd
}

// run executes the extraction across all requested repositories.
func (ec *ExtractCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := ec.loadConfig(cmd, args)
	if err != nil {
		return err
	}

	paths, err := resolveRepoPaths(cfg)
	if err != nil {
		return err
	}

	opts, err := buildPassOptions(cfg.Extract)
	if err != nil {
		return err
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "githarvest",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		LogLevel:       cfg.Logging.Level,
		LogFormat:      cfg.Logging.Format,
	})
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = providers.Shutdown(shutdownCtx)
	}()

	metrics, err := observability.NewExtractionMetrics(providers.Meter)
	if err != nil {
		return err
	}

	out, err := sink.Create(cfg.Output, sink.Options{FlushEvery: cfg.Extract.FlushEvery})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &extract.Runner{
		Options: opts,
		Workers: cfg.Extract.Workers,
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
		Metrics: metrics,
	}

	results := runner.Run(ctx, paths, out)

	closeErr := out.Close()
	if closeErr != nil {
		return closeErr
	}

	summaryErr := RenderSummary(os.Stderr, results, ec.format, ec.noColor)
	if summaryErr != nil {
		return summaryErr
	}

	for _, result := range results {
		if result.Failed() {
			return ErrReposFailed
		}
	}

	providers.Logger.Info("extraction complete",
		"repositories", len(results), "records", out.Count(), "output", cfg.Output)

	return nil
}

// loadConfig loads the config file and applies flag overrides on top.
func (ec *ExtractCommand) loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(ec.configPath)
	if err != nil {
		return nil, err
	}

	cfg.Repos = append(cfg.Repos, args...)
	cfg.ParentDirs = append(cfg.ParentDirs, ec.parentDirs...)

	if cmd.Flags().Changed("output") {
		cfg.Output = ec.output
	}

	if cmd.Flags().Changed("since") {
		cfg.Extract.Since = ec.since
	}

	if cmd.Flags().Changed("until") {
		cfg.Extract.Until = ec.until
	}

	if cmd.Flags().Changed("branch") {
		cfg.Extract.Branch = ec.branch
	}

	if cmd.Flags().Changed("first-parent") {
		cfg.Extract.FirstParent = ec.firstParent
	}

	if cmd.Flags().Changed("workers") {
		cfg.Extract.Workers = ec.workers
	}

	if cmd.Flags().Changed("flush-every") {
		cfg.Extract.FlushEvery = ec.flushEvery
	}

	return cfg, nil
}

// resolveRepoPaths expands parent dirs, merges explicit repo paths and
// deduplicates, preserving order.
func resolveRepoPaths(cfg *config.Config) ([]string, error) {
	paths := make([]string, 0, len(cfg.Repos))
	paths = append(paths, cfg.Repos...)

	for _, parent := range cfg.ParentDirs {
		discovered, err := extract.DiscoverRepos(parent)
		if err != nil {
			return nil, err
		}

		paths = append(paths, discovered...)
	}

	paths = extract.DedupePaths(paths)

	if len(paths) == 0 {
		return nil, ErrNoRepositories
	}

	return paths, nil
}

// buildPassOptions converts string config into traversal options.
func buildPassOptions(cfg config.ExtractConfig) (extract.Options, error) {
	opts := extract.Options{
		Branch:      cfg.Branch,
		FirstParent: cfg.FirstParent,
	}

	if cfg.Since != "" {
		since, err := parseTime(cfg.Since)
		if err != nil {
			return extract.Options{}, fmt.Errorf("invalid --since: %w", err)
		}

		opts.Since = &since
	}

	if cfg.Until != "" {
		until, err := parseTime(cfg.Until)
		if err != nil {
			return extract.Options{}, fmt.Errorf("invalid --until: %w", err)
		}

		opts.Until = &until
	}

	return opts, nil
}

func parseTime(s string) (time.Time, error) {
	// Try parsing as duration (e.g., "24h") relative to now.
	d, durationErr := time.ParseDuration(s)
	if durationErr == nil {
		return time.Now().Add(-d), nil
	}

	// Try RFC3339.
	parsedTime, rfc3339Err := time.Parse(time.RFC3339, s)
	if rfc3339Err == nil {
		return parsedTime, nil
	}

	// Try YYYY-MM-DD.
	parsedTime, dateOnlyErr := time.Parse(time.DateOnly, s)
	if dateOnlyErr == nil {
		return parsedTime, nil
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, s)
}
