package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
	"github.com/kornysietsma/polyglot-code-scanner/internal/output"
	"github.com/kornysietsma/polyglot-code-scanner/internal/scan"
	"github.com/kornysietsma/polyglot-code-scanner/internal/slogutil"
	"github.com/kornysietsma/polyglot-code-scanner/internal/storage"
)

type scanOptions struct {
	configPath string
	outputPath string
	name       string
	id         string
	verbose    int
	quiet      bool
	logFile    string

	noGit          bool
	years          int
	backend        string
	details        bool
	followSymlinks bool
	redact         bool

	format string
	indent bool
	sqlite string

	coupling       bool
	bucketDays     int
	minBursts      int
	minGapMinutes  int
	overlapMinutes int
	minRatio       float64
	minDistance    int
	maxCommonRoots int
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	d := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a directory and write the data file",
		Long: `Scan a directory, read its git history and write a data file.

Flags override values from .polyglot/config.toml and POLYGLOT_* environment
variables. Output ending in .zst or .gz is compressed.

Examples:
  polyglot scan
  polyglot scan ~/src/project -o project.json.zst
  polyglot scan --coupling --coupling-min-ratio 0.6
  polyglot scan --no-git --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default <root>/.polyglot/config.toml)")
	f.StringVarP(&opts.outputPath, "output", "o", "-", "Output file, - for stdout")
	f.StringVar(&opts.name, "name", "", "Name of the root node (default: directory name)")
	f.StringVar(&opts.id, "id", "", "Data file id (default: random UUID)")
	f.CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress log output")
	f.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file")

	f.BoolVar(&opts.noGit, "no-git", false, "Skip git history")
	f.IntVar(&opts.years, "git-years", d.History.Years, "Years of history to scan")
	f.StringVar(&opts.backend, "backend", d.History.Backend, "History reader: native or cli")
	f.BoolVar(&opts.details, "git-details", d.History.Detailed, "Include per-burst details")
	f.BoolVar(&opts.followSymlinks, "follow-symlinks", false, "Treat symlinks as files")
	f.BoolVar(&opts.redact, "redact", false, "Replace user emails with digests")

	f.StringVar(&opts.format, "format", d.Output.Format, "Output format: json or yaml")
	f.BoolVar(&opts.indent, "indent", d.Output.Indent, "Indent the output")
	f.StringVar(&opts.sqlite, "sqlite", "", "Also export results to this SQLite database")

	f.BoolVar(&opts.coupling, "coupling", d.Coupling.Enabled, "Compute temporal coupling")
	f.IntVar(&opts.bucketDays, "coupling-bucket-days", d.Coupling.BucketDays, "Coupling bucket width in days")
	f.IntVar(&opts.minBursts, "coupling-min-bursts", d.Coupling.MinBursts, "Bursts needed for a file to be active in a bucket")
	f.IntVar(&opts.minGapMinutes, "coupling-min-activity-gap-minutes", d.Coupling.MinActivityGapMinutes, "Gap that splits bursts")
	f.IntVar(&opts.overlapMinutes, "coupling-time-overlap-minutes", d.Coupling.TimeOverlapMinutes, "Padding applied to bursts before the overlap test")
	f.Float64Var(&opts.minRatio, "coupling-min-ratio", d.Coupling.MinRatio, "Minimum ratio for an edge")
	f.IntVar(&opts.minDistance, "coupling-min-distance", d.Coupling.MinDistance, "Minimum tree distance between coupled files")
	f.IntVar(&opts.maxCommonRoots, "coupling-max-common-roots", d.Coupling.MaxCommonRoots, "Maximum shared leading directories (0 = unlimited)")

	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.LoadConfig(root, opts.configPath)
	if err != nil {
		return err
	}
	if err := applyScanFlags(cmd, opts, cfg); err != nil {
		return err
	}

	level := slogutil.LevelFromString(cfg.Logging.Level)
	if cmd.Flags().Changed("verbose") || opts.quiet {
		level = slogutil.LevelFromVerbosity(opts.verbose, opts.quiet)
	}
	logger, closer, err := slogutil.NewScanLogger(cmd.ErrOrStderr(), cfg.Logging, level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = closer.Close() }()

	scanner, err := scan.NewScanner(cfg, logger)
	if err != nil {
		return err
	}
	res, err := scanner.Run(cmd.Context(), scan.Request{
		Root: cfg.RepoRoot,
		Name: opts.name,
		ID:   opts.id,
	})
	if err != nil {
		return err
	}

	indent := 0
	if cfg.Output.Indent {
		indent = 2
	}
	data, err := output.Encode(res.Document, output.Format(cfg.Output.Format), indent)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := output.Write(opts.outputPath, data, cmd.OutOrStdout()); err != nil {
		return err
	}

	if cfg.Output.SQLitePath != "" {
		if err := storage.ExportFile(cmd.Context(), cfg.Output.SQLitePath, res.Document, logger); err != nil {
			return err
		}
	}
	logger.Debug("Output written", slog.String("path", opts.outputPath), slog.Int("bytes", len(data)))
	return nil
}

// applyScanFlags copies explicitly set flags over cfg and checks that the
// requested features fit together.
func applyScanFlags(cmd *cobra.Command, opts *scanOptions, cfg *config.Config) error {
	f := cmd.Flags()

	if opts.noGit {
		if f.Changed("coupling") && opts.coupling {
			return &config.ConfigError{Field: "coupling.enabled", Message: "--coupling requires git history"}
		}
		if f.Changed("git-details") && opts.details {
			return &config.ConfigError{Field: "history.detailed", Message: "--git-details requires git history"}
		}
		cfg.History.Enabled = false
		cfg.History.Detailed = false
		cfg.Coupling.Enabled = false
	}

	if f.Changed("git-years") {
		cfg.History.Years = opts.years
	}
	if f.Changed("backend") {
		cfg.History.Backend = opts.backend
	}
	if f.Changed("git-details") {
		cfg.History.Detailed = opts.details
	}
	if f.Changed("follow-symlinks") {
		cfg.History.FollowSymlinks = opts.followSymlinks
	}
	if f.Changed("redact") {
		cfg.Privacy.Mode = config.PrivacyNormal
		if opts.redact {
			cfg.Privacy.Mode = config.PrivacyRedacted
		}
	}

	if f.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if f.Changed("indent") {
		cfg.Output.Indent = opts.indent
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLitePath = opts.sqlite
	}
	if f.Changed("log-file") {
		cfg.Logging.File = opts.logFile
	}

	if f.Changed("coupling") {
		cfg.Coupling.Enabled = opts.coupling
	}
	if f.Changed("coupling-bucket-days") {
		cfg.Coupling.BucketDays = opts.bucketDays
	}
	if f.Changed("coupling-min-bursts") {
		cfg.Coupling.MinBursts = opts.minBursts
	}
	if f.Changed("coupling-min-activity-gap-minutes") {
		cfg.Coupling.MinActivityGapMinutes = opts.minGapMinutes
	}
	if f.Changed("coupling-time-overlap-minutes") {
		cfg.Coupling.TimeOverlapMinutes = opts.overlapMinutes
	}
	if f.Changed("coupling-min-ratio") {
		cfg.Coupling.MinRatio = opts.minRatio
	}
	if f.Changed("coupling-min-distance") {
		cfg.Coupling.MinDistance = opts.minDistance
	}
	if f.Changed("coupling-max-common-roots") {
		cfg.Coupling.MaxCommonRoots = opts.maxCommonRoots
	}

	return cfg.Validate()
}
