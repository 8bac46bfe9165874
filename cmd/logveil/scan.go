package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/config"
	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/scanner"
	"github.com/logveil/logveil/internal/trace"
)

var (
	flagProfile     string
	flagProfileFile string
	flagProfilesDir string
	flagInclude     []string
	flagExclude     []string
	flagWorkers     int
	flagInPlace     bool
	flagSuffix      string
	flagNoAutoMatch bool
	flagTraceFile   string
	flagParquetFile string
	flagPostgresDSN string
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Sanitize log files on disk",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagProfile, "profile", "", "built-in profile to use (default, nginx, docker, cloudtrail, application)")
	cmd.Flags().StringVar(&flagProfileFile, "profile-file", "", "load the active profile from a YAML/JSON file")
	cmd.Flags().StringVar(&flagProfilesDir, "profiles-dir", "", "load additional profiles from a directory")
	cmd.Flags().StringSliceVar(&flagInclude, "include", nil, "include globs (e.g. '**/*.log')")
	cmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "exclude globs")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "worker count (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&flagInPlace, "in-place", false, "overwrite input files instead of writing siblings")
	cmd.Flags().StringVar(&flagSuffix, "suffix", ".redacted", "suffix for sanitized output files")
	cmd.Flags().BoolVar(&flagNoAutoMatch, "no-auto-match", false, "disable per-file profile selection by filename")
	cmd.Flags().StringVar(&flagTraceFile, "trace-file", "", "write the audit trail to this JSONL file")
	cmd.Flags().StringVar(&flagParquetFile, "parquet", "", "write the audit trail to this Parquet file")
	cmd.Flags().StringVar(&flagPostgresDSN, "postgres-dsn", "", "write the audit trail to this PostgreSQL database")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// CLI flags override config
	if flagProfile != "" {
		cfg.Redaction.Profile = flagProfile
		cfg.Redaction.ProfileFile = ""
	}
	if flagProfileFile != "" {
		cfg.Redaction.ProfileFile = flagProfileFile
	}
	if flagProfilesDir != "" {
		cfg.Redaction.ProfilesDir = flagProfilesDir
	}
	if flagWorkers > 0 {
		cfg.Redaction.Workers = flagWorkers
	}
	if flagTraceFile != "" {
		cfg.Audit.TraceFile = flagTraceFile
	}
	if flagParquetFile != "" {
		cfg.Audit.ParquetFile = flagParquetFile
	}
	if flagPostgresDSN != "" {
		cfg.Audit.PostgresDSN = flagPostgresDSN
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	manager, store, err := buildProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	agg := trace.NewAggregator()
	scan := scanner.New(store, manager, agg, log.WithComponent("scanner"), scanner.Options{
		Paths:        args,
		IncludeGlobs: flagInclude,
		ExcludeGlobs: flagExclude,
		Workers:      cfg.Redaction.Workers,
		AutoMatch:    cfg.Redaction.AutoMatch && !flagNoAutoMatch,
		InPlace:      flagInPlace,
		Suffix:       flagSuffix,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := scan.Run(ctx)
	if err != nil {
		return err
	}

	if err := writeAudit(ctx, cfg, log, agg); err != nil {
		return err
	}

	fmt.Printf("sanitized %d file(s), %d line(s), %d substitution(s) in %s\n",
		sum.Files, sum.Lines, sum.Traces, sum.Duration.Round(time.Millisecond))
	return nil
}

// writeAudit exports the collected audit trail to every configured sink
func writeAudit(ctx context.Context, cfg *config.Config, log *logger.Logger, agg *trace.Aggregator) error {
	if agg.Len() == 0 {
		return nil
	}

	if cfg.Audit.TraceFile != "" {
		if err := agg.WriteJSONL(cfg.Audit.TraceFile); err != nil {
			return fmt.Errorf("failed to write trace file: %w", err)
		}
		log.Info("Audit trail written", zap.String("file", cfg.Audit.TraceFile), zap.Int("entries", agg.Len()))
	}

	if cfg.Audit.ParquetFile != "" {
		if err := agg.WriteParquet(cfg.Audit.ParquetFile); err != nil {
			return fmt.Errorf("failed to write parquet file: %w", err)
		}
		log.Info("Audit trail written", zap.String("file", cfg.Audit.ParquetFile), zap.Int("entries", agg.Len()))
	}

	if cfg.Audit.PostgresDSN != "" {
		sink, err := trace.NewPostgresSink(ctx, cfg.Audit.PostgresDSN, log.WithComponent("audit"))
		if err != nil {
			return err
		}
		defer sink.Close()

		runID := time.Now().UTC().Format("20060102T150405Z")
		if err := sink.WriteRun(ctx, runID, agg.Entries()); err != nil {
			return err
		}
		log.Info("Audit trail written to database", zap.String("run_id", runID), zap.Int("entries", agg.Len()))
	}

	return nil
}
