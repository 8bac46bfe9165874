package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logveil/logveil/internal/config"
	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
)

var (
	flagConfig  string
	flagVerbose bool
)

// rootCmd is the base Cobra command for the logveil CLI.
var rootCmd = &cobra.Command{
	Use:           "logveil",
	Short:         "Sanitize secrets out of log files",
	Long:          "Logveil redacts secrets, credentials and PII from log files and structured documents using pattern profiles, entropy analysis and key-path rules, keeping an audit trail of every substitution.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the logveil CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads configuration and applies CLI-level overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// buildLogger creates the process logger from configuration
func buildLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		lc.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}
	return logger.New(lc)
}

// buildProfiles creates the profile manager and the reloadable store holding
// the configured active profile.
func buildProfiles(cfg *config.Config, log *logger.Logger) (*profile.Manager, *profile.Store, error) {
	manager, err := profile.NewManager(log.WithComponent("profile"))
	if err != nil {
		return nil, nil, err
	}

	if cfg.Redaction.ProfilesDir != "" {
		if err := manager.LoadDir(cfg.Redaction.ProfilesDir); err != nil {
			return nil, nil, err
		}
	}

	var active *profile.Profile
	if cfg.Redaction.ProfileFile != "" {
		p, err := manager.LoadFile(cfg.Redaction.ProfileFile)
		if err != nil {
			return nil, nil, err
		}
		active = p
	} else {
		p, ok := manager.Get(cfg.Redaction.Profile)
		if !ok {
			return nil, nil, fmt.Errorf("unknown profile: %s", cfg.Redaction.Profile)
		}
		active = p
	}

	store := profile.NewStore(active, log.WithComponent("profile"))
	if cfg.Redaction.Watch && cfg.Redaction.ProfileFile != "" {
		if err := store.Watch(cfg.Redaction.ProfileFile); err != nil {
			return nil, nil, err
		}
	}
	return manager, store, nil
}
