package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logveil/logveil/internal/backend"
	"github.com/logveil/logveil/internal/redact"
)

var (
	flagText       string
	flagStructured bool
	flagTraces     bool
	flagExecBinary string
)

func init() {
	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Sanitize text from stdin or --text and print it",
		RunE:  runSanitize,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagText, "text", "", "text to sanitize (default: read stdin)")
	cmd.Flags().BoolVar(&flagStructured, "structured", false, "parse input as a JSON/YAML document")
	cmd.Flags().BoolVar(&flagTraces, "traces", false, "print the audit trail as JSONL on stderr")
	cmd.Flags().StringVar(&flagProfile, "profile", "", "built-in profile to use")
	cmd.Flags().StringVar(&flagProfileFile, "profile-file", "", "load the active profile from a YAML/JSON file")
	cmd.Flags().StringVar(&flagExecBinary, "exec-binary", "", "delegate to an external engine binary")
}

func runSanitize(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagProfile != "" {
		cfg.Redaction.Profile = flagProfile
		cfg.Redaction.ProfileFile = ""
	}
	if flagProfileFile != "" {
		cfg.Redaction.ProfileFile = flagProfileFile
	}
	if flagExecBinary != "" {
		cfg.Redaction.ExecBinary = flagExecBinary
	}
	// One-shot invocation, nothing to reload
	cfg.Redaction.Watch = false

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	_, store, err := buildProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	text := flagText
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := backend.NewDispatcher(store, cfg.Redaction.ExecBinary, cfg.Redaction.ExecTimeout, log.WithComponent("backend"))
	be := dispatcher.ExecBackend()
	if be == nil {
		be = dispatcher.Select(backend.WorkloadHints{TotalSize: int64(len(text))})
	}
	defer be.Close()

	result, err := be.Redact(ctx, redact.Unit{
		Source:     "stdin",
		Line:       1,
		Text:       text,
		Structured: flagStructured,
	})
	if err != nil {
		return err
	}

	fmt.Print(result.Text)
	if len(result.Text) > 0 && result.Text[len(result.Text)-1] != '\n' {
		fmt.Println()
	}

	if flagTraces {
		enc := json.NewEncoder(os.Stderr)
		for _, t := range result.Traces {
			if err := enc.Encode(t); err != nil {
				return err
			}
		}
	}
	return nil
}
