package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/redact"
)

// Exec is the cross-process backend adapter: it shells out to an external
// engine binary that implements the same per-unit contract, speaking JSON
// over stdin/stdout. Timeouts and error translation live here, at the
// adapter boundary, never inside the engine.
type Exec struct {
	binary  string
	timeout time.Duration
	logger  *logger.Logger
}

// NewExec creates an exec backend for the given binary path.
func NewExec(binary string, timeout time.Duration, log *logger.Logger) *Exec {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Exec{binary: binary, timeout: timeout, logger: log}
}

func (b *Exec) Name() string { return "exec" }

// execRequest is the wire form of one unit sent to the external engine.
type execRequest struct {
	Source     string `json:"source"`
	Line       int    `json:"line"`
	Text       string `json:"text"`
	Structured bool   `json:"structured"`
}

// Redact runs the external binary for one unit. The child's stdout must be
// a single JSON-encoded result; anything else is translated into a backend
// error so the caller can fall back to another backend.
func (b *Exec) Redact(ctx context.Context, u redact.Unit) (redact.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	input, err := json.Marshal(execRequest{
		Source:     u.Source,
		Line:       u.Line,
		Text:       u.Text,
		Structured: u.Structured,
	})
	if err != nil {
		return redact.Result{}, fmt.Errorf("exec backend: failed to encode unit: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.binary, "redact")
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return redact.Result{}, fmt.Errorf("exec backend: %s timed out after %s", b.binary, b.timeout)
		}
		return redact.Result{}, fmt.Errorf("exec backend: %s failed: %w (stderr: %s)",
			b.binary, runErr, stderr.String())
	}

	var result redact.Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return redact.Result{}, fmt.Errorf("exec backend: %s produced invalid output: %w", b.binary, err)
	}

	b.logger.Debug("External engine call completed",
		zap.String("binary", b.binary),
		zap.Duration("duration", duration),
		zap.Int("traces", len(result.Traces)),
	)
	return result, nil
}

func (b *Exec) Close() error { return nil }
