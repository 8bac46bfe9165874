package backend

import (
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
)

// WorkloadHints describe a batch job so the dispatcher can pick a backend.
type WorkloadHints struct {
	FileCount int
	TotalSize int64
	Streaming bool
}

// Dispatcher selects a backend for a workload. Selection is external to the
// core: every backend honors the same contract, so the choice only affects
// throughput, never output.
type Dispatcher struct {
	source      profile.Source
	execBinary  string
	execTimeout time.Duration
	logger      *logger.Logger
}

// NewDispatcher creates a dispatcher. execBinary optionally names an
// external engine to prefer for single large documents; an empty value or a
// missing binary disables the exec backend.
func NewDispatcher(source profile.Source, execBinary string, execTimeout time.Duration, log *logger.Logger) *Dispatcher {
	if execBinary != "" {
		if _, err := exec.LookPath(execBinary); err != nil {
			log.Warn("External engine binary not found, exec backend disabled",
				zap.String("binary", execBinary),
				zap.Error(err),
			)
			execBinary = ""
		}
	}
	return &Dispatcher{source: source, execBinary: execBinary, execTimeout: execTimeout, logger: log}
}

// Select returns the backend best suited to the hinted workload.
func (d *Dispatcher) Select(hints WorkloadHints) Backend {
	const largeBatch = 64 << 20 // 64 MiB

	if hints.Streaming || hints.FileCount > 1 || hints.TotalSize > largeBatch {
		d.logger.Debug("Selected pool backend",
			zap.Int("file_count", hints.FileCount),
			zap.Int64("total_size", hints.TotalSize),
		)
		return NewPool(d.source, 0, d.logger)
	}

	d.logger.Debug("Selected in-process backend")
	return NewInProcess(d.source)
}

// ExecBackend returns the configured cross-process backend, or nil when no
// external engine is available.
func (d *Dispatcher) ExecBackend() Backend {
	if d.execBinary == "" {
		return nil
	}
	return NewExec(d.execBinary, d.execTimeout, d.logger)
}
