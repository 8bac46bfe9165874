package backend

import (
	"context"

	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/redact"
)

// Backend is the per-unit redaction contract. Every implementation must
// reproduce the same behavior for the same (unit, profile): identical rule
// precedence, entropy formula, and trace shape, so backends are freely
// interchangeable behind the dispatcher.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// Redact sanitizes one unit of input.
	Redact(ctx context.Context, u redact.Unit) (redact.Result, error)
	// Close releases backend resources.
	Close() error
}

// InProcess is the reference backend: a direct call into the redaction
// engine against the store's active profile. It never returns an error.
type InProcess struct {
	source profile.Source
}

// NewInProcess creates the in-process backend.
func NewInProcess(source profile.Source) *InProcess {
	return &InProcess{source: source}
}

func (b *InProcess) Name() string { return "inprocess" }

func (b *InProcess) Redact(ctx context.Context, u redact.Unit) (redact.Result, error) {
	// Snapshot the profile once; the unit sees fully the old or fully the
	// new profile across a concurrent reload, never a mix.
	engine := redact.New(b.source.Active())
	return engine.Redact(u), nil
}

func (b *InProcess) Close() error { return nil }
