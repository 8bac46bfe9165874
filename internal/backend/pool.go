package backend

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/redact"
)

// Pool is the high-throughput backend: it fans a batch of lines out to a
// fixed set of workers and reassembles results in input order. Lines are
// independent, so the only ordering work is indexing results back to their
// positions; the trace aggregator's stable sort does the rest.
type Pool struct {
	source  profile.Source
	workers int
	logger  *logger.Logger
}

// NewPool creates a worker-pool backend. workers <= 0 means GOMAXPROCS.
func NewPool(source profile.Source, workers int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{source: source, workers: workers, logger: log}
}

func (p *Pool) Name() string { return "pool" }

// Redact handles a single unit directly; the pool only pays fan-out cost
// for batches.
func (p *Pool) Redact(ctx context.Context, u redact.Unit) (redact.Result, error) {
	engine := redact.New(p.source.Active())
	return engine.Redact(u), nil
}

// RedactLines sanitizes a batch of lines concurrently. Results are returned
// in input order with 1-based line numbers starting at firstLine. A
// canceled context abandons the batch: no partial output is returned as if
// complete.
func (p *Pool) RedactLines(ctx context.Context, source string, firstLine int, lines []string) ([]redact.Result, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	// One engine per batch: every worker shares the same immutable profile
	// snapshot, so a reload mid-batch cannot split the batch across
	// profile versions.
	engine := redact.New(p.source.Active())

	results := make([]redact.Result, len(lines))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = engine.RedactLine(source, firstLine+i, lines[i])
			}
		}()
	}

	var err error
feed:
	for i := range lines {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if err != nil {
		p.logger.Warn("Batch abandoned",
			zap.String("source", source),
			zap.Error(err),
		)
		return nil, err
	}
	return results, nil
}

func (p *Pool) Close() error { return nil }
