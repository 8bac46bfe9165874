package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/logveil/logveil/internal/redact"
)

// Aggregator collects per-unit traces into one ordered audit log. Appends
// are serialized behind a mutex so any number of workers can feed it; the
// exported order is always ascending (source, line, in-line detection
// order), so concurrent and single-threaded runs over the same input
// produce byte-identical audit output.
type Aggregator struct {
	mu      sync.Mutex
	entries []redact.Trace
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add copies the traces of one sanitized result into the aggregator.
func (a *Aggregator) Add(traces []redact.Trace) {
	if len(traces) == 0 {
		return
	}
	a.mu.Lock()
	a.entries = append(a.entries, traces...)
	a.mu.Unlock()
}

// Len returns the number of collected traces.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries returns the collected traces in their stable total order,
// regardless of which worker finished first.
func (a *Aggregator) Entries() []redact.Trace {
	a.mu.Lock()
	out := make([]redact.Trace, len(a.entries))
	copy(out, a.entries)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// WriteJSONL appends the ordered audit log to a file, one JSON record per
// line. The file is owner-only: traces contain the original secrets.
func (a *Aggregator) WriteJSONL(path string) error {
	entries := a.Entries()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open trace log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("failed to write trace record: %w", err)
		}
	}
	return nil
}

// Reset discards all collected traces.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.entries = nil
	a.mu.Unlock()
}
