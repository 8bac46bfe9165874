package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/redact"
)

func testStore(t *testing.T) *profile.Store {
	t.Helper()
	p, err := profile.Default().Compile()
	if err != nil {
		t.Fatalf("Failed to compile default profile: %v", err)
	}
	return profile.NewStore(p, logger.NewNop())
}

// TestPoolMatchesSequential runs the same batch through the worker pool and
// a plain sequential engine; outputs and per-line traces must be identical.
func TestPoolMatchesSequential(t *testing.T) {
	store := testStore(t)

	lines := make([]string, 200)
	for i := range lines {
		switch i % 3 {
		case 0:
			lines[i] = fmt.Sprintf("user%d@example.com logged in", i)
		case 1:
			lines[i] = fmt.Sprintf("request %d ok", i)
		default:
			lines[i] = fmt.Sprintf("password=secret%d from 10.0.0.%d", i, i%255)
		}
	}

	pool := NewPool(store, 8, logger.NewNop())
	got, err := pool.RedactLines(context.Background(), "batch.log", 1, lines)
	if err != nil {
		t.Fatalf("RedactLines failed: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("Expected %d results, got %d", len(lines), len(got))
	}

	engine := redact.New(store.Active())
	for i, line := range lines {
		want := engine.RedactLine("batch.log", i+1, line)
		if got[i].Text != want.Text {
			t.Errorf("Line %d text differs: %q vs %q", i, got[i].Text, want.Text)
		}
		if len(got[i].Traces) != len(want.Traces) {
			t.Errorf("Line %d trace count differs: %d vs %d", i, len(got[i].Traces), len(want.Traces))
			continue
		}
		for j := range want.Traces {
			if got[i].Traces[j] != want.Traces[j] {
				t.Errorf("Line %d trace %d differs: %+v vs %+v", i, j, got[i].Traces[j], want.Traces[j])
			}
		}
	}
}

func TestPoolCanceledContext(t *testing.T) {
	store := testStore(t)
	pool := NewPool(store, 1, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines := make([]string, 10000)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d with admin@example.com", i)
	}

	results, err := pool.RedactLines(ctx, "canceled.log", 1, lines)
	if err == nil {
		t.Fatal("Expected an error from a canceled batch")
	}
	if results != nil {
		t.Error("Canceled batch must not return partial results")
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	store := testStore(t)
	pool := NewPool(store, 4, logger.NewNop())

	results, err := pool.RedactLines(context.Background(), "empty.log", 1, nil)
	if err != nil || results != nil {
		t.Errorf("Empty batch: got %v, %v", results, err)
	}
}

func TestInProcessBackend(t *testing.T) {
	store := testStore(t)
	be := NewInProcess(store)

	if be.Name() != "inprocess" {
		t.Errorf("Unexpected backend name: %q", be.Name())
	}

	res, err := be.Redact(context.Background(), redact.Unit{
		Source: "s",
		Line:   1,
		Text:   "token for admin@example.com",
	})
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if res.Text != "token for [REDACTED_EMAIL]" {
		t.Errorf("Unexpected output: %q", res.Text)
	}
	if err := be.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
