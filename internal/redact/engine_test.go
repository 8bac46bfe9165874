package redact

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactLine(t *testing.T) {
	engine := New(compileDefault(t))

	t.Run("TraceMetadata", func(t *testing.T) {
		res := engine.RedactLine("app.log", 42, "user admin@example.com key="+highEntropyToken)
		if len(res.Traces) != 2 {
			t.Fatalf("Expected 2 traces, got %d: %+v", len(res.Traces), res.Traces)
		}
		for i, tr := range res.Traces {
			if tr.Source != "app.log" || tr.Line != 42 {
				t.Errorf("Trace %d missing source/line: %+v", i, tr)
			}
			if tr.Seq != i {
				t.Errorf("Trace %d has seq %d", i, tr.Seq)
			}
		}
		// Pattern traces come before entropy traces
		if res.Traces[0].Reason != ReasonPatternMatch || res.Traces[1].Reason != ReasonEntropy {
			t.Errorf("Detection order wrong: %+v", res.Traces)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := engine.RedactLine("s", 1, "mail admin@example.com password=hunter2 secret="+highEntropyToken)
		second := engine.RedactLine("s", 1, first.Text)
		if second.Text != first.Text {
			t.Errorf("Second pass changed output: %q -> %q", first.Text, second.Text)
		}
		if len(second.Traces) != 0 {
			t.Errorf("Second pass produced traces: %+v", second.Traces)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		res := engine.RedactLine("s", 1, "bad \xff bytes")
		if len(res.Notes) != 1 || !strings.Contains(res.Notes[0], "invalid UTF-8") {
			t.Errorf("Expected invalid UTF-8 note, got %v", res.Notes)
		}
		if !strings.Contains(res.Text, "�") {
			t.Errorf("Invalid bytes not replaced: %q", res.Text)
		}
	})

	t.Run("EmptyLine", func(t *testing.T) {
		res := engine.RedactLine("s", 1, "")
		if res.Text != "" || len(res.Traces) != 0 {
			t.Errorf("Empty line produced output %q with %d traces", res.Text, len(res.Traces))
		}
	})
}

func TestRedactText(t *testing.T) {
	engine := New(compileDefault(t))

	text := "first a@x.com\nnothing here\nlast b@y.org"
	res := engine.RedactText("multi.log", 10, text)

	lines := strings.Split(res.Text, "\n")
	if len(lines) != 3 {
		t.Fatalf("Line count changed: %q", res.Text)
	}
	if lines[1] != "nothing here" {
		t.Errorf("Clean line modified: %q", lines[1])
	}

	if len(res.Traces) != 2 {
		t.Fatalf("Expected 2 traces, got %d", len(res.Traces))
	}
	if res.Traces[0].Line != 10 || res.Traces[1].Line != 12 {
		t.Errorf("Line numbers wrong: %d, %d", res.Traces[0].Line, res.Traces[1].Line)
	}
	// Seq is renumbered across the whole unit
	if res.Traces[0].Seq != 0 || res.Traces[1].Seq != 1 {
		t.Errorf("Seq not renumbered: %+v", res.Traces)
	}
}

// TestRedactMultiLineUnit covers a whole multi-line blob arriving as one
// unit, as stdin does: traces must carry per-line numbers, not all line 1.
func TestRedactMultiLineUnit(t *testing.T) {
	engine := New(compileDefault(t))

	res := engine.Redact(Unit{
		Source: "stdin",
		Line:   1,
		Text:   "first a@x.com\nnothing here\nlast b@y.org",
	})

	if len(res.Traces) != 2 {
		t.Fatalf("Expected 2 traces, got %d", len(res.Traces))
	}
	if res.Traces[0].Line != 1 || res.Traces[1].Line != 3 {
		t.Errorf("Line numbers wrong: %d, %d", res.Traces[0].Line, res.Traces[1].Line)
	}
	if strings.Count(res.Text, "\n") != 2 {
		t.Errorf("Line structure changed: %q", res.Text)
	}
}

func TestRedactDocument(t *testing.T) {
	engine := New(compileDefault(t))

	t.Run("JSONObject", func(t *testing.T) {
		res := engine.Redact(Unit{
			Source:     "doc.json",
			Line:       1,
			Text:       `{"user":{"email":"a@b.co"},"count":5}`,
			Structured: true,
		})
		if res.Document == nil {
			t.Fatal("Expected a parsed document")
		}

		var decoded map[string]any
		if err := json.Unmarshal([]byte(res.Text), &decoded); err != nil {
			t.Fatalf("Output is not valid JSON: %v", err)
		}
		user := decoded["user"].(map[string]any)
		if user["email"] != "[REDACTED_EMAIL]" {
			t.Errorf("Email leaf not redacted: %v", user["email"])
		}
		if decoded["count"].(float64) != 5 {
			t.Errorf("Non-string leaf changed: %v", decoded["count"])
		}
		if len(res.Traces) != 1 || res.Traces[0].Path != "user.email" {
			t.Errorf("Unexpected traces: %+v", res.Traces)
		}
	})

	t.Run("YAMLDocument", func(t *testing.T) {
		res := engine.Redact(Unit{
			Source:     "doc.yaml",
			Line:       1,
			Text:       "user:\n  email: a@b.co\n",
			Structured: true,
		})
		if res.Document == nil {
			t.Fatal("Expected a parsed document")
		}
		if !strings.Contains(res.Text, "[REDACTED_EMAIL]") {
			t.Errorf("YAML output not redacted: %q", res.Text)
		}
	})

	t.Run("UnparsableFallsBackToText", func(t *testing.T) {
		res := engine.Redact(Unit{
			Source:     "s",
			Line:       1,
			Text:       "plain text with a@b.co inside",
			Structured: true,
		})
		foundNote := false
		for _, n := range res.Notes {
			if strings.Contains(n, "treated as text") {
				foundNote = true
			}
		}
		if !foundNote {
			t.Errorf("Expected fallback note, got %v", res.Notes)
		}
		if !strings.Contains(res.Text, "[REDACTED_EMAIL]") {
			t.Errorf("Fallback did not redact: %q", res.Text)
		}
	})

	t.Run("BareScalarIsText", func(t *testing.T) {
		res := engine.Redact(Unit{Source: "s", Line: 1, Text: "42", Structured: true})
		if res.Document != nil {
			t.Errorf("Bare scalar treated as document: %v", res.Document)
		}
		if res.Text != "42" {
			t.Errorf("Bare scalar modified: %q", res.Text)
		}
	})
}
