package redact

import (
	"encoding/json"
	"testing"

	"github.com/logveil/logveil/internal/profile"
)

func compileKeyPathProfile(t *testing.T) *profile.Profile {
	t.Helper()
	def := &profile.Definition{
		Name: "keypaths",
		KeyPaths: []profile.KeyPathRule{
			{Path: "user.password", Action: profile.ActionRedact},
			{Path: "token", Action: profile.ActionMask},
			{Path: "internal.debug", Action: profile.ActionRemove},
			{Path: "users.password", Action: profile.ActionRedact, Replacement: "[HIDDEN]"},
		},
	}
	p, err := def.Compile()
	if err != nil {
		t.Fatalf("Failed to compile key path profile: %v", err)
	}
	return p
}

func redactJSON(t *testing.T, engine *Engine, input string) (map[string]any, Result) {
	t.Helper()
	res := engine.Redact(Unit{Source: "doc.json", Line: 1, Text: input, Structured: true})
	if res.Document == nil {
		t.Fatalf("Input did not parse as a document: %q", input)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(res.Text), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	return decoded, res
}

func TestKeyPathActions(t *testing.T) {
	engine := New(compileKeyPathProfile(t))

	t.Run("Redact", func(t *testing.T) {
		doc, res := redactJSON(t, engine, `{"user":{"password":"hunter2","name":"bob"}}`)
		user := doc["user"].(map[string]any)
		if user["password"] != "[REDACTED]" {
			t.Errorf("Password not redacted: %v", user["password"])
		}
		if user["name"] != "bob" {
			t.Errorf("Unmatched sibling changed: %v", user["name"])
		}
		if len(res.Traces) != 1 {
			t.Fatalf("Expected 1 trace, got %+v", res.Traces)
		}
		tr := res.Traces[0]
		if tr.Path != "user.password" || tr.Rule != "user.password" || tr.Reason != ReasonKeyPath {
			t.Errorf("Unexpected trace: %+v", tr)
		}
		if tr.Original != "hunter2" {
			t.Errorf("Trace lost original value: %q", tr.Original)
		}
	})

	t.Run("Mask", func(t *testing.T) {
		doc, _ := redactJSON(t, engine, `{"token":"abcdef"}`)
		if doc["token"] != "ab**ef" {
			t.Errorf("Expected ab**ef, got %v", doc["token"])
		}
	})

	t.Run("Remove", func(t *testing.T) {
		doc, res := redactJSON(t, engine, `{"internal":{"debug":"stacktrace","level":"info"}}`)
		internal := doc["internal"].(map[string]any)
		if _, present := internal["debug"]; present {
			t.Error("Removed key still present in output")
		}
		if internal["level"] != "info" {
			t.Errorf("Sibling of removed key changed: %v", internal["level"])
		}
		if len(res.Traces) != 1 || res.Traces[0].Replacement != "[REMOVED]" {
			t.Errorf("Unexpected traces: %+v", res.Traces)
		}
	})

	t.Run("ExactPathOnly", func(t *testing.T) {
		doc, res := redactJSON(t, engine, `{"admin":{"password":"topsecret"}}`)
		admin := doc["admin"].(map[string]any)
		if admin["password"] != "topsecret" {
			t.Errorf("Path admin.password should not match user.password rule: %v", admin["password"])
		}
		if len(res.Traces) != 0 {
			t.Errorf("Unexpected traces: %+v", res.Traces)
		}
	})

	t.Run("ArrayElementsShareParentPath", func(t *testing.T) {
		doc, res := redactJSON(t, engine, `{"users":[{"password":"p1"},{"password":"p2"}]}`)
		users := doc["users"].([]any)
		for i, u := range users {
			m := u.(map[string]any)
			if m["password"] != "[HIDDEN]" {
				t.Errorf("Element %d not redacted: %v", i, m["password"])
			}
		}
		if len(res.Traces) != 2 {
			t.Errorf("Expected 2 traces, got %d", len(res.Traces))
		}
	})

	t.Run("NonStringValue", func(t *testing.T) {
		doc, res := redactJSON(t, engine, `{"user":{"password":12345}}`)
		user := doc["user"].(map[string]any)
		if user["password"] != "[REDACTED]" {
			t.Errorf("Numeric secret not redacted: %v", user["password"])
		}
		if res.Traces[0].Original != "12345" {
			t.Errorf("Numeric original not stringified: %q", res.Traces[0].Original)
		}
	})
}

// TestKeyPathTraceDeterminism redacts the same document repeatedly and
// expects an identical trace sequence each time; map iteration order must not
// leak into the audit trail.
func TestKeyPathTraceDeterminism(t *testing.T) {
	engine := New(compileKeyPathProfile(t))
	input := `{"token":"abcdef","user":{"password":"x1","name":"n"},"internal":{"debug":"d"}}`

	_, first := redactJSON(t, engine, input)
	for i := 0; i < 10; i++ {
		_, res := redactJSON(t, engine, input)
		if len(res.Traces) != len(first.Traces) {
			t.Fatalf("Trace count changed between runs")
		}
		for j := range res.Traces {
			if res.Traces[j] != first.Traces[j] {
				t.Fatalf("Run %d trace %d differs: %+v vs %+v", i, j, res.Traces[j], first.Traces[j])
			}
		}
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a", "*"},
		{"ab", "**"},
		{"abc", "a*c"},
		{"abcd", "a**d"},
		{"abcde", "ab*de"},
		{"abcdefgh", "ab****gh"},
	}
	for _, tt := range tests {
		if got := maskValue(tt.in); got != tt.want {
			t.Errorf("maskValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
