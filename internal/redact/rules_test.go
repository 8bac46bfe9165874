package redact

import (
	"regexp"
	"testing"

	"github.com/logveil/logveil/internal/profile"
)

func compileDefault(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Default().Compile()
	if err != nil {
		t.Fatalf("Failed to compile default profile: %v", err)
	}
	return p
}

// TestApplyRulesDefaultProfile exercises the default rule set on typical log lines
func TestApplyRulesDefaultProfile(t *testing.T) {
	p := compileDefault(t)

	t.Run("Email", func(t *testing.T) {
		out, traces := applyRules(p.Rules, "Contact admin@example.com for access")
		if out != "Contact [REDACTED_EMAIL] for access" {
			t.Errorf("Unexpected output: %q", out)
		}
		if len(traces) != 1 {
			t.Fatalf("Expected 1 trace, got %d", len(traces))
		}
		if traces[0].Rule != "email" {
			t.Errorf("Expected rule email, got %q", traces[0].Rule)
		}
		if traces[0].Reason != ReasonPatternMatch {
			t.Errorf("Expected reason %q, got %q", ReasonPatternMatch, traces[0].Reason)
		}
		if traces[0].Original != "admin@example.com" {
			t.Errorf("Trace did not capture original value: %q", traces[0].Original)
		}
	})

	t.Run("PasswordKeepsKeyAndSeparator", func(t *testing.T) {
		out, traces := applyRules(p.Rules, "login failed: password=hunter2 retrying")
		if out != "login failed: password=[REDACTED] retrying" {
			t.Errorf("Unexpected output: %q", out)
		}
		if len(traces) != 1 || traces[0].Rule != "password" {
			t.Fatalf("Expected one password trace, got %+v", traces)
		}
	})

	t.Run("BearerTokenCaptureGroup", func(t *testing.T) {
		out, _ := applyRules(p.Rules, "Authorization: Bearer abc123.def456")
		if out != "Authorization: Bearer [REDACTED_TOKEN]" {
			t.Errorf("Unexpected output: %q", out)
		}
	})

	t.Run("MultipleMatchesLeftToRight", func(t *testing.T) {
		out, traces := applyRules(p.Rules, "a@x.com wrote to b@y.org")
		if out != "[REDACTED_EMAIL] wrote to [REDACTED_EMAIL]" {
			t.Errorf("Unexpected output: %q", out)
		}
		if len(traces) != 2 {
			t.Fatalf("Expected 2 traces, got %d", len(traces))
		}
		if traces[0].Original != "a@x.com" || traces[1].Original != "b@y.org" {
			t.Errorf("Traces not in left-to-right order: %+v", traces)
		}
	})

	t.Run("DisabledRuleSkipped", func(t *testing.T) {
		// The phone rule ships disabled
		out, traces := applyRules(p.Rules, "call me at 555-867-5309 ok")
		if len(traces) != 0 {
			t.Errorf("Disabled phone rule produced traces: %+v", traces)
		}
		if out != "call me at 555-867-5309 ok" {
			t.Errorf("Disabled rule modified line: %q", out)
		}
	})

	t.Run("NoMatchNoTraces", func(t *testing.T) {
		out, traces := applyRules(p.Rules, "nothing sensitive here")
		if out != "nothing sensitive here" || traces != nil {
			t.Errorf("Expected untouched line, got %q with %d traces", out, len(traces))
		}
	})
}

// TestRuleIdempotence round-trips assignment-style lines through every
// builtin profile: the first pass redacts the value, a second pass over the
// sanitized output must change nothing and emit no traces. The keep-the-key
// rules are the dangerous ones, since their value class follows text the
// replacement marker is inserted into.
func TestRuleIdempotence(t *testing.T) {
	inputs := map[string][]string{
		"default": {
			"login failed: password=hunter2 retrying",
			"passwd: swordfish",
			"pwd = s3cr3t!",
		},
		"nginx": {
			`GET /login?password=hunter2&next=/home HTTP/1.1`,
		},
		"docker": {
			"api_key=sk_live_4f9a2b,region=us-east-1",
			"secret: topsecret}",
		},
		"application": {
			"session_id=9f8e7d6c5b4a, done",
			"csrf_token: tok_55aa77, ok",
		},
	}

	for _, def := range profile.Builtins() {
		lines, ok := inputs[def.Name]
		if !ok {
			continue
		}
		p, err := def.Compile()
		if err != nil {
			t.Fatalf("Failed to compile %s profile: %v", def.Name, err)
		}

		t.Run(def.Name, func(t *testing.T) {
			for _, line := range lines {
				once, traces := applyRules(p.Rules, line)
				if len(traces) == 0 {
					t.Errorf("First pass did not redact %q", line)
					continue
				}
				twice, again := applyRules(p.Rules, once)
				if len(again) != 0 {
					t.Errorf("Second pass over %q produced traces: %+v", once, again)
				}
				if twice != once {
					t.Errorf("Second pass changed sanitized text: %q -> %q", once, twice)
				}
			}
		})
	}
}

// TestRulePrecedence verifies that earlier rules consume text before later
// rules see it, and that disabling an earlier rule shifts matches to the next.
func TestRulePrecedence(t *testing.T) {
	rules := []profile.Rule{
		{Name: "specific", Pattern: regexp.MustCompile(`secret-\d+`), Replacement: "[A]", Enabled: true},
		{Name: "broad", Pattern: regexp.MustCompile(`\d+`), Replacement: "[B]", Enabled: true},
	}

	t.Run("EarlierRuleWins", func(t *testing.T) {
		out, traces := applyRules(rules, "secret-123 and 456")
		if out != "[A] and [B]" {
			t.Errorf("Unexpected output: %q", out)
		}
		if len(traces) != 2 || traces[0].Rule != "specific" || traces[1].Rule != "broad" {
			t.Errorf("Unexpected traces: %+v", traces)
		}
	})

	t.Run("DisablingShiftsMatch", func(t *testing.T) {
		disabled := make([]profile.Rule, len(rules))
		copy(disabled, rules)
		disabled[0].Enabled = false

		out, traces := applyRules(disabled, "secret-123 and 456")
		if out != "secret-[B] and [B]" {
			t.Errorf("Unexpected output: %q", out)
		}
		for _, tr := range traces {
			if tr.Rule != "broad" {
				t.Errorf("Expected only broad traces, got %+v", tr)
			}
		}
	})
}

// TestApplyRuleTermination covers a replacement that would itself match the
// rule; a single pass must not loop.
func TestApplyRuleTermination(t *testing.T) {
	rule := &profile.Rule{
		Name:        "self",
		Pattern:     regexp.MustCompile(`token\w*`),
		Replacement: "token_redacted",
		Enabled:     true,
	}

	out, traces := applyRule(rule, "found token123 here")
	if out != "found token_redacted here" {
		t.Errorf("Unexpected output: %q", out)
	}
	if len(traces) != 1 {
		t.Errorf("Expected 1 trace, got %d", len(traces))
	}
}
