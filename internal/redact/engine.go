package redact

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/logveil/logveil/internal/profile"
)

// Engine applies one immutable compiled profile to units of input. Every
// call is a pure function of (unit, profile): the engine holds no mutable
// state, performs no I/O, and may be invoked from any number of goroutines
// without coordination. Construction is cheap; callers that want to observe
// profile reloads build a fresh engine from the store's active profile.
type Engine struct {
	profile *profile.Profile
}

// New creates an engine bound to a compiled profile.
func New(p *profile.Profile) *Engine {
	return &Engine{profile: p}
}

// Profile returns the profile the engine was built with.
func (e *Engine) Profile() *profile.Profile {
	return e.profile
}

// Redact sanitizes one unit of input and returns the transformed unit plus
// its traces. Multi-line text is handled line by line so trace line numbers
// stay 1-based per line instead of collapsing onto the unit's first line.
func (e *Engine) Redact(u Unit) Result {
	if u.Structured {
		return e.RedactDocument(u.Source, u.Text)
	}
	if strings.Contains(u.Text, "\n") {
		return e.RedactText(u.Source, u.Line, u.Text)
	}
	return e.RedactLine(u.Source, u.Line, u.Text)
}

// RedactLine sanitizes a single line: pattern rules in profile order first,
// then the entropy fallback over the resulting line's tokens. Traces carry
// the source, the 1-based line number, and their detection order.
func (e *Engine) RedactLine(source string, line int, text string) Result {
	var notes []string
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
		notes = append(notes, "invalid UTF-8 replaced")
	}

	redacted, traces := applyRules(e.profile.Rules, text)
	redacted, entropyTraces := applyEntropy(e.profile.Entropy, redacted)
	traces = append(traces, entropyTraces...)

	for i := range traces {
		traces[i].Source = source
		traces[i].Line = line
		traces[i].Seq = i
	}

	return Result{Text: redacted, Traces: traces, Notes: notes}
}

// RedactText sanitizes multi-line text, line by line, with 1-based line
// numbers starting at firstLine.
func (e *Engine) RedactText(source string, firstLine int, text string) Result {
	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))
	var traces []Trace
	var notes []string

	for i, line := range lines {
		r := e.RedactLine(source, firstLine+i, line)
		out[i] = r.Text
		traces = append(traces, r.Traces...)
		notes = append(notes, r.Notes...)
	}

	// Sequence numbers restart per line; renumber across the unit so the
	// aggregator's total order is unambiguous.
	for i := range traces {
		traces[i].Seq = i
	}

	return Result{Text: strings.Join(out, "\n"), Traces: traces, Notes: notes}
}

// RedactDocument attempts a structural parse (JSON, then YAML) and walks the
// tree with the profile's key-path rules. Input that does not parse as an
// object or array degrades to line-oriented handling; parse failure is a
// note, never an error.
func (e *Engine) RedactDocument(source, text string) Result {
	tree, format, ok := parseDocument(text)
	if !ok {
		r := e.RedactText(source, 1, text)
		r.Notes = append(r.Notes, "structured parse failed, treated as text")
		return r
	}

	var traces []Trace
	redacted := e.redactTree(tree, "", &traces)

	for i := range traces {
		traces[i].Source = source
		traces[i].Seq = i
	}

	return Result{
		Text:     encodeDocument(redacted, format),
		Document: redacted,
		Traces:   traces,
	}
}

type docFormat int

const (
	formatJSON docFormat = iota
	formatYAML
)

// parseDocument accepts only trees rooted at an object or array; a bare
// scalar is text, not a document.
func parseDocument(text string) (any, docFormat, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, formatJSON, false
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var tree any
		if err := json.Unmarshal([]byte(trimmed), &tree); err == nil {
			if isContainer(tree) {
				return tree, formatJSON, true
			}
		}
	}

	var tree any
	if err := yaml.Unmarshal([]byte(text), &tree); err == nil {
		if isContainer(tree) {
			return tree, formatYAML, true
		}
	}

	return nil, formatJSON, false
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func encodeDocument(tree any, format docFormat) string {
	switch format {
	case formatYAML:
		out, err := yaml.Marshal(tree)
		if err == nil {
			return string(out)
		}
	default:
		out, err := json.Marshal(tree)
		if err == nil {
			return string(out)
		}
	}
	// Marshaling a tree we just decoded cannot realistically fail; return
	// empty rather than leaking anything unredacted.
	return ""
}
