package redact

import (
	"fmt"
	"sort"

	"github.com/logveil/logveil/internal/profile"
)

// redactTree walks a parsed object/array tree and applies the profile's
// key-path rules. A node's path is the dot-joined sequence of keys from the
// root; array elements inherit the enclosing path, so one rule covers a
// field across every element of a list. String leaves not claimed by a
// key-path rule still run through the pattern and entropy detectors.
//
// Map keys are visited in sorted order so the trace log for a document is
// reproducible run to run.
func (e *Engine) redactTree(node any, path string, traces *[]Trace) any {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for _, k := range keys {
			childPath := joinPath(path, k)
			value := v[k]

			if rule := e.matchKeyPath(childPath); rule != nil {
				if replaced, keep := e.applyKeyPath(rule, childPath, value, traces); keep {
					out[k] = replaced
				}
				continue
			}
			out[k] = e.redactTree(value, childPath, traces)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			// Indices are not part of path matching.
			out[i] = e.redactTree(item, path, traces)
		}
		return out

	case string:
		redacted, leafTraces := applyRules(e.profile.Rules, v)
		redacted, entropyTraces := applyEntropy(e.profile.Entropy, redacted)
		for _, t := range append(leafTraces, entropyTraces...) {
			t.Path = path
			*traces = append(*traces, t)
		}
		return redacted

	default:
		// Numbers, booleans, nil pass through unchanged.
		return v
	}
}

// matchKeyPath returns the first key-path rule exactly matching the path.
// Matching is by exact path, never by value content.
func (e *Engine) matchKeyPath(path string) *profile.KeyPathRule {
	for i := range e.profile.KeyPaths {
		if e.profile.KeyPaths[i].Path == path {
			return &e.profile.KeyPaths[i]
		}
	}
	return nil
}

// applyKeyPath applies one key-path rule to a matched value. The second
// return value is false when the key should be dropped from the output.
func (e *Engine) applyKeyPath(rule *profile.KeyPathRule, path string, value any, traces *[]Trace) (any, bool) {
	original := stringifyValue(value)

	switch rule.Action {
	case profile.ActionRemove:
		*traces = append(*traces, Trace{
			Path:        path,
			Original:    original,
			Replacement: "[REMOVED]",
			Rule:        rule.Path,
			Reason:      ReasonKeyPath,
		})
		return nil, false

	case profile.ActionMask:
		masked := maskValue(original)
		*traces = append(*traces, Trace{
			Path:        path,
			Original:    original,
			Replacement: masked,
			Rule:        rule.Path,
			Reason:      ReasonKeyPath,
		})
		return masked, true

	default: // ActionRedact
		replacement := rule.Replacement
		if replacement == "" {
			replacement = "[REDACTED]"
		}
		*traces = append(*traces, Trace{
			Path:        path,
			Original:    original,
			Replacement: replacement,
			Rule:        rule.Path,
			Reason:      ReasonKeyPath,
		})
		return replacement, true
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func stringifyValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// maskValue keeps only the first and last characters of a value, matching
// the mask action of profile key-path rules.
func maskValue(s string) string {
	runes := []rune(s)
	switch {
	case len(runes) <= 2:
		return repeatStar(len(runes))
	case len(runes) <= 4:
		return string(runes[0]) + repeatStar(len(runes)-2) + string(runes[len(runes)-1])
	default:
		return string(runes[:2]) + repeatStar(len(runes)-4) + string(runes[len(runes)-2:])
	}
}

func repeatStar(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '*'
	}
	return string(b)
}
