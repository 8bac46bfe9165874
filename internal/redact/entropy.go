package redact

import (
	"math"
	"strings"
	"unicode"

	"github.com/logveil/logveil/internal/profile"
)

// Score computes the Shannon entropy of a token in bits per symbol: for
// per-rune frequency f, -sum(f * log2(f)) over the observed alphabet.
func Score(token string) float64 {
	if token == "" {
		return 0
	}

	counts := make(map[rune]int)
	n := 0
	for _, r := range token {
		counts[r]++
		n++
	}

	entropy := 0.0
	for _, count := range counts {
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// IsSecret reports whether a token looks like an opaque secret: at least
// MinLength runes long and scoring at or above the configured threshold.
func IsSecret(token string, cfg profile.EntropyConfig) bool {
	if len([]rune(token)) < cfg.MinLength {
		return false
	}
	return Score(token) >= cfg.Threshold
}

// tokenSpan is a maximal alphanumeric run within a line.
type tokenSpan struct {
	start, end int // byte offsets
}

// tokenize splits a line on non-alphanumeric boundaries. Punctuation —
// including the brackets and underscores of already-inserted replacement
// markers — separates tokens, so markers are never rescored as a whole.
func tokenize(line string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, tokenSpan{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{start: start, end: len(line)})
	}
	return spans
}

// applyEntropy scores each token of an already pattern-redacted line and
// replaces the ones that look like secrets. Running after the pattern rules
// means known low-entropy identifiers are already gone and replacement
// markers cannot re-trigger detection.
func applyEntropy(cfg profile.EntropyConfig, line string) (string, []Trace) {
	if !cfg.Enabled {
		return line, nil
	}

	spans := tokenize(line)
	if len(spans) == 0 {
		return line, nil
	}

	var traces []Trace
	var b strings.Builder
	last := 0
	changed := false

	for _, span := range spans {
		token := line[span.start:span.end]
		if len([]rune(token)) < cfg.MinLength {
			continue
		}
		score := Score(token)
		if score < cfg.Threshold {
			continue
		}

		b.WriteString(line[last:span.start])
		b.WriteString(EntropyMarker)
		last = span.end
		changed = true

		traces = append(traces, Trace{
			Original:     token,
			Replacement:  EntropyMarker,
			Rule:         EntropyRule,
			Reason:       ReasonEntropy,
			EntropyScore: score,
		})
	}

	if !changed {
		return line, nil
	}
	b.WriteString(line[last:])
	return b.String(), traces
}
