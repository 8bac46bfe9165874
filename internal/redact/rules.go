package redact

import (
	"strings"

	"github.com/logveil/logveil/internal/profile"
)

// applyRules runs the profile's pattern rules over a line, strictly in
// profile order, each rule seeing the output of the previous one. Earlier
// rules therefore win overlapping spans: text a high-priority rule consumed
// is no longer visible to lower-priority rules. Disabled rules are skipped
// without a matching attempt.
func applyRules(rules []profile.Rule, line string) (string, []Trace) {
	var traces []Trace
	current := line

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		next, ruleTraces := applyRule(rule, current)
		if ruleTraces != nil {
			traces = append(traces, ruleTraces...)
			current = next
		}
	}

	return current, traces
}

// applyRule replaces all non-overlapping matches of one rule in a single
// left-to-right pass, resuming immediately after each match. Replacement
// templates may reference capture groups ($1, ${name}); one trace is emitted
// per substitution. The single pass guarantees termination even when a
// replacement would itself match the rule.
func applyRule(rule *profile.Rule, line string) (string, []Trace) {
	matches := rule.Pattern.FindAllStringSubmatchIndex(line, -1)
	if matches == nil {
		return line, nil
	}

	var b strings.Builder
	b.Grow(len(line))
	traces := make([]Trace, 0, len(matches))
	last := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(line[last:start])

		replacement := string(rule.Pattern.ExpandString(nil, rule.Replacement, line, m))
		b.WriteString(replacement)

		traces = append(traces, Trace{
			Original:    line[start:end],
			Replacement: replacement,
			Rule:        rule.Name,
			Reason:      ReasonPatternMatch,
		})
		last = end
	}
	b.WriteString(line[last:])

	return b.String(), traces
}
