package redact

// Reason codes recorded on every trace entry.
type Reason string

const (
	ReasonPatternMatch Reason = "pattern_match"
	ReasonEntropy      Reason = "entropy_detection"
	ReasonKeyPath      Reason = "key_path"
)

// EntropyRule is the rule identifier recorded for entropy detections, which
// have no named pattern rule behind them.
const EntropyRule = "entropy"

// EntropyMarker replaces tokens flagged by the entropy analyzer.
const EntropyMarker = "[REDACTED_SECRET]"

// Trace is one audit record describing a single redaction event. Traces are
// append-only and ordered by (source, line, sequence within the unit).
type Trace struct {
	// Source identifies the input: a file name or stream id.
	Source string `json:"source,omitempty"`
	// Line is 1-based for line-oriented input, 0 for structured values.
	Line int `json:"line,omitempty"`
	// Path locates the value for structured input, e.g. "user.email".
	Path string `json:"path,omitempty"`
	// Seq is the detection order within the unit.
	Seq          int     `json:"seq"`
	Original     string  `json:"original_value"`
	Replacement  string  `json:"redacted_value"`
	Rule         string  `json:"rule"`
	Reason       Reason  `json:"reason"`
	EntropyScore float64 `json:"entropy_score,omitempty"`
}

// Result is the sanitized output for one unit of input plus the traces
// produced while transforming it. It owns no external resources; copying it
// is safe.
type Result struct {
	// Text is the sanitized text. For structured input it is the
	// re-serialized document.
	Text string `json:"text"`
	// Document is the transformed tree when the input parsed as a
	// structured document, nil otherwise.
	Document any `json:"document,omitempty"`
	// Traces lists every redaction applied to this unit, in detection order.
	Traces []Trace `json:"traces"`
	// Notes records non-fatal input problems (undecodable bytes, failed
	// structural parse) that caused degraded handling.
	Notes []string `json:"notes,omitempty"`
}

// Unit is one item of work for the engine: a line of text or a document.
type Unit struct {
	Source     string
	Line       int
	Text       string
	Structured bool
}
