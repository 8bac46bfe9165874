package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/backend"
	"github.com/logveil/logveil/internal/redact"
)

// sanitizeTextRequest is the body of POST /sanitize/text
type sanitizeTextRequest struct {
	Text string `json:"text"`
	// Source labels traces; defaults to "api"
	Source string `json:"source,omitempty"`
	// Structured asks for document parsing (JSON, then YAML) before redaction
	Structured    bool `json:"structured,omitempty"`
	IncludeTraces bool `json:"include_traces,omitempty"`
}

// sanitizeTextResponse is the body of a successful sanitize call
type sanitizeTextResponse struct {
	Redacted       string         `json:"redacted"`
	Document       any            `json:"document,omitempty"`
	Traces         []redact.Trace `json:"traces,omitempty"`
	TraceCount     int            `json:"trace_count"`
	Notes          []string       `json:"notes,omitempty"`
	Profile        string         `json:"profile"`
	ProfileVersion uint64         `json:"profile_version"`
	CacheHit       bool           `json:"cache_hit"`
	DurationMS     float64        `json:"duration_ms"`
}

// sanitizeBatchRequest is the body of POST /sanitize/batch
type sanitizeBatchRequest struct {
	Lines         []string `json:"lines"`
	Source        string   `json:"source,omitempty"`
	IncludeTraces bool     `json:"include_traces,omitempty"`
}

type batchLine struct {
	Redacted   string         `json:"redacted"`
	Traces     []redact.Trace `json:"traces,omitempty"`
	TraceCount int            `json:"trace_count"`
}

type sanitizeBatchResponse struct {
	Results        []batchLine `json:"results"`
	TraceCount     int         `json:"trace_count"`
	Profile        string      `json:"profile"`
	ProfileVersion uint64      `json:"profile_version"`
	DurationMS     float64     `json:"duration_ms"`
}

type profileSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Rules       int    `json:"rules"`
	Entropy     bool   `json:"entropy"`
}

type profileRule struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

type profileDetail struct {
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Version          string        `json:"version"`
	Rules            []profileRule `json:"rules"`
	EntropyEnabled   bool          `json:"entropy_enabled"`
	EntropyThreshold float64       `json:"entropy_threshold,omitempty"`
	EntropyMinLength int           `json:"entropy_min_length,omitempty"`
	KeyPaths         int           `json:"key_paths"`
	FilenamePatterns []string      `json:"filename_patterns,omitempty"`
}

// handleSanitizeText sanitizes one text or structured document
func (s *Server) handleSanitizeText(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req sanitizeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	active := s.store.Active()
	profileVersion := s.store.Version()

	// Plain-text results are cacheable: the result is a pure function of
	// (profile version, input). Structured requests skip the cache so the
	// document's serialization format never leaks between callers, and
	// trace requests skip it because cached entries carry no originals.
	useCache := s.cache != nil && !req.Structured && !req.IncludeTraces

	if useCache {
		if cached, ok := s.cache.Get(r.Context(), profileVersion, req.Text); ok {
			duration := time.Since(start)
			s.writeJSON(w, http.StatusOK, sanitizeTextResponse{
				Redacted:       cached.Text,
				TraceCount:     cached.TraceCount,
				Notes:          cached.Notes,
				Profile:        active.Name,
				ProfileVersion: profileVersion,
				CacheHit:       true,
				DurationMS:     float64(duration.Microseconds()) / 1000,
			})
			s.broadcastRedaction(r, req.Source, active.Name, cached.Rules, cached.TraceCount, true, false, duration)
			return
		}
	}

	engine := redact.New(active)
	result := engine.Redact(redact.Unit{
		Source:     req.Source,
		Line:       1,
		Text:       req.Text,
		Structured: req.Structured,
	})
	if useCache {
		if err := s.cache.Store(r.Context(), profileVersion, req.Text, &result); err != nil {
			s.logger.Debug("Result cache store failed", zap.Error(err))
		}
	}

	duration := time.Since(start)

	resp := sanitizeTextResponse{
		Redacted:       result.Text,
		Document:       result.Document,
		TraceCount:     len(result.Traces),
		Notes:          result.Notes,
		Profile:        active.Name,
		ProfileVersion: profileVersion,
		DurationMS:     float64(duration.Microseconds()) / 1000,
	}
	if req.IncludeTraces {
		resp.Traces = result.Traces
	}

	s.writeJSON(w, http.StatusOK, resp)
	s.broadcastRedaction(r, req.Source, active.Name, ruleNames(result.Traces), len(result.Traces), false, req.Structured, duration)
}

// handleSanitizeBatch sanitizes a batch of independent lines concurrently
func (s *Server) handleSanitizeBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req sanitizeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Lines) == 0 {
		s.writeError(w, http.StatusBadRequest, "lines is required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	active := s.store.Active()
	profileVersion := s.store.Version()

	pool := backend.NewPool(s.store, s.config.Redaction.Workers, s.logger)
	results, err := pool.RedactLines(r.Context(), req.Source, 1, req.Lines)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "batch canceled")
		return
	}

	duration := time.Since(start)

	resp := sanitizeBatchResponse{
		Results:        make([]batchLine, len(results)),
		Profile:        active.Name,
		ProfileVersion: profileVersion,
		DurationMS:     float64(duration.Microseconds()) / 1000,
	}
	var allTraces []redact.Trace
	for i, res := range results {
		line := batchLine{Redacted: res.Text, TraceCount: len(res.Traces)}
		if req.IncludeTraces {
			line.Traces = res.Traces
		}
		resp.Results[i] = line
		resp.TraceCount += len(res.Traces)
		allTraces = append(allTraces, res.Traces...)
	}

	s.writeJSON(w, http.StatusOK, resp)
	s.broadcastRedaction(r, req.Source, active.Name, ruleNames(allTraces), len(allTraces), false, false, duration)
}

// handleListProfiles returns the profile catalog
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	names := s.manager.List()
	summaries := make([]profileSummary, 0, len(names))
	for _, name := range names {
		p, ok := s.manager.Get(name)
		if !ok {
			continue
		}
		summaries = append(summaries, profileSummary{
			Name:        p.Name,
			Description: p.Description,
			Version:     p.Version,
			Rules:       len(p.Rules),
			Entropy:     p.Entropy.Enabled,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"profiles": summaries})
}

// handleGetProfile returns one profile with its rule set
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, ok := s.manager.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	detail := profileDetail{
		Name:             p.Name,
		Description:      p.Description,
		Version:          p.Version,
		Rules:            make([]profileRule, 0, len(p.Rules)),
		EntropyEnabled:   p.Entropy.Enabled,
		EntropyThreshold: p.Entropy.Threshold,
		EntropyMinLength: p.Entropy.MinLength,
		KeyPaths:         len(p.KeyPaths),
		FilenamePatterns: p.FilenamePatterns,
	}
	for _, rule := range p.Rules {
		detail.Rules = append(detail.Rules, profileRule{
			Name:        rule.Name,
			Pattern:     rule.Pattern.String(),
			Replacement: rule.Replacement,
			Enabled:     rule.Enabled,
			Description: rule.Description,
		})
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleCacheStats reports result cache hit rates and Redis usage
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	stats, err := s.cache.GetStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to read cache stats", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleCacheClear drops every cached result
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		s.logger.Error("Failed to clear cache", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ruleNames collapses traces to their distinct rule names, in first-seen order
func ruleNames(traces []redact.Trace) []string {
	seen := make(map[string]bool)
	var rules []string
	for _, t := range traces {
		if !seen[t.Rule] {
			seen[t.Rule] = true
			rules = append(rules, t.Rule)
		}
	}
	return rules
}

// broadcastRedaction publishes a redaction summary on the event feed. Only
// rule names and counts go out; original values never leave the process.
func (s *Server) broadcastRedaction(r *http.Request, source, profileName string, rules []string, traceCount int, cacheHit, structured bool, duration time.Duration) {
	if traceCount == 0 {
		return
	}

	s.wsHub.BroadcastEvent(Event{
		Type:      EventTypeRedaction,
		Timestamp: time.Now(),
		RequestID: getRequestID(r.Context()),
		Data: RedactionEvent{
			RequestID:  getRequestID(r.Context()),
			Source:     source,
			Profile:    profileName,
			TraceCount: traceCount,
			Rules:      rules,
			CacheHit:   cacheHit,
			DurationMS: float64(duration.Microseconds()) / 1000,
			Structured: structured,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
