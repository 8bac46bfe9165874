package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/backend"
	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/redact"
	"github.com/logveil/logveil/internal/trace"
)

// Options control a filesystem scan
type Options struct {
	// Paths are the files or directories to sanitize
	Paths []string
	// IncludeGlobs restricts the walk to matching files when non-empty
	IncludeGlobs []string
	// ExcludeGlobs drops matching files from the walk
	ExcludeGlobs []string
	// Workers bounds per-file line concurrency; 0 means GOMAXPROCS
	Workers int
	// AutoMatch picks a profile per file from profile filename patterns
	AutoMatch bool
	// InPlace overwrites the input file instead of writing a sibling copy
	InPlace bool
	// Suffix names the sanitized sibling copy; ignored with InPlace
	Suffix string
}

// Summary reports what a scan did
type Summary struct {
	Files    int
	Lines    int
	Traces   int
	Duration time.Duration
}

// Scanner walks the filesystem and sanitizes matching files. Output is
// written through a temp file and renamed into place, so a failed run never
// leaves a half-sanitized file that looks complete.
type Scanner struct {
	store   *profile.Store
	manager *profile.Manager
	agg     *trace.Aggregator
	logger  *logger.Logger
	opts    Options
}

// New creates a scanner. The aggregator may be nil when no audit trail is
// wanted.
func New(store *profile.Store, manager *profile.Manager, agg *trace.Aggregator, log *logger.Logger, opts Options) *Scanner {
	if opts.Suffix == "" {
		opts.Suffix = ".redacted"
	}
	return &Scanner{store: store, manager: manager, agg: agg, logger: log, opts: opts}
}

// Run sanitizes every selected file and returns a scan summary. The first
// file error aborts the scan; files already written stay written.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	files, err := s.collect()
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, path := range files {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		lines, traces, err := s.sanitizeFile(ctx, path)
		if err != nil {
			return sum, fmt.Errorf("failed to sanitize %s: %w", path, err)
		}
		sum.Files++
		sum.Lines += lines
		sum.Traces += traces
	}

	sum.Duration = time.Since(start)
	s.logger.Info("Scan complete",
		zap.Int("files", sum.Files),
		zap.Int("lines", sum.Lines),
		zap.Int("traces", sum.Traces),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// collect expands the configured paths into the list of files to sanitize
func (s *Scanner) collect() ([]string, error) {
	var files []string
	for _, root := range s.opts.Paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if s.allowed(filepath.Base(root)) {
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			if s.allowed(filepath.ToSlash(rel)) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return files, nil
}

// allowed applies include and exclude globs to a slash-separated relative path
func (s *Scanner) allowed(relPath string) bool {
	// Never re-sanitize our own output
	if strings.HasSuffix(relPath, s.opts.Suffix) {
		return false
	}
	if len(s.opts.IncludeGlobs) > 0 && !matchAnyGlob(relPath, s.opts.IncludeGlobs) {
		return false
	}
	if len(s.opts.ExcludeGlobs) > 0 && matchAnyGlob(relPath, s.opts.ExcludeGlobs) {
		return false
	}
	return true
}

func matchAnyGlob(pathToMatch string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, pathToMatch); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, filepath.Base(pathToMatch)); ok {
			return true
		}
	}
	return false
}

// sanitizeFile redacts one file and writes the output atomically
func (s *Scanner) sanitizeFile(ctx context.Context, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	source := s.profileFor(path)

	var results []redact.Result
	var output string

	if isStructuredFile(path) {
		// Whole-document redaction keeps key paths addressable
		engine := redact.New(source.Active())
		res := engine.Redact(redact.Unit{
			Source:     path,
			Line:       1,
			Text:       string(data),
			Structured: true,
		})
		results = []redact.Result{res}
		output = res.Text
	} else {
		text := strings.TrimSuffix(string(data), "\n")
		lines := strings.Split(text, "\n")

		pool := backend.NewPool(source, s.opts.Workers, s.logger)
		results, err = pool.RedactLines(ctx, path, 1, lines)
		if err != nil {
			return 0, 0, err
		}

		redacted := make([]string, len(results))
		for i, res := range results {
			redacted[i] = res.Text
		}
		output = strings.Join(redacted, "\n")
		if strings.HasSuffix(string(data), "\n") {
			output += "\n"
		}
	}

	traces := 0
	for _, res := range results {
		traces += len(res.Traces)
		if s.agg != nil {
			s.agg.Add(res.Traces)
		}
	}

	if err := s.writeOutput(path, output); err != nil {
		return 0, 0, err
	}

	s.logger.Debug("File sanitized",
		zap.String("file", path),
		zap.String("profile", source.Active().Name),
		zap.Int("traces", traces),
	)
	return len(results), traces, nil
}

// profileFor returns the profile source for one file. With auto-match on, a
// profile whose filename patterns cover the file is pinned for the whole
// file; everything else follows the reloadable store.
func (s *Scanner) profileFor(path string) profile.Source {
	if s.opts.AutoMatch {
		if p := s.manager.MatchForFile(path); p != nil {
			s.logger.Debug("Profile matched by filename",
				zap.String("file", path),
				zap.String("profile", p.Name),
			)
			return profile.NewStatic(p)
		}
	}
	return s.store
}

// writeOutput writes through a temp file in the target directory and renames
// it into place.
func (s *Scanner) writeOutput(path, output string) error {
	outPath := path + s.opts.Suffix
	if s.opts.InPlace {
		outPath = path
	}

	mode := fs.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".logveil-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(output); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func isStructuredFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
