package scanner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/profile"
	"github.com/logveil/logveil/internal/trace"
)

func newTestScanner(t *testing.T, opts Options) (*Scanner, *trace.Aggregator) {
	t.Helper()
	log := logger.NewNop()
	manager, err := profile.NewManager(log)
	require.NoError(t, err)
	active, ok := manager.Get("default")
	require.True(t, ok)
	store := profile.NewStore(active, log)
	agg := trace.NewAggregator()
	return New(store, manager, agg, log, opts), agg
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	input := "login admin@example.com\nall quiet\npassword=hunter2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte(input), 0o644))

	scan, agg := newTestScanner(t, Options{Paths: []string{dir}})
	sum, err := scan.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, 3, sum.Lines)
	assert.Equal(t, 2, sum.Traces)
	assert.Equal(t, 2, agg.Len())

	out, err := os.ReadFile(filepath.Join(dir, "app.log.redacted"))
	require.NoError(t, err)
	assert.Equal(t, "login [REDACTED_EMAIL]\nall quiet\npassword=[REDACTED]\n", string(out))

	// Original stays untouched without --in-place
	orig, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Equal(t, input, string(orig))
}

func TestScanInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("mail a@b.co\n"), 0o640))

	scan, _ := newTestScanner(t, Options{Paths: []string{path}, InPlace: true})
	_, err := scan.Run(context.Background())
	require.NoError(t, err)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mail [REDACTED_EMAIL]\n", string(out))

	// No sibling copy
	_, err = os.Stat(path + ".redacted")
	assert.True(t, os.IsNotExist(err))

	// Permissions preserved
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestScanGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.log"), []byte("a@b.co\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("a@b.co\n"), 0o644))

	scan, _ := newTestScanner(t, Options{
		Paths:        []string{dir},
		IncludeGlobs: []string{"*.log"},
		ExcludeGlobs: []string{"*.tmp"},
	})
	sum, err := scan.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)

	_, err = os.Stat(filepath.Join(dir, "skip.tmp.redacted"))
	assert.True(t, os.IsNotExist(err), "excluded file was sanitized")
}

func TestScanSkipsOwnOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte("a@b.co\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log.redacted"), []byte("old output\n"), 0o644))

	scan, _ := newTestScanner(t, Options{Paths: []string{dir}})
	sum, err := scan.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)

	_, err = os.Stat(filepath.Join(dir, "app.log.redacted.redacted"))
	assert.True(t, os.IsNotExist(err), "output file was re-sanitized")
}

// TestScanAutoMatch checks per-file profile selection: the nginx profile has
// no SSN rule, so an SSN survives in an access log but not in a generic log.
func TestScanAutoMatch(t *testing.T) {
	line := "ssn 123-45-6789 seen\n"

	t.Run("MatchedProfileWins", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "web.access.log")
		require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

		scan, _ := newTestScanner(t, Options{Paths: []string{dir}, AutoMatch: true})
		_, err := scan.Run(context.Background())
		require.NoError(t, err)

		out, err := os.ReadFile(path + ".redacted")
		require.NoError(t, err)
		assert.Contains(t, string(out), "123-45-6789", "nginx profile should not redact SSNs")
	})

	t.Run("UnmatchedFileUsesActiveProfile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "generic.log")
		require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

		scan, _ := newTestScanner(t, Options{Paths: []string{dir}, AutoMatch: true})
		_, err := scan.Run(context.Background())
		require.NoError(t, err)

		out, err := os.ReadFile(path + ".redacted")
		require.NoError(t, err)
		assert.Contains(t, string(out), "[REDACTED_SSN]")
	})
}

func TestScanStructuredFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user":{"email":"a@b.co"},"ok":true}`), 0o644))

	scan, agg := newTestScanner(t, Options{Paths: []string{dir}})
	_, err := scan.Run(context.Background())
	require.NoError(t, err)

	out, err := os.ReadFile(path + ".redacted")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc), "structured output must stay valid JSON")
	assert.Equal(t, "[REDACTED_EMAIL]", doc["user"].(map[string]any)["email"])
	assert.Equal(t, true, doc["ok"])

	entries := agg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "user.email", entries[0].Path)
}

func TestScanMissingPath(t *testing.T) {
	scan, _ := newTestScanner(t, Options{Paths: []string{"/does/not/exist"}})
	_, err := scan.Run(context.Background())
	assert.Error(t, err)
}
