package profile

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
)

// Source yields the profile a redact call should run against. Store is the
// reloadable implementation; Static pins one profile for the lifetime of a
// job (for example a file matched to a specific built-in).
type Source interface {
	Active() *Profile
}

// Static wraps a single profile as a Source.
type Static struct {
	p *Profile
}

// NewStatic pins the given profile.
func NewStatic(p *Profile) Static {
	return Static{p: p}
}

// Active returns the pinned profile.
func (s Static) Active() *Profile {
	return s.p
}

// Store publishes the active profile to concurrent readers. The profile is
// swapped atomically: an in-flight redact call keeps the profile it started
// with, and a call started after a reload observes the new one. A reload
// that fails validation leaves the previous profile active.
type Store struct {
	current atomic.Pointer[Profile]
	version atomic.Uint64
	onSwap  atomic.Pointer[func(*Profile, uint64)]
	logger  *logger.Logger
	watcher *fsnotify.Watcher
}

// NewStore creates a store seeded with the given profile.
func NewStore(p *Profile, log *logger.Logger) *Store {
	s := &Store{logger: log}
	s.current.Store(p)
	s.version.Store(1)
	return s
}

// Active returns the currently published profile. The returned profile is
// immutable; callers may hold on to it across many redact calls.
func (s *Store) Active() *Profile {
	return s.current.Load()
}

// Version returns a counter incremented on every successful swap. Callers
// that cache redaction results key them by this version so a reload
// invalidates stale entries.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Swap atomically replaces the active profile.
func (s *Store) Swap(p *Profile) {
	s.current.Store(p)
	v := s.version.Add(1)
	s.logger.Info("Profile swapped",
		zap.String("profile", p.Name),
		zap.Uint64("version", v),
		zap.Int("rules", len(p.Rules)),
	)
	if fn := s.onSwap.Load(); fn != nil {
		(*fn)(p, v)
	}
}

// SetOnSwap registers a callback invoked after every successful swap. The
// callback runs on the watcher goroutine and must not block.
func (s *Store) SetOnSwap(fn func(p *Profile, version uint64)) {
	s.onSwap.Store(&fn)
}

// Watch reloads the profile whenever its backing file changes. Invalid
// replacements are logged and rejected; the active profile stays usable.
func (s *Store) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create profile watcher: %w", err)
	}
	s.watcher = watcher

	// Watch the directory: editors replace files rather than writing in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch profile directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				s.reloadFrom(target)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Profile watcher error", zap.Error(err))
			}
		}
	}()

	s.logger.Info("Watching profile file for changes", zap.String("file", path))
	return nil
}

func (s *Store) reloadFrom(path string) {
	mgr := &Manager{profiles: make(map[string]*Profile), logger: s.logger}
	p, err := mgr.LoadFile(path)
	if err != nil {
		s.logger.Error("Profile reload rejected, keeping previous profile",
			zap.String("file", path),
			zap.Error(err),
		)
		return
	}
	s.Swap(p)
}

// Close stops the file watcher, if any.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
