package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/logveil/logveil/internal/logger"
	"go.uber.org/zap"
)

// Manager holds the set of known profiles: the built-ins plus any loaded
// from disk. Profiles are compiled on load and immutable afterwards.
type Manager struct {
	profiles map[string]*Profile
	order    []string
	logger   *logger.Logger
}

// NewManager creates a manager pre-populated with the built-in profiles.
func NewManager(log *logger.Logger) (*Manager, error) {
	m := &Manager{
		profiles: make(map[string]*Profile),
		logger:   log,
	}
	for _, def := range Builtins() {
		p, err := def.Compile()
		if err != nil {
			return nil, fmt.Errorf("builtin profile: %w", err)
		}
		m.add(p)
	}
	return m, nil
}

func (m *Manager) add(p *Profile) {
	if _, exists := m.profiles[p.Name]; !exists {
		m.order = append(m.order, p.Name)
	}
	m.profiles[p.Name] = p
}

// LoadFile loads, validates, and compiles a profile from a YAML or JSON
// file. The loaded profile replaces any existing profile with the same name.
func (m *Manager) LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	def, err := ParseDefinition(path, data)
	if err != nil {
		return nil, err
	}

	p, err := def.Compile()
	if err != nil {
		return nil, err
	}

	m.add(p)
	m.logger.Info("Profile loaded",
		zap.String("profile", p.Name),
		zap.String("file", path),
		zap.Int("rules", len(p.Rules)),
		zap.Int("key_paths", len(p.KeyPaths)),
	)
	return p, nil
}

// ParseDefinition decodes a profile definition from YAML or JSON, chosen by
// file extension.
func ParseDefinition(path string, data []byte) (*Definition, error) {
	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("invalid profile JSON in %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("invalid profile YAML in %s: %w", path, err)
		}
	}
	return &def, nil
}

// LoadDir loads every .yaml/.yml/.json profile in a directory. A single bad
// profile file fails the whole load so a typo cannot silently fall back to
// weaker redaction.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read profiles directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			if _, err := m.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns a profile by name.
func (m *Manager) Get(name string) (*Profile, bool) {
	p, ok := m.profiles[name]
	return p, ok
}

// List returns all profile names in registration order, builtins first.
func (m *Manager) List() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// MatchForFile finds the first profile whose filename patterns match the
// given path's base name. Returns nil when nothing matches.
func (m *Manager) MatchForFile(path string) *Profile {
	base := strings.ToLower(filepath.Base(path))
	for _, name := range m.order {
		p := m.profiles[name]
		for _, pattern := range p.FilenamePatterns {
			ok, err := doublestar.Match(strings.ToLower(pattern), base)
			if err != nil {
				m.logger.Warn("Invalid filename pattern in profile",
					zap.String("profile", p.Name),
					zap.String("pattern", pattern),
					zap.Error(err),
				)
				continue
			}
			if ok {
				return p
			}
		}
	}
	return nil
}
