package profile

import (
	"fmt"
	"regexp"
	"strings"
)

// Compile validates a profile definition and compiles it into an immutable
// Profile. All configuration errors surface here, at load time; a profile
// that compiles never fails during a redact call.
func (d *Definition) Compile() (*Profile, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("profile name is required")
	}

	if len(d.Rules) == 0 && len(d.KeyPaths) == 0 && !d.Entropy.Enabled {
		return nil, fmt.Errorf("profile %q defines no rules, key paths, or entropy detection", d.Name)
	}

	seen := make(map[string]bool, len(d.Rules))
	rules := make([]Rule, 0, len(d.Rules))

	for i, def := range d.Rules {
		if def.Name == "" {
			return nil, fmt.Errorf("profile %q: rule at index %d has no name", d.Name, i)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("profile %q: duplicate rule name %q", d.Name, def.Name)
		}
		seen[def.Name] = true

		if def.Pattern == "" {
			return nil, fmt.Errorf("profile %q: rule %q has no pattern", d.Name, def.Name)
		}

		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("profile %q: rule %q: invalid pattern: %w", d.Name, def.Name, err)
		}

		replacement := def.Replacement
		if replacement == "" {
			replacement = defaultReplacement(def.Name)
		}

		enabled := true
		if def.Enabled != nil {
			enabled = *def.Enabled
		}

		rules = append(rules, Rule{
			Name:        def.Name,
			Pattern:     re,
			Replacement: replacement,
			Enabled:     enabled,
			Description: def.Description,
			Priority:    i,
		})
	}

	if err := validateEntropy(d.Name, d.Entropy); err != nil {
		return nil, err
	}

	keyPaths := make([]KeyPathRule, 0, len(d.KeyPaths))
	for i, kp := range d.KeyPaths {
		if kp.Path == "" {
			return nil, fmt.Errorf("profile %q: key path rule at index %d has no path", d.Name, i)
		}
		action := kp.Action
		if action == "" {
			action = ActionRedact
		}
		switch action {
		case ActionRedact, ActionRemove, ActionMask:
		default:
			return nil, fmt.Errorf("profile %q: key path %q: unknown action %q", d.Name, kp.Path, kp.Action)
		}
		keyPaths = append(keyPaths, KeyPathRule{
			Path:        kp.Path,
			Action:      action,
			Replacement: kp.Replacement,
		})
	}

	version := d.Version
	if version == "" {
		version = "1.0"
	}

	return &Profile{
		Name:             d.Name,
		Description:      d.Description,
		Version:          version,
		Rules:            rules,
		Entropy:          d.Entropy,
		KeyPaths:         keyPaths,
		FilenamePatterns: d.FilenamePatterns,
	}, nil
}

func validateEntropy(profileName string, cfg EntropyConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Threshold <= 0 {
		return fmt.Errorf("profile %q: entropy threshold must be positive, got %g", profileName, cfg.Threshold)
	}
	if cfg.MinLength <= 0 {
		return fmt.Errorf("profile %q: entropy min_length must be positive, got %d", profileName, cfg.MinLength)
	}
	return nil
}

// defaultReplacement derives a marker from the rule name, e.g. the rule
// "email" redacts to "[REDACTED_EMAIL]".
func defaultReplacement(ruleName string) string {
	return "[REDACTED_" + strings.ToUpper(ruleName) + "]"
}
