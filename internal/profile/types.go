package profile

import "regexp"

// KeyPath actions. Redact replaces the value with a fixed marker, Remove
// drops the key entirely, Mask keeps the first and last characters.
const (
	ActionRedact = "redact"
	ActionRemove = "remove"
	ActionMask   = "mask"
)

// RuleDef is a single pattern rule as written in a profile file. Rules are
// applied in the order they appear; earlier rules take precedence over later
// ones for overlapping matches.
type RuleDef struct {
	Name        string `yaml:"name" json:"name" mapstructure:"name"`
	Pattern     string `yaml:"pattern" json:"pattern" mapstructure:"pattern"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty" mapstructure:"replacement"`
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty" mapstructure:"enabled"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" mapstructure:"description"`
}

// EntropyConfig controls the statistical fallback for unknown secrets.
type EntropyConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Threshold float64 `yaml:"threshold" json:"threshold" mapstructure:"threshold"`
	MinLength int     `yaml:"min_length" json:"min_length" mapstructure:"min_length"`
}

// KeyPathRule redacts a structured-document value by its exact dotted path,
// independent of the value's content. Array indices are not part of the path.
type KeyPathRule struct {
	Path        string `yaml:"path" json:"path" mapstructure:"path"`
	Action      string `yaml:"action,omitempty" json:"action,omitempty" mapstructure:"action"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty" mapstructure:"replacement"`
}

// Definition is the on-disk form of a profile, before compilation.
type Definition struct {
	Name             string        `yaml:"name" json:"name" mapstructure:"name"`
	Description      string        `yaml:"description,omitempty" json:"description,omitempty" mapstructure:"description"`
	Version          string        `yaml:"version,omitempty" json:"version,omitempty" mapstructure:"version"`
	Rules            []RuleDef     `yaml:"rules" json:"rules" mapstructure:"rules"`
	Entropy          EntropyConfig `yaml:"entropy" json:"entropy" mapstructure:"entropy"`
	KeyPaths         []KeyPathRule `yaml:"key_paths,omitempty" json:"key_paths,omitempty" mapstructure:"key_paths"`
	FilenamePatterns []string      `yaml:"filename_patterns,omitempty" json:"filename_patterns,omitempty" mapstructure:"filename_patterns"`
}

// Rule is a compiled pattern rule. The matcher is compiled once at profile
// load and reused for every subsequent line.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Enabled     bool
	Description string
	// Priority is the rule's position in the profile's ordered list.
	// Lower index means higher precedence.
	Priority int
}

// Profile is an immutable, compiled redaction configuration. It is read-only
// after Compile and safe to share between any number of concurrent callers.
type Profile struct {
	Name             string
	Description      string
	Version          string
	Rules            []Rule
	Entropy          EntropyConfig
	KeyPaths         []KeyPathRule
	FilenamePatterns []string
}

// EnabledRules returns the names of all enabled rules, in priority order.
func (p *Profile) EnabledRules() []string {
	var names []string
	for _, r := range p.Rules {
		if r.Enabled {
			names = append(names, r.Name)
		}
	}
	return names
}
