// Package guard sanitizes prompts before they reach a model and scans
// generated narratives for policy violations. Rules live in a YAML file that
// is re-read whenever its modification time changes, so the banned-term list
// can be updated without a restart.
package guard

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"storyforge/internal/infra"
)

// FilterLevel controls how aggressively child mode tightens the rules.
type FilterLevel string

const (
	FilterStrict   FilterLevel = "strict"
	FilterStandard FilterLevel = "standard"
	FilterRelaxed  FilterLevel = "relaxed"
)

// NormalizeFilterLevel sanitizes free-form input into a supported level.
func NormalizeFilterLevel(level string) FilterLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case string(FilterStrict):
		return FilterStrict
	case string(FilterRelaxed):
		return FilterRelaxed
	default:
		return FilterStandard
	}
}

// Rules is the effective rule set after profile and child-mode resolution.
// BannedTerms maps a lowercase term to its replacement text.
type Rules struct {
	BannedTerms          map[string]string
	MaxExclamationPoints int
	MaxAllCapsChunks     int
}

type toneConfig struct {
	MaxExclamationPoints *int `yaml:"max_exclamation_points"`
	MaxAllCapsChunks     *int `yaml:"max_all_caps_chunks"`
}

type ruleOverride struct {
	BannedTerms map[string]string `yaml:"banned_terms"`
	Tone        *toneConfig       `yaml:"tone"`
}

type rulesFile struct {
	BannedTerms map[string]string       `yaml:"banned_terms"`
	Tone        toneConfig              `yaml:"tone"`
	Profiles    map[string]ruleOverride `yaml:"profiles"`
	ChildMode   map[string]ruleOverride `yaml:"child_mode"`
}

const (
	defaultMaxExclamationPoints = 5
	defaultMaxAllCapsChunks     = 2
)

func builtinRules() rulesFile {
	strictExcl, strictCaps := 2, 1
	return rulesFile{
		BannedTerms: map[string]string{
			"violence": "kindness",
			"weapon":   "toy",
			"gun":      "wand",
			"knife":    "spoon",
			"blood":    "sparkles",
			"kill":     "tickle",
			"murder":   "mischief",
			"hate":     "dislike",
		},
		Tone: toneConfig{
			MaxExclamationPoints: intPtr(defaultMaxExclamationPoints),
			MaxAllCapsChunks:     intPtr(defaultMaxAllCapsChunks),
		},
		ChildMode: map[string]ruleOverride{
			string(FilterStrict): {
				BannedTerms: map[string]string{
					"scary":   "silly",
					"monster": "puppy",
					"ghost":   "cloud",
					"die":     "nap",
				},
				Tone: &toneConfig{
					MaxExclamationPoints: &strictExcl,
					MaxAllCapsChunks:     &strictCaps,
				},
			},
			string(FilterStandard): {
				BannedTerms: map[string]string{
					"scary": "silly",
					"die":   "nap",
				},
			},
			string(FilterRelaxed): {},
		},
	}
}

func intPtr(v int) *int { return &v }

// RuleStore owns the rule cache. One instance is shared read-only by every
// caller of the guard; refreshes happen under the store's lock.
type RuleStore struct {
	path   string
	logger infra.Logger

	mu      sync.Mutex
	cached  rulesFile
	loaded  bool
	modTime time.Time
}

func NewRuleStore(path string, logger infra.Logger) *RuleStore {
	return &RuleStore{path: path, logger: logger}
}

// Resolve merges the base rules with the optional profile override and, when
// child mode is on, the override for the given filter level. Resolution is
// idempotent for an unchanged rule file.
func (s *RuleStore) Resolve(profile string, childMode bool, level FilterLevel) Rules {
	file := s.snapshot()

	rules := Rules{
		BannedTerms:          map[string]string{},
		MaxExclamationPoints: defaultMaxExclamationPoints,
		MaxAllCapsChunks:     defaultMaxAllCapsChunks,
	}
	applyOverride(&rules, ruleOverride{BannedTerms: file.BannedTerms, Tone: &file.Tone})

	if profile != "" {
		if override, ok := file.Profiles[profile]; ok {
			applyOverride(&rules, override)
		}
	}
	if childMode {
		if override, ok := file.ChildMode[string(level)]; ok {
			applyOverride(&rules, override)
		}
	}
	return rules
}

func applyOverride(rules *Rules, override ruleOverride) {
	for term, replacement := range override.BannedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		rules.BannedTerms[term] = replacement
	}
	if override.Tone == nil {
		return
	}
	if override.Tone.MaxExclamationPoints != nil {
		rules.MaxExclamationPoints = *override.Tone.MaxExclamationPoints
	}
	if override.Tone.MaxAllCapsChunks != nil {
		rules.MaxAllCapsChunks = *override.Tone.MaxAllCapsChunks
	}
}

// snapshot returns the current rule file, re-reading it when the file's
// modification time moved. A missing or unreadable file falls back to the
// built-in defaults; a previously loaded file is never discarded because a
// later reload failed.
func (s *RuleStore) snapshot() rulesFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if !s.loaded {
			s.cached = builtinRules()
			s.loaded = true
		}
		return s.cached
	}

	if s.loaded && info.ModTime().Equal(s.modTime) {
		return s.cached
	}

	parsed, err := parseRulesFile(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("guard: rule reload failed, keeping previous rules")
		if !s.loaded {
			s.cached = builtinRules()
			s.loaded = true
		}
		return s.cached
	}

	s.cached = parsed
	s.loaded = true
	s.modTime = info.ModTime()
	s.logger.Info().Str("path", s.path).Msg("guard: rules loaded")
	return s.cached
}

func parseRulesFile(path string) (rulesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return rulesFile{}, fmt.Errorf("read rules: %w", err)
	}
	base := builtinRules()
	var parsed rulesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return rulesFile{}, fmt.Errorf("parse rules: %w", err)
	}
	// The file extends the built-ins rather than replacing them, so a
	// minimal file with only banned_terms still keeps sane tone limits.
	merged := base
	for term, replacement := range parsed.BannedTerms {
		merged.BannedTerms[strings.ToLower(strings.TrimSpace(term))] = replacement
	}
	if parsed.Tone.MaxExclamationPoints != nil {
		merged.Tone.MaxExclamationPoints = parsed.Tone.MaxExclamationPoints
	}
	if parsed.Tone.MaxAllCapsChunks != nil {
		merged.Tone.MaxAllCapsChunks = parsed.Tone.MaxAllCapsChunks
	}
	if parsed.Profiles != nil {
		merged.Profiles = parsed.Profiles
	}
	for level, override := range parsed.ChildMode {
		if merged.ChildMode == nil {
			merged.ChildMode = map[string]ruleOverride{}
		}
		merged.ChildMode[level] = override
	}
	return merged, nil
}
