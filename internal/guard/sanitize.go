package guard

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"storyforge/internal/infra"
)

// Guard applies the active rule set to prompts and generated narratives.
type Guard struct {
	store   *RuleStore
	logger  infra.Logger
	metrics *infra.Metrics
}

func New(store *RuleStore, logger infra.Logger, metrics *infra.Metrics) *Guard {
	return &Guard{store: store, logger: logger, metrics: metrics}
}

// Runes outside ASCII are dropped by the sanitizer unless listed here.
var emojiAllowlist = map[rune]struct{}{
	'⭐': {}, '✨': {}, '🌈': {}, '🌙': {}, '🌟': {},
	'🦊': {}, '🐰': {}, '🐻': {}, '🎈': {}, '😀': {}, '😊': {},
}

// Sanitize cleans a prompt before it may be sent to any provider. It strips
// banned terms, enforces the character whitelist and normalizes whitespace.
// When anything had to be removed it fails with a *ViolationError carrying
// every recorded violation and the original prompt; the cleaned text is
// never returned silently alongside violations.
func (g *Guard) Sanitize(prompt, kind string) (string, error) {
	rules := g.store.Resolve("", false, FilterStandard)
	var violations []Violation

	cleaned := prompt
	for _, term := range sortedTerms(rules.BannedTerms) {
		var replaced int
		cleaned, replaced = replaceFold(cleaned, term, rules.BannedTerms[term])
		for i := 0; i < replaced; i++ {
			violations = append(violations, Violation{
				Category: CategoryPromptSafety,
				Detail:   fmt.Sprintf("banned term %q in %s prompt", term, kind),
			})
		}
	}

	var b strings.Builder
	recorded := map[rune]struct{}{}
	for _, r := range cleaned {
		if allowedRune(r) {
			b.WriteRune(r)
			continue
		}
		if _, seen := recorded[r]; !seen {
			recorded[r] = struct{}{}
			violations = append(violations, Violation{
				Category: CategoryPromptSafety,
				Detail:   fmt.Sprintf("disallowed character %q dropped", r),
			})
		}
	}

	cleaned = normalizeWhitespace(b.String())
	if cleaned == "" {
		violations = append(violations, Violation{
			Category: CategoryPromptSafety,
			Detail:   "prompt became empty after sanitization",
		})
	}

	if len(violations) > 0 {
		g.metrics.IncGuardViolation("sanitize")
		g.logger.Warn().
			Str("kind", kind).
			Int("violations", len(violations)).
			Msg("guard: prompt rejected")
		return "", &ViolationError{Stage: StagePrompt, Violations: violations, Content: prompt}
	}
	return cleaned, nil
}

// CheckStory scans a generated narrative against the rules resolved for the
// given profile and child-mode level. It never mutates the text; the
// returned list is empty when the story is clean.
func (g *Guard) CheckStory(text, profile string, childMode bool, level FilterLevel) []Violation {
	rules := g.store.Resolve(profile, childMode, level)
	var violations []Violation

	lowered := strings.ToLower(text)
	for _, term := range sortedTerms(rules.BannedTerms) {
		if strings.Contains(lowered, term) {
			violations = append(violations, Violation{
				Category: CategoryStorySafety,
				Detail:   fmt.Sprintf("banned term %q in story", term),
			})
		}
	}

	exclamations := strings.Count(text, "!")
	capsChunks := countAllCapsChunks(text)
	if exclamations > rules.MaxExclamationPoints || capsChunks > rules.MaxAllCapsChunks {
		violations = append(violations, Violation{
			Category: CategoryTone,
			Detail: fmt.Sprintf("overstimulating tone: %d exclamation points, %d all-caps words",
				exclamations, capsChunks),
		})
	}

	if len(violations) > 0 {
		g.metrics.IncGuardViolation("story")
	}
	return violations
}

func sortedTerms(terms map[string]string) []string {
	keys := make([]string, 0, len(terms))
	for term := range terms {
		keys = append(keys, term)
	}
	sort.Strings(keys)
	return keys
}

// replaceFold replaces every case-insensitive occurrence of term and reports
// how many were replaced. The scan folds rune by rune against the original
// string: lowering a whole copy first shifts byte offsets for runes whose
// lowercase form has a different encoded length, and splicing with those
// offsets corrupts the output.
func replaceFold(text, term, replacement string) (string, int) {
	if term == "" || text == "" {
		return text, 0
	}
	needle := []rune(strings.ToLower(term))

	var b strings.Builder
	var count int
	for i := 0; i < len(text); {
		if n, ok := foldPrefixLen(text[i:], needle); ok {
			b.WriteString(replacement)
			i += n
			count++
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	if count == 0 {
		return text, 0
	}
	return b.String(), count
}

// foldPrefixLen reports whether s begins with the folded needle and how many
// bytes of s the match spans.
func foldPrefixLen(s string, needle []rune) (int, bool) {
	var i int
	for _, want := range needle {
		if i >= len(s) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.ToLower(r) != want {
			return 0, false
		}
		i += size
	}
	return i, true
}

func allowedRune(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	if r >= 32 && r < 127 {
		return true
	}
	_, ok := emojiAllowlist[r]
	return ok
}

// normalizeWhitespace collapses runs of whitespace within each line to a
// single space, collapses consecutive blank lines to one and trims blank
// lines at either end.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blankRun := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blankRun && len(out) > 0 {
				out = append(out, "")
			}
			blankRun = true
			continue
		}
		blankRun = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func countAllCapsChunks(text string) int {
	var count int
	for _, token := range strings.Fields(text) {
		if len([]rune(token)) <= 5 {
			continue
		}
		hasLetter := false
		allUpper := true
		for _, r := range token {
			if unicode.IsLetter(r) {
				hasLetter = true
				if !unicode.IsUpper(r) {
					allUpper = false
					break
				}
			}
		}
		if hasLetter && allUpper {
			count++
		}
	}
	return count
}
