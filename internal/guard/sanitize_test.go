package guard

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	store := NewRuleStore("testdata/does-not-exist.yaml", zerolog.Nop())
	return New(store, zerolog.Nop(), nil)
}

func TestSanitizeCleanPromptPasses(t *testing.T) {
	g := newTestGuard(t)

	cleaned, err := g.Sanitize("A quiet tale of two foxes under the moon", "story")
	if err != nil {
		t.Fatalf("Sanitize returned error for clean prompt: %v", err)
	}
	if cleaned != "A quiet tale of two foxes under the moon" {
		t.Fatalf("unexpected cleaned prompt: %q", cleaned)
	}
}

func TestSanitizeBannedTerm(t *testing.T) {
	g := newTestGuard(t)

	_, err := g.Sanitize("I love violence!!!", "story")
	if err == nil {
		t.Fatal("expected violation error")
	}
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ViolationError, got %T", err)
	}
	if verr.Stage != StagePrompt {
		t.Fatalf("stage = %q, want %q", verr.Stage, StagePrompt)
	}
	if len(verr.Violations) != 1 {
		t.Fatalf("got %d violations, want 1: %+v", len(verr.Violations), verr.Violations)
	}
	v := verr.Violations[0]
	if v.Category != CategoryPromptSafety {
		t.Fatalf("category = %q, want %q", v.Category, CategoryPromptSafety)
	}
	if !strings.Contains(v.Detail, "violence") {
		t.Fatalf("detail does not name the term: %q", v.Detail)
	}
	if verr.Content != "I love violence!!!" {
		t.Fatalf("original prompt not preserved: %q", verr.Content)
	}
}

func TestSanitizeBannedTermCaseInsensitive(t *testing.T) {
	g := newTestGuard(t)

	_, err := g.Sanitize("Violence here and VIOLENCE there", "story")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ViolationError, got %v", err)
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("got %d violations, want one per occurrence: %+v", len(verr.Violations), verr.Violations)
	}
}

func TestSanitizeBannedTermAfterWideRune(t *testing.T) {
	g := newTestGuard(t)

	// A rune whose lowercase form has a different byte length directly
	// before a banned term must neither panic nor leave any fragment of the
	// term behind: one violation for the term, one for the dropped rune.
	_, err := g.Sanitize("Ⱥviolence", "story")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ViolationError, got %v", err)
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(verr.Violations), verr.Violations)
	}
	if !strings.Contains(verr.Violations[0].Detail, `"violence"`) {
		t.Fatalf("banned term not recorded first: %+v", verr.Violations)
	}
	if !strings.Contains(verr.Violations[1].Detail, "disallowed character") {
		t.Fatalf("dropped rune not recorded: %+v", verr.Violations)
	}
}

func TestSanitizeDisallowedCharacterRecordedOnce(t *testing.T) {
	g := newTestGuard(t)

	_, err := g.Sanitize("naïve and naïve again", "story")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ViolationError, got %v", err)
	}
	if len(verr.Violations) != 1 {
		t.Fatalf("repeated rune must be recorded once, got %+v", verr.Violations)
	}
}

func TestSanitizeAllowsListedEmoji(t *testing.T) {
	g := newTestGuard(t)

	cleaned, err := g.Sanitize("A bunny \U0001f430 under the stars ⭐", "story")
	if err != nil {
		t.Fatalf("Sanitize rejected allowlisted emoji: %v", err)
	}
	if !strings.Contains(cleaned, "\U0001f430") || !strings.Contains(cleaned, "⭐") {
		t.Fatalf("allowlisted emoji dropped: %q", cleaned)
	}
}

func TestSanitizeNormalizesWhitespace(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"inner runs collapse", "a   tale  of   foxes", "a tale of foxes"},
		{"blank lines collapse", "first\n\n\n\nsecond", "first\n\nsecond"},
		{"edges trimmed", "  \n a tale \n  ", "a tale"},
		{"tabs collapse", "a\t\ttale", "a tale"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Sanitize(tc.prompt, "story")
			if err != nil {
				t.Fatalf("Sanitize(%q) error: %v", tc.prompt, err)
			}
			if got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.prompt, got, tc.want)
			}
		})
	}
}

func TestSanitizeEmptyAfterCleaning(t *testing.T) {
	g := newTestGuard(t)

	_, err := g.Sanitize("§§§", "story")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ViolationError, got %v", err)
	}
	// One violation for the dropped rune, one for the now-empty prompt.
	if len(verr.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(verr.Violations), verr.Violations)
	}
	last := verr.Violations[len(verr.Violations)-1]
	if !strings.Contains(last.Detail, "empty") {
		t.Fatalf("missing empty-prompt violation: %+v", verr.Violations)
	}
}

func TestReplaceFold(t *testing.T) {
	tests := []struct {
		text, term, repl string
		want             string
		count            int
	}{
		{"no match here", "gun", "wand", "no match here", 0},
		{"a gun and a GUN", "gun", "wand", "a wand and a wand", 2},
		{"Gunfight", "gun", "wand", "wandfight", 1},
		{"", "gun", "wand", "", 0},
		// 'Ⱥ' (U+023A) lowers to a rune with a longer UTF-8 encoding.
		{"Ⱥviolence", "violence", "kindness", "Ⱥkindness", 1},
		// 'İ' (U+0130) lowers to a rune with a shorter UTF-8 encoding.
		{"aİviolence here", "violence", "kindness", "aİkindness here", 1},
		// The Kelvin sign (U+212A) folds to 'k', so it starts a match whose
		// byte span differs from the term's.
		{"Kill the lights", "kill", "tickle", "tickle the lights", 1},
		{"smile \U0001f60a gun", "gun", "wand", "smile \U0001f60a wand", 1},
	}
	for _, tc := range tests {
		got, count := replaceFold(tc.text, tc.term, tc.repl)
		if got != tc.want || count != tc.count {
			t.Fatalf("replaceFold(%q, %q) = (%q, %d), want (%q, %d)",
				tc.text, tc.term, got, count, tc.want, tc.count)
		}
	}
}

func TestCountAllCapsChunks(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"a calm sentence", 0},
		{"STOP", 0}, // short tokens do not count
		{"SHOUTING very LOUDLY", 2},
		{"ROARING SHOUTING SCREAMING", 3},
		{"ACRONYM2024 shouts", 1}, // digits are ignored, the letters are all upper
	}
	for _, tc := range tests {
		if got := countAllCapsChunks(tc.text); got != tc.want {
			t.Fatalf("countAllCapsChunks(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
