package guard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeRules(t *testing.T, path, body string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestResolveMissingFileUsesBuiltins(t *testing.T) {
	store := NewRuleStore(filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop())

	rules := store.Resolve("", false, FilterStandard)
	if rules.BannedTerms["violence"] != "kindness" {
		t.Fatalf("builtin term missing: %+v", rules.BannedTerms)
	}
	if rules.MaxExclamationPoints != defaultMaxExclamationPoints {
		t.Fatalf("MaxExclamationPoints = %d, want %d", rules.MaxExclamationPoints, defaultMaxExclamationPoints)
	}
}

func TestResolveFileExtendsBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRules(t, path, "banned_terms:\n  dragonfire: \"warm glow\"\n", time.Now())
	store := NewRuleStore(path, zerolog.Nop())

	rules := store.Resolve("", false, FilterStandard)
	if rules.BannedTerms["dragonfire"] != "warm glow" {
		t.Fatalf("file term missing: %+v", rules.BannedTerms)
	}
	if rules.BannedTerms["violence"] != "kindness" {
		t.Fatal("file must extend the built-in list, not replace it")
	}
}

func TestResolveReloadsOnModTimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	base := time.Now().Add(-time.Hour)
	writeRules(t, path, "banned_terms:\n  first: \"one\"\n", base)
	store := NewRuleStore(path, zerolog.Nop())

	rules := store.Resolve("", false, FilterStandard)
	if _, ok := rules.BannedTerms["first"]; !ok {
		t.Fatalf("initial load missing term: %+v", rules.BannedTerms)
	}

	writeRules(t, path, "banned_terms:\n  second: \"two\"\n", base.Add(time.Minute))

	rules = store.Resolve("", false, FilterStandard)
	if _, ok := rules.BannedTerms["second"]; !ok {
		t.Fatalf("modified file not reloaded: %+v", rules.BannedTerms)
	}
}

func TestResolveSkipsReloadWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	mod := time.Now().Add(-time.Hour)
	writeRules(t, path, "banned_terms:\n  first: \"one\"\n", mod)
	store := NewRuleStore(path, zerolog.Nop())
	store.Resolve("", false, FilterStandard)

	// Rewrite the content but keep the modification time. The cached copy
	// must still be served.
	writeRules(t, path, "banned_terms:\n  second: \"two\"\n", mod)

	rules := store.Resolve("", false, FilterStandard)
	if _, ok := rules.BannedTerms["second"]; ok {
		t.Fatal("rules were re-read without a modification time change")
	}
}

func TestResolveKeepsPreviousRulesOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	base := time.Now().Add(-time.Hour)
	writeRules(t, path, "banned_terms:\n  first: \"one\"\n", base)
	store := NewRuleStore(path, zerolog.Nop())
	store.Resolve("", false, FilterStandard)

	writeRules(t, path, "banned_terms: [not, a, mapping\n", base.Add(time.Minute))

	rules := store.Resolve("", false, FilterStandard)
	if _, ok := rules.BannedTerms["first"]; !ok {
		t.Fatalf("previous rules discarded after a failed reload: %+v", rules.BannedTerms)
	}
}

func TestResolveProfileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := "profiles:\n  toddler:\n    banned_terms:\n      thunder: \"drums\"\n    tone:\n      max_exclamation_points: 1\n"
	writeRules(t, path, body, time.Now())
	store := NewRuleStore(path, zerolog.Nop())

	rules := store.Resolve("toddler", false, FilterStandard)
	if rules.BannedTerms["thunder"] != "drums" {
		t.Fatalf("profile term missing: %+v", rules.BannedTerms)
	}
	if rules.MaxExclamationPoints != 1 {
		t.Fatalf("MaxExclamationPoints = %d, want 1", rules.MaxExclamationPoints)
	}

	// A profile nobody configured resolves to the base rules.
	rules = store.Resolve("astronaut", false, FilterStandard)
	if _, ok := rules.BannedTerms["thunder"]; ok {
		t.Fatal("unknown profile picked up another profile's terms")
	}
}

func TestNormalizeFilterLevel(t *testing.T) {
	tests := []struct {
		in   string
		want FilterLevel
	}{
		{"strict", FilterStrict},
		{" STRICT ", FilterStrict},
		{"relaxed", FilterRelaxed},
		{"standard", FilterStandard},
		{"", FilterStandard},
		{"bogus", FilterStandard},
	}
	for _, tc := range tests {
		if got := NormalizeFilterLevel(tc.in); got != tc.want {
			t.Fatalf("NormalizeFilterLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
