package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QInsertSession":          QInsertSession,
		"QInsertSessionAsset":     QInsertSessionAsset,
		"QInsertModerationReport": QInsertModerationReport,
	}

	seen := map[string]string{}
	for name, query := range queries {
		first := strings.SplitN(strings.TrimSpace(query), "\n", 2)[0]
		if !markerLine.MatchString(strings.TrimSpace(first)) {
			t.Fatalf("%s: first line is not a valid marker: %q", name, first)
		}
		marker := strings.TrimPrefix(strings.TrimSpace(first), "--sql ")
		if prev, ok := seen[marker]; ok {
			t.Fatalf("marker %s reused by %s and %s", marker, prev, name)
		}
		seen[marker] = name
	}
}
