package infra

import (
	"strings"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	query := `--sql 8c2e41d7-5b1a-4f6e-9c3d-7a8b2e4f1c05
select 1;
`
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "8c2e41d7-5b1a-4f6e-9c3d-7a8b2e4f1c05" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.TrimSpace(trimmed) != "select 1;" {
		t.Fatalf("trimmed = %q", trimmed)
	}
}

func TestExtractMarkerRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no marker", "select 1;"},
		{"malformed uuid", "--sql not-a-uuid\nselect 1;"},
		{"uppercase uuid", "--sql 8C2E41D7-5B1A-4F6E-9C3D-7A8B2E4F1C05\nselect 1;"},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := extractMarker(tc.query); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
