package version

import (
	"testing"
	"time"
)

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version without dirty suffix, got %q", got)
	}
}

func TestPseudoVersion(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	got := pseudoVersion("1234567890abcdef", ts)
	if got != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected pseudo version: %q", got)
	}
	if pseudoVersion("", ts) != "" {
		t.Fatalf("expected empty version without a revision")
	}
	if pseudoVersion("abc", time.Time{}) != "" {
		t.Fatalf("expected empty version without a timestamp")
	}
}
