package calendar

import (
	"strings"
	"testing"
	"time"

	"htbwatch/internal/storage"
)

func sampleRelease() storage.Release {
	return storage.Release{
		Feed:       storage.FeedMachines,
		ID:         472,
		Name:       "Keeper",
		Kind:       "Linux",
		Difficulty: "Easy",
		ReleaseAt:  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
	}
}

func TestRenderICSStructure(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	out := RenderICS([]storage.Release{sampleRelease()}, 2*time.Hour, now)

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"VERSION:2.0\r\n",
		"BEGIN:VEVENT\r\n",
		"UID:htb-machine-472@htbwatch\r\n",
		"DTSTART:20260901T190000Z\r\n",
		"DTEND:20260901T210000Z\r\n",
		"DTSTAMP:20260828T120000Z\r\n",
		"SUMMARY:HTB Machine: Keeper\r\n",
		"END:VEVENT\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderICSChallengeUID(t *testing.T) {
	t.Parallel()
	rel := sampleRelease()
	rel.Feed = storage.FeedChallenges
	rel.ID = 9
	out := RenderICS([]storage.Release{rel}, time.Hour, time.Now())
	if !strings.Contains(out, "UID:htb-challenge-9@htbwatch\r\n") {
		t.Fatalf("output missing challenge UID:\n%s", out)
	}
}

func TestEscapeText(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a,b;c", `a\,b\;c`},
		{`back\slash`, `back\\slash`},
		{"line1\nline2", `line1\nline2`},
	}
	for _, tt := range tests {
		if got := escapeText(tt.in); got != tt.want {
			t.Fatalf("escapeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLineFolding(t *testing.T) {
	t.Parallel()
	rel := sampleRelease()
	rel.Name = strings.Repeat("VeryLongMachineName", 8)
	out := RenderICS([]storage.Release{rel}, time.Hour, time.Now())

	for _, line := range strings.Split(out, "\r\n") {
		if len(line) > foldWidth {
			t.Fatalf("line exceeds %d octets: %q", foldWidth, line)
		}
	}

	// Unfolding must reconstruct the original summary.
	unfolded := strings.ReplaceAll(out, "\r\n ", "")
	if !strings.Contains(unfolded, "SUMMARY:HTB Machine: "+rel.Name) {
		t.Fatal("folded summary does not unfold to the original")
	}
}

func TestRenderICSEmpty(t *testing.T) {
	t.Parallel()
	out := RenderICS(nil, time.Hour, time.Now())
	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatal("empty release set produced events")
	}
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(out, "END:VCALENDAR\r\n") {
		t.Fatalf("malformed empty calendar:\n%s", out)
	}
}
