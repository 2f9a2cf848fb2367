package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"htbwatch/internal/feed"
	"htbwatch/internal/htb"
	"htbwatch/internal/storage"
)

func machineRec() feed.Record {
	return feed.Record{
		ID:         472,
		Name:       "Keeper",
		Kind:       "Linux",
		Difficulty: "Easy",
		ReleaseAt:  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		Creator:    "xct",
		Retiring:   "Pilgrimage (Easy) - Linux",
		AvatarPath: "/avatars/472.png",
	}
}

func TestMachineEmbed(t *testing.T) {
	t.Parallel()
	e := buildEmbed(storage.FeedMachines, machineRec())
	if e.Title != "New Machine: Keeper" {
		t.Fatalf("title = %q", e.Title)
	}
	if e.Color != difficultyColors["easy"] {
		t.Fatalf("color = %#x", e.Color)
	}
	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	if fields["OS"] != "Linux" || fields["Difficulty"] != "Easy" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["Creator"] != "xct" {
		t.Fatalf("creator field = %q", fields["Creator"])
	}
	if fields["Retiring"] != "Pilgrimage (Easy) - Linux" {
		t.Fatalf("retiring field = %q", fields["Retiring"])
	}
	wantTS := fmt.Sprintf("<t:%d:F>", machineRec().ReleaseAt.Unix())
	if fields["Release"] != wantTS {
		t.Fatalf("release field = %q, want %q", fields["Release"], wantTS)
	}
	if e.Thumbnail == nil || !strings.Contains(e.Thumbnail.URL, "/avatars/472.png") {
		t.Fatalf("thumbnail = %+v", e.Thumbnail)
	}
}

func TestChallengeEmbed(t *testing.T) {
	t.Parallel()
	rec := feed.Record{
		ID:         9,
		Name:       "BabyEncrypt",
		Kind:       "Crypto",
		Difficulty: "Medium",
		ReleaseAt:  time.Date(2026, 9, 5, 19, 0, 0, 0, time.UTC),
	}
	e := buildEmbed(storage.FeedChallenges, rec)
	if e.Title != "New Challenge: BabyEncrypt" {
		t.Fatalf("title = %q", e.Title)
	}
	if e.Color != difficultyColors["medium"] {
		t.Fatalf("color = %#x", e.Color)
	}
}

func TestNoticeEmbed(t *testing.T) {
	t.Parallel()
	rec := feed.Record{
		ID:      3,
		Name:    "warning",
		Message: "lab maintenance at 02:00 UTC",
		URL:     "https://status.hackthebox.com",
	}
	e := buildEmbed(storage.FeedNotices, rec)
	if e.Title != "Notice: warning" {
		t.Fatalf("title = %q", e.Title)
	}
	if e.Description != rec.Message {
		t.Fatalf("description = %q", e.Description)
	}
	if e.URL != rec.URL {
		t.Fatalf("url = %q", e.URL)
	}
}

func TestUnknownDifficultyFallsBack(t *testing.T) {
	t.Parallel()
	if colorFor("mystery") != defaultColor {
		t.Fatal("unknown difficulty should use default color")
	}
}

func TestFormatChallengeDetails(t *testing.T) {
	t.Parallel()
	got := formatChallengeDetails(&htb.ChallengeDetails{
		Description:  "break the cipher",
		Points:       25,
		Solves:       3,
		CreatorName:  "gh0st",
		Creator2Name: "mate",
	})
	for _, want := range []string{
		"break the cipher",
		"Points: 25",
		"Solves: 3",
		"Made by gh0st & mate",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("details missing %q:\n%s", want, got)
		}
	}
}
