package feed

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"htbwatch/internal/storage"
)

func TestMissingFields(t *testing.T) {
	t.Parallel()
	full := Record{
		ID:         472,
		Name:       "Keeper",
		Kind:       "Linux",
		Difficulty: "Easy",
		ReleaseAt:  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		rec  Record
		feed storage.Feed
		want []string
	}{
		{name: "complete machine", rec: full, feed: storage.FeedMachines, want: nil},
		{
			name: "machine without release",
			rec:  Record{ID: 1, Name: "x", Kind: "Linux", Difficulty: "Easy"},
			feed: storage.FeedMachines,
			want: []string{"release"},
		},
		{
			name: "challenge missing several",
			rec:  Record{ID: 9, Name: "crypto1"},
			feed: storage.FeedChallenges,
			want: []string{"kind", "difficulty", "release"},
		},
		{
			name: "notice needs message",
			rec:  Record{ID: 3},
			feed: storage.FeedNotices,
			want: []string{"message"},
		},
		{
			name: "zero id",
			rec:  Record{Message: "maintenance window"},
			feed: storage.FeedNotices,
			want: []string{"id"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.MissingFields(RequiredFields(tt.feed))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("MissingFields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecordSeen(t *testing.T) {
	t.Parallel()
	release := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	rec := Record{
		ID:         472,
		Name:       "Keeper",
		Kind:       "Linux",
		Difficulty: "Easy",
		ReleaseAt:  release,
		Creator:    "xct",
		AvatarPath: "/avatars/472.png",
	}
	want := storage.SeenRecord{
		ID:         472,
		Name:       "Keeper",
		Kind:       "Linux",
		Difficulty: "Easy",
		ReleaseAt:  release,
	}
	if diff := cmp.Diff(want, rec.Seen()); diff != "" {
		t.Fatalf("Seen mismatch (-want +got):\n%s", diff)
	}
}
