package htb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUnreleasedMachines(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/machine/unreleased" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{
			"id":472,"name":"Keeper","os":"Linux","difficulty_text":"Easy",
			"release":"2026-09-01T19:00:00.000000Z","avatar":"/avatars/472.png",
			"firstCreator":[{"id":10,"name":"xct"}],
			"retiring":{"name":"Pilgrimage","os":"Linux","difficulty_text":"Easy"}
		}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token")
	machines, err := c.UnreleasedMachines(context.Background())
	if err != nil {
		t.Fatalf("UnreleasedMachines error: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if len(machines) != 1 {
		t.Fatalf("got %d machines, want 1", len(machines))
	}
	m := machines[0]
	if m.ID != 472 || m.Name != "Keeper" || m.OS != "Linux" {
		t.Fatalf("unexpected machine: %+v", m)
	}
	if len(m.FirstCreator) != 1 || m.FirstCreator[0].Name != "xct" {
		t.Fatalf("unexpected creator: %+v", m.FirstCreator)
	}
	if m.Retiring == nil || m.Retiring.Name != "Pilgrimage" {
		t.Fatalf("unexpected retiring: %+v", m.Retiring)
	}
}

func TestUnreleasedChallengesQuery(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/challenges" || r.URL.Query().Get("state") != "unreleased" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":9,"name":"BabyEncrypt","category_name":"Crypto","difficulty":"Easy","release_date":"2026-09-05"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	challenges, err := c.UnreleasedChallenges(context.Background())
	if err != nil {
		t.Fatalf("UnreleasedChallenges error: %v", err)
	}
	if len(challenges) != 1 || challenges[0].CategoryName != "Crypto" {
		t.Fatalf("unexpected challenges: %+v", challenges)
	}
}

func TestChallengeInfo(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/challenge/info/9" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"challenge":{"id":9,"name":"BabyEncrypt","description":"break it","points":25,"solves":0,"creator_name":"gh0st","creator2_name":""}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	d, err := c.ChallengeInfo(context.Background(), 9)
	if err != nil {
		t.Fatalf("ChallengeInfo error: %v", err)
	}
	if d.Description != "break it" || d.Points != 25 || d.CreatorName != "gh0st" {
		t.Fatalf("unexpected details: %+v", d)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream sad", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	_, err := c.Notices(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("error %v not transient", err)
	}
}

func TestNetworkErrorsAreTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, "t")
	_, err := c.Notices(context.Background())
	if !IsTransient(err) {
		t.Fatalf("error %v not transient", err)
	}
}

func TestDecodeErrorsAreNotTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	_, err := c.Notices(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("decode error %v should not be transient", err)
	}
}

func TestParseReleaseTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-09-01T19:00:00.000000Z", time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)},
		{"2026-09-01T19:00:00Z", time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)},
		{"2026-09-05", time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"soon", time.Time{}},
	}
	for _, tt := range tests {
		if got := ParseReleaseTime(tt.raw); !got.Equal(tt.want) {
			t.Fatalf("ParseReleaseTime(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
