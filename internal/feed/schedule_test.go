package feed

import (
	"testing"
	"time"
)

func TestParsePollVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		every time.Duration
		cron  bool
	}{
		{name: "plain duration", raw: "600s", every: 600 * time.Second},
		{name: "minutes", raw: "10m", every: 10 * time.Minute},
		{name: "interval prefix", raw: "interval:1h", every: time.Hour},
		{name: "every prefix", raw: "every:45s", every: 45 * time.Second},
		{name: "cron prefix", raw: "cron:*/10 * * * *", cron: true},
		{name: "raw cron", raw: "0 9 * * 1", cron: true},
		{name: "descriptor", raw: "@hourly", cron: true},
		{name: "time of day", raw: "09:30", cron: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePoll(tt.raw, 0)
			if err != nil {
				t.Fatalf("ParsePoll(%q) error: %v", tt.raw, err)
			}
			if tt.cron {
				if got.cron == nil {
					t.Fatalf("ParsePoll(%q) parsed as interval, want cron", tt.raw)
				}
				return
			}
			if got.Interval() != tt.every {
				t.Fatalf("Interval = %v, want %v", got.Interval(), tt.every)
			}
		})
	}
}

func TestParsePollDefault(t *testing.T) {
	t.Parallel()
	got, err := ParsePoll("", 10*time.Minute)
	if err != nil {
		t.Fatalf("ParsePoll error: %v", err)
	}
	if got.Interval() != 10*time.Minute {
		t.Fatalf("Interval = %v, want 10m", got.Interval())
	}
}

func TestParsePollInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"not-a-spec", "cron:banana", "500ms", ""} {
		if _, err := ParsePoll(raw, 0); err == nil {
			t.Fatalf("ParsePoll(%q) succeeded, want error", raw)
		}
	}
}

func TestScheduleNextAfter(t *testing.T) {
	t.Parallel()
	s, err := ParsePoll("10m", 0)
	if err != nil {
		t.Fatalf("ParsePoll error: %v", err)
	}
	if got := s.NextAfter(time.Now()); got != 10*time.Minute {
		t.Fatalf("NextAfter = %v, want 10m", got)
	}

	c, err := ParsePoll("cron:0 * * * *", 0)
	if err != nil {
		t.Fatalf("ParsePoll error: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if got := c.NextAfter(now); got != 30*time.Minute {
		t.Fatalf("NextAfter = %v, want 30m", got)
	}
}
