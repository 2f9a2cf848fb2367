package feed

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when a watcher wakes for its next poll. A spec is either
// a fixed interval ("600s", "10m", "interval:1h") or a cron expression
// ("cron:*/10 * * * *", "@hourly", "0 9 * * 1"). A bare "HH:MM" means daily
// at that time.
type Schedule struct {
	spec  string
	every time.Duration
	cron  cron.Schedule
}

var (
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	timeOfDayRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// ParsePoll parses a poll spec. An empty spec falls back to def.
func ParsePoll(raw string, def time.Duration) (Schedule, error) {
	spec := strings.TrimSpace(raw)
	if spec == "" {
		if def <= 0 {
			return Schedule{}, fmt.Errorf("feed: empty poll spec and no default")
		}
		return Schedule{spec: def.String(), every: def}, nil
	}

	lower := strings.ToLower(spec)
	switch {
	case strings.HasPrefix(lower, "cron:"):
		return parseCron(strings.TrimSpace(spec[len("cron:"):]))
	case strings.HasPrefix(lower, "interval:"):
		return parseEvery(strings.TrimSpace(spec[len("interval:"):]))
	case strings.HasPrefix(lower, "every:"):
		return parseEvery(strings.TrimSpace(spec[len("every:"):]))
	}

	if m := timeOfDayRe.FindStringSubmatch(spec); m != nil {
		return parseCron(fmt.Sprintf("%s %s * * *", m[2], m[1]))
	}

	// Anything with whitespace or an @ descriptor reads as cron, the rest
	// as a duration.
	if strings.ContainsAny(spec, " \t") || strings.HasPrefix(spec, "@") {
		return parseCron(spec)
	}
	return parseEvery(spec)
}

func parseEvery(s string) (Schedule, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("feed: invalid poll interval %q: %w", s, err)
	}
	if d < time.Second {
		return Schedule{}, fmt.Errorf("feed: poll interval %q below 1s", s)
	}
	return Schedule{spec: s, every: d}, nil
}

func parseCron(s string) (Schedule, error) {
	sched, err := cronParser.Parse(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("feed: invalid cron spec %q: %w", s, err)
	}
	return Schedule{spec: s, cron: sched}, nil
}

// NextAfter returns how long to sleep from now until the next poll.
func (s Schedule) NextAfter(now time.Time) time.Duration {
	if s.cron != nil {
		d := s.cron.Next(now).Sub(now)
		if d < 0 {
			d = 0
		}
		return d
	}
	return s.every
}

// Interval reports the fixed interval, or zero for cron schedules.
func (s Schedule) Interval() time.Duration { return s.every }

func (s Schedule) String() string { return s.spec }

// IsZero reports whether the schedule was never parsed.
func (s Schedule) IsZero() bool { return s.cron == nil && s.every == 0 }
