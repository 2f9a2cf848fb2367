package config

import (
	"fmt"
	"strings"
)

// Validate checks static invariants that don't need collaborators.
// Poll schedule specs are validated by the feed package (duration vs. cron).
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required")
	}
	anyFeed := c.Feeds.Machines.Enabled || c.Feeds.Challenges.Enabled || c.Feeds.Notices.Enabled
	if anyFeed && strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("api.token is required when a feed is enabled")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := ParseDurationField("api.timeout", c.API.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("database.busy_timeout", c.Database.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("service.restart_delay", c.Service.RestartDelay); err != nil {
		return err
	}
	if c.Service.MaxRestarts < 0 {
		return fmt.Errorf("service.max_restarts must be >= 0")
	}

	if c.Forward.Enabled {
		if strings.TrimSpace(c.Forward.BaseURL) == "" {
			return fmt.Errorf("forward.base_url is required when forward is enabled")
		}
		if strings.TrimSpace(c.Forward.Token) == "" {
			return fmt.Errorf("forward.token is required when forward is enabled")
		}
		if len(c.Forward.Categories) == 0 {
			return fmt.Errorf("forward.categories must list at least one category id")
		}
		if c.Forward.BatchSize < 0 {
			return fmt.Errorf("forward.batch_size must be >= 0")
		}
		if c.Forward.RatePerSec < 0 {
			return fmt.Errorf("forward.rate_per_sec must be >= 0")
		}
		if _, err := ParseDurationField("forward.drain_interval", c.Forward.DrainInterval); err != nil {
			return err
		}
	}

	if c.Calendar.Enabled {
		if c.Calendar.LookbackDays < 0 || c.Calendar.LookaheadDays < 0 {
			return fmt.Errorf("calendar lookback/lookahead must be >= 0")
		}
		if c.Calendar.DurationMinutes < 0 {
			return fmt.Errorf("calendar.default_duration_minutes must be >= 0")
		}
	}

	for name, fc := range map[string]FeedConfig{
		"machines":   c.Feeds.Machines,
		"challenges": c.Feeds.Challenges,
		"notices":    c.Feeds.Notices,
	} {
		if !fc.Enabled {
			continue
		}
		if strings.TrimSpace(fc.ChannelID) == "" {
			return fmt.Errorf("feeds.%s.channel_id is required when the feed is enabled", name)
		}
	}

	for _, f := range []struct{ path, raw string }{
		{"pprof.read_timeout", c.Pprof.ReadTimeout},
		{"pprof.write_timeout", c.Pprof.WriteTimeout},
		{"pprof.idle_timeout", c.Pprof.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
