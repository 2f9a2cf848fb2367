package config

// Config is the full htbwatch configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "10m").
// Poll schedules additionally accept cron specs ("cron:*/10 * * * *").
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	API      APIConfig      `json:"api"`
	Feeds    FeedsConfig    `json:"feeds"`
	Forward  ForwardConfig  `json:"forward,omitempty"`
	Database DatabaseConfig `json:"database"`
	Calendar CalendarConfig `json:"calendar,omitempty"`
	Service  ServiceConfig  `json:"service,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Pprof    PprofConfig    `json:"pprof,omitempty"`
}

// DiscordConfig holds the shared upstream connection settings.
// The token is never logged.
type DiscordConfig struct {
	Token   string `json:"token"`
	GuildID string `json:"guild_id,omitempty"`
}

// APIConfig configures the HTB origin.
type APIConfig struct {
	BaseURL string `json:"base_url,omitempty"` // default https://labs.hackthebox.com/api/v4
	Token   string `json:"token"`              // bearer credential, attached per call

	// Timeout bounds every outbound origin call. Default "30s".
	Timeout string `json:"timeout,omitempty"`
}

// FeedsConfig declares the watched feeds.
type FeedsConfig struct {
	Machines   FeedConfig `json:"machines"`
	Challenges FeedConfig `json:"challenges"`
	Notices    FeedConfig `json:"notices"`
}

// FeedConfig configures a single feed watcher.
//
// Poll is either a duration ("10m") or a cron spec ("cron:*/10 * * * *").
// Defaults: 10m for machines/challenges, 1m for notices.
type FeedConfig struct {
	Enabled bool   `json:"enabled"`
	Poll    string `json:"poll,omitempty"`

	// Delivery step toggles. Nil means enabled.
	Announcements *bool `json:"announcements,omitempty"`
	Events        *bool `json:"events,omitempty"`
	Threads       *bool `json:"threads,omitempty"`

	ChannelID      string `json:"channel_id,omitempty"`
	VoiceChannelID string `json:"voice_channel_id,omitempty"`
	ForumChannelID string `json:"forum_channel_id,omitempty"`
}

// ForwardConfig configures the link forwarder and its Linkwarden target.
type ForwardConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
	Token   string `json:"token,omitempty"`

	// Categories lists Discord category IDs whose channels are observed
	// for links (producer side; history replay + live messages).
	Categories []string `json:"categories,omitempty"`

	BatchSize     int    `json:"batch_size,omitempty"`     // default 10
	DrainInterval string `json:"drain_interval,omitempty"` // default "6s"
	RatePerSec    int    `json:"rate_per_sec,omitempty"`   // default 2
}

// DatabaseConfig configures the sqlite stores.
type DatabaseConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// CalendarConfig configures the read-only ICS projection server.
type CalendarConfig struct {
	Enabled         bool   `json:"enabled"`
	Addr            string `json:"addr,omitempty"` // default 127.0.0.1:8099
	LookbackDays    int    `json:"lookback_days,omitempty"`
	LookaheadDays   int    `json:"lookahead_days,omitempty"`
	DurationMinutes int    `json:"default_duration_minutes,omitempty"`
}

// ServiceConfig controls the watcher-set restart policy.
type ServiceConfig struct {
	MaxRestarts  int    `json:"max_restarts,omitempty"`  // default 3
	RestartDelay string `json:"restart_delay,omitempty"` // default "30s"
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}

// StepEnabled interprets a nil toggle as enabled.
func StepEnabled(v *bool) bool { return v == nil || *v }
