package app

import (
	"time"

	"htbwatch/internal/calendar"
	"htbwatch/internal/config"
	"htbwatch/internal/forward"
	"htbwatch/internal/notify"
	"htbwatch/internal/observability/pprof"
	"htbwatch/internal/storage"
)

func mapSteps(cfg *config.Config) map[storage.Feed]notify.Steps {
	return map[storage.Feed]notify.Steps{
		storage.FeedMachines:   mapFeedSteps(cfg.Feeds.Machines),
		storage.FeedChallenges: mapFeedSteps(cfg.Feeds.Challenges),
		storage.FeedNotices:    mapFeedSteps(cfg.Feeds.Notices),
	}
}

func mapFeedSteps(fc config.FeedConfig) notify.Steps {
	return notify.Steps{
		Announcements:  config.StepEnabled(fc.Announcements),
		Events:         config.StepEnabled(fc.Events),
		Threads:        config.StepEnabled(fc.Threads) && fc.ForumChannelID != "",
		ChannelID:      fc.ChannelID,
		VoiceChannelID: fc.VoiceChannelID,
		ForumChannelID: fc.ForumChannelID,
	}
}

func mapForwardConfig(cfg *config.Config) (forward.Config, error) {
	drain, err := config.ParseDurationOrDefault("forward.drain_interval", cfg.Forward.DrainInterval, 6*time.Second)
	if err != nil {
		return forward.Config{}, err
	}
	return forward.Config{
		BatchSize:     cfg.Forward.BatchSize,
		DrainInterval: drain,
		RatePerSec:    cfg.Forward.RatePerSec,
	}, nil
}

func mapCalendarConfig(cfg *config.Config) calendar.Config {
	return calendar.Config{
		Addr:          cfg.Calendar.Addr,
		LookbackDays:  cfg.Calendar.LookbackDays,
		LookaheadDays: cfg.Calendar.LookaheadDays,
		EventDuration: time.Duration(cfg.Calendar.DurationMinutes) * time.Minute,
	}
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	readTimeout, err := config.ParseDurationOrDefault("pprof.read_timeout", cfg.Pprof.ReadTimeout, 5*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	writeTimeout, err := config.ParseDurationOrDefault("pprof.write_timeout", cfg.Pprof.WriteTimeout, 30*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	idleTimeout, err := config.ParseDurationOrDefault("pprof.idle_timeout", cfg.Pprof.IdleTimeout, time.Minute)
	if err != nil {
		return pprof.Config{}, err
	}
	return pprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		Prefix:        cfg.Pprof.Prefix,
		Token:         cfg.Pprof.Token,
		AllowInsecure: cfg.Pprof.AllowInsecure,
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
		IdleTimeout:   idleTimeout,
	}, nil
}

func restartPolicy(cfg *config.Config) (maxRestarts int, delay time.Duration, err error) {
	maxRestarts = cfg.Service.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = 3
	}
	delay, err = config.ParseDurationOrDefault("service.restart_delay", cfg.Service.RestartDelay, 30*time.Second)
	if err != nil {
		return 0, 0, err
	}
	return maxRestarts, delay, nil
}
