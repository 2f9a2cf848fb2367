// Package app wires configuration, storage, the gateway adapter, and the
// watcher set together, and owns the bounded whole-set restart policy.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"htbwatch/internal/calendar"
	"htbwatch/internal/config"
	"htbwatch/internal/discord"
	"htbwatch/internal/feed"
	"htbwatch/internal/forward"
	"htbwatch/internal/htb"
	"htbwatch/internal/linkwarden"
	"htbwatch/internal/notify"
	"htbwatch/internal/observability/pprof"
	rtsup "htbwatch/internal/runtime/supervisor"
	"htbwatch/internal/storage"
	logx "htbwatch/pkg/logx"
)

// App holds the long-lived components. The watcher set (watchers, link
// observer, forwarder, calendar server) is rebuilt on failure; everything
// here survives across restarts.
type App struct {
	cfgPath string

	cfgm  *config.Manager
	log   logx.Logger
	logs  *logx.Service
	store *storage.Store

	client  *htb.Client
	adapter *discord.Adapter
	pprof   *pprof.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	apiTimeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	client := htb.New(cfg.API.BaseURL, cfg.API.Token, htb.WithTimeout(apiTimeout))

	adapter, err := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	}, log.With(logx.String("comp", "discord")))
	if err != nil {
		return nil, err
	}

	pprofCfg, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	pprofSvc := pprof.New(pprofCfg, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		client:  client,
		adapter: adapter,
		pprof:   pprofSvc,
	}, nil
}

// Run blocks until ctx is cancelled or the restart budget is exhausted.
// Each watcher-set failure tears the whole set down and rebuilds it after
// the restart delay; the gateway session and storage stay up throughout.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	if err := a.adapter.Open(); err != nil {
		return err
	}
	defer func() { _ = a.adapter.Close() }()
	defer func() { _ = a.store.Close() }()

	if a.pprof.Enabled() {
		a.pprof.Start(ctx)
		defer a.pprof.Stop(context.Background())
	}

	// Config watching and hot-reload live outside the restartable set so a
	// broken watcher cannot take them down.
	base := rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))
	base.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	sub := a.cfgm.Subscribe(8)
	base.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	defer func() { _ = base.Stop(context.Background()) }()

	maxRestarts, restartDelay, err := restartPolicy(cfg)
	if err != nil {
		return err
	}

	err = runWithRestarts(ctx, a.log, maxRestarts, restartDelay, func(c context.Context) error {
		return a.runSet(c, a.cfgm.Get())
	})
	if err == nil {
		a.log.Info("stopped")
	}
	return err
}

// runWithRestarts reruns the watcher set after failures, up to maxRestarts
// rebuilds, waiting delay between attempts. Cancellation always returns nil.
func runWithRestarts(ctx context.Context, log logx.Logger, maxRestarts int, delay time.Duration, run func(ctx context.Context) error) error {
	restarts := 0
	for {
		err := run(ctx)
		if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if restarts >= maxRestarts {
			log.Error("restart budget exhausted, giving up",
				logx.Int("restarts", restarts),
				logx.Err(err))
			return fmt.Errorf("app: watcher set failed after %d restarts: %w", restarts, err)
		}
		restarts++
		log.Warn("watcher set failed, restarting",
			logx.Int("attempt", restarts),
			logx.Int("max_restarts", maxRestarts),
			logx.Duration("delay", delay),
			logx.Err(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runSet builds and runs one incarnation of the watcher set. It returns the
// first task error, or nil on clean cancellation.
func (a *App) runSet(ctx context.Context, cfg *config.Config) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
	)

	notifier := notify.New(a.adapter, a.client, mapSteps(cfg), a.log.With(logx.String("comp", "notify")))

	watchers, err := a.buildWatchers(cfg, notifier)
	if err != nil {
		sup.Cancel()
		return err
	}
	for _, w := range watchers {
		w := w
		sup.Go("watch."+w.name, func(c context.Context) error {
			return w.watcher.Run(c)
		})
	}

	if cfg.Forward.Enabled {
		fwdCfg, err := mapForwardConfig(cfg)
		if err != nil {
			sup.Cancel()
			return err
		}
		sink := linkwarden.New(cfg.Forward.BaseURL, cfg.Forward.Token)
		fwd := forward.New(fwdCfg, a.store, sink, a.log.With(logx.String("comp", "forward")))
		sup.Go("forward.drain", fwd.Run)

		observer := discord.NewObserver(a.adapter, a.store, cfg.Forward.Categories,
			a.log.With(logx.String("comp", "observer")))
		sup.Go("links.observe", observer.Run)
	}

	if cfg.Calendar.Enabled {
		cal := calendar.NewServer(mapCalendarConfig(cfg), a.store,
			a.log.With(logx.String("comp", "calendar")))
		sup.Go("calendar.serve", cal.Run)
	}

	err = sup.Wait(context.Background())
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type namedWatcher struct {
	name    string
	watcher *feed.Watcher
}

func (a *App) buildWatchers(cfg *config.Config, notifier *notify.Notifier) ([]namedWatcher, error) {
	specs := []struct {
		feed        storage.Feed
		cfg         config.FeedConfig
		defaultPoll time.Duration
	}{
		{storage.FeedMachines, cfg.Feeds.Machines, 10 * time.Minute},
		{storage.FeedChallenges, cfg.Feeds.Challenges, 10 * time.Minute},
		{storage.FeedNotices, cfg.Feeds.Notices, time.Minute},
	}

	var watchers []namedWatcher
	for _, s := range specs {
		if !s.cfg.Enabled {
			continue
		}
		poll, err := feed.ParsePoll(s.cfg.Poll, s.defaultPoll)
		if err != nil {
			return nil, fmt.Errorf("feeds.%s: %w", s.feed, err)
		}
		source, err := feed.NewSource(s.feed, a.client)
		if err != nil {
			return nil, err
		}
		w := feed.NewWatcher(feed.WatcherConfig{
			Feed: s.feed,
			Poll: poll,
		}, source, a.store, notifier, a.adapter, a.log.With(logx.String("comp", "watcher")))
		watchers = append(watchers, namedWatcher{name: string(s.feed), watcher: w})
	}
	if len(watchers) == 0 {
		return nil, errors.New("app: no feeds enabled")
	}
	return watchers, nil
}

// reloadLoop applies hot-reloadable settings. Feed, forward, and database
// changes need a process restart and are only reported.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logs.Apply(logx.Config{
				Level:   newCfg.Logging.Level,
				Console: newCfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: newCfg.Logging.File.Enabled,
					Path:    newCfg.Logging.File.Path,
				},
			})

			if ppc, err := mapPprofConfig(newCfg); err != nil {
				a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
			} else {
				a.pprof.Reconfigure(ctx, ppc)
			}

			a.log.Info("config reloaded",
				logx.String("note", "feed, forward and database changes take effect on restart"))
		}
	}
}

// Close releases resources after Run has returned.
func (a *App) Close() {
	if a.logs != nil {
		a.logs.Close()
	}
}
