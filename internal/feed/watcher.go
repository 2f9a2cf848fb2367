package feed

import (
	"context"
	"time"

	"htbwatch/internal/htb"
	"htbwatch/internal/storage"
	"htbwatch/pkg/logx"
)

// Outcome summarizes one delivery attempt. Err set means the record could
// not be announced at all; Failed counts optional steps that did not land.
type Outcome struct {
	Steps  int
	Failed int
	Err    error
}

// Fatal reports whether nothing was delivered.
func (o Outcome) Fatal() bool { return o.Err != nil }

// Partial reports whether some but not all delivery steps landed.
func (o Outcome) Partial() bool { return o.Err == nil && o.Failed > 0 }

// Notifier announces one fresh record to the outside world.
type Notifier interface {
	Deliver(ctx context.Context, f storage.Feed, rec Record) Outcome
}

// Store is the slice of the dedup store a watcher needs.
type Store interface {
	Exists(ctx context.Context, f storage.Feed, id int64) (bool, error)
	Insert(ctx context.Context, f storage.Feed, rec storage.SeenRecord) (bool, error)
}

// ReadyWaiter gates the first poll until the delivery side is connected.
type ReadyWaiter interface {
	WaitReady(ctx context.Context) error
}

const defaultRetryBackoff = 60 * time.Second

// WatcherConfig carries the per-feed knobs; everything else is shared flow.
type WatcherConfig struct {
	Feed         storage.Feed
	Poll         Schedule
	Required     []string      // empty means RequiredFields(Feed)
	RetryBackoff time.Duration // zero means defaultRetryBackoff
}

// Watcher runs one feed's poll, diff, dispatch, sleep loop until its context
// is cancelled or a non-transient error occurs.
type Watcher struct {
	cfg      WatcherConfig
	source   Source
	store    Store
	notifier Notifier
	ready    ReadyWaiter
	log      logx.Logger
}

func NewWatcher(cfg WatcherConfig, source Source, store Store, notifier Notifier, ready ReadyWaiter, log logx.Logger) *Watcher {
	if len(cfg.Required) == 0 {
		cfg.Required = RequiredFields(cfg.Feed)
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Watcher{
		cfg:      cfg,
		source:   source,
		store:    store,
		notifier: notifier,
		ready:    ready,
		log:      log.With(logx.String("feed", string(cfg.Feed))),
	}
}

// Run blocks until ctx is cancelled (returns ctx.Err()) or a non-transient
// failure occurs. Transient origin errors back off for a fixed interval and
// retry without advancing the schedule.
func (w *Watcher) Run(ctx context.Context) error {
	if w.ready != nil {
		if err := w.ready.WaitReady(ctx); err != nil {
			return err
		}
	}
	w.log.Info("watcher started", logx.String("poll", w.cfg.Poll.String()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := w.source.Fetch(ctx)
		switch {
		case err == nil:
			w.dispatch(ctx, records)
			if err := ctx.Err(); err != nil {
				return err
			}
			if !w.sleep(ctx, w.cfg.Poll.NextAfter(time.Now())) {
				return ctx.Err()
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case htb.IsTransient(err):
			w.log.Warn("poll failed, backing off",
				logx.Err(err),
				logx.Duration("backoff", w.cfg.RetryBackoff))
			if !w.sleep(ctx, w.cfg.RetryBackoff) {
				return ctx.Err()
			}
		default:
			w.log.Error("poll failed", logx.Err(err))
			return err
		}
	}
}

// dispatch walks the fetched records in origin order, announcing and
// persisting the ones not seen before.
func (w *Watcher) dispatch(ctx context.Context, records []Record) {
	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}

		seen, err := w.store.Exists(ctx, w.cfg.Feed, rec.ID)
		if err != nil {
			w.log.Error("dedup lookup failed", logx.Int64("id", rec.ID), logx.Err(err))
			continue
		}
		if seen {
			continue
		}

		// Malformed records are skipped without being marked seen, so a
		// later poll with the fields filled in announces them normally.
		if missing := rec.MissingFields(w.cfg.Required); len(missing) > 0 {
			w.log.Error("record missing required fields, skipping",
				logx.Int64("id", rec.ID),
				logx.Any("missing", missing))
			continue
		}

		out := w.notifier.Deliver(ctx, w.cfg.Feed, rec)
		switch {
		case out.Fatal():
			w.log.Error("delivery failed", logx.Int64("id", rec.ID), logx.Err(out.Err))
		case out.Partial():
			w.log.Warn("delivery partially failed",
				logx.Int64("id", rec.ID),
				logx.Int("steps", out.Steps),
				logx.Int("failed", out.Failed))
		}
		if ctx.Err() != nil {
			return
		}

		// Marked seen regardless of the delivery outcome: a broken
		// downstream must not replay announcements forever.
		inserted, err := w.store.Insert(ctx, w.cfg.Feed, rec.Seen())
		if err != nil {
			w.log.Error("marking record seen failed", logx.Int64("id", rec.ID), logx.Err(err))
			continue
		}
		if inserted && !out.Fatal() {
			w.log.Info("announced",
				logx.Int64("id", rec.ID),
				logx.String("name", rec.Name),
				logx.String("kind", rec.Kind))
		}
	}
}

// sleep waits for d or cancellation; false means the context ended first.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
