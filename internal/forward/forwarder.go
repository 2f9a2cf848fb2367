// Package forward drains the durable link queue into Linkwarden in small
// rate-limited batches. Items stay queued until their submission succeeds,
// so a dead target only delays delivery.
package forward

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"htbwatch/internal/linkwarden"
	"htbwatch/internal/storage"
	"htbwatch/pkg/logx"
)

const (
	defaultBatchSize = 10
	defaultInterval  = 6 * time.Second
	defaultRate      = 2
)

// Queue is the consumer side of the link queue.
type Queue interface {
	DequeueBatch(ctx context.Context, limit int) ([]storage.QueueItem, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// Sink is the Linkwarden surface the forwarder uses.
type Sink interface {
	Collections(ctx context.Context) ([]linkwarden.Collection, error)
	CreateCollection(ctx context.Context, name string) (linkwarden.Collection, error)
	CreateLink(ctx context.Context, link linkwarden.Link) error
}

// Config tunes the drain loop.
type Config struct {
	BatchSize     int
	DrainInterval time.Duration
	RatePerSec    int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = defaultInterval
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = defaultRate
	}
	return c
}

// Forwarder owns the drain loop. Collections are resolved by the queue
// item's group key and cached for the life of the process.
type Forwarder struct {
	cfg     Config
	queue   Queue
	sink    Sink
	limiter *rate.Limiter
	log     logx.Logger

	collections map[string]linkwarden.Collection
	listed      bool
}

func New(cfg Config, queue Queue, sink Sink, log logx.Logger) *Forwarder {
	cfg = cfg.withDefaults()
	return &Forwarder{
		cfg:         cfg,
		queue:       queue,
		sink:        sink,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:         log,
		collections: make(map[string]linkwarden.Collection),
	}
}

// Run clears the accumulated backlog, then alternates drain and sleep until
// ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	f.log.Info("forwarder started",
		logx.Int("batch_size", f.cfg.BatchSize),
		logx.Duration("drain_interval", f.cfg.DrainInterval))

	if err := f.DrainBacklog(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Error("backlog drain failed", logx.Err(err))
	}

	ticker := time.NewTicker(f.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		if _, err := f.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Error("drain failed", logx.Err(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainBacklog drains batch after batch until the queue is empty or a pass
// settles nothing, so links collected while the process was down go out
// promptly instead of trickling at one batch per interval.
func (f *Forwarder) DrainBacklog(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := f.Drain(ctx)
		if err != nil {
			return err
		}
		// A pass that settles nothing means the queue is empty or every
		// remaining item is failing; fall back to the steady-state
		// interval instead of spinning.
		if done == 0 {
			return nil
		}
	}
}

// Drain pushes one batch and reports how many items left the queue.
// Per-item failures are logged and the item stays queued for the next
// pass; only queue-level errors propagate.
func (f *Forwarder) Drain(ctx context.Context) (int, error) {
	items, err := f.queue.DequeueBatch(ctx, f.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return done, err
		}
		if err := f.forward(ctx, item); err != nil {
			var apiErr *linkwarden.APIError
			if errors.As(err, &apiErr) && !apiErr.Transient() {
				f.log.Error("forward rejected, item stays queued",
					logx.Int64("id", item.ID),
					logx.String("link", item.Payload),
					logx.Int("status", apiErr.Status))
			} else {
				f.log.Warn("forward failed, item stays queued",
					logx.Int64("id", item.ID),
					logx.String("link", item.Payload),
					logx.Err(err))
			}
			continue
		}
		if err := f.queue.MarkProcessed(ctx, item.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				f.log.Warn("queue item vanished before mark", logx.Int64("id", item.ID))
				done++
				continue
			}
			return done, err
		}
		done++
		f.log.Debug("link forwarded",
			logx.Int64("id", item.ID),
			logx.String("collection", item.GroupKey))
	}
	return done, nil
}

func (f *Forwarder) forward(ctx context.Context, item storage.QueueItem) error {
	coll, err := f.collectionFor(ctx, item.GroupKey)
	if err != nil {
		return err
	}
	return f.sink.CreateLink(ctx, linkwarden.Link{
		URL:        item.Payload,
		Collection: coll,
		Tags:       []linkwarden.Tag{{Name: item.GroupKey}},
	})
}

// collectionFor resolves a group key to a collection: cache, then a full
// listing, then creation. The listing happens at most once per process.
func (f *Forwarder) collectionFor(ctx context.Context, name string) (linkwarden.Collection, error) {
	key := strings.ToLower(name)
	if coll, ok := f.collections[key]; ok {
		return coll, nil
	}
	if !f.listed {
		existing, err := f.sink.Collections(ctx)
		if err != nil {
			return linkwarden.Collection{}, err
		}
		for _, coll := range existing {
			f.collections[strings.ToLower(coll.Name)] = coll
		}
		f.listed = true
		if coll, ok := f.collections[key]; ok {
			return coll, nil
		}
	}
	coll, err := f.sink.CreateCollection(ctx, name)
	if err != nil {
		return linkwarden.Collection{}, err
	}
	f.collections[key] = coll
	f.log.Info("collection created", logx.String("name", coll.Name), logx.Int64("id", coll.ID))
	return coll, nil
}
