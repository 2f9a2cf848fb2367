// Package notify turns fresh feed records into Discord announcements. Each
// feed runs up to three delivery steps: an announcement embed, a guild
// scheduled event at the release time, and a forum thread with detail
// followups. Steps are independent; a failed step degrades the outcome
// instead of aborting the rest.
package notify

import (
	"context"
	"fmt"
	"time"

	"htbwatch/internal/discord"
	"htbwatch/internal/feed"
	"htbwatch/internal/htb"
	"htbwatch/internal/storage"
	"htbwatch/pkg/logx"
)

const eventDuration = 2 * time.Hour

// Steps configures delivery for one feed.
type Steps struct {
	Announcements  bool
	Events         bool
	Threads        bool
	ChannelID      string
	VoiceChannelID string
	ForumChannelID string
}

// Notifier implements feed.Notifier on top of the gateway adapter.
type Notifier struct {
	adapter *discord.Adapter
	client  *htb.Client
	avatars *AvatarFetcher
	steps   map[storage.Feed]Steps
	log     logx.Logger
}

func New(adapter *discord.Adapter, client *htb.Client, steps map[storage.Feed]Steps, log logx.Logger) *Notifier {
	return &Notifier{
		adapter: adapter,
		client:  client,
		avatars: NewAvatarFetcher(),
		steps:   steps,
		log:     log,
	}
}

// Deliver runs the enabled steps for the record's feed. Outcome.Err is set
// only when every attempted step failed.
func (n *Notifier) Deliver(ctx context.Context, f storage.Feed, rec feed.Record) feed.Outcome {
	steps, ok := n.steps[f]
	if !ok {
		return feed.Outcome{Err: fmt.Errorf("notify: no delivery config for feed %q", f)}
	}

	var out feed.Outcome
	var firstErr error
	run := func(name string, fn func() error) {
		out.Steps++
		if err := fn(); err != nil {
			out.Failed++
			if firstErr == nil {
				firstErr = err
			}
			n.log.Warn("delivery step failed",
				logx.String("feed", string(f)),
				logx.String("step", name),
				logx.Int64("id", rec.ID),
				logx.Err(err))
		}
	}

	avatar := n.fetchAvatar(ctx, rec.AvatarPath)

	if steps.Announcements && steps.ChannelID != "" {
		run("announcement", func() error {
			return n.adapter.SendEmbed(ctx, steps.ChannelID, buildEmbed(f, rec))
		})
	}
	if steps.Events && !rec.ReleaseAt.IsZero() && rec.ReleaseAt.After(time.Now()) {
		run("event", func() error {
			return n.createEvent(ctx, f, rec, steps, avatar)
		})
	}
	if steps.Threads && steps.ForumChannelID != "" {
		run("thread", func() error {
			return n.createThread(ctx, f, rec, steps, avatar)
		})
	}

	if out.Steps > 0 && out.Failed == out.Steps {
		out.Err = firstErr
	}
	return out
}

func (n *Notifier) fetchAvatar(ctx context.Context, path string) *Avatar {
	if path == "" {
		return nil
	}
	avatar, err := n.avatars.Fetch(ctx, path)
	if err != nil {
		n.log.Warn("avatar fetch failed", logx.String("path", path), logx.Err(err))
		return nil
	}
	return avatar
}

func (n *Notifier) createEvent(ctx context.Context, f storage.Feed, rec feed.Record, steps Steps, avatar *Avatar) error {
	p := discord.EventParams{
		Name:           eventName(f, rec),
		Description:    eventDescription(f, rec),
		Start:          rec.ReleaseAt,
		End:            rec.ReleaseAt.Add(eventDuration),
		VoiceChannelID: steps.VoiceChannelID,
		Location:       "https://app.hackthebox.com",
	}
	if avatar != nil {
		p.CoverImage = avatar.DataURI()
	}
	return n.adapter.CreateScheduledEvent(ctx, p)
}

func (n *Notifier) createThread(ctx context.Context, f storage.Feed, rec feed.Record, steps Steps, avatar *Avatar) error {
	p := discord.ThreadParams{
		ForumChannelID: steps.ForumChannelID,
		Name:           rec.Name,
		Content:        threadContent(f, rec),
		TagNames:       threadTags(f, rec),
	}
	if avatar != nil {
		p.File = avatar.File(rec.Name)
	}
	threadID, err := n.adapter.CreateForumThread(ctx, p)
	if err != nil {
		return err
	}

	// Challenge threads get an extra post with details only the per-item
	// endpoint exposes. Enrichment is best effort.
	if f == storage.FeedChallenges {
		if err := n.postChallengeDetails(ctx, threadID, rec.ID); err != nil {
			n.log.Warn("challenge detail enrichment failed",
				logx.Int64("id", rec.ID),
				logx.Err(err))
		}
	}
	return nil
}

func (n *Notifier) postChallengeDetails(ctx context.Context, threadID string, id int64) error {
	details, err := n.client.ChallengeInfo(ctx, id)
	if err != nil {
		return err
	}
	return n.adapter.SendMessage(ctx, threadID, formatChallengeDetails(details))
}

var _ feed.Notifier = (*Notifier)(nil)
