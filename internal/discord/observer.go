package discord

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"htbwatch/pkg/logx"
)

// LinkQueue is the producer side of the forward queue.
type LinkQueue interface {
	Enqueue(ctx context.Context, groupKey, payload string) (bool, error)
}

var linkRe = regexp.MustCompile(`https?://[^\s<>]+`)

const historyPageSize = 100

// Observer watches the channels under the configured category IDs and
// enqueues every link it sees, both from history replay and live messages.
// The queue's uniqueness constraint absorbs the overlap between the two.
type Observer struct {
	adapter    *Adapter
	queue      LinkQueue
	categories map[string]bool
	log        logx.Logger

	watched map[string]string // channel id -> channel name
}

func NewObserver(adapter *Adapter, queue LinkQueue, categoryIDs []string, log logx.Logger) *Observer {
	categories := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		categories[id] = true
	}
	return &Observer{
		adapter:    adapter,
		queue:      queue,
		categories: categories,
		log:        log,
		watched:    make(map[string]string),
	}
}

// Run resolves the watched channels, registers the live handler, replays
// history, then blocks until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) error {
	if err := o.adapter.WaitReady(ctx); err != nil {
		return err
	}
	if err := o.resolveChannels(); err != nil {
		return err
	}
	o.log.Info("link observer started", logx.Int("channels", len(o.watched)))

	// The live handler registers before replay so no message slips through
	// the gap between the two.
	remove := o.adapter.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		o.onMessage(ctx, m)
	})
	defer remove()

	o.replayHistory(ctx)

	<-ctx.Done()
	return ctx.Err()
}

func (o *Observer) resolveChannels() error {
	channels, err := o.adapter.session.GuildChannels(o.adapter.cfg.GuildID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if !o.categories[ch.ParentID] {
			continue
		}
		o.watched[ch.ID] = ch.Name
	}
	return nil
}

func (o *Observer) onMessage(ctx context.Context, m *discordgo.MessageCreate) {
	name, ok := o.watched[m.ChannelID]
	if !ok || m.Author == nil || m.Author.Bot {
		return
	}
	o.enqueueLinks(ctx, name, m.Content)
}

// replayHistory pages backwards through each watched channel so links posted
// while the process was down still reach the queue.
func (o *Observer) replayHistory(ctx context.Context) {
	for id, name := range o.watched {
		if ctx.Err() != nil {
			return
		}
		beforeID := ""
		for {
			msgs, err := o.adapter.session.ChannelMessages(id, historyPageSize, beforeID, "", "", discordgo.WithContext(ctx))
			if err != nil {
				o.log.Warn("history replay failed",
					logx.String("channel", name),
					logx.Err(err))
				break
			}
			for _, m := range msgs {
				if m.Author != nil && m.Author.Bot {
					continue
				}
				o.enqueueLinks(ctx, name, m.Content)
			}
			if len(msgs) < historyPageSize {
				break
			}
			beforeID = msgs[len(msgs)-1].ID
		}
	}
}

func (o *Observer) enqueueLinks(ctx context.Context, channelName, content string) {
	for _, link := range linkRe.FindAllString(content, -1) {
		link = trimLinkPunct(link)
		inserted, err := o.queue.Enqueue(ctx, channelName, link)
		if err != nil {
			o.log.Error("enqueue link failed", logx.String("link", link), logx.Err(err))
			continue
		}
		if inserted {
			o.log.Debug("link queued",
				logx.String("channel", channelName),
				logx.String("link", link))
		}
	}
}

// trimLinkPunct drops sentence punctuation the regex swallows. A trailing
// `)` only goes when it has no matching `(` inside the link, so Wikipedia
// style URLs with balanced parentheses stay intact.
func trimLinkPunct(link string) string {
	link = strings.TrimRight(link, ".,;:!?")
	for strings.HasSuffix(link, ")") && strings.Count(link, ")") > strings.Count(link, "(") {
		link = strings.TrimRight(strings.TrimSuffix(link, ")"), ".,;:!?")
	}
	return link
}

func normalizeTag(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
