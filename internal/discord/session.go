// Package discord wraps the gateway session behind the small surface the
// notifier and link observer need: open, wait for ready, send, and a few
// guild primitives.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"htbwatch/pkg/logx"
)

// Config carries the gateway credentials.
type Config struct {
	Token   string
	GuildID string
}

// Adapter owns the gateway session. Ready is signalled once per process;
// watchers block on WaitReady before their first poll.
type Adapter struct {
	cfg     Config
	session *discordgo.Session
	log     logx.Logger

	readyOnce sync.Once
	readyCh   chan struct{}
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildScheduledEvents

	a := &Adapter{
		cfg:     cfg,
		session: session,
		log:     log,
		readyCh: make(chan struct{}),
	}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.readyOnce.Do(func() {
			a.log.Info("gateway ready",
				logx.String("user", r.User.Username),
				logx.Int("guilds", len(r.Guilds)))
			close(a.readyCh)
		})
	})
	return a, nil
}

// Open connects the gateway. The session reconnects on its own after that.
func (a *Adapter) Open() error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error { return a.session.Close() }

// GuildID returns the configured guild.
func (a *Adapter) GuildID() string { return a.cfg.GuildID }

// WaitReady blocks until the first gateway ready event or ctx cancellation.
func (a *Adapter) WaitReady(ctx context.Context) error {
	select {
	case <-a.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEmbed posts a single embed to a channel.
func (a *Adapter) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := a.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send embed to %s: %w", channelID, err)
	}
	return nil
}

// SendMessage posts plain text, used for thread followups.
func (a *Adapter) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := a.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send message to %s: %w", channelID, err)
	}
	return nil
}

// EventParams describes one scheduled event.
type EventParams struct {
	Name           string
	Description    string
	Start          time.Time
	End            time.Time
	VoiceChannelID string // empty means an external event with a location
	Location       string
	CoverImage     string // data URI, optional
}

// CreateScheduledEvent creates a guild scheduled event.
func (a *Adapter) CreateScheduledEvent(ctx context.Context, p EventParams) error {
	params := &discordgo.GuildScheduledEventParams{
		Name:               p.Name,
		Description:        p.Description,
		ScheduledStartTime: &p.Start,
		ScheduledEndTime:   &p.End,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		Image:              p.CoverImage,
	}
	if p.VoiceChannelID != "" {
		params.EntityType = discordgo.GuildScheduledEventEntityTypeVoice
		params.ChannelID = p.VoiceChannelID
	} else {
		params.EntityType = discordgo.GuildScheduledEventEntityTypeExternal
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: p.Location}
	}
	_, err := a.session.GuildScheduledEventCreate(a.cfg.GuildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: create scheduled event %q: %w", p.Name, err)
	}
	return nil
}

// ThreadParams describes one forum thread with its starter message.
type ThreadParams struct {
	ForumChannelID string
	Name           string
	Content        string
	TagNames       []string
	File           *discordgo.File // optional attachment on the starter
}

// CreateForumThread opens a forum thread and returns its channel id for
// followup posts. Tag names not present on the forum are ignored.
func (a *Adapter) CreateForumThread(ctx context.Context, p ThreadParams) (string, error) {
	tags, err := a.resolveForumTags(ctx, p.ForumChannelID, p.TagNames)
	if err != nil {
		a.log.Warn("forum tag lookup failed", logx.Err(err))
	}
	msg := &discordgo.MessageSend{Content: p.Content}
	if p.File != nil {
		msg.Files = []*discordgo.File{p.File}
	}
	thread, err := a.session.ForumThreadStartComplex(p.ForumChannelID, &discordgo.ThreadStart{
		Name:                p.Name,
		AppliedTags:         tags,
		AutoArchiveDuration: 10080,
	}, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: create forum thread %q: %w", p.Name, err)
	}
	return thread.ID, nil
}

func (a *Adapter) resolveForumTags(ctx context.Context, forumID string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ch, err := a.session.Channel(forumID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[normalizeTag(n)] = true
	}
	var ids []string
	for _, tag := range ch.AvailableTags {
		if want[normalizeTag(tag.Name)] {
			ids = append(ids, tag.ID)
		}
	}
	return ids, nil
}
