package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"htbwatch/internal/feed"
	"htbwatch/internal/htb"
	"htbwatch/internal/storage"
)

// Embed colors keyed by difficulty, matching the platform palette.
var difficultyColors = map[string]int{
	"easy":   0x90cd3f,
	"medium": 0xffb83e,
	"hard":   0xfe0000,
	"insane": 0xa45bff,
}

const defaultColor = 0x9fef00

func colorFor(difficulty string) int {
	if c, ok := difficultyColors[strings.ToLower(difficulty)]; ok {
		return c
	}
	return defaultColor
}

func buildEmbed(f storage.Feed, rec feed.Record) *discordgo.MessageEmbed {
	switch f {
	case storage.FeedMachines:
		return machineEmbed(rec)
	case storage.FeedChallenges:
		return challengeEmbed(rec)
	default:
		return noticeEmbed(rec)
	}
}

func machineEmbed(rec feed.Record) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("New Machine: %s", rec.Name),
		Color: colorFor(rec.Difficulty),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "OS", Value: rec.Kind, Inline: true},
			{Name: "Difficulty", Value: rec.Difficulty, Inline: true},
			{Name: "Release", Value: formatRelease(rec.ReleaseAt), Inline: false},
		},
	}
	if rec.Creator != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Creator", Value: rec.Creator, Inline: true,
		})
	}
	if rec.Retiring != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Retiring", Value: rec.Retiring, Inline: false,
		})
	}
	if rec.AvatarPath != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL(rec.AvatarPath)}
	}
	return embed
}

func challengeEmbed(rec feed.Record) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("New Challenge: %s", rec.Name),
		Color: colorFor(rec.Difficulty),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Category", Value: rec.Kind, Inline: true},
			{Name: "Difficulty", Value: rec.Difficulty, Inline: true},
			{Name: "Release", Value: formatRelease(rec.ReleaseAt), Inline: false},
		},
	}
	if rec.AvatarPath != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL(rec.AvatarPath)}
	}
	return embed
}

func noticeEmbed(rec feed.Record) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Notice: %s", rec.Name),
		Description: rec.Message,
		Color:       defaultColor,
	}
	if rec.URL != "" {
		embed.URL = rec.URL
	}
	return embed
}

func formatRelease(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	// Discord renders <t:unix:F> in the reader's local time.
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}

func avatarURL(path string) string {
	return htb.AvatarBaseURL + "/" + strings.TrimPrefix(path, "/")
}

func eventName(f storage.Feed, rec feed.Record) string {
	if f == storage.FeedChallenges {
		return fmt.Sprintf("Challenge Release: %s", rec.Name)
	}
	return fmt.Sprintf("Machine Release: %s", rec.Name)
}

func eventDescription(f storage.Feed, rec feed.Record) string {
	var b strings.Builder
	if f == storage.FeedChallenges {
		fmt.Fprintf(&b, "%s (%s) drops ", rec.Name, rec.Kind)
	} else {
		fmt.Fprintf(&b, "%s (%s, %s) drops ", rec.Name, rec.Kind, rec.Difficulty)
	}
	fmt.Fprintf(&b, "<t:%d:R>.", rec.ReleaseAt.Unix())
	if f == storage.FeedChallenges {
		fmt.Fprintf(&b, " Difficulty: %s.", rec.Difficulty)
	}
	return b.String()
}

func threadContent(f storage.Feed, rec feed.Record) string {
	var b strings.Builder
	switch f {
	case storage.FeedMachines:
		fmt.Fprintf(&b, "**%s** | %s | %s\n", rec.Name, rec.Kind, rec.Difficulty)
		fmt.Fprintf(&b, "Releases %s", formatRelease(rec.ReleaseAt))
		if rec.Creator != "" {
			fmt.Fprintf(&b, "\nMade by %s", rec.Creator)
		}
	case storage.FeedChallenges:
		fmt.Fprintf(&b, "**%s** | %s | %s\n", rec.Name, rec.Kind, rec.Difficulty)
		fmt.Fprintf(&b, "Releases %s", formatRelease(rec.ReleaseAt))
	default:
		b.WriteString(rec.Message)
	}
	return b.String()
}

func threadTags(f storage.Feed, rec feed.Record) []string {
	tags := []string{rec.Difficulty}
	if f == storage.FeedChallenges || f == storage.FeedMachines {
		tags = append(tags, rec.Kind)
	}
	return tags
}

func formatChallengeDetails(d *htb.ChallengeDetails) string {
	var b strings.Builder
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Description)
	}
	fmt.Fprintf(&b, "Points: %d", d.Points)
	if d.Solves > 0 {
		fmt.Fprintf(&b, " | Solves: %d", d.Solves)
	}
	creators := d.CreatorName
	if d.Creator2Name != "" {
		creators += " & " + d.Creator2Name
	}
	if creators != "" {
		fmt.Fprintf(&b, "\nMade by %s", creators)
	}
	return b.String()
}
