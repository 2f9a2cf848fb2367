// Package calendar serves upcoming and recent releases as an iCalendar feed
// projected straight from the dedup store.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"htbwatch/internal/storage"
)

const (
	prodID      = "-//htbwatch//release calendar//EN"
	stampLayout = "20060102T150405Z"
	foldWidth   = 75
)

// RenderICS renders the releases as a VCALENDAR. Events are emitted in the
// order given; callers pass them sorted by release time.
func RenderICS(releases []storage.Release, duration time.Duration, now time.Time) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:HTB Releases")

	stamp := now.UTC().Format(stampLayout)
	for _, r := range releases {
		writeEvent(&b, r, duration, stamp)
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeEvent(b *strings.Builder, r storage.Release, duration time.Duration, stamp string) {
	start := r.ReleaseAt.UTC()
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, fmt.Sprintf("UID:htb-%s-%d@htbwatch", eventKind(r.Feed), r.ID))
	writeLine(b, "DTSTAMP:"+stamp)
	writeLine(b, "DTSTART:"+start.Format(stampLayout))
	writeLine(b, "DTEND:"+start.Add(duration).Format(stampLayout))
	writeLine(b, "SUMMARY:"+escapeText(summary(r)))
	writeLine(b, "DESCRIPTION:"+escapeText(description(r)))
	writeLine(b, "END:VEVENT")
}

func eventKind(f storage.Feed) string {
	switch f {
	case storage.FeedMachines:
		return "machine"
	case storage.FeedChallenges:
		return "challenge"
	default:
		return string(f)
	}
}

func summary(r storage.Release) string {
	switch r.Feed {
	case storage.FeedMachines:
		return fmt.Sprintf("HTB Machine: %s", r.Name)
	case storage.FeedChallenges:
		return fmt.Sprintf("HTB Challenge: %s", r.Name)
	default:
		return fmt.Sprintf("HTB: %s", r.Name)
	}
}

func description(r storage.Release) string {
	parts := make([]string, 0, 2)
	if r.Kind != "" {
		parts = append(parts, r.Kind)
	}
	if r.Difficulty != "" {
		parts = append(parts, r.Difficulty)
	}
	return strings.Join(parts, ", ")
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// writeLine folds content lines longer than 75 octets per RFC 5545 §3.1,
// breaking on byte boundaries only outside multi-byte runes.
func writeLine(b *strings.Builder, line string) {
	first := true
	for len(line) > 0 {
		width := foldWidth
		if !first {
			width = foldWidth - 1 // continuation lines start with a space
		}
		if len(line) <= width {
			break
		}
		cut := width
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = width
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	if !first {
		b.WriteByte(' ')
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func isRuneStart(c byte) bool { return c&0xC0 != 0x80 }
