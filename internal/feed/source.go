package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"htbwatch/internal/htb"
	"htbwatch/internal/storage"
)

// Source produces the current upstream view of one feed, in origin order.
// Fetch errors wrapped in htb.TransientError are retried with a fixed
// backoff; anything else tears the watcher down.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// MachineSource polls the unreleased machines endpoint.
type MachineSource struct {
	Client *htb.Client
}

func (s MachineSource) Fetch(ctx context.Context) ([]Record, error) {
	machines, err := s.Client.UnreleasedMachines(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(machines))
	for _, m := range machines {
		rec := Record{
			ID:         m.ID,
			Name:       m.Name,
			Kind:       m.OS,
			Difficulty: m.DifficultyText,
			ReleaseAt:  htb.ParseReleaseTime(m.Release),
			AvatarPath: m.Avatar,
		}
		if len(m.FirstCreator) > 0 {
			rec.Creator = m.FirstCreator[0].Name
		}
		if r := m.Retiring; r != nil && r.Name != "" {
			rec.Retiring = fmt.Sprintf("%s (%s) - %s", r.Name, r.DifficultyText, r.OS)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ChallengeSource polls the unreleased challenges endpoint.
type ChallengeSource struct {
	Client *htb.Client
}

func (s ChallengeSource) Fetch(ctx context.Context) ([]Record, error) {
	challenges, err := s.Client.UnreleasedChallenges(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(challenges))
	for _, c := range challenges {
		recs = append(recs, Record{
			ID:         c.ID,
			Name:       c.Name,
			Kind:       c.CategoryName,
			Difficulty: c.Difficulty,
			ReleaseAt:  htb.ParseReleaseTime(c.ReleaseDate),
			AvatarPath: c.Avatar,
		})
	}
	return recs, nil
}

// NoticeSource polls the platform notices endpoint.
type NoticeSource struct {
	Client *htb.Client
}

func (s NoticeSource) Fetch(ctx context.Context) ([]Record, error) {
	notices, err := s.Client.Notices(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(notices))
	for _, n := range notices {
		rec := Record{
			ID:      n.ID,
			Kind:    n.Type,
			Name:    noticeTitle(n),
			Message: n.Message,
			URL:     n.URL,
		}
		if name := machineNameFromURL(n.URL); name != "" {
			rec.Name = name
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func noticeTitle(n htb.Notice) string {
	t := strings.TrimSpace(n.Type)
	if t == "" {
		return "notice"
	}
	return t
}

// machineNameFromURL pulls the machine slug out of notice links like
// https://app.hackthebox.com/machines/Keeper.
func machineNameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "machines" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// NewSource returns the source for a feed kind backed by the given client.
func NewSource(f storage.Feed, client *htb.Client) (Source, error) {
	switch f {
	case storage.FeedMachines:
		return MachineSource{Client: client}, nil
	case storage.FeedChallenges:
		return ChallengeSource{Client: client}, nil
	case storage.FeedNotices:
		return NoticeSource{Client: client}, nil
	default:
		return nil, fmt.Errorf("feed: no source for %q", f)
	}
}
