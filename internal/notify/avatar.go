package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"htbwatch/internal/htb"
)

const (
	avatarTimeout = 10 * time.Second
	avatarMaxSize = 2 << 20
)

// Avatar is a downloaded origin image ready for reuse as an event cover or
// a thread attachment.
type Avatar struct {
	data        []byte
	contentType string
	name        string
}

func (a *Avatar) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", a.contentType, base64.StdEncoding.EncodeToString(a.data))
}

func (a *Avatar) File(fallbackName string) *discordgo.File {
	name := a.name
	if name == "" {
		name = fallbackName + ".png"
	}
	return &discordgo.File{
		Name:        name,
		ContentType: a.contentType,
		Reader:      bytes.NewReader(a.data),
	}
}

// AvatarFetcher downloads avatars from the origin's public storage.
type AvatarFetcher struct {
	base string
	http *http.Client
}

func NewAvatarFetcher() *AvatarFetcher {
	return &AvatarFetcher{
		base: htb.AvatarBaseURL,
		http: &http.Client{Timeout: avatarTimeout},
	}
}

func (f *AvatarFetcher) Fetch(ctx context.Context, avatarPath string) (*Avatar, error) {
	url := f.base + "/" + strings.TrimPrefix(avatarPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("notify: avatar request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify: avatar fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notify: avatar fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, avatarMaxSize))
	if err != nil {
		return nil, fmt.Errorf("notify: avatar read: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Avatar{
		data:        data,
		contentType: contentType,
		name:        path.Base(avatarPath),
	}, nil
}
