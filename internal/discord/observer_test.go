package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"htbwatch/pkg/logx"
)

type fakeQueue struct {
	mu    sync.Mutex
	seen  map[string]bool
	links []string
}

func (q *fakeQueue) Enqueue(_ context.Context, _, payload string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen == nil {
		q.seen = make(map[string]bool)
	}
	if q.seen[payload] {
		return false, nil
	}
	q.seen[payload] = true
	q.links = append(q.links, payload)
	return true, nil
}

func TestEnqueueLinksExtraction(t *testing.T) {
	t.Parallel()
	queue := &fakeQueue{}
	o := NewObserver(nil, queue, nil, logx.Nop())

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single link",
			content: "check https://example.com/writeup out",
			want:    []string{"https://example.com/writeup"},
		},
		{
			name:    "multiple links",
			content: "http://a.example and https://b.example/path?q=1",
			want:    []string{"http://a.example", "https://b.example/path?q=1"},
		},
		{
			name:    "trailing punctuation stripped",
			content: "see https://example.com/post.",
			want:    []string{"https://example.com/post"},
		},
		{
			name:    "wrapping parens stripped",
			content: "(see https://example.com/wrapped)",
			want:    []string{"https://example.com/wrapped"},
		},
		{
			name:    "balanced parens kept",
			content: "read https://en.wikipedia.org/wiki/Go_(programming_language)",
			want:    []string{"https://en.wikipedia.org/wiki/Go_(programming_language)"},
		},
		{
			name:    "balanced parens then sentence punctuation",
			content: "read https://en.wikipedia.org/wiki/Cron_(disambiguation).",
			want:    []string{"https://en.wikipedia.org/wiki/Cron_(disambiguation)"},
		},
		{
			name:    "no links",
			content: "nothing to see here",
			want:    nil,
		},
		{
			name:    "duplicate suppressed by queue",
			content: "again https://example.com/writeup",
			want:    nil,
		},
	}

	for _, tt := range tests {
		before := len(queue.links)
		o.enqueueLinks(context.Background(), "osint", tt.content)
		got := queue.links[before:]
		var gotCopy []string
		if len(got) > 0 {
			gotCopy = append(gotCopy, got...)
		}
		if diff := cmp.Diff(tt.want, gotCopy); diff != "" {
			t.Fatalf("%s: links mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}
