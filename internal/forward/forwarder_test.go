package forward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"htbwatch/internal/linkwarden"
	"htbwatch/internal/storage"
	"htbwatch/pkg/logx"
)

type memQueue struct {
	mu    sync.Mutex
	items []storage.QueueItem
}

func newMemQueue(n int, group string) *memQueue {
	q := &memQueue{}
	for i := 1; i <= n; i++ {
		q.items = append(q.items, storage.QueueItem{
			ID:       int64(i),
			GroupKey: group,
			Payload:  fmt.Sprintf("https://example.com/post/%d", i),
		})
	}
	return q
}

func (q *memQueue) DequeueBatch(_ context.Context, limit int) ([]storage.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []storage.QueueItem
	for _, it := range q.items {
		if it.Processed {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *memQueue) MarkProcessed(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].Processed = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (q *memQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, it := range q.items {
		if !it.Processed {
			n++
		}
	}
	return n
}

type fakeSink struct {
	mu         sync.Mutex
	existing   []linkwarden.Collection
	listCalls  int
	created    []string
	links      []linkwarden.Link
	failURL    string
	nextCollID int64
}

func (s *fakeSink) Collections(context.Context) ([]linkwarden.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.existing, nil
}

func (s *fakeSink) CreateCollection(_ context.Context, name string) (linkwarden.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCollID++
	coll := linkwarden.Collection{ID: s.nextCollID + 100, Name: name}
	s.created = append(s.created, name)
	return coll, nil
}

func (s *fakeSink) CreateLink(_ context.Context, link linkwarden.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failURL != "" && link.URL == s.failURL {
		return errors.New("target rejected link")
	}
	s.links = append(s.links, link)
	return nil
}

func fastConfig() Config {
	return Config{BatchSize: 10, DrainInterval: time.Millisecond, RatePerSec: 10000}
}

func TestDrainRespectsBatchSize(t *testing.T) {
	t.Parallel()
	queue := newMemQueue(15, "osint")
	sink := &fakeSink{}
	f := New(fastConfig(), queue, sink, logx.Nop())

	done, err := f.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if done != 10 {
		t.Fatalf("first drain settled %d items, want 10", done)
	}
	if got := queue.pending(); got != 5 {
		t.Fatalf("pending after first drain = %d, want 5", got)
	}
	done, err = f.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if done != 5 {
		t.Fatalf("second drain settled %d items, want 5", done)
	}
	if got := queue.pending(); got != 0 {
		t.Fatalf("pending after second drain = %d, want 0", got)
	}
	if len(sink.links) != 15 {
		t.Fatalf("forwarded %d links, want 15", len(sink.links))
	}
}

func TestCollectionResolution(t *testing.T) {
	t.Parallel()
	queue := &memQueue{items: []storage.QueueItem{
		{ID: 1, GroupKey: "osint", Payload: "https://example.com/a"},
		{ID: 2, GroupKey: "recon", Payload: "https://example.com/b"},
		{ID: 3, GroupKey: "osint", Payload: "https://example.com/c"},
	}}
	sink := &fakeSink{existing: []linkwarden.Collection{{ID: 7, Name: "osint"}}}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if _, err := f.Drain(context.Background()); err != nil {
		t.Fatalf("Drain error: %v", err)
	}

	if sink.listCalls != 1 {
		t.Fatalf("Collections called %d times, want 1", sink.listCalls)
	}
	if diff := cmp.Diff([]string{"recon"}, sink.created); diff != "" {
		t.Fatalf("created collections mismatch (-want +got):\n%s", diff)
	}
	for _, link := range sink.links {
		if link.URL == "https://example.com/a" && link.Collection.ID != 7 {
			t.Fatalf("link a landed in collection %d, want 7", link.Collection.ID)
		}
	}
}

func TestDrainIsolatesItemFailures(t *testing.T) {
	t.Parallel()
	queue := newMemQueue(3, "osint")
	sink := &fakeSink{failURL: "https://example.com/post/2"}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if _, err := f.Drain(context.Background()); err != nil {
		t.Fatalf("Drain error: %v", err)
	}

	// Item 2 stays queued; 1 and 3 went through.
	if got := queue.pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	if len(sink.links) != 2 {
		t.Fatalf("forwarded %d links, want 2", len(sink.links))
	}
}

func TestLinksCarryGroupTag(t *testing.T) {
	t.Parallel()
	queue := newMemQueue(1, "osint")
	sink := &fakeSink{}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if _, err := f.Drain(context.Background()); err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(sink.links) != 1 || len(sink.links[0].Tags) != 1 || sink.links[0].Tags[0].Name != "osint" {
		t.Fatalf("unexpected tags: %+v", sink.links)
	}
}

func TestDrainBacklogClearsQueue(t *testing.T) {
	t.Parallel()
	// Well past two full batches, so the loop has to keep going as long
	// as passes make progress rather than stop after a fixed count.
	queue := newMemQueue(35, "osint")
	sink := &fakeSink{}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if err := f.DrainBacklog(context.Background()); err != nil {
		t.Fatalf("DrainBacklog error: %v", err)
	}
	if got := queue.pending(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
	if len(sink.links) != 35 {
		t.Fatalf("forwarded %d links, want 35", len(sink.links))
	}
}

func TestDrainBacklogSkipsFailingItems(t *testing.T) {
	t.Parallel()
	// One sticky failure inside a multi-batch backlog: everything else
	// still goes out and the loop terminates.
	queue := newMemQueue(25, "osint")
	sink := &fakeSink{failURL: "https://example.com/post/12"}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if err := f.DrainBacklog(context.Background()); err != nil {
		t.Fatalf("DrainBacklog error: %v", err)
	}
	if got := queue.pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	if len(sink.links) != 24 {
		t.Fatalf("forwarded %d links, want 24", len(sink.links))
	}
}

func TestDrainBacklogStopsWithoutProgress(t *testing.T) {
	t.Parallel()
	queue := newMemQueue(1, "osint")
	sink := &fakeSink{failURL: "https://example.com/post/1"}
	f := New(fastConfig(), queue, sink, logx.Nop())

	if err := f.DrainBacklog(context.Background()); err != nil {
		t.Fatalf("DrainBacklog error: %v", err)
	}
	if got := queue.pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	queue := newMemQueue(0, "osint")
	f := New(fastConfig(), queue, &fakeSink{}, logx.Nop())

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
