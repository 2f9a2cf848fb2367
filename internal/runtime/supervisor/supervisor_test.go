package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGoCancelOnError(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithCancelOnError(true))

	boom := errors.New("boom")
	sup.Go("failing", func(context.Context) error { return boom })
	sup.Go("sibling", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want %v", err, boom)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithCancelOnError(true))
	sup.Go("panicky", func(context.Context) error { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if err == nil {
		t.Fatal("Wait returned nil, want panic error")
	}

	snap := sup.SnapshotNow()
	found := false
	for _, ts := range snap.Tasks {
		if ts.Name == "panicky" && ts.Panics == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("panic not recorded in snapshot: %+v", snap.Tasks)
	}
}

func TestCanceledIsClean(t *testing.T) {
	t.Parallel()
	sup := New(context.Background())
	sup.Go("looper", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	sup.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v, want nil for cancellation", err)
	}
}

func TestStopDrains(t *testing.T) {
	t.Parallel()
	sup := New(context.Background())
	done := make(chan struct{})
	sup.Go0("worker", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop = %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("worker still running after Stop")
	}

	c := sup.CountersNow()
	if c.Active != 0 || c.Started != 1 {
		t.Fatalf("counters = %+v", c)
	}
}
