package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldreport/internal/queue"
	"fieldreport/internal/testsupport"
)

func TestForEachOrderedVisitsOldestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	late := testsupport.AddReport(t, store, base.Add(2*time.Minute), 0, 0)
	early := testsupport.AddReport(t, store, base, 0, 0)
	middle := testsupport.AddReport(t, store, base.Add(time.Minute), 0, 0)

	var visited []int64
	err := store.ForEachOrdered(context.Background(), func(_ context.Context, rec *queue.Record, _ queue.Cursor) error {
		visited = append(visited, rec.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachOrdered: %v", err)
	}
	want := []int64{early, middle, late}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}

func TestForEachOrderedBreaksTiesByID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	a := testsupport.AddReport(t, store, at, 0, 0)
	b := testsupport.AddReport(t, store, at, 0, 0)

	var visited []int64
	if err := store.ForEachOrdered(context.Background(), func(_ context.Context, rec *queue.Record, _ queue.Cursor) error {
		visited = append(visited, rec.ID)
		return nil
	}); err != nil {
		t.Fatalf("ForEachOrdered: %v", err)
	}
	if len(visited) != 2 || visited[0] != a || visited[1] != b {
		t.Fatalf("visited %v, want [%d %d]", visited, a, b)
	}
}

func TestCursorDeleteKeepsTraversalPosition(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, testsupport.AddReport(t, store, base.Add(time.Duration(i)*time.Second), 0, 0))
	}

	var visited []int64
	err := store.ForEachOrdered(context.Background(), func(ctx context.Context, rec *queue.Record, cur queue.Cursor) error {
		visited = append(visited, rec.ID)
		if rec.ID%2 == ids[0]%2 {
			return cur.Delete(ctx)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachOrdered: %v", err)
	}
	if len(visited) != 5 {
		t.Fatalf("expected every record visited once, got %v", visited)
	}
	remaining := testsupport.RemainingIDs(t, store)
	if len(remaining) != 2 || remaining[0] != ids[1] || remaining[1] != ids[3] {
		t.Fatalf("remaining %v, want [%d %d]", remaining, ids[1], ids[3])
	}
}

func TestCursorDeleteIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.AddReport(t, store, time.Now(), 0, 0)

	err := store.ForEachOrdered(context.Background(), func(ctx context.Context, _ *queue.Record, cur queue.Cursor) error {
		if err := cur.Delete(ctx); err != nil {
			return err
		}
		return cur.Delete(ctx)
	})
	if err != nil {
		t.Fatalf("ForEachOrdered: %v", err)
	}
}

func TestForEachOrderedStopTraversal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Now()
	testsupport.AddReport(t, store, base, 0, 0)
	testsupport.AddReport(t, store, base.Add(time.Second), 0, 0)

	calls := 0
	err := store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error {
		calls++
		return queue.ErrStopTraversal
	})
	if err != nil {
		t.Fatalf("expected nil on ErrStopTraversal, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestForEachOrderedPropagatesVisitorError(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.AddReport(t, store, time.Now(), 0, 0)

	boom := errors.New("boom")
	err := store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected visitor error, got %v", err)
	}
}

func TestForEachOrderedEmptyStore(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	calls := 0
	if err := store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("ForEachOrdered: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no visits, got %d", calls)
	}
}

func TestForEachOrderedRejectsConcurrentTraversal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.AddReport(t, store, time.Now(), 0, 0)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	err := store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error { return nil })
	close(release)
	wg.Wait()

	if !errors.Is(err, queue.ErrTraversalActive) {
		t.Fatalf("expected ErrTraversalActive, got %v", err)
	}
	if err := store.ForEachOrdered(context.Background(), func(context.Context, *queue.Record, queue.Cursor) error { return nil }); err != nil {
		t.Fatalf("traversal after release: %v", err)
	}
}

func TestForEachOrderedHonorsCancellation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.AddReport(t, store, time.Now(), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.ForEachOrdered(ctx, func(context.Context, *queue.Record, queue.Cursor) error {
		t.Fatal("visitor should not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
