package testsupport

import (
	"context"
	"testing"
	"time"

	"fieldreport/internal/config"
	"fieldreport/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddReport stores a small report created at the given time and returns its id.
func AddReport(t testing.TB, store *queue.Store, created time.Time, lat, lon float64) int64 {
	t.Helper()

	id, err := store.Add(context.Background(), queue.NewRecord{
		Photo:       []byte("photo-" + created.Format(time.RFC3339Nano)),
		Latitude:    &lat,
		Longitude:   &lon,
		UserID:      "test-user",
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		CreatedAt:   created,
	})
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return id
}

// RemainingIDs lists stored report ids in delivery order.
func RemainingIDs(t testing.TB, store *queue.Store) []int64 {
	t.Helper()

	summaries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	ids := make([]int64, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}
