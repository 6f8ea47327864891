package queueaccess

import (
	"context"
	"net/http"
	"time"

	"fieldreport/internal/api"
	"fieldreport/internal/queue"
)

// Access provides queue operations regardless of daemon API or direct store backing.
type Access interface {
	Stats(ctx context.Context) (api.QueueStats, error)
	List(ctx context.Context) ([]api.Report, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Health(ctx context.Context) (queue.DatabaseHealth, error)
	Remote() bool
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *api.Client, store func() (*queue.Store, error)) Access {
	return &apiAccess{client: client, openStore: store}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type apiAccess struct {
	client    *api.Client
	openStore func() (*queue.Store, error)
}

func (a *apiAccess) Stats(ctx context.Context) (api.QueueStats, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return api.QueueStats{}, err
	}
	return status.Queue, nil
}

func (a *apiAccess) List(ctx context.Context) ([]api.Report, error) {
	return a.client.Queue(ctx)
}

func (a *apiAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	for _, id := range ids {
		updated, err := a.client.Retry(ctx, id)
		if err != nil {
			if api.StatusCode(err) == http.StatusNotFound {
				continue
			}
			return total, err
		}
		total += updated
	}
	return total, nil
}

// Health reads the database directly; WAL mode lets it run beside the daemon.
func (a *apiAccess) Health(ctx context.Context) (queue.DatabaseHealth, error) {
	if a.openStore == nil {
		return queue.DatabaseHealth{}, queue.ErrStorageUnavailable
	}
	store, err := a.openStore()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	defer store.Close()
	return store.CheckHealth(ctx)
}

func (a *apiAccess) Remote() bool { return true }

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Stats(ctx context.Context) (api.QueueStats, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return api.QueueStats{}, err
	}
	return api.FromStats(stats), nil
}

func (a *storeAccess) List(ctx context.Context) ([]api.Report, error) {
	items, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromSummaries(items, time.Now()), nil
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.store.ResetDelivery(ctx, ids...)
}

func (a *storeAccess) Health(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

func (a *storeAccess) Remote() bool { return false }
