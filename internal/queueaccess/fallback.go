package queueaccess

import (
	"context"
	"fmt"
	"time"

	"fieldreport/internal/api"
	"fieldreport/internal/queue"
)

// probeTimeout bounds the daemon reachability check before falling back.
const probeTimeout = 2 * time.Second

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries daemon API access first, then falls back to direct store access.
func OpenWithFallback(
	ctx context.Context,
	client *api.Client,
	openStore func() (*queue.Store, error),
) (Session, error) {
	if client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := client.Status(probeCtx)
		cancel()
		if err == nil {
			return Session{Access: NewAPIAccess(client, openStore)}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
