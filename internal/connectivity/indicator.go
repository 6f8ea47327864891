package connectivity

import (
	"sync"
	"time"
)

// Indicator is the informational "offline mode" flag shown to users.
type Indicator struct {
	mu        sync.RWMutex
	offline   bool
	changedAt time.Time
}

// SetOffline updates the flag, recording when it last flipped.
func (i *Indicator) SetOffline(offline bool) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.offline == offline && !i.changedAt.IsZero() {
		return
	}
	i.offline = offline
	i.changedAt = time.Now()
}

// Offline reports the current flag.
func (i *Indicator) Offline() bool {
	if i == nil {
		return false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.offline
}

// ChangedAt returns when the flag last changed, zero if never set.
func (i *Indicator) ChangedAt() time.Time {
	if i == nil {
		return time.Time{}
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.changedAt
}
