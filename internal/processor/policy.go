package processor

import (
	"time"

	"fieldreport/internal/config"
)

// RetryPolicy bounds how rejected reports are re-offered.
type RetryPolicy struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	MaxRejections int
}

// PolicyFromConfig reads the retry section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		BaseDelay:     time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		MaxRejections: cfg.Retry.MaxRejections,
	}
}

// Backoff returns the wait after the given number of consecutive rejections:
// BaseDelay doubled per rejection beyond the first, capped at MaxDelay.
func (p RetryPolicy) Backoff(rejections int) time.Duration {
	if p.BaseDelay <= 0 || rejections <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < rejections; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ShouldPark reports whether a report with this many rejections stops being retried.
// A non-positive MaxRejections disables parking.
func (p RetryPolicy) ShouldPark(rejections int) bool {
	return p.MaxRejections > 0 && rejections >= p.MaxRejections
}
