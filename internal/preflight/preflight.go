package preflight

import (
	"context"

	"fieldreport/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Log directory (always checked)
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Queue directory (only when the host offers persistent storage)
	if cfg.Capabilities.PersistentStorage {
		results = append(results, CheckDirectoryAccess("Queue directory", cfg.Paths.DataDir))
	} else {
		results = append(results, Result{Name: "Queue directory", Detail: "persistent storage disabled (offline capture unavailable)"})
	}

	results = append(results, CheckEndpoint(ctx, "Report server", cfg.Connectivity.ProbeURL, cfg.ProbeTimeout()))

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckEndpoint(ctx, "ntfy", cfg.Notifications.NtfyTopic, cfg.ProbeTimeout()))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
