package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fieldreport/internal/api"
	"fieldreport/internal/config"
	"fieldreport/internal/preflight"
	"fieldreport/internal/queue"
)

// ErrDaemonNotRunning indicates the daemon API is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// PIDPath returns the pid file written by the daemon runtime.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "fieldreport.pid")
}

// Launch starts a detached fieldreport daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches the daemon unless its API already answers, then waits for it.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client == nil {
		return StartResult{}, fmt.Errorf("daemon API bind not configured")
	}
	if status, err := client.Status(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := client.WaitReady(ctx, waitTimeout)
	if err != nil {
		return StartResult{}, fmt.Errorf("daemon failed to start: %w", err)
	}
	return StartResult{State: StartStateStarted, PID: status.PID}, nil
}

// WaitForShutdown waits for the daemon API to disappear.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Status(ctx); err != nil && api.IsUnavailable(err) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return errors.New("daemon did not stop before timeout")
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if it is
// still answering after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if api.IsUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := status.PID
	if pid <= 0 {
		pid, err = readPID(PIDPath(cfg))
		if err != nil {
			return StopResult{}, err
		}
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{StopAcknowledged: true, PID: pid}

	if err := WaitForShutdown(ctx, client, gracePeriod); err == nil {
		return result, nil
	}
	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(PIDPath(cfg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	_ = os.Remove(cfg.LockPath())
	result.ForcedKill = true
	return result, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", path)
	}
	return pid, nil
}

// Snapshot is the combined status view rendered by the CLI.
type Snapshot struct {
	Daemon       api.DaemonStatus
	SystemChecks []api.StatusLine
	Paths        []api.StatusLine
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks for queue stats.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}
	var snap Snapshot
	if status, err := client.Status(ctx); err == nil {
		snap.Daemon = status
	}

	if !snap.Daemon.Running {
		snap.Daemon.CapturePolicy = cfg.Capture.Policy
		snap.Daemon.LockFilePath = cfg.LockPath()
		snap.Daemon.NotificationsSet = strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""

		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, openErr := queue.Open(cfg); openErr == nil {
			snap.Daemon.QueueAvailable = true
			snap.Daemon.QueueDBPath = store.Path()
			if stats, statsErr := store.Stats(queryCtx); statsErr == nil {
				snap.Daemon.Queue = api.FromStats(stats)
			}
			_ = store.Close()
		}
	}

	snap.SystemChecks = BuildSystemChecks(ctx, cfg, snap.Daemon)
	snap.Paths = BuildPathChecks(cfg)
	return snap, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, status api.DaemonStatus) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 6)
	if status.Running {
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
		switch {
		case status.Connectivity.State == "online":
			lines = append(lines, api.StatusLine{Label: "Connectivity", Severity: "ok", Detail: "Online"})
		case status.Connectivity.LastError != "":
			lines = append(lines, api.StatusLine{Label: "Connectivity", Severity: "warn", Detail: "Offline: " + status.Connectivity.LastError})
		default:
			lines = append(lines, api.StatusLine{Label: "Connectivity", Severity: "warn", Detail: stateLabel(status.Connectivity.State)})
		}
		if status.Draining {
			lines = append(lines, api.StatusLine{Label: "Drain", Severity: "info", Detail: "In progress"})
		} else if last := status.LastDrain; last != nil {
			lines = append(lines, api.StatusLine{Label: "Drain", Severity: drainSeverity(*last), Detail: drainDetail(*last)})
		} else {
			lines = append(lines, api.StatusLine{Label: "Drain", Severity: "info", Detail: "No pass yet"})
		}
	} else {
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `fieldreport start`)"})
		server := preflight.CheckEndpoint(ctx, "Report server", cfg.Connectivity.ProbeURL, cfg.ProbeTimeout())
		severity := "warn"
		if server.Passed {
			severity = "ok"
		}
		lines = append(lines, api.StatusLine{Label: "Report server", Severity: severity, Detail: server.Detail})
	}

	if status.QueueAvailable {
		severity := "ok"
		if status.Queue.Parked > 0 {
			severity = "warn"
		}
		lines = append(lines, api.StatusLine{Label: "Queue", Severity: severity, Detail: queueDetail(status.Queue)})
	} else {
		lines = append(lines, api.StatusLine{Label: "Queue", Severity: "error", Detail: "Persistent storage unavailable (offline capture disabled)"})
	}

	if status.NotificationsSet {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}
	return lines
}

// BuildPathChecks resolves configured directory readiness.
func BuildPathChecks(cfg *config.Config) []api.StatusLine {
	dirs := []struct {
		label string
		path  string
	}{
		{label: "Log directory", path: cfg.Paths.LogDir},
	}
	if cfg.Capabilities.PersistentStorage {
		dirs = append(dirs, struct {
			label string
			path  string
		}{label: "Queue directory", path: cfg.Paths.DataDir})
	}
	lines := make([]api.StatusLine, 0, len(dirs))
	for _, dir := range dirs {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, api.StatusLine{Label: dir.label, Severity: severity, Detail: result.Detail})
	}
	return lines
}

func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(state)
}

func queueDetail(stats api.QueueStats) string {
	if stats.Total == 0 {
		return "Empty"
	}
	return fmt.Sprintf("%d queued (%d pending, %d backing off, %d parked)", stats.Total, stats.Pending, stats.BackingOff, stats.Parked)
}

func drainSeverity(s api.DrainSummary) string {
	switch {
	case s.Error != "":
		return "error"
	case s.NewlyParked > 0 || s.TransportFailures > 0:
		return "warn"
	default:
		return "ok"
	}
}

func drainDetail(s api.DrainSummary) string {
	if s.Error != "" {
		return "Last pass failed: " + s.Error
	}
	return fmt.Sprintf("Last pass delivered %d of %d (%d rejected, %d transport failures)", s.Delivered, s.Visited, s.Rejected, s.TransportFailures)
}
