package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fieldreport/internal/config"
	"fieldreport/internal/connectivity"
	"fieldreport/internal/daemon"
	"fieldreport/internal/logging"
	"fieldreport/internal/queue"
	"fieldreport/internal/testsupport"
)

var offlineProber = connectivity.ProberFunc(func(context.Context) error { return errors.New("network unreachable") })

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config whose API bind answers nothing, so commands
// take their direct-store paths.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = "127.0.0.1:1"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	env := &cliTestEnv{cfg: cfg, baseDir: testsupport.BaseDir(cfg)}
	env.configPath = writeTestConfig(t, env.baseDir, cfg)
	if cfg.Capabilities.PersistentStorage {
		env.store = testsupport.MustOpenStore(t, cfg)
	}
	return env
}

// setupDaemonCLITestEnv starts an offline daemon and points the config at its API.
func setupDaemonCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.WithProber(offlineProber))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	cfg.Paths.APIBind = d.APIAddr()
	env := &cliTestEnv{cfg: cfg, store: store, daemon: d, baseDir: testsupport.BaseDir(cfg)}
	env.configPath = writeTestConfig(t, env.baseDir, cfg)
	return env
}

func writeTestConfig(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writePhoto(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "site.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
