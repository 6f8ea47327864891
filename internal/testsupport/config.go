package testsupport

import (
	"path/filepath"
	"testing"

	"fieldreport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are shortened and notifications are left unconfigured.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.APIToken = ""
	cfgVal.Upload.Endpoint = "http://127.0.0.1:1/api/upload"
	cfgVal.Upload.UserID = "test-user"
	cfgVal.Upload.Token = ""
	cfgVal.Upload.TimeoutSeconds = 5
	cfgVal.Upload.RatePerSecond = 0
	cfgVal.Connectivity.ProbeURL = "http://127.0.0.1:1/"
	cfgVal.Connectivity.Netlink = false
	cfgVal.Retry.BaseDelaySeconds = 60
	cfgVal.Retry.MaxDelaySeconds = 3600
	cfgVal.Retry.MaxRejections = 3
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithEndpoint points uploads and connectivity probes at url, typically an httptest server.
func WithEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Endpoint = url
		b.cfg.Connectivity.ProbeURL = url
	}
}

// WithoutPersistentStorage marks the host as offering no durable storage.
func WithoutPersistentStorage() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capabilities.PersistentStorage = false
	}
}

// WithCapturePolicy overrides the capture queueing policy.
func WithCapturePolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.Policy = policy
	}
}

// WithMaxRejections overrides how many rejections park a report.
func WithMaxRejections(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRejections = n
	}
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
