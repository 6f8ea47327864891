package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeConnectivity()
	c.normalizeRetry()
	c.normalizeCapture()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("FIELDREPORT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	if c.Upload.Endpoint == "" {
		c.Upload.Endpoint = defaultUploadEndpoint
	}
	c.Upload.UserID = strings.TrimSpace(c.Upload.UserID)
	if c.Upload.UserID == "" {
		if value, ok := os.LookupEnv("FIELDREPORT_USER_ID"); ok && strings.TrimSpace(value) != "" {
			c.Upload.UserID = strings.TrimSpace(value)
		} else {
			c.Upload.UserID = defaultUserID
		}
	}
	c.Upload.Token = strings.TrimSpace(c.Upload.Token)
	if c.Upload.Token == "" {
		if value, ok := os.LookupEnv("FIELDREPORT_UPLOAD_TOKEN"); ok {
			c.Upload.Token = strings.TrimSpace(value)
		}
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = defaultUploadTimeoutSeconds
	}
	if c.Upload.RatePerSecond < 0 {
		c.Upload.RatePerSecond = 0
	}
	if c.Upload.Burst <= 0 {
		c.Upload.Burst = defaultUploadBurst
	}
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = endpointOrigin(c.Upload.Endpoint)
	}
	if c.Connectivity.ProbeIntervalSeconds <= 0 {
		c.Connectivity.ProbeIntervalSeconds = defaultProbeIntervalSeconds
	}
	if c.Connectivity.ProbeTimeoutSeconds <= 0 {
		c.Connectivity.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.BaseDelaySeconds < 0 {
		c.Retry.BaseDelaySeconds = 0
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		c.Retry.MaxDelaySeconds = c.Retry.BaseDelaySeconds
	}
	if c.Retry.MaxRejections < 0 {
		c.Retry.MaxRejections = 0
	}
}

func (c *Config) normalizeCapture() {
	policy := strings.ToLower(strings.TrimSpace(c.Capture.Policy))
	policy = strings.ReplaceAll(policy, "-", "_")
	if policy == "" {
		policy = CapturePolicyAlways
	}
	c.Capture.Policy = policy
	if c.Capture.MaxDimension < 0 {
		c.Capture.MaxDimension = 0
	}
	if c.Capture.JPEGQuality <= 0 || c.Capture.JPEGQuality > 100 {
		c.Capture.JPEGQuality = defaultCaptureJPEGQuality
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("FIELDREPORT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.MinDelivered < 0 {
		c.Notifications.MinDelivered = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// endpointOrigin reduces an endpoint URL to scheme://host so probes hit the server root.
func endpointOrigin(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return endpoint
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}
