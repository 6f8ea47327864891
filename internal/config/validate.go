package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := validateHTTPURL("upload.endpoint", c.Upload.Endpoint); err != nil {
		return err
	}
	if c.Upload.UserID == "" {
		return errors.New("upload.user_id must be set")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	return validateHTTPURL("connectivity.probe_url", c.Connectivity.ProbeURL)
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must not be lower than retry.base_delay_seconds")
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Policy {
	case CapturePolicyAlways, CapturePolicyOfflineOnly:
		return nil
	default:
		return fmt.Errorf("capture.policy must be %q or %q, got %q", CapturePolicyAlways, CapturePolicyOfflineOnly, c.Capture.Policy)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	return validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic)
}

func validateHTTPURL(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
