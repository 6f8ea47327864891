package config

const (
	defaultConfigPath            = "~/.config/fieldreport/config.toml"
	defaultDataDir               = "~/.local/share/fieldreport"
	defaultLogDir                = "~/.local/share/fieldreport/logs"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultUploadEndpoint        = "http://127.0.0.1:5000/api/upload"
	defaultUserID                = "field-user"
	defaultUploadTimeoutSeconds  = 30
	defaultUploadRatePerSecond   = 2
	defaultUploadBurst           = 1
	defaultProbeIntervalSeconds  = 30
	defaultProbeTimeoutSeconds   = 5
	defaultRetryBaseDelaySeconds = 60
	defaultRetryMaxDelaySeconds  = 6 * 60 * 60
	defaultRetryMaxRejections    = 8
	defaultCaptureMaxDimension   = 2048
	defaultCaptureJPEGQuality    = 85
	defaultNotifyRequestTimeout  = 10
	defaultNotifyMinDelivered    = 1
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Upload: Upload{
			Endpoint:       defaultUploadEndpoint,
			UserID:         defaultUserID,
			TimeoutSeconds: defaultUploadTimeoutSeconds,
			RatePerSecond:  defaultUploadRatePerSecond,
			Burst:          defaultUploadBurst,
		},
		Connectivity: Connectivity{
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			Netlink:              true,
		},
		Retry: Retry{
			BaseDelaySeconds: defaultRetryBaseDelaySeconds,
			MaxDelaySeconds:  defaultRetryMaxDelaySeconds,
			MaxRejections:    defaultRetryMaxRejections,
		},
		Capture: Capture{
			Policy:       CapturePolicyAlways,
			MaxDimension: defaultCaptureMaxDimension,
			JPEGQuality:  defaultCaptureJPEGQuality,
			ExtractEXIF:  true,
		},
		Capabilities: Capabilities{
			PersistentStorage: true,
			Camera:            true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Drain:          true,
			Parked:         true,
			Errors:         true,
			MinDelivered:   defaultNotifyMinDelivered,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
