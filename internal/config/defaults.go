package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			IdleDetectionSeconds: 600,
			SynthesizeIdle:       false,
			QueueSize:            256,
		},
		Report: ReportConfig{
			DurationBucketMs:    60000,
			DurationBucketCount: 61,
			Timezone:            "Local",
			DefaultSince:        "7d",
		},
		Retention: RetentionConfig{
			Days: 365,
		},
		Capture: CaptureConfig{
			DenylistDomains: []string{},
			DenylistRegex:   []string{},
		},
		Storage: StorageConfig{
			Path:       "~/.config/webtime",
			SQLiteFile: "webtime.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}
