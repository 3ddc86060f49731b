package config

// ApplyDefaults fills in default values for any field left unset.
// Tokens, the org and the staging project ID have no defaults; Validate
// rejects configurations that omit them.
func ApplyDefaults(cfg *Config) {
	// Platform defaults
	if cfg.Platform.BaseURL == "" {
		cfg.Platform.BaseURL = "https://api.platform.example.com"
	}
	if cfg.Platform.URLPrefix == "" {
		cfg.Platform.URLPrefix = "https://platform.example.com/panx/projects"
	}
	if cfg.Platform.TimeoutSeconds == 0 {
		cfg.Platform.TimeoutSeconds = 60
	}
	if cfg.Platform.MaxRetries == 0 {
		cfg.Platform.MaxRetries = 3
	}

	// Threshold defaults
	if cfg.Thresholds.TierAMonths == 0 {
		cfg.Thresholds.TierAMonths = 3
	}
	if cfg.Thresholds.TierBMonths == 0 {
		cfg.Thresholds.TierBMonths = 1
	}
	if cfg.Thresholds.TierALongMonths == 0 {
		cfg.Thresholds.TierALongMonths = 6
	}
	if len(cfg.Thresholds.TierALongSuffixes) == 0 {
		cfg.Thresholds.TierALongSuffixes = []string{"CEN", "WES"}
	}
	if cfg.Thresholds.PrecisionMonths == 0 {
		cfg.Thresholds.PrecisionMonths = 1
	}
	if cfg.Thresholds.ModifiedMonths == 0 {
		cfg.Thresholds.ModifiedMonths = 1
	}
	if cfg.Thresholds.BundleMonths == 0 {
		cfg.Thresholds.BundleMonths = 3
	}

	// Archiver defaults
	if cfg.Archiver.Workers == 0 {
		cfg.Archiver.Workers = 32
	}
	if cfg.Archiver.StateDBPath == "" {
		cfg.Archiver.StateDBPath = "data/permafrost.db"
	}
	if cfg.Archiver.ArchivedLogPath == "" {
		cfg.Archiver.ArchivedLogPath = "data/archived.txt"
	}
	if cfg.Archiver.FailedLogPath == "" {
		cfg.Archiver.FailedLogPath = "data/failed_archive.txt"
	}

	// Notify defaults
	if cfg.Notify.AlertsChannel == "" {
		cfg.Notify.AlertsChannel = "#storage-alerts"
	}
	if cfg.Notify.LogsChannel == "" {
		cfg.Notify.LogsChannel = "#storage-logs"
	}
	if cfg.Notify.DebugChannel == "" {
		cfg.Notify.DebugChannel = "#storage-test"
	}
	if cfg.Notify.ByteBudget == 0 {
		cfg.Notify.ByteBudget = 7995
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "permafrost"
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9215"
	}

	// Schedule defaults
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 6 * * *"
	}
	if len(cfg.Schedule.RunDays) == 0 {
		cfg.Schedule.RunDays = []int{1, 15}
	}
}
