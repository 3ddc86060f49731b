package config

// Config is the root configuration structure for Permafrost.
// It is constructed once at startup by Load and passed explicitly into the
// components that need it; core packages never read the environment
// themselves.
type Config struct {
	// Platform contains connection settings for the remote storage platform.
	Platform PlatformConfig `yaml:"platform"`

	// Thresholds contains the inactivity thresholds, in months, that drive
	// archival eligibility.
	Thresholds ThresholdConfig `yaml:"thresholds"`

	// Archiver contains settings for the archival passes themselves:
	// exclusion patterns, parallelism, state paths and dry-run mode.
	Archiver ArchiverConfig `yaml:"archiver"`

	// Notify contains settings for the chat notification channel.
	Notify NotifyConfig `yaml:"notify"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Schedule contains daemon-mode scheduling configuration.
	Schedule ScheduleConfig `yaml:"schedule"`
}

// PlatformConfig contains settings for the remote storage platform gateway.
type PlatformConfig struct {
	// BaseURL is the API endpoint of the storage platform.
	// Default: "https://api.platform.example.com"
	BaseURL string `yaml:"base_url"`

	// Token is the API token. Usually injected via PERMAFROST_PLATFORM_TOKEN
	// rather than written into the file.
	Token string `yaml:"token"`

	// Org restricts project enumeration to projects billed to this org.
	Org string `yaml:"org"`

	// StagingProjectID is the shared staging project whose top-level
	// directories are swept for archival.
	StagingProjectID string `yaml:"staging_project_id"`

	// PrecisionProjectIDs is the explicitly governed set of projects whose
	// folders use the (shorter) precision threshold.
	PrecisionProjectIDs []string `yaml:"precision_project_ids"`

	// URLPrefix is the base URL used to build human-clickable project links
	// in notifications.
	// Default: "https://platform.example.com/panx/projects"
	URLPrefix string `yaml:"url_prefix"`

	// Timeout, MaxRetries control the HTTP client at the gateway boundary.
	// Defaults: 60s, 3. A negative max_retries disables retries.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// ThresholdConfig contains the inactivity thresholds in months.
// All values are required; a zero threshold is a configuration error rather
// than "archive immediately".
type ThresholdConfig struct {
	// TierAMonths applies to projects whose name carries the Tier-A prefix.
	// Default: 3
	TierAMonths int `yaml:"tier_a_months"`

	// TierBMonths applies to projects whose name carries the Tier-B prefix.
	// Default: 1
	TierBMonths int `yaml:"tier_b_months"`

	// TierALongMonths applies to Tier-A projects whose name ends with one of
	// TierALongSuffixes. Default: 6
	TierALongMonths int `yaml:"tier_a_long_months"`

	// TierALongSuffixes is the list of name suffixes selecting the longer
	// Tier-A threshold. Default: ["CEN", "WES"]
	TierALongSuffixes []string `yaml:"tier_a_long_suffixes"`

	// PrecisionMonths applies to folders inside precision projects.
	// Default: 1
	PrecisionMonths int `yaml:"precision_months"`

	// ModifiedMonths is the commit-phase guard: a marked resource modified
	// within this window is dropped instead of archived. Default: 1
	ModifiedMonths int `yaml:"modified_months"`

	// BundleMonths is the inactivity threshold for the stale run-bundle
	// report in the staging project. Default: 3
	BundleMonths int `yaml:"bundle_months"`
}

// ArchiverConfig contains settings for the mark/commit passes.
type ArchiverConfig struct {
	// ExcludePatterns is a list of file-name regular expressions that must
	// never be swept into a bulk archive call. When any pattern matches a
	// file in scope, archival falls back to per-file calls that skip the
	// matched files.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// Workers caps the number of concurrent remote calls in the bulk
	// executor. Default: 32
	Workers int `yaml:"workers"`

	// DryRun suppresses every destructive call (tagging, archival) and
	// reroutes notifications to the debug channel.
	DryRun bool `yaml:"dry_run"`

	// StateDBPath is the SQLite file holding the pending-archival buckets.
	// Default: "data/permafrost.db"
	StateDBPath string `yaml:"state_db_path"`

	// ArchivedLogPath is the append-only record of what was archived.
	// Default: "data/archived.txt"
	ArchivedLogPath string `yaml:"archived_log_path"`

	// FailedLogPath is the append-only record of identifiers that failed
	// to archive. Operators act on it out of band; there is no automatic
	// retry. Default: "data/failed_archive.txt"
	FailedLogPath string `yaml:"failed_log_path"`
}

// NotifyConfig contains settings for the notification channel.
type NotifyConfig struct {
	// Token is the chat API token. Usually injected via
	// PERMAFROST_NOTIFY_TOKEN.
	Token string `yaml:"token"`

	// AlertsChannel receives to-be-archived digests and countdowns.
	// Default: "#storage-alerts"
	AlertsChannel string `yaml:"alerts_channel"`

	// LogsChannel receives archived summaries. Default: "#storage-logs"
	LogsChannel string `yaml:"logs_channel"`

	// DebugChannel receives everything when DryRun is set.
	// Default: "#storage-test"
	DebugChannel string `yaml:"debug_channel"`

	// ByteBudget is the practical per-message size limit of the channel;
	// digests longer than this are chunked. Default: 7995
	ByteBudget int `yaml:"byte_budget"`

	// GuidelineURL is linked from digests so recipients know how to opt out.
	GuidelineURL string `yaml:"guideline_url"`

	// Mentions maps platform user IDs to chat user IDs for the by-owner
	// digest grouping.
	Mentions map[string]string `yaml:"mentions"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls registration and the daemon /metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace for all metric names. Default: "permafrost"
	Namespace string `yaml:"namespace"`

	// ListenAddress is where daemon mode serves /metrics.
	// Default: "127.0.0.1:9215"
	ListenAddress string `yaml:"listen_address"`
}

// ScheduleConfig contains daemon-mode scheduling configuration.
type ScheduleConfig struct {
	// Cron is the trigger expression for daemon mode.
	// Default: "0 6 * * *" (daily at 6 AM; the reconciler itself decides
	// whether the day is a run date).
	Cron string `yaml:"cron"`

	// RunDays are the days of month on which the commit/mark phases run.
	// Default: [1, 15]
	RunDays []int `yaml:"run_days"`
}
