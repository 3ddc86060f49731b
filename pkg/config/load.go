package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies defaults and
// environment variable overrides, and validates the result.
//
// The loading sequence is:
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply PERMAFROST_* environment variable overrides
//  4. Validate the final configuration
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format PERMAFROST_SECTION_FIELD and
// always take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("PERMAFROST_PLATFORM_BASE_URL"); val != "" {
		cfg.Platform.BaseURL = val
	}
	if val := os.Getenv("PERMAFROST_PLATFORM_TOKEN"); val != "" {
		cfg.Platform.Token = val
	}
	if val := os.Getenv("PERMAFROST_PLATFORM_ORG"); val != "" {
		cfg.Platform.Org = val
	}
	if val := os.Getenv("PERMAFROST_PLATFORM_STAGING_PROJECT_ID"); val != "" {
		cfg.Platform.StagingProjectID = val
	}
	if val := os.Getenv("PERMAFROST_PLATFORM_PRECISION_PROJECT_IDS"); val != "" {
		cfg.Platform.PrecisionProjectIDs = splitList(val)
	}

	if val := os.Getenv("PERMAFROST_THRESHOLDS_TIER_A_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.TierAMonths = i
		}
	}
	if val := os.Getenv("PERMAFROST_THRESHOLDS_TIER_B_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.TierBMonths = i
		}
	}
	if val := os.Getenv("PERMAFROST_THRESHOLDS_TIER_A_LONG_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.TierALongMonths = i
		}
	}
	if val := os.Getenv("PERMAFROST_THRESHOLDS_PRECISION_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.PrecisionMonths = i
		}
	}
	if val := os.Getenv("PERMAFROST_THRESHOLDS_MODIFIED_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.ModifiedMonths = i
		}
	}
	if val := os.Getenv("PERMAFROST_THRESHOLDS_BUNDLE_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Thresholds.BundleMonths = i
		}
	}

	if val := os.Getenv("PERMAFROST_ARCHIVER_EXCLUDE_PATTERNS"); val != "" {
		cfg.Archiver.ExcludePatterns = splitList(val)
	}
	if val := os.Getenv("PERMAFROST_ARCHIVER_WORKERS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Archiver.Workers = i
		}
	}
	if val := os.Getenv("PERMAFROST_ARCHIVER_DRY_RUN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Archiver.DryRun = b
		}
	}
	if val := os.Getenv("PERMAFROST_ARCHIVER_STATE_DB_PATH"); val != "" {
		cfg.Archiver.StateDBPath = val
	}

	if val := os.Getenv("PERMAFROST_NOTIFY_TOKEN"); val != "" {
		cfg.Notify.Token = val
	}
	if val := os.Getenv("PERMAFROST_NOTIFY_ALERTS_CHANNEL"); val != "" {
		cfg.Notify.AlertsChannel = val
	}
	if val := os.Getenv("PERMAFROST_NOTIFY_LOGS_CHANNEL"); val != "" {
		cfg.Notify.LogsChannel = val
	}

	if val := os.Getenv("PERMAFROST_TELEMETRY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("PERMAFROST_TELEMETRY_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}

	if val := os.Getenv("PERMAFROST_SCHEDULE_CRON"); val != "" {
		cfg.Schedule.Cron = val
	}
}

// splitList splits a comma-separated env value into trimmed, non-empty items.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
