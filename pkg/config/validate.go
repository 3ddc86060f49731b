package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for missing required values and
// internally inconsistent settings. Threshold and authentication problems
// are hard failures: the reconciler must not run with a guessed threshold.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Platform.Token == "" {
		errs = append(errs, (&ValidationError{"platform.token", "platform token is required"}).Error())
	}
	if cfg.Platform.Org == "" {
		errs = append(errs, (&ValidationError{"platform.org", "billing org is required"}).Error())
	}
	if cfg.Platform.StagingProjectID == "" {
		errs = append(errs, (&ValidationError{"platform.staging_project_id", "staging project ID is required"}).Error())
	}
	if cfg.Notify.Token == "" {
		errs = append(errs, (&ValidationError{"notify.token", "notification token is required"}).Error())
	}

	for field, months := range map[string]int{
		"thresholds.tier_a_months":      cfg.Thresholds.TierAMonths,
		"thresholds.tier_b_months":      cfg.Thresholds.TierBMonths,
		"thresholds.tier_a_long_months": cfg.Thresholds.TierALongMonths,
		"thresholds.precision_months":   cfg.Thresholds.PrecisionMonths,
		"thresholds.modified_months":    cfg.Thresholds.ModifiedMonths,
		"thresholds.bundle_months":      cfg.Thresholds.BundleMonths,
	} {
		if months < 1 {
			errs = append(errs, (&ValidationError{field, "threshold must be at least 1 month"}).Error())
		}
	}

	if cfg.Archiver.Workers < 1 {
		errs = append(errs, (&ValidationError{"archiver.workers", "worker count must be positive"}).Error())
	}
	for _, pattern := range cfg.Archiver.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, (&ValidationError{"archiver.exclude_patterns", fmt.Sprintf("invalid pattern %q: %v", pattern, err)}).Error())
		}
	}

	if cfg.Notify.ByteBudget < 1 {
		errs = append(errs, (&ValidationError{"notify.byte_budget", "byte budget must be positive"}).Error())
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, (&ValidationError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)}).Error())
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, (&ValidationError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)}).Error())
	}

	for _, day := range cfg.Schedule.RunDays {
		if day < 1 || day > 28 {
			errs = append(errs, (&ValidationError{"schedule.run_days", fmt.Sprintf("run day %d outside 1-28", day)}).Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
