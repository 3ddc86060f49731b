package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Platform.Token = "tok-platform"
	cfg.Platform.Org = "org-test"
	cfg.Platform.StagingProjectID = "project-staging"
	cfg.Notify.Token = "tok-notify"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Thresholds.TierAMonths != 3 {
		t.Errorf("TierAMonths = %d, want 3", cfg.Thresholds.TierAMonths)
	}
	if cfg.Thresholds.TierBMonths != 1 {
		t.Errorf("TierBMonths = %d, want 1", cfg.Thresholds.TierBMonths)
	}
	if cfg.Thresholds.TierALongMonths != 6 {
		t.Errorf("TierALongMonths = %d, want 6", cfg.Thresholds.TierALongMonths)
	}
	if cfg.Archiver.Workers != 32 {
		t.Errorf("Workers = %d, want 32", cfg.Archiver.Workers)
	}
	if cfg.Notify.ByteBudget != 7995 {
		t.Errorf("ByteBudget = %d, want 7995", cfg.Notify.ByteBudget)
	}
	if got, want := len(cfg.Schedule.RunDays), 2; got != want {
		t.Errorf("len(RunDays) = %d, want %d", got, want)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded on config with no tokens")
	}
}

func TestValidate_RejectsZeroThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Thresholds.TierAMonths = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() accepted a zero threshold")
	}
}

func TestValidate_RejectsBadPattern(t *testing.T) {
	cfg := validConfig()
	cfg.Archiver.ExcludePatterns = []string{"valid.*", "(["}

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() accepted an invalid exclusion regexp")
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
platform:
  token: tok-platform
  org: org-test
  staging_project_id: project-staging
notify:
  token: tok-notify
thresholds:
  tier_a_months: 4
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	t.Setenv("PERMAFROST_THRESHOLDS_TIER_B_MONTHS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Thresholds.TierAMonths != 4 {
		t.Errorf("TierAMonths = %d, want 4 (from file)", cfg.Thresholds.TierAMonths)
	}
	if cfg.Thresholds.TierBMonths != 2 {
		t.Errorf("TierBMonths = %d, want 2 (from env)", cfg.Thresholds.TierBMonths)
	}
	// Defaults still filled in
	if cfg.Notify.ByteBudget != 7995 {
		t.Errorf("ByteBudget = %d, want default 7995", cfg.Notify.ByteBudget)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() succeeded on a missing file")
	}
}
