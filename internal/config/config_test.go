package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/geolocator/model"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Acquisition != model.DefaultAcquisitionConfig() {
		t.Fatalf("acquisition = %+v", cfg.Acquisition)
	}
	if cfg.Sensor != SensorGNSS || cfg.TimeMode != "accelerated" || cfg.Tick != 100*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LOCATOR_HIGH_ACCURACY", "false")
	t.Setenv("LOCATOR_CONTINUOUS", "true")
	t.Setenv("LOCATOR_TIMEOUT", "5000")
	t.Setenv("LOCATOR_MAX_AGE", "2m")
	t.Setenv("LOCATOR_DESIRED_ACCURACY", "25.5")
	t.Setenv("LOCATOR_MAX_ATTEMPTS", "7")
	t.Setenv("LOCATOR_SENSOR", "Replay")
	t.Setenv("LOCATOR_TRACE", "walk.yaml")
	t.Setenv("LOCATOR_LOCATION", "Gaza City")
	t.Setenv("LOCATOR_SEED", "42")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	want := model.AcquisitionConfig{
		HighAccuracy:          false,
		Continuous:            true,
		Timeout:               5 * time.Second,
		MaxSampleAge:          2 * time.Minute,
		DesiredAccuracyMeters: 25.5,
		MaxAttempts:           7,
	}
	if cfg.Acquisition != want {
		t.Fatalf("acquisition = %+v, want %+v", cfg.Acquisition, want)
	}
	if cfg.Sensor != SensorReplay || cfg.TracePath != "walk.yaml" || cfg.Location != "Gaza City" || cfg.Seed != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
		want       error
	}{
		{"LOCATOR_TIMEOUT", "soon", ErrInvalidSetting},
		{"LOCATOR_CONTINUOUS", "maybe", ErrInvalidSetting},
		{"LOCATOR_MAX_ATTEMPTS", "-1", model.ErrInvalidConfig},
		{"LOCATOR_SENSOR", "radar", ErrInvalidSetting},
		{"LOCATOR_SENSOR", "replay", ErrInvalidSetting},
		{"LOCATOR_TIME_MODE", "sideways", ErrInvalidSetting},
		{"LOCATOR_TICK", "0", ErrInvalidSetting},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "LOCATOR_DESIRED_ACCURACY=30\nLOCATOR_MAX_ATTEMPTS=9\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("LOCATOR_MAX_ATTEMPTS", "4")
	// t.Setenv registers the cleanup that removes what godotenv sets.
	t.Setenv("LOCATOR_DESIRED_ACCURACY", "")
	os.Unsetenv("LOCATOR_DESIRED_ACCURACY")

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Acquisition.MaxAttempts != 4 {
		t.Fatalf("MaxAttempts = %d, environment should win", cfg.Acquisition.MaxAttempts)
	}
	if cfg.Acquisition.DesiredAccuracyMeters != 30 {
		t.Fatalf("DesiredAccuracyMeters = %v", cfg.Acquisition.DesiredAccuracyMeters)
	}
}
