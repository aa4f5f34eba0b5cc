package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/geolocator/internal/config"
	"github.com/signalsfoundry/geolocator/internal/logging"
	"github.com/signalsfoundry/geolocator/model"
)

const walkTrace = `
name: gaza-walk
origin: {lat: 31.5017, lng: 34.4668}
steps:
  - {after: 1s, accuracy: 900}
  - {after: 1s, accuracy: 300}
  - {after: 1s, accuracy: 40}
`

type snapshotLine struct {
	Status         string                `json:"status"`
	Attempts       int                   `json:"attempts"`
	AccuracyMeters *float64              `json:"accuracy_meters"`
	Error          *string               `json:"error"`
	Classification *model.Classification `json:"classification"`
}

func decodeLines(t *testing.T, out string) []snapshotLine {
	t.Helper()
	var lines []snapshotLine
	for _, raw := range strings.Split(strings.TrimSpace(out), "\n") {
		var l snapshotLine
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		lines = append(lines, l)
	}
	return lines
}

func TestRunReplayTraceCompletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	if err := os.WriteFile(path, []byte(walkTrace), 0o600); err != nil {
		t.Fatalf("write trace: %v", err)
	}

	var out bytes.Buffer
	code := run(context.Background(), []string{
		"-sensor=replay",
		"-trace=" + path,
		"-continuous",
		"-desired-accuracy=50",
		"-time-mode=accelerated",
		"-run-for=30s",
	}, &out, logging.Noop())
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	if last.Status != "completed" || last.Attempts != 3 || *last.AccuracyMeters != 40 {
		t.Fatalf("final snapshot = %+v", last)
	}
	if last.Classification == nil || *last.Classification.Region != "gaza_strip" {
		t.Fatalf("classification = %+v", last.Classification)
	}
}

func TestRunWithoutSensorFails(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-sensor=none"}, &out, logging.Noop())
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	if last.Status != "failed" || last.Error == nil || *last.Error != "unsupported" {
		t.Fatalf("final snapshot = %+v", last)
	}
}

func TestRunGNSSSingleReading(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{
		"-sensor=gnss",
		"-location=Nablus",
		"-run-for=1m",
	}, &out, logging.Noop())
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}
	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	if last.Status != "completed" || last.Attempts != 1 || last.AccuracyMeters == nil {
		t.Fatalf("final snapshot = %+v", last)
	}
	if *last.Classification.NearestPlace != "Nablus" {
		t.Fatalf("nearest place = %s", *last.Classification.NearestPlace)
	}
}

func TestRunUnknownLocationFallsBackToDefaultPlace(t *testing.T) {
	var out, logs bytes.Buffer
	log := logging.New(logging.Config{Level: "warn", Format: "json", Output: &logs})
	code := run(context.Background(), []string{
		"-sensor=gnss",
		"-location=Atlantis",
		"-run-for=1m",
	}, &out, log)
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}

	var warned bool
	for _, raw := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry["location"] == "Atlantis" && entry["place"] == "Jerusalem" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("no fallback warning naming the default place in logs:\n%s", logs.String())
	}

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	if last.Status != "completed" || last.Classification == nil {
		t.Fatalf("final snapshot = %+v", last)
	}
	if *last.Classification.Region != "jerusalem" || *last.Classification.NearestPlace != "Jerusalem" {
		t.Fatalf("classification = region %s, nearest %s; want jerusalem / Jerusalem",
			*last.Classification.Region, *last.Classification.NearestPlace)
	}
	if last.Classification.NearestPlaceLocal == nil || *last.Classification.NearestPlaceLocal != "القدس" {
		t.Fatalf("nearest local = %v, want القدس", last.Classification.NearestPlaceLocal)
	}
}

func TestParseFlagsRejectsInvalid(t *testing.T) {
	cfg, err := parseFlags(defaultConfig(t), []string{"-max-attempts=-2"})
	if err == nil {
		t.Fatalf("expected error, got %+v", cfg)
	}
	if _, err := parseFlags(defaultConfig(t), []string{"-sensor=replay"}); err == nil {
		t.Fatalf("expected error for replay without trace")
	}
}

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	return cfg
}
