package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, "run.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"start":         "2024-01-02T09:30:00Z",
		"end":           "2024-02-01T16:00:00Z",
		"calendarVenue": "NYSE",
		"capital":       "100000",
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Currency != "USD" {
		t.Errorf("expected default currency USD, got %q", cfg.Currency)
	}
	if cfg.Mode != ModeBacktest {
		t.Errorf("expected default mode backtest, got %q", cfg.Mode)
	}
	if cfg.FillPolicy.Kind != FillSpreadAware {
		t.Errorf("expected default fill policy spread_aware, got %q", cfg.FillPolicy.Kind)
	}
	if cfg.FillPolicy.BarFill != BarFillClose {
		t.Errorf("expected default bar fill close, got %q", cfg.FillPolicy.BarFill)
	}
	if cfg.EventLogPath == "" {
		t.Errorf("expected a default event log path")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"start":         "2024-01-02T09:30:00Z",
		"end":           "2024-02-01T16:00:00Z",
		"calendarVenue": "NYSE",
		"capital":       "100000",
		"bogusField":    true,
	})

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRejectsEndBeforeStart(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"start":         "2024-02-01T16:00:00Z",
		"end":           "2024-01-02T09:30:00Z",
		"calendarVenue": "NYSE",
		"capital":       "100000",
	})

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for end before start")
	}
}

func TestLoadRejectsUnknownFillPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"start":         "2024-01-02T09:30:00Z",
		"end":           "2024-02-01T16:00:00Z",
		"calendarVenue": "NYSE",
		"capital":       "100000",
		"fillPolicy":    map[string]any{"kind": "made_up"},
	})

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown fill policy kind")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRunConfigFieldsRoundTripThroughJSON(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 16, 0, 0, 0, time.UTC)
	path := writeConfig(t, dir, map[string]any{
		"start":         start,
		"end":           end,
		"calendarVenue": "NASDAQ",
		"capital":       "250000.00",
		"masterSeed":    42,
		"warmup": []map[string]any{
			{"resolution": "day", "bars": 200},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Start.Equal(start) || !cfg.End.Equal(end) {
		t.Fatalf("timestamps did not round-trip: %v / %v", cfg.Start, cfg.End)
	}
	if cfg.MasterSeed != 42 {
		t.Errorf("expected masterSeed 42, got %d", cfg.MasterSeed)
	}
	if len(cfg.Warmup) != 1 || cfg.Warmup[0].Bars != 200 {
		t.Errorf("warmup policy did not round-trip: %+v", cfg.Warmup)
	}
}
