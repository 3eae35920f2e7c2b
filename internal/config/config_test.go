package config

import (
	"path/filepath"
	"testing"
	"time"

	"flowlens/internal/stats"
)

func TestLoad_Environment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("OUTPUT_DIR", "")
	t.Setenv("FLOWLENS_WORKERS", "8")
	t.Setenv("FLOWLENS_TODAY", "2024-02-29")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataPath != dir {
		t.Errorf("Expected data path %s, got %s", dir, cfg.DataPath)
	}
	if cfg.OutputDir != filepath.Join(dir, "output") {
		t.Errorf("Expected output dir under the data path, got %s", cfg.OutputDir)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Workers)
	}
	if got := cfg.TodayIn(time.UTC); got != stats.NewDate(2024, 2, 29) {
		t.Errorf("Expected today override 2024-02-29, got %s", got)
	}
}

func TestLoad_InvalidToday(t *testing.T) {
	t.Setenv("FLOWLENS_TODAY", "yesterday")
	if _, err := Load(); err == nil {
		t.Error("Expected an error for an invalid FLOWLENS_TODAY")
	}
}

func TestLoad_InvalidWorkersFallsBack(t *testing.T) {
	t.Setenv("FLOWLENS_TODAY", "")
	t.Setenv("FLOWLENS_WORKERS", "many")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected default of 4 workers, got %d", cfg.Workers)
	}
}
