package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"flowlens/internal/stats"
)

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.BlockedStalled.StalledThresholdDays != 5 || !s.BlockedStalled.FlaggedMeansBlocked {
		t.Errorf("Expected defaults, got %+v", s.BlockedStalled)
	}
}

func TestLoadSettings_YAML(t *testing.T) {
	content := `
blocked_statuses: [Blocked, 10200]
stalled_statuses:
  - Waiting for customer
blocked_link_text: ["is blocked by"]
stalled_threshold_days: 3
flagged_means_blocked: false
timezone_offset: "+02:00"
cycletime:
  start:
    rule: first_time_in_or_right_of_column
    values: In Progress
  stop:
    rule: first_resolution
discard_changes_before:
  status_becomes: [Backlog, 10001]
`
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	bs := s.BlockedStalled
	if !slices.Equal(bs.BlockedStatuses, []string{"Blocked", "10200"}) {
		t.Errorf("Expected blocked statuses [Blocked 10200], got %v", bs.BlockedStatuses)
	}
	if !slices.Equal(bs.StalledStatuses, []string{"Waiting for customer"}) {
		t.Errorf("Unexpected stalled statuses %v", bs.StalledStatuses)
	}
	if bs.StalledThresholdDays != 3 || bs.FlaggedMeansBlocked {
		t.Errorf("Expected threshold 3 without flags, got %+v", bs)
	}
	if _, offset := stats.NewDate(2024, 1, 1).Time(s.Location).Zone(); offset != 2*60*60 {
		t.Errorf("Expected +02:00, got offset %d", offset)
	}
	if s.CycleTimeStart.Rule != "first_time_in_or_right_of_column" || !slices.Equal(s.CycleTimeStart.Values, []string{"In Progress"}) {
		t.Errorf("Unexpected start rule %+v", s.CycleTimeStart)
	}
	if s.CycleTimeStop.Rule != "first_resolution" {
		t.Errorf("Unexpected stop rule %+v", s.CycleTimeStop)
	}
	if !slices.Equal(s.DiscardBeforeStatuses, []string{"Backlog", "10001"}) {
		t.Errorf("Expected discard statuses [Backlog 10001], got %v", s.DiscardBeforeStatuses)
	}
}

func TestParseSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"MissingBlocked", map[string]any{"stalled_statuses": []any{}}},
		{"BlockedNotArray", map[string]any{"blocked_statuses": "Blocked", "stalled_statuses": []any{}}},
		{"StalledNotArray", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": 3}},
		{"NegativeThreshold", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "stalled_threshold_days": -1}},
		{"FractionalThreshold", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "stalled_threshold_days": 2.5}},
		{"BadTimezone", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "timezone_offset": "Mars/Olympus"}},
		{"DiscardNotMap", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "discard_changes_before": []any{"Backlog"}}},
		{"DiscardWithoutStatuses", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "discard_changes_before": map[string]any{}}},
		{"RuleWithoutName", map[string]any{"blocked_statuses": []any{}, "stalled_statuses": []any{}, "cycletime": map[string]any{"start": map[string]any{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSettings(tt.raw); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestSettings_CycleTimeConfig(t *testing.T) {
	s := DefaultSettings()
	cfg, err := s.CycleTimeConfig(stats.RuleContext{}, stats.NewDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("CycleTimeConfig: %v", err)
	}
	if cfg.Start == nil || cfg.Stop == nil || cfg.Today != stats.NewDate(2024, 6, 1) {
		t.Errorf("Expected both rules and today to be set, got %+v", cfg)
	}

	s.CycleTimeStop = RuleConfig{Rule: "when_the_moon_is_full"}
	if _, err := s.CycleTimeConfig(stats.RuleContext{}, stats.Date{}); !errors.Is(err, ErrInvalidSettings) || !errors.Is(err, stats.ErrUnknownRule) {
		t.Errorf("Expected an invalid settings error wrapping the unknown rule, got %v", err)
	}
}
