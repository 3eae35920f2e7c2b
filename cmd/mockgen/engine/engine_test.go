package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/config"
	"flowlens/internal/eventlog"
)

func TestGenerate_HistoriesEndBeforeNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	issues := Generate(GeneratorConfig{Scenario: "chaos", Distribution: "weibull", Count: 50, Now: now, Seed: 7})

	if len(issues) != 50 {
		t.Fatalf("Expected 50 issues, got %d", len(issues))
	}
	for _, dto := range issues {
		issue, err := eventlog.BuildIssue(dto, board.New(Board()))
		if err != nil {
			t.Fatalf("BuildIssue(%s): %v", dto.Key, err)
		}
		for _, c := range issue.Changes() {
			if c.Time.After(now) {
				t.Errorf("%s: change %s is after now", dto.Key, c)
			}
		}
		statusChanges := issue.StatusChanges()
		if got, want := statusChanges[len(statusChanges)-1].Value, dto.Fields.Status.Name; got != want {
			t.Errorf("%s: expected the history to end in %s, got %s", dto.Key, want, got)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := GeneratorConfig{Scenario: "drift", Count: 10, Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Seed: 42}
	a, b := Generate(cfg), Generate(cfg)
	for i := range a {
		if len(a[i].Changelog.Histories) != len(b[i].Changelog.Histories) {
			t.Fatalf("Expected the same seed to produce the same histories for %s", a[i].Key)
		}
	}
}

func TestSave_LoadsBack(t *testing.T) {
	dir := t.TempDir()
	issues := Generate(GeneratorConfig{Count: 20, Now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Seed: 1})
	if err := Save(dir, issues); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := board.Load(filepath.Join(dir, "board.json"))
	if err != nil {
		t.Fatalf("board.Load: %v", err)
	}
	if len(b.VisibleColumns) != 3 {
		t.Errorf("Expected 3 visible columns, got %d", len(b.VisibleColumns))
	}
	statuses, err := board.LoadStatuses(filepath.Join(dir, "statuses.json"))
	if err != nil {
		t.Fatalf("board.LoadStatuses: %v", err)
	}
	if statuses.Len() != len(allStatuses) {
		t.Errorf("Expected %d statuses, got %d", len(allStatuses), statuses.Len())
	}
	if _, err := config.LoadSettings(filepath.Join(dir, "settings.yaml")); err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	store, err := eventlog.LoadIssues(context.Background(), filepath.Join(dir, "issues"), b, 2)
	if err != nil {
		t.Fatalf("LoadIssues: %v", err)
	}
	if store.Count() != 20 {
		t.Errorf("Expected 20 issues, got %d", store.Count())
	}
}
