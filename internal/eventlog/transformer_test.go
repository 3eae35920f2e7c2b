package eventlog

import (
	"errors"
	"testing"

	"flowlens/internal/jira"

	"pgregory.net/rapid"
)

func newDTO(key, created string) jira.IssueDTO {
	return jira.IssueDTO{
		Key: key,
		Fields: &jira.FieldsDTO{
			Summary:   "Summary of " + key,
			Created:   created,
			Updated:   created,
			Status:    &jira.StatusDTO{ID: "10003", Name: "Done"},
			Priority:  &jira.NamedDTO{ID: "3", Name: "Medium"},
			IssueType: &jira.IssueTypeDTO{Name: "Story"},
		},
		Changelog: &jira.ChangelogDTO{},
	}
}

func history(created string, items ...jira.ItemDTO) jira.HistoryDTO {
	return jira.HistoryDTO{Created: created, Items: items}
}

func TestBuildIssue_FabricatesInitialStatusAndPriority(t *testing.T) {
	dto := newDTO("TEST-1", "2024-03-20T10:00:00.000+0000")
	dto.Changelog.Histories = []jira.HistoryDTO{
		history("2024-03-21T10:00:00.000+0000",
			jira.ItemDTO{Field: "status", FromString: "Backlog", From: "10000", ToString: "In Progress", To: "3"}),
		history("2024-03-22T10:00:00.000+0000",
			jira.ItemDTO{Field: "status", FromString: "In Progress", From: "3", ToString: "Done", To: "10003"}),
	}

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changes := issue.Changes()
	if len(changes) != 4 {
		t.Fatalf("Expected 4 changes (2 artificial + 2 real), got %d: %v", len(changes), changes)
	}

	first := changes[0]
	if !first.IsStatus() || !first.Artificial || first.Value != "Backlog" || first.ValueID != 10000 {
		t.Errorf("Expected artificial status Backlog(10000) first, got %s", first)
	}
	if !first.Time.Equal(issue.Created()) {
		t.Errorf("Expected artificial status at creation time, got %s", first.Time)
	}

	second := changes[1]
	if !second.IsPriority() || !second.Artificial || second.Value != "Medium" || second.ValueID != 3 {
		t.Errorf("Expected artificial priority Medium(3) from current value, got %s", second)
	}
}

func TestBuildIssue_NoChangelogUsesCurrentStatus(t *testing.T) {
	dto := newDTO("TEST-2", "2024-03-20T10:00:00.000+0000")
	dto.Changelog = nil

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	statuses := issue.StatusChanges()
	if len(statuses) != 1 || statuses[0].Value != "Done" || !statuses[0].Artificial {
		t.Errorf("Expected a single artificial Done status, got %v", statuses)
	}
}

func TestBuildIssue_CommentsAreArtificialAndInterleaved(t *testing.T) {
	dto := newDTO("TEST-3", "2024-03-20T10:00:00.000+0000")
	dto.Fields.Comment = &jira.CommentPageDTO{Comments: []jira.CommentDTO{
		{ID: "501", Body: "Waiting on vendor", Created: "2024-03-21T09:00:00.000+0000"},
	}}
	dto.Changelog.Histories = []jira.HistoryDTO{
		history("2024-03-22T10:00:00.000+0000",
			jira.ItemDTO{Field: "status", FromString: "In Progress", From: "3", ToString: "Done", To: "10003"}),
	}

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changes := issue.Changes()
	comment := changes[2]
	if !comment.IsComment() || !comment.Artificial || comment.ValueID != 501 || comment.Value != "Waiting on vendor" {
		t.Errorf("Expected comment entry before the status change, got %s", comment)
	}
	if !changes[3].IsStatus() {
		t.Errorf("Expected status change last, got %s", changes[3])
	}
}

func TestBuildIssue_OutOfOrderHistoriesAreSorted(t *testing.T) {
	dto := newDTO("TEST-4", "2024-03-20T10:00:00.000+0000")
	dto.Changelog.Histories = []jira.HistoryDTO{
		history("2024-03-25T10:00:00.000+0000",
			jira.ItemDTO{Field: "status", FromString: "In Progress", From: "3", ToString: "Done", To: "10003"}),
		history("2024-03-21T10:00:00.000+0000",
			jira.ItemDTO{Field: "status", FromString: "Backlog", From: "10000", ToString: "In Progress", To: "3"}),
	}

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changes := issue.Changes()
	for i := 1; i < len(changes); i++ {
		if changes[i].Time.Before(changes[i-1].Time) {
			t.Fatalf("Changes not sorted at %d: %v", i, changes)
		}
	}
	// The fabricated status must come from the chronologically first change.
	if changes[0].Value != "Backlog" {
		t.Errorf("Expected fabricated status Backlog, got %s", changes[0].Value)
	}
}

func TestBuildIssue_ResolutionSortsAfterStatus(t *testing.T) {
	dto := newDTO("TEST-5", "2024-03-20T10:00:00.000+0000")
	dto.Changelog.Histories = []jira.HistoryDTO{
		history("2024-03-20T14:30:00.000+0000",
			jira.ItemDTO{Field: "resolution", ToString: "Done", To: "1"},
			jira.ItemDTO{Field: "status", FromString: "In Progress", From: "3", ToString: "Done", To: "10003"}),
	}

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changes := issue.Changes()
	last := changes[len(changes)-1]
	if !last.IsResolution() {
		t.Errorf("Expected resolution after status at the same instant, got %v", changes)
	}
}

func TestBuildIssue_MissingFields(t *testing.T) {
	_, err := BuildIssue(jira.IssueDTO{Key: "BAD-1"}, nil)
	var issueErr *IssueError
	if !errors.As(err, &issueErr) {
		t.Fatalf("Expected *IssueError, got %v", err)
	}
	if issueErr.Key != "BAD-1" {
		t.Errorf("Expected key BAD-1, got %s", issueErr.Key)
	}
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("Expected wrapped ErrMissingFields, got %v", err)
	}
}

func TestBuildIssue_BadTimestampKeepsCause(t *testing.T) {
	dto := newDTO("BAD-2", "2024-03-20T10:00:00.000+0000")
	dto.Changelog.Histories = []jira.HistoryDTO{history("not a time")}

	_, err := BuildIssue(dto, nil)
	var issueErr *IssueError
	if !errors.As(err, &issueErr) || issueErr.Key != "BAD-2" {
		t.Fatalf("Expected IssueError for BAD-2, got %v", err)
	}
	if errors.Unwrap(issueErr) == nil {
		t.Error("Expected the underlying parse error to be preserved")
	}
}

func TestBuildIssue_Links(t *testing.T) {
	dto := newDTO("TEST-6", "2024-03-20T10:00:00.000+0000")
	dto.Fields.IssueLinks = []jira.IssueLinkDTO{
		{
			Type:        jira.LinkTypeDTO{Name: "Blocks", Inward: "is blocked by", Outward: "blocks"},
			InwardIssue: &jira.LinkedIssueDTO{Key: "OTHER-1", Fields: jira.LinkedFieldsDTO{Status: &jira.StatusDTO{Name: "Open"}}},
		},
	}

	issue, err := BuildIssue(dto, nil)
	if err != nil {
		t.Fatal(err)
	}
	links := issue.IssueLinks()
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if links[0].Label != "is blocked by" || links[0].OtherKey != "OTHER-1" || links[0].OtherStatus != "Open" {
		t.Errorf("Unexpected link: %+v", links[0])
	}
}

func TestSortChanges_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		base := mustParse("2024-01-01T00:00:00.000+0000")
		changes := make([]ChangeEvent, n)
		for i := range changes {
			field := rapid.SampledFrom([]string{FieldStatus, FieldResolution, FieldFlagged}).Draw(t, "field")
			hour := rapid.IntRange(0, 3).Draw(t, "hour")
			changes[i] = ChangeEvent{Field: field, Value: field, ValueID: i, Time: base.Add(hoursDur(hour))}
		}

		SortChanges(changes)
		once := append([]ChangeEvent(nil), changes...)
		SortChanges(changes)

		for i := range changes {
			if changes[i] != once[i] {
				t.Fatalf("Sort is not idempotent at %d", i)
			}
			if i > 0 && changes[i].Time.Equal(changes[i-1].Time) &&
				changes[i-1].IsResolution() && changes[i].IsStatus() {
				t.Fatalf("Resolution sorted before status at %d", i)
			}
		}
	})
}
