package discovery

import (
	"strconv"
	"testing"

	"flowlens/internal/board"
	"flowlens/internal/eventlog"
	"flowlens/internal/jira"
)

func buildIssue(t *testing.T, key string, path ...int) *eventlog.Issue {
	t.Helper()
	names := map[int]string{10000: "Backlog", 1: "Ready", 3: "In Progress", 99: "QA", 10003: "Done"}
	dto := jira.IssueDTO{
		Key: key,
		Fields: &jira.FieldsDTO{
			Created: "2024-01-01T09:00:00.000+0000",
			Status:  &jira.StatusDTO{ID: strconv.Itoa(path[len(path)-1]), Name: names[path[len(path)-1]]},
		},
		Changelog: &jira.ChangelogDTO{},
	}
	for i := 1; i < len(path); i++ {
		dto.Changelog.Histories = append(dto.Changelog.Histories, jira.HistoryDTO{
			Created: "2024-01-0" + strconv.Itoa(i+1) + "T09:00:00.000+0000",
			Items: []jira.ItemDTO{{
				Field:      "status",
				From:       strconv.Itoa(path[i-1]),
				FromString: names[path[i-1]],
				To:         strconv.Itoa(path[i]),
				ToString:   names[path[i]],
			}},
		})
	}
	issue, err := eventlog.BuildIssue(dto, nil)
	if err != nil {
		t.Fatalf("BuildIssue: %v", err)
	}
	return issue
}

func TestStatusOrder(t *testing.T) {
	issues := []*eventlog.Issue{
		buildIssue(t, "D-1", 10000, 1, 3, 10003),
		buildIssue(t, "D-2", 10000, 1, 3, 99, 10003),
		buildIssue(t, "D-3", 10000, 1, 3),
	}

	order := StatusOrder(issues)
	var names []string
	for _, ref := range order {
		names = append(names, ref.Name)
	}
	want := []string{"Backlog", "Ready", "In Progress", "QA", "Done"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
			break
		}
	}
}

func TestUnmappedStatuses(t *testing.T) {
	dto := jira.BoardConfigDTO{ID: 1, Type: "kanban"}
	dto.ColumnConfig.Columns = []jira.ColumnDTO{
		{Name: "Backlog", Statuses: []jira.ColumnStatusDTO{{ID: "10000"}}},
		{Name: "Ready", Statuses: []jira.ColumnStatusDTO{{ID: "1"}}},
		{Name: "Doing", Statuses: []jira.ColumnStatusDTO{{ID: "3"}}},
		{Name: "Done", Statuses: []jira.ColumnStatusDTO{{ID: "10003"}}},
	}
	b := board.New(dto)

	unmapped := UnmappedStatuses([]*eventlog.Issue{buildIssue(t, "D-4", 10000, 3, 99, 10003)}, b)
	if len(unmapped) != 1 || unmapped[0].ID != 99 {
		t.Errorf("Expected QA (99) to be unmapped, got %v", unmapped)
	}
	if UnmappedStatuses(nil, nil) != nil {
		t.Error("Expected nil without a board")
	}
}
