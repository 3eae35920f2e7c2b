package stats

import (
	"strconv"
	"testing"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/eventlog"
	"flowlens/internal/jira"
)

var day0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// at returns day0 plus the given number of days and hours.
func at(days, hours int) time.Time {
	return day0.Add(time.Duration(days)*day + time.Duration(hours)*time.Hour)
}

func jiraTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000-0700")
}

// Status ids used by the test board.
const (
	backlogID    = 10000
	readyID      = 1
	inProgressID = 3
	reviewID     = 4
	doneID       = 10003
	blockedID    = 20
	waitingID    = 21
)

var statusNames = map[int]string{
	backlogID:    "Backlog",
	readyID:      "Ready",
	inProgressID: "In Progress",
	reviewID:     "Review",
	doneID:       "Done",
	blockedID:    "Blocked",
	waitingID:    "Waiting",
}

func testBoard() *board.Board {
	dto := jira.BoardConfigDTO{ID: 7, Name: "Team", Type: "kanban"}
	dto.ColumnConfig.Columns = []jira.ColumnDTO{
		{Name: "Backlog", Statuses: []jira.ColumnStatusDTO{{ID: "10000"}}},
		{Name: "Ready", Statuses: []jira.ColumnStatusDTO{{ID: "1"}}},
		{Name: "In Progress", Statuses: []jira.ColumnStatusDTO{{ID: "3"}, {ID: "20"}, {ID: "21"}}},
		{Name: "Review", Statuses: []jira.ColumnStatusDTO{{ID: "4"}}},
		{Name: "Done", Statuses: []jira.ColumnStatusDTO{{ID: "10003"}}},
	}
	return board.New(dto)
}

func testStatuses() *board.StatusCollection {
	return board.NewStatusCollection([]board.Status{
		{ID: backlogID, Name: "Backlog", CategoryID: 2, CategoryKey: board.CategoryNew, CategoryName: "To Do"},
		{ID: readyID, Name: "Ready", CategoryID: 2, CategoryKey: board.CategoryNew, CategoryName: "To Do"},
		{ID: inProgressID, Name: "In Progress", CategoryID: 4, CategoryKey: board.CategoryInProgress, CategoryName: "In Progress"},
		{ID: reviewID, Name: "Review", CategoryID: 4, CategoryKey: board.CategoryInProgress, CategoryName: "In Progress"},
		{ID: blockedID, Name: "Blocked", CategoryID: 4, CategoryKey: board.CategoryInProgress, CategoryName: "In Progress"},
		{ID: waitingID, Name: "Waiting", CategoryID: 4, CategoryKey: board.CategoryInProgress, CategoryName: "In Progress"},
		{ID: doneID, Name: "Done", CategoryID: 3, CategoryKey: board.CategoryDone, CategoryName: "Done"},
	})
}

type issueBuilder struct {
	dto     jira.IssueDTO
	current int
}

func newIssue(key string, created time.Time) *issueBuilder {
	return &issueBuilder{
		current: backlogID,
		dto: jira.IssueDTO{
			Key: key,
			Fields: &jira.FieldsDTO{
				Summary:   "Summary of " + key,
				Created:   jiraTime(created),
				Updated:   jiraTime(created),
				Priority:  &jira.NamedDTO{ID: "3", Name: "Medium"},
				IssueType: &jira.IssueTypeDTO{Name: "Story"},
			},
			Changelog: &jira.ChangelogDTO{},
		},
	}
}

// moveTo records a status change from the current status.
func (b *issueBuilder) moveTo(when time.Time, statusID int) *issueBuilder {
	b.dto.Changelog.Histories = append(b.dto.Changelog.Histories, jira.HistoryDTO{
		Created: jiraTime(when),
		Items: []jira.ItemDTO{{
			Field:      "status",
			From:       itoa(b.current),
			FromString: statusNames[b.current],
			To:         itoa(statusID),
			ToString:   statusNames[statusID],
		}},
	})
	b.current = statusID
	return b
}

func (b *issueBuilder) change(when time.Time, field, from, to string) *issueBuilder {
	b.dto.Changelog.Histories = append(b.dto.Changelog.Histories, jira.HistoryDTO{
		Created: jiraTime(when),
		Items:   []jira.ItemDTO{{Field: field, FromString: from, ToString: to}},
	})
	return b
}

func (b *issueBuilder) subtask() *issueBuilder {
	b.dto.Fields.IssueType = &jira.IssueTypeDTO{Name: "Sub-task", Subtask: true}
	return b
}

func (b *issueBuilder) build(t *testing.T, brd *board.Board) *eventlog.Issue {
	t.Helper()
	b.dto.Fields.Status = &jira.StatusDTO{ID: itoa(b.current), Name: statusNames[b.current]}
	issue, err := eventlog.BuildIssue(b.dto, brd)
	if err != nil {
		t.Fatalf("BuildIssue(%s): %v", b.dto.Key, err)
	}
	return issue
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// startStop uses the first time in In Progress as start and the first time in Done as stop.
func startStop(t *testing.T) CycleTimeConfig {
	t.Helper()
	start, err := NewPredicate("first_time_in_status", []string{"In Progress"}, RuleContext{})
	if err != nil {
		t.Fatal(err)
	}
	stop, err := NewPredicate("first_time_in_status", []string{"Done"}, RuleContext{})
	if err != nil {
		t.Fatal(err)
	}
	return CycleTimeConfig{Start: start, Stop: stop, Today: DateOf(at(30, 0), time.UTC), Location: time.UTC}
}
