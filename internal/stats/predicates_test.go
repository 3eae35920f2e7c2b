package stats

import (
	"errors"
	"strings"
	"testing"
)

func TestNewPredicate_UnknownRuleListsValidNames(t *testing.T) {
	_, err := NewPredicate("first_time_on_mars", nil, RuleContext{})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("Expected ErrUnknownRule, got %v", err)
	}
	if !strings.Contains(err.Error(), "first_time_in_status_category") {
		t.Errorf("Expected the error to list valid rules, got %q", err.Error())
	}
}

func TestNewPredicate_RequiresValues(t *testing.T) {
	if _, err := NewPredicate("first_time_in_status", nil, RuleContext{}); err == nil {
		t.Error("Expected an error for first_time_in_status without values")
	}
}

func TestPredicates(t *testing.T) {
	brd := testBoard()
	ctx := RuleContext{Board: brd, Statuses: testStatuses()}

	issue := newIssue("PR-1", day0).
		moveTo(at(1, 0), readyID).
		moveTo(at(2, 0), reviewID).
		moveTo(at(3, 0), inProgressID).
		moveTo(at(5, 0), doneID).
		change(at(5, 0), "resolution", "", "Fixed").
		build(t, brd)

	tests := []struct {
		name   string
		rule   string
		values []string
		want   int // day offset, -1 for no match
	}{
		{"Created", "created", nil, 0},
		{"StatusByName", "first_time_in_status", []string{"in progress"}, 3},
		{"StatusByID", "first_time_in_status", []string{"4"}, 2},
		{"Category", "first_time_in_status_category", []string{"indeterminate"}, 2},
		{"CategoryByName", "first_time_in_status_category", []string{"Done"}, 5},
		{"ColumnOrRight", "first_time_in_or_right_of_column", []string{"In Progress"}, 2},
		{"Resolution", "first_resolution", nil, 5},
		{"StillInCategory", "still_in_status_category", []string{"done"}, 5},
		{"NotStillInCategory", "still_in_status_category", []string{"indeterminate"}, -1},
		{"NeverReached", "first_time_in_status", []string{"Blocked"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPredicate(tt.rule, tt.values, ctx)
			if err != nil {
				t.Fatalf("NewPredicate: %v", err)
			}
			got, ok := p(issue)
			if tt.want < 0 {
				if ok {
					t.Errorf("Expected no match, got %v", got)
				}
				return
			}
			if !ok || !got.Equal(at(tt.want, 0)) {
				t.Errorf("Expected %v, got %v (ok=%v)", at(tt.want, 0), got, ok)
			}
		})
	}
}

func TestNewPredicate_UnknownColumn(t *testing.T) {
	_, err := NewPredicate("first_time_in_or_right_of_column", []string{"Deploy"}, RuleContext{Board: testBoard()})
	if err == nil || !strings.Contains(err.Error(), "Review") {
		t.Errorf("Expected an error listing the board columns, got %v", err)
	}
}
