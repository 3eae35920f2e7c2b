package eventlog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/jira"

	"github.com/rs/zerolog/log"
)

// ErrMissingFields is returned when an issue has no fields block at all.
var ErrMissingFields = errors.New("issue has no fields block")

// IssueError tags an issue build failure with the offending issue key.
type IssueError struct {
	Key string
	Err error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("unable to build issue %s: %v", e.Key, e.Err)
}

func (e *IssueError) Unwrap() error {
	return e.Err
}

// IssueLink is one entry of an issue's links, seen from this issue.
type IssueLink struct {
	// Direction is "inward" or "outward".
	Direction string `json:"direction"`
	// Label is the phrase as read from this issue ("is blocked by", "blocks").
	Label       string `json:"label"`
	OtherKey    string `json:"otherKey"`
	OtherStatus string `json:"otherStatus,omitempty"`
}

// Issue is a single Jira issue with its normalized change timeline.
//
// Changes are sorted ascending by time and are only mutated through DiscardChangesBefore.
// Board is shared between issues. Parent may form a cycle in malformed data; use ParentHierarchy
// to walk it.
type Issue struct {
	Board    *board.Board
	Subtasks []*Issue
	Parent   *Issue

	raw            jira.IssueDTO
	changes        []ChangeEvent
	discarded      []ChangeEvent
	links          []IssueLink
	created        time.Time
	updated        time.Time
	resolutionDate *time.Time
}

// Raw returns the DTO this issue was built from.
func (i *Issue) Raw() jira.IssueDTO { return i.raw }

// Key returns the Jira key (e.g., PROJ-123).
func (i *Issue) Key() string { return i.raw.Key }

// ProjectKey returns the project portion of the key.
func (i *Issue) ProjectKey() string { return jira.ProjectKey(i.raw.Key) }

// Summary returns the issue title.
func (i *Issue) Summary() string { return i.raw.Fields.Summary }

// Type returns the issue type name.
func (i *Issue) Type() string {
	if i.raw.Fields.IssueType == nil {
		return ""
	}
	return i.raw.Fields.IssueType.Name
}

// IsSubtask reports whether the issue type is a subtask type.
func (i *Issue) IsSubtask() bool {
	return i.raw.Fields.IssueType != nil && i.raw.Fields.IssueType.Subtask
}

// Status returns the current status.
func (i *Issue) Status() board.Status {
	if i.raw.Fields.Status == nil {
		return board.Status{}
	}
	return board.StatusFromDTO(*i.raw.Fields.Status)
}

// Priority returns the current priority name.
func (i *Issue) Priority() string {
	if i.raw.Fields.Priority == nil {
		return ""
	}
	return i.raw.Fields.Priority.Name
}

// Resolution returns the current resolution name, or empty when unresolved.
func (i *Issue) Resolution() string {
	if i.raw.Fields.Resolution == nil {
		return ""
	}
	return i.raw.Fields.Resolution.Name
}

// Assignee returns the display name of the assignee.
func (i *Issue) Assignee() string { return i.raw.Fields.Assignee.Label() }

// Created returns the creation time.
func (i *Issue) Created() time.Time { return i.created }

// Updated returns the last update time, falling back to the creation time.
func (i *Issue) Updated() time.Time {
	if i.updated.IsZero() {
		return i.created
	}
	return i.updated
}

// ResolutionDate returns the resolution time reported by Jira, if any.
func (i *Issue) ResolutionDate() *time.Time { return i.resolutionDate }

// ParentKey returns the key of the parent as reported in the issue fields.
func (i *Issue) ParentKey() string {
	if i.raw.Fields.Parent == nil {
		return ""
	}
	return i.raw.Fields.Parent.Key
}

// SubtaskKeys returns the keys of the subtasks listed in the issue fields.
func (i *Issue) SubtaskKeys() []string {
	keys := make([]string, 0, len(i.raw.Fields.Subtasks))
	for _, s := range i.raw.Fields.Subtasks {
		keys = append(keys, s.Key)
	}
	return keys
}

// Changes returns the ordered change timeline. Callers must not modify it.
func (i *Issue) Changes() []ChangeEvent { return i.changes }

// DiscardedChanges returns the status changes removed by DiscardChangesBefore.
func (i *Issue) DiscardedChanges() []ChangeEvent { return i.discarded }

// IssueLinks returns the issue's links as of now.
func (i *Issue) IssueLinks() []IssueLink { return i.links }

// StatusChanges returns only the status changes, in order.
func (i *Issue) StatusChanges() []ChangeEvent {
	var result []ChangeEvent
	for _, c := range i.changes {
		if c.IsStatus() {
			result = append(result, c)
		}
	}
	return result
}

// FirstTimeInStatus returns the first status change into any of the given statuses (names or ids).
func (i *Issue) FirstTimeInStatus(statuses ...string) (ChangeEvent, bool) {
	for _, c := range i.changes {
		if c.CurrentStatusMatches(statuses...) {
			return c, true
		}
	}
	return ChangeEvent{}, false
}

// LastTimeInStatus returns the most recent status change into any of the given statuses (names or ids).
func (i *Issue) LastTimeInStatus(statuses ...string) (ChangeEvent, bool) {
	for _, c := range slices.Backward(i.changes) {
		if c.CurrentStatusMatches(statuses...) {
			return c, true
		}
	}
	return ChangeEvent{}, false
}

// FirstTimeInStatusID returns the first status change into any of the given status ids.
func (i *Issue) FirstTimeInStatusID(ids []int) (ChangeEvent, bool) {
	for _, c := range i.changes {
		if c.IsStatus() && slices.Contains(ids, c.ValueID) {
			return c, true
		}
	}
	return ChangeEvent{}, false
}

// FirstTimeInOrRightOfColumn returns the first status change into the named column or any column right of it.
func (i *Issue) FirstTimeInOrRightOfColumn(column string) (ChangeEvent, bool, error) {
	if i.Board == nil {
		return ChangeEvent{}, false, fmt.Errorf("issue %s has no board", i.Key())
	}
	ids, err := i.Board.StatusIDsInOrRightOfColumn(column)
	if err != nil {
		return ChangeEvent{}, false, err
	}
	c, ok := i.FirstTimeInStatusID(ids)
	return c, ok, nil
}

// CurrentColumnAndEntryTime returns the visible column the issue is in now and when it entered it.
// The entry time is the first status change of the most recent uninterrupted stay in that column.
func (i *Issue) CurrentColumnAndEntryTime() (string, time.Time, bool) {
	if i.Board == nil {
		return "", time.Time{}, false
	}

	currentIndex := -1
	var entry time.Time
	for _, c := range i.changes {
		if !c.IsStatus() {
			continue
		}
		idx := i.Board.ColumnIndexOf(c.ValueID)
		if idx != currentIndex {
			currentIndex = idx
			entry = c.Time
		}
	}
	if currentIndex < 0 {
		return "", time.Time{}, false
	}
	return i.Board.VisibleColumns[currentIndex].Name, entry, true
}

// SubtaskActivityTimes returns the time of every change of every subtask.
func (i *Issue) SubtaskActivityTimes() []time.Time {
	var times []time.Time
	for _, s := range i.Subtasks {
		for _, c := range s.changes {
			times = append(times, c.Time)
		}
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	return times
}

// ParentHierarchy walks the parent chain starting with the issue itself. If the chain loops,
// the walk stops at the first revisited issue, which is appended once more so the cycle is visible.
func (i *Issue) ParentHierarchy() []*Issue {
	visited := make(map[*Issue]bool)
	var chain []*Issue
	for current := i; current != nil; current = current.Parent {
		chain = append(chain, current)
		if visited[current] {
			keys := make([]string, 0, len(chain))
			for _, c := range chain {
				keys = append(keys, c.Key())
			}
			log.Warn().Str("issue", i.Key()).Str("chain", strings.Join(keys, " > ")).Msg("Cyclic parent hierarchy")
			break
		}
		visited[current] = true
	}
	return chain
}

// DiscardChangesBefore drops the non-artificial status changes at or before the cutoff.
// It is used when an issue's early history belongs to a different workflow.
func (i *Issue) DiscardChangesBefore(cutoff time.Time) {
	kept := make([]ChangeEvent, 0, len(i.changes))
	for _, c := range i.changes {
		if c.IsStatus() && !c.Artificial && !c.Time.After(cutoff) {
			i.discarded = append(i.discarded, c)
			continue
		}
		kept = append(kept, c)
	}
	i.changes = kept
}

// DiscardChangesBeforeStatus clips the history at the last time the issue became one of the statuses,
// so work restarted from the backlog is measured from the restart. It reports whether anything was dropped.
func (i *Issue) DiscardChangesBeforeStatus(statuses []string) bool {
	cutoff, ok := i.LastTimeInStatus(statuses...)
	if !ok || cutoff.Artificial {
		return false
	}
	before := len(i.discarded)
	i.DiscardChangesBefore(cutoff.Time)
	return len(i.discarded) > before
}

// ResolveLinkedStatuses replaces the status snapshot embedded in each link with the
// current status of the linked issue when it was loaded in the same batch.
func (i *Issue) ResolveLinkedStatuses(lookup func(key string) (*Issue, bool)) {
	for idx, l := range i.links {
		if other, ok := lookup(l.OtherKey); ok {
			i.links[idx].OtherStatus = other.Status().Name
		}
	}
}

func (i *Issue) String() string {
	return fmt.Sprintf("Issue(%s, %q, changes: %d)", i.Key(), i.Summary(), len(i.changes))
}
