package eventlog

import (
	"fmt"
	"strings"
	"time"
)

// Field names as they appear in the Jira changelog, plus the synthetic comment field.
const (
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldResolution = "resolution"
	FieldFlagged    = "Flagged"
	FieldLink       = "Link"
	FieldComment    = "comment"
)

// ChangeEvent represents one atomic field transition in an issue's history.
// It is created once by the timeline builder and treated as immutable afterwards.
type ChangeEvent struct {
	// Field is the changed Jira field (status, priority, Flagged, Link, ...).
	Field string `json:"field"`
	// Value is the new display value; for comments it holds the body.
	Value string `json:"value,omitempty"`
	// ValueID is the numeric id of the new value (status id, comment id) or 0.
	ValueID int `json:"valueId,omitempty"`
	// OldValue is the previous display value.
	OldValue string `json:"oldValue,omitempty"`
	// OldValueID is the numeric id of the previous value or 0.
	OldValueID int `json:"oldValueId,omitempty"`
	// Time is when the change happened. It is never the zero value.
	Time time.Time `json:"time"`
	// Author is the display name of the person who made the change.
	Author string `json:"author,omitempty"`
	// Artificial marks entries that are not in the Jira changelog.
	Artificial bool `json:"artificial,omitempty"`
}

// IsStatus reports whether this is a status change.
func (c ChangeEvent) IsStatus() bool { return c.Field == FieldStatus }

// IsPriority reports whether this is a priority change.
func (c ChangeEvent) IsPriority() bool { return c.Field == FieldPriority }

// IsResolution reports whether this is a resolution change.
func (c ChangeEvent) IsResolution() bool { return c.Field == FieldResolution }

// IsFlagged reports whether this is a change of the Flagged field.
func (c ChangeEvent) IsFlagged() bool { return c.Field == FieldFlagged }

// IsLink reports whether this is an issue link change.
func (c ChangeEvent) IsLink() bool { return c.Field == FieldLink }

// IsComment reports whether this is a synthetic comment entry.
func (c ChangeEvent) IsComment() bool { return c.Field == FieldComment }

// CurrentStatusMatches reports whether a status change moved into any of the given statuses.
// Each candidate may be a status name (case-insensitive) or a numeric id.
func (c ChangeEvent) CurrentStatusMatches(candidates ...string) bool {
	if !c.IsStatus() {
		return false
	}
	return matchesStatus(c.Value, c.ValueID, candidates)
}

// OldStatusMatches reports whether a status change moved out of any of the given statuses.
func (c ChangeEvent) OldStatusMatches(candidates ...string) bool {
	if !c.IsStatus() {
		return false
	}
	return matchesStatus(c.OldValue, c.OldValueID, candidates)
}

func matchesStatus(name string, id int, candidates []string) bool {
	idStr := fmt.Sprint(id)
	for _, candidate := range candidates {
		if strings.EqualFold(candidate, name) || (id != 0 && candidate == idStr) {
			return true
		}
	}
	return false
}

func (c ChangeEvent) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ChangeEvent(field: %q, value: %q", c.Field, c.Value)
	if c.OldValue != "" {
		fmt.Fprintf(&sb, ", oldValue: %q", c.OldValue)
	}
	fmt.Fprintf(&sb, ", time: %s", c.Time.Format(time.RFC3339))
	if c.Artificial {
		sb.WriteString(", artificial")
	}
	sb.WriteString(")")
	return sb.String()
}

// sortRank places resolution changes after other changes that share a timestamp.
func (c ChangeEvent) sortRank() int {
	if c.IsResolution() {
		return 1
	}
	return 0
}

// CompareChanges orders events by time; at the same instant a resolution change sorts after a status change.
func CompareChanges(a, b ChangeEvent) int {
	if cmp := a.Time.Compare(b.Time); cmp != 0 {
		return cmp
	}
	return a.sortRank() - b.sortRank()
}
