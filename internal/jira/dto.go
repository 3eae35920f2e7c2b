package jira

import (
	"fmt"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
// Fields is a pointer so that a structurally missing block can be told apart from an empty one.
type IssueDTO struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Fields    *FieldsDTO    `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the specific fields we care about.
type FieldsDTO struct {
	Summary        string           `json:"summary"`
	Created        string           `json:"created"`
	Updated        string           `json:"updated"`
	ResolutionDate string           `json:"resolutiondate"`
	Status         *StatusDTO       `json:"status"`
	Priority       *NamedDTO        `json:"priority"`
	IssueType      *IssueTypeDTO    `json:"issuetype"`
	Resolution     *NamedDTO        `json:"resolution"`
	Assignee       *UserDTO         `json:"assignee"`
	Creator        *UserDTO         `json:"creator"`
	Reporter       *UserDTO         `json:"reporter"`
	Parent         *LinkedIssueDTO  `json:"parent,omitempty"`
	Subtasks       []LinkedIssueDTO `json:"subtasks,omitempty"`
	IssueLinks     []IssueLinkDTO   `json:"issuelinks,omitempty"`
	Comment        *CommentPageDTO  `json:"comment,omitempty"`
}

// NamedDTO is the common {id, name} shape used by priority and resolution.
type NamedDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueTypeDTO describes the issue type, including whether it is a subtask type.
type IssueTypeDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// StatusDTO is the status shape shared by issue fields and the status list endpoint.
type StatusDTO struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	StatusCategory StatusCategoryDTO `json:"statusCategory"`
}

// StatusCategoryDTO is one of Jira's fixed categories (new, indeterminate, done).
type StatusCategoryDTO struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// UserDTO is the subset of a Jira user we record as change authors.
type UserDTO struct {
	AccountID   string `json:"accountId,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// LinkedIssueDTO is the abbreviated issue embedded in parent, subtask and link fields.
type LinkedIssueDTO struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields LinkedFieldsDTO `json:"fields"`
}

// LinkedFieldsDTO is the reduced field set Jira embeds for linked issues.
type LinkedFieldsDTO struct {
	Summary   string        `json:"summary"`
	Status    *StatusDTO    `json:"status"`
	IssueType *IssueTypeDTO `json:"issuetype"`
}

// IssueLinkDTO is a single entry in fields.issuelinks. Exactly one of InwardIssue and OutwardIssue is set.
type IssueLinkDTO struct {
	ID           string          `json:"id"`
	Type         LinkTypeDTO     `json:"type"`
	InwardIssue  *LinkedIssueDTO `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssueDTO `json:"outwardIssue,omitempty"`
}

// LinkTypeDTO names both directions of a link type ("blocks" / "is blocked by").
type LinkTypeDTO struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// CommentPageDTO is the comment block embedded in issue fields.
type CommentPageDTO struct {
	Comments []CommentDTO `json:"comments"`
}

// CommentDTO is a single comment. Body is a string in API v2 and a document object in API v3.
type CommentDTO struct {
	ID      string   `json:"id"`
	Body    any      `json:"body"`
	Created string   `json:"created"`
	Author  *UserDTO `json:"author,omitempty"`
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Author  *UserDTO  `json:"author,omitempty"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype,omitempty"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
	To         string `json:"to"`   // ID
	From       string `json:"from"` // ID
}

// BoardConfigDTO is the response of /rest/agile/1.0/board/{id}/configuration.
type BoardConfigDTO struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ColumnConfig struct {
		Columns        []ColumnDTO `json:"columns"`
		ConstraintType string      `json:"constraintType,omitempty"`
	} `json:"columnConfig"`
}

// ColumnDTO is a single board column with its mapped statuses.
type ColumnDTO struct {
	Name     string            `json:"name"`
	Statuses []ColumnStatusDTO `json:"statuses"`
	Min      *int              `json:"min,omitempty"`
	Max      *int              `json:"max,omitempty"`
}

// ColumnStatusDTO is a status reference inside a column mapping.
type ColumnStatusDTO struct {
	ID string `json:"id"`
}

// Label returns the best human readable name of a user, or empty for a nil user.
func (u *UserDTO) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// ParseTime parses the Jira timestamp format, falling back to RFC3339 for hand-written fixtures.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("invalid jira timestamp %q: %w", s, firstErr)
}
