package eventlog

import (
	"fmt"
	"slices"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/jira"
)

// BuildIssue converts a Jira issue DTO into an Issue with a normalized, chronologically ordered timeline.
// Any structural problem is reported as an *IssueError carrying the issue key.
func BuildIssue(dto jira.IssueDTO, b *board.Board) (*Issue, error) {
	if dto.Fields == nil {
		return nil, &IssueError{Key: dto.Key, Err: ErrMissingFields}
	}

	issue := &Issue{Board: b, raw: dto}

	created, err := jira.ParseTime(dto.Fields.Created)
	if err != nil {
		return nil, &IssueError{Key: dto.Key, Err: fmt.Errorf("created: %w", err)}
	}
	issue.created = created

	if dto.Fields.Updated != "" {
		if issue.updated, err = jira.ParseTime(dto.Fields.Updated); err != nil {
			return nil, &IssueError{Key: dto.Key, Err: fmt.Errorf("updated: %w", err)}
		}
	}
	if dto.Fields.ResolutionDate != "" {
		resolved, err := jira.ParseTime(dto.Fields.ResolutionDate)
		if err != nil {
			return nil, &IssueError{Key: dto.Key, Err: fmt.Errorf("resolutiondate: %w", err)}
		}
		issue.resolutionDate = &resolved
	}

	// 1. Expand every history into one event per item
	changes, err := historyChanges(dto.Changelog)
	if err != nil {
		return nil, &IssueError{Key: dto.Key, Err: err}
	}

	// 2. Comments are interleaved as artificial entries
	commentEvents, err := commentChanges(dto.Fields.Comment)
	if err != nil {
		return nil, &IssueError{Key: dto.Key, Err: err}
	}
	changes = append(changes, commentEvents...)

	// 3. Standardize chronological order
	SortChanges(changes)

	// 4. The as-created status and priority are not part of the changelog, so fabricate them
	anchor := created
	if len(changes) > 0 && changes[0].Time.Before(anchor) {
		anchor = changes[0].Time
	}
	author := dto.Fields.Creator.Label()
	if author == "" {
		author = dto.Fields.Reporter.Label()
	}

	var leading []ChangeEvent
	if c, ok := fabricateChange(FieldStatus, changes, statusField(dto.Fields.Status), anchor, author); ok {
		leading = append(leading, c)
	}
	if c, ok := fabricateChange(FieldPriority, changes, namedField(dto.Fields.Priority), anchor, author); ok {
		leading = append(leading, c)
	}
	issue.changes = append(leading, changes...)

	issue.links = linksFromDTO(dto.Fields.IssueLinks)
	return issue, nil
}

// SortChanges sorts events in place by time. The sort is stable, so repeated sorting is idempotent.
func SortChanges(changes []ChangeEvent) {
	slices.SortStableFunc(changes, CompareChanges)
}

func historyChanges(changelog *jira.ChangelogDTO) ([]ChangeEvent, error) {
	if changelog == nil {
		return nil, nil
	}

	var changes []ChangeEvent
	for _, h := range changelog.Histories {
		ts, err := jira.ParseTime(h.Created)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", h.ID, err)
		}
		for _, item := range h.Items {
			changes = append(changes, ChangeEvent{
				Field:      item.Field,
				Value:      item.ToString,
				ValueID:    jira.ParseID(item.To),
				OldValue:   item.FromString,
				OldValueID: jira.ParseID(item.From),
				Time:       ts,
				Author:     h.Author.Label(),
			})
		}
	}
	return changes, nil
}

func commentChanges(page *jira.CommentPageDTO) ([]ChangeEvent, error) {
	if page == nil {
		return nil, nil
	}

	changes := make([]ChangeEvent, 0, len(page.Comments))
	for _, c := range page.Comments {
		ts, err := jira.ParseTime(c.Created)
		if err != nil {
			return nil, fmt.Errorf("comment %s: %w", c.ID, err)
		}
		changes = append(changes, ChangeEvent{
			Field:      FieldComment,
			Value:      jira.CommentBody(c.Body),
			ValueID:    jira.ParseID(c.ID),
			Time:       ts,
			Author:     c.Author.Label(),
			Artificial: true,
		})
	}
	return changes, nil
}

type fieldValue struct {
	name string
	id   int
	ok   bool
}

func statusField(s *jira.StatusDTO) fieldValue {
	if s == nil {
		return fieldValue{}
	}
	return fieldValue{name: s.Name, id: jira.ParseID(s.ID), ok: true}
}

func namedField(n *jira.NamedDTO) fieldValue {
	if n == nil {
		return fieldValue{}
	}
	return fieldValue{name: n.Name, id: jira.ParseID(n.ID), ok: true}
}

// fabricateChange synthesizes the value a field had at creation: what the first logged change moved away
// from, or the current value when the field never changed.
func fabricateChange(field string, changes []ChangeEvent, current fieldValue, at time.Time, author string) (ChangeEvent, bool) {
	c := ChangeEvent{Field: field, Time: at, Author: author, Artificial: true}

	idx := slices.IndexFunc(changes, func(e ChangeEvent) bool { return e.Field == field })
	switch {
	case idx >= 0:
		c.Value = changes[idx].OldValue
		c.ValueID = changes[idx].OldValueID
	case current.ok:
		c.Value = current.name
		c.ValueID = current.id
	default:
		return ChangeEvent{}, false
	}
	return c, true
}

func linksFromDTO(dtos []jira.IssueLinkDTO) []IssueLink {
	links := make([]IssueLink, 0, len(dtos))
	for _, l := range dtos {
		link := IssueLink{}
		var other *jira.LinkedIssueDTO
		if l.OutwardIssue != nil {
			link.Direction = "outward"
			link.Label = l.Type.Outward
			other = l.OutwardIssue
		} else if l.InwardIssue != nil {
			link.Direction = "inward"
			link.Label = l.Type.Inward
			other = l.InwardIssue
		} else {
			continue
		}
		link.OtherKey = other.Key
		if other.Fields.Status != nil {
			link.OtherStatus = other.Fields.Status.Name
		}
		links = append(links, link)
	}
	return links
}
