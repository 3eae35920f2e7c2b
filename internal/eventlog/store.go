package eventlog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/jira"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IssueStore holds the issues of one report run, keyed by issue key.
// It is filled during loading and read-only afterwards.
type IssueStore struct {
	mu     sync.RWMutex
	issues map[string]*Issue
}

// NewIssueStore creates a new empty IssueStore.
func NewIssueStore() *IssueStore {
	return &IssueStore{issues: make(map[string]*Issue)}
}

// Add inserts issues, replacing any previous issue with the same key.
func (s *IssueStore) Add(issues ...*Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range issues {
		s.issues[issue.Key()] = issue
	}
}

// Get returns the issue with the given key.
func (s *IssueStore) Get(key string) (*Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[key]
	return issue, ok
}

// Count returns the number of issues in the store.
func (s *IssueStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues)
}

// All returns every issue ordered by key.
func (s *IssueStore) All() []*Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		result = append(result, issue)
	}
	slices.SortFunc(result, func(a, b *Issue) int { return strings.Compare(a.Key(), b.Key()) })
	return result
}

// TopLevel returns the issues that are not subtasks, ordered by key.
func (s *IssueStore) TopLevel() []*Issue {
	var result []*Issue
	for _, issue := range s.All() {
		if !issue.IsSubtask() {
			result = append(result, issue)
		}
	}
	return result
}

// Link wires parents, subtasks and linked-issue statuses across the loaded issues.
// It must run once, after every issue has been added.
func (s *IssueStore) Link() {
	all := s.All()
	for _, issue := range all {
		issue.Parent = nil
		issue.Subtasks = nil
	}

	for _, issue := range all {
		parentKey := issue.ParentKey()
		if parentKey == "" {
			continue
		}
		parent, ok := s.Get(parentKey)
		if !ok {
			continue
		}
		issue.Parent = parent
		parent.Subtasks = append(parent.Subtasks, issue)
	}

	for _, issue := range all {
		for _, key := range issue.SubtaskKeys() {
			child, ok := s.Get(key)
			if !ok || slices.Contains(issue.Subtasks, child) {
				continue
			}
			issue.Subtasks = append(issue.Subtasks, child)
			if child.Parent == nil {
				child.Parent = issue
			}
		}
		issue.ResolveLinkedStatuses(s.Get)
	}
}

// DiscardChangesBeforeStatus clips every issue at the last time it became one of the statuses.
// Like Link, it belongs to the loading phase. It returns the number of issues that lost changes.
func (s *IssueStore) DiscardChangesBeforeStatus(statuses []string) int {
	if len(statuses) == 0 {
		return 0
	}
	clipped := 0
	for _, issue := range s.All() {
		if issue.DiscardChangesBeforeStatus(statuses) {
			clipped++
		}
	}
	log.Info().Strs("statuses", statuses).Int("issues", clipped).Msg("Discarded changes before status reset")
	return clipped
}

// LoadIssues decodes every *.json file in dir, each holding either a single issue or a search response,
// and builds the issues in parallel. The first malformed issue aborts the load.
func LoadIssues(ctx context.Context, dir string, b *board.Board, workers int) (*IssueStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read issue directory: %w", err)
	}

	if workers < 1 {
		workers = 1
	}

	store := NewIssueStore()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	fileCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fileCount++

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dtos, err := decodeIssueFile(path)
			if err != nil {
				return err
			}
			for _, dto := range dtos {
				issue, err := BuildIssue(dto, b)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				store.Add(issue)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	store.Link()
	log.Info().Str("dir", dir).Int("files", fileCount).Int("issues", store.Count()).Msg("Loaded issues")
	return store, nil
}

func decodeIssueFile(path string) ([]jira.IssueDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if _, ok := shape["issues"]; ok {
		var resp jira.SearchResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode search response %s: %w", path, err)
		}
		return resp.Issues, nil
	}

	var dto jira.IssueDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode issue %s: %w", path, err)
	}
	return []jira.IssueDTO{dto}, nil
}

// timelineRecord is one line of the timeline file.
type timelineRecord struct {
	IssueKey string `json:"issueKey"`
	ChangeEvent
}

// SaveTimeline persists the normalized timeline of every issue as JSON lines, one event per line.
func (s *IssueStore) SaveTimeline(path string) error {
	issues := s.All()
	if len(issues) == 0 {
		return nil
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp timeline file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	count := 0
	for _, issue := range issues {
		for _, c := range issue.Changes() {
			if err := encoder.Encode(timelineRecord{IssueKey: issue.Key(), ChangeEvent: c}); err != nil {
				file.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("failed to encode event: %w", err)
			}
			count++
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename timeline file: %w", err)
	}

	log.Info().Str("path", path).Int("count", count).Msg("Timeline saved")
	return nil
}

// LatestChange returns the time of the most recent change across all issues.
func (s *IssueStore) LatestChange() time.Time {
	var latest time.Time
	for _, issue := range s.All() {
		changes := issue.Changes()
		if len(changes) > 0 && changes[len(changes)-1].Time.After(latest) {
			latest = changes[len(changes)-1].Time
		}
	}
	return latest
}
