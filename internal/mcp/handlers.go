package mcp

import (
	"context"
	"fmt"
	"strings"

	"flowlens/internal/report"
	"flowlens/internal/stats"
)

// IssueSummary is one row of list_issues.
type IssueSummary struct {
	Key     string      `json:"key"`
	Summary string      `json:"summary"`
	Column  string      `json:"column,omitempty"`
	State   stats.State `json:"state"`
	Reasons []string    `json:"reasons,omitempty"`
	Age     *int        `json:"age,omitempty"`
}

func (s *Server) handleListIssues(ctx context.Context, in ListIssuesInput) (any, error) {
	state := stats.State(strings.ToLower(strings.TrimSpace(in.State)))
	switch state {
	case "", stats.StateActive, stats.StateBlocked, stats.StateStalled:
	default:
		return nil, fmt.Errorf("unknown state %q, valid states are: active, blocked, stalled", in.State)
	}

	var rows []IssueSummary
	for _, issue := range s.store.TopLevel() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.analyzer.Issue(issue, s.defaults)
		if err != nil {
			return nil, fmt.Errorf("issue %s: %w", issue.Key(), err)
		}
		if state != "" && r.State != state {
			continue
		}
		if in.Column != "" && !strings.EqualFold(in.Column, r.Column) {
			continue
		}
		row := IssueSummary{Key: r.Key, Summary: issue.Summary(), Column: r.Column, State: r.State, Age: r.Age}
		if n := len(r.Intervals); n > 0 {
			row.Reasons = r.Intervals[n-1].Reasons
		}
		rows = append(rows, row)
	}

	var guidance []string
	if len(rows) == 0 {
		guidance = append(guidance, "No issues matched. Call 'list_issues' without filters to see every issue.")
	}
	return WrapResponse(rows, nil, guidance), nil
}

func (s *Server) handleIssueFlow(_ context.Context, in IssueFlowInput) (any, error) {
	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	issue, ok := s.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("issue %s is not in the loaded data", key)
	}

	opts, err := s.options(in.From, in.To, in.Fields)
	if err != nil {
		return nil, err
	}
	r, err := s.analyzer.Issue(issue, opts)
	if err != nil {
		return nil, err
	}

	var diagnostics []string
	if n := len(issue.DiscardedChanges()); n > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("%d status changes before the last move into a discard_changes_before status were ignored", n))
	}
	if r.Forecast != nil && r.Forecast.Message != "" {
		diagnostics = append(diagnostics, r.Forecast.Message)
	}
	return WrapResponse(r, diagnostics, nil), nil
}

// AgingResult pairs the visible columns with the per-percentile ages.
type AgingResult struct {
	Columns      []string                 `json:"columns"`
	Series       []stats.PercentileSeries `json:"series"`
	SampleIssues int                      `json:"sampleIssues"`
}

func (s *Server) handleAgingByColumn(_ context.Context, in AgingInput) (any, error) {
	if s.analyzer.Movement == nil {
		return nil, fmt.Errorf("aging data needs a board configuration")
	}
	for _, p := range in.Percentiles {
		if p < 0 || p > 100 {
			return nil, fmt.Errorf("percentile %d is out of range 0..100", p)
		}
	}

	res := AgingResult{
		Series:       s.analyzer.Movement.AgeDataForPercentiles(report.SortedPercentiles(in.Percentiles)),
		SampleIssues: len(s.analyzer.Movement.Issues()),
	}
	for _, c := range s.analyzer.Board.VisibleColumns {
		res.Columns = append(res.Columns, c.Name)
	}

	var diagnostics []string
	if res.SampleIssues == 0 {
		diagnostics = append(diagnostics, "No completed issues moved forward cleanly across the board, so every age is zero.")
	}
	return WrapResponse(res, diagnostics, nil), nil
}

func (s *Server) handleWIPRunChart(_ context.Context, in RangeInput) (any, error) {
	opts, err := s.options(in.From, in.To, nil)
	if err != nil {
		return nil, err
	}
	chart, err := stats.DailyWIP(s.store.TopLevel(), s.analyzer.CycleTime, opts.Range)
	if err != nil {
		return nil, err
	}
	return WrapResponse(chart, nil, nil), nil
}

func (s *Server) handleFlowSummary(ctx context.Context, in RangeInput) (any, error) {
	opts, err := s.options(in.From, in.To, nil)
	if err != nil {
		return nil, err
	}
	rep, err := s.analyzer.Build(ctx, s.store.TopLevel(), opts)
	if err != nil {
		return nil, err
	}

	summary := *rep
	summary.Issues = nil
	return WrapResponse(summary, rep.Warnings, []string{"Call 'issue_flow' for the details of a single issue."}), nil
}

func (s *Server) handleListIssueFields(_ context.Context, _ NoInput) (any, error) {
	return WrapResponse(s.analyzer.Registry.Keys(), nil, nil), nil
}
