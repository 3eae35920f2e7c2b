package report

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/config"
	"flowlens/internal/eventlog"
	"flowlens/internal/stats"
	"flowlens/internal/stats/discovery"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultFields are projected onto every issue when no fields are requested.
var DefaultFields = []string{"key", "summary", "type", "status"}

// Options selects what a report covers.
type Options struct {
	Range       stats.DateRange
	EndTime     time.Time
	Fields      []string
	Percentiles []int
	Workers     int
}

// Interval is one entry of an issue's blocked/stalled history.
type Interval struct {
	Time        time.Time   `json:"time"`
	State       stats.State `json:"state"`
	Reasons     []string    `json:"reasons,omitempty"`
	StalledDays int         `json:"stalledDays,omitempty"`
}

// DayState is the state of an issue on one day.
type DayState struct {
	Date    stats.Date  `json:"date"`
	State   stats.State `json:"state"`
	Reasons []string    `json:"reasons,omitempty"`
}

// IssueReport holds every per-issue output.
type IssueReport struct {
	Key         string               `json:"key"`
	Fields      map[string]any       `json:"fields,omitempty"`
	Started     *time.Time           `json:"started,omitempty"`
	Stopped     *time.Time           `json:"stopped,omitempty"`
	Age         *int                 `json:"age,omitempty"`
	CycleTime   *int                 `json:"cycleTime,omitempty"`
	State       stats.State          `json:"state"`
	Intervals   []Interval           `json:"intervals"`
	ByDate      []DayState           `json:"byDate"`
	BlockedDays int                  `json:"blockedDays"`
	StalledDays int                  `json:"stalledDays"`
	Column      string               `json:"column,omitempty"`
	Forecast    *stats.Forecast      `json:"forecast,omitempty"`
	Subtasks    []string             `json:"subtasks,omitempty"`
	Parents     []string             `json:"parents,omitempty"`
	Links       []eventlog.IssueLink `json:"links,omitempty"`
}

// Report is the complete output of one run.
type Report struct {
	GeneratedAt       time.Time                `json:"generatedAt"`
	Range             stats.DateRange          `json:"range"`
	Board             string                   `json:"board"`
	Columns           []string                 `json:"columns"`
	UnmappedStatuses  []discovery.StatusRef    `json:"unmappedStatuses,omitempty"`
	Issues            []IssueReport            `json:"issues"`
	Aging             []stats.PercentileSeries `json:"aging"`
	WIP               []stats.DailyCount       `json:"wip"`
	Throughput        []stats.DailyCount       `json:"throughput"`
	WeeklyThroughput  []stats.Bucket           `json:"weeklyThroughput"`
	MonthlyThroughput []stats.Bucket           `json:"monthlyThroughput"`
	MedianCycleTime   float64                  `json:"medianCycleTime"`
	AverageWIP        float64                  `json:"averageWip"`
	Warnings          []string                 `json:"warnings,omitempty"`
}

// Analyzer derives report data for the issues of one board.
// It is read-only after construction and safe for concurrent use.
type Analyzer struct {
	Board     *board.Board
	Statuses  *board.StatusCollection
	Settings  config.Settings
	CycleTime stats.CycleTimeConfig
	Registry  *eventlog.Registry
	Movement  *stats.BoardMovementCalculator
}

// NewAnalyzer resolves the cycle time rules and prepares the aging calculator.
func NewAnalyzer(issues []*eventlog.Issue, b *board.Board, statuses *board.StatusCollection, settings config.Settings, today stats.Date) (*Analyzer, error) {
	cfg, err := settings.CycleTimeConfig(stats.RuleContext{Board: b, Statuses: statuses}, today)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{Board: b, Statuses: statuses, Settings: settings, CycleTime: cfg, Registry: eventlog.NewRegistry()}
	if b != nil {
		if a.Movement, err = stats.NewBoardMovementCalculator(b, issues, cfg, today); err != nil {
			return nil, fmt.Errorf("failed to prepare aging data: %w", err)
		}
	}
	return a, nil
}

// Issue derives the outputs of a single issue.
func (a *Analyzer) Issue(issue *eventlog.Issue, opts Options) (IssueReport, error) {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	projected, err := a.Registry.Project(issue, fields)
	if err != nil {
		return IssueReport{}, err
	}

	timing, err := a.CycleTime.StartedStoppedTimes(issue)
	if err != nil {
		return IssueReport{}, err
	}

	r := IssueReport{
		Key:     issue.Key(),
		Fields:  projected,
		Started: timing.Started,
		Stopped: timing.Stopped,
		Links:   issue.IssueLinks(),
	}
	if days, ok := timing.CycleTime(a.CycleTime.Location); ok {
		r.CycleTime = &days
	}
	if !timing.Done() {
		if days, ok := timing.Age(a.CycleTime.Today, a.CycleTime.Location); ok {
			r.Age = &days
		}
	}
	for _, s := range issue.Subtasks {
		r.Subtasks = append(r.Subtasks, s.Key())
	}
	for _, p := range issue.ParentHierarchy()[1:] {
		r.Parents = append(r.Parents, p.Key())
	}

	bs := a.Settings.BlockedStalled
	changes := stats.BlockedStalledChanges(issue, opts.EndTime, bs)
	r.Intervals = make([]Interval, 0, len(changes))
	for _, c := range changes {
		r.Intervals = append(r.Intervals, Interval{Time: c.Time, State: c.State(), Reasons: c.Reasons(), StalledDays: c.StalledDays})
	}
	if len(changes) > 0 {
		r.State = changes[len(changes)-1].State()
	}

	byDate := stats.BlockedStalledByDate(issue, opts.Range, opts.EndTime, bs, a.CycleTime.Location)
	r.ByDate = make([]DayState, 0, len(byDate))
	for _, d := range opts.Range.Days() {
		state, ok := byDate[d]
		if !ok {
			continue
		}
		r.ByDate = append(r.ByDate, DayState{Date: d, State: state.State(), Reasons: state.Reasons()})
		switch {
		case state.Blocked():
			r.BlockedDays++
		case state.Stalled():
			r.StalledDays++
		}
	}

	if column, _, ok := issue.CurrentColumnAndEntryTime(); ok {
		r.Column = column
	}
	if a.Movement != nil && timing.InProgress() {
		forecast, err := a.Movement.ForecastedDaysRemaining(issue)
		if err != nil {
			return IssueReport{}, err
		}
		r.Forecast = &forecast
	}
	return r, nil
}

// Build derives every per-issue output in parallel and assembles the board-level aggregates.
func (a *Analyzer) Build(ctx context.Context, issues []*eventlog.Issue, opts Options) (*Report, error) {
	if opts.Range.Len() == 0 {
		return nil, fmt.Errorf("empty date range %s..%s", opts.Range.Start, opts.Range.End)
	}
	workers := max(opts.Workers, 1)

	rep := &Report{
		GeneratedAt: time.Now(),
		Range:       opts.Range,
		Issues:      make([]IssueReport, len(issues)),
	}

	// 1. Per-issue derivations; issues are read-only here
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, issue := range issues {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := a.Issue(issue, opts)
			if err != nil {
				return fmt.Errorf("issue %s: %w", issue.Key(), err)
			}
			rep.Issues[i] = r
			return nil
		})
	}

	// 2. Board-level aggregates
	g.Go(func() error {
		var err error
		if rep.WIP, err = stats.DailyWIP(issues, a.CycleTime, opts.Range); err != nil {
			return err
		}
		rep.Throughput, err = stats.ThroughputByDay(issues, a.CycleTime, opts.Range)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3. Summaries of the per-issue and daily data
	var cycleTimes []int
	for _, r := range rep.Issues {
		if r.CycleTime != nil {
			cycleTimes = append(cycleTimes, *r.CycleTime)
		}
	}
	rep.MedianCycleTime = stats.Median(cycleTimes)

	wip := make([]int, len(rep.WIP))
	for i, d := range rep.WIP {
		wip[i] = d.Count
	}
	rep.AverageWIP = stats.Mean(wip)
	rep.WeeklyThroughput = stats.BucketCounts(rep.Throughput, "week")
	rep.MonthlyThroughput = stats.BucketCounts(rep.Throughput, "month")

	if a.Board != nil {
		rep.Board = a.Board.Name
		for _, c := range a.Board.VisibleColumns {
			rep.Columns = append(rep.Columns, c.Name)
		}
		rep.UnmappedStatuses = discovery.UnmappedStatuses(issues, a.Board)
		for _, ref := range rep.UnmappedStatuses {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("Status %q (%d) is used by issues but not mapped to any visible column", ref.Name, ref.ID))
		}
		rep.Aging = a.Movement.AgeDataForPercentiles(opts.Percentiles)
		if len(a.Movement.Issues()) == 0 {
			rep.Warnings = append(rep.Warnings, "No completed issues moved forward cleanly across the board; aging data is empty")
		}
	}

	rep.Warnings = append(rep.Warnings, a.guessedStatusWarnings()...)

	log.Info().
		Int("issues", len(rep.Issues)).
		Str("from", opts.Range.Start.String()).
		Str("to", opts.Range.End.String()).
		Float64("medianCycleTime", rep.MedianCycleTime).
		Int("warnings", len(rep.Warnings)).
		Msg("Report built")
	return rep, nil
}

func (a *Analyzer) guessedStatusWarnings() []string {
	var warnings []string
	for _, s := range a.Statuses.Guessed() {
		warnings = append(warnings, fmt.Sprintf("Status %q (%d) is not in the status list, its category was guessed as %q", s.Name, s.ID, s.CategoryKey))
	}
	return warnings
}

// Write stores the report as indented JSON, replacing any previous file atomically.
func Write(path string, rep *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp report file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode report: %w", err)
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
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	log.Info().Str("path", path).Msg("Report written")
	return nil
}

// SortedPercentiles normalizes user supplied percentiles, defaulting to 50 and 85.
func SortedPercentiles(pcts []int) []int {
	var result []int
	for _, p := range pcts {
		if p >= 0 && p <= 100 {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return []int{50, 85}
	}
	slices.Sort(result)
	return slices.Compact(result)
}
