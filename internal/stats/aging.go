package stats

import (
	"fmt"
	"slices"

	"flowlens/internal/board"
	"flowlens/internal/eventlog"
)

// PercentileIndex returns floor((n-1) * pct / 100), the index used to pick a percentile from n sorted values.
func PercentileIndex(n, pct int) int {
	if n <= 0 {
		return 0
	}
	idx := (n - 1) * pct / 100
	return min(max(idx, 0), n-1)
}

// Percentile picks the value at PercentileIndex from sorted values, or 0 when empty.
func Percentile(sorted []int, pct int) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[PercentileIndex(len(sorted), pct)]
}

// MakeMonotonic returns a copy of data where every value is at least the value to its left,
// leaving a trailing run of zeros untouched.
func MakeMonotonic(data []int) []int {
	result := slices.Clone(data)
	lastNonZero := -1
	for i, v := range result {
		if v != 0 {
			lastNonZero = i
		}
	}
	for i := 1; i <= lastNonZero; i++ {
		result[i] = max(result[i], result[i-1])
	}
	return result
}

// PercentileSeries is the per-column aging data of one percentile.
type PercentileSeries struct {
	Percentage int   `json:"percentage"`
	Data       []int `json:"data"`
}

// BoardMovementCalculator computes how old issues typically are when they leave each visible column.
// Only completed issues of the board that never moved backwards after starting are considered.
type BoardMovementCalculator struct {
	board  *board.Board
	cfg    CycleTimeConfig
	today  Date
	issues []*eventlog.Issue
	timing map[*eventlog.Issue]Timing
	// likely is AgeDataFor(85), shared by every forecast.
	likely []int
}

// NewBoardMovementCalculator filters the issues and resolves their start and stop once.
func NewBoardMovementCalculator(b *board.Board, issues []*eventlog.Issue, cfg CycleTimeConfig, today Date) (*BoardMovementCalculator, error) {
	if b == nil {
		return nil, fmt.Errorf("board movement calculator requires a board")
	}
	if today.IsZero() {
		today = cfg.Today
	}

	calc := &BoardMovementCalculator{
		board:  b,
		cfg:    cfg,
		today:  today,
		timing: make(map[*eventlog.Issue]Timing, len(issues)),
	}
	for _, issue := range issues {
		if issue.Board != b {
			continue
		}
		timing, err := cfg.StartedStoppedTimes(issue)
		if err != nil {
			return nil, err
		}
		calc.timing[issue] = timing
		if timing.Done() && !calc.MovesBackwards(issue) {
			calc.issues = append(calc.issues, issue)
		}
	}
	calc.likely = calc.AgeDataFor(85)
	return calc, nil
}

// Issues returns the issues contributing to the aging data.
func (c *BoardMovementCalculator) Issues() []*eventlog.Issue { return c.issues }

// MovesBackwards reports whether the issue ever moved to a column left of the previous one after it started.
// Statuses missing from the board are skipped.
func (c *BoardMovementCalculator) MovesBackwards(issue *eventlog.Issue) bool {
	timing, ok := c.timing[issue]
	if !ok {
		var err error
		if timing, err = c.cfg.StartedStoppedTimes(issue); err != nil {
			return false
		}
	}
	if timing.Started == nil {
		return false
	}

	previous := -1
	for _, change := range issue.StatusChanges() {
		if change.Time.Before(*timing.Started) {
			continue
		}
		column := c.board.ColumnIndexOf(change.ValueID)
		if column < 0 {
			continue
		}
		if previous >= 0 && column < previous {
			return true
		}
		previous = column
	}
	return false
}

// AgesOfIssuesWhenLeavingColumn returns the sorted ages of the issues when they left the column.
func (c *BoardMovementCalculator) AgesOfIssuesWhenLeavingColumn(columnIndex int) []int {
	columns := c.board.VisibleColumns
	if columnIndex < 0 || columnIndex >= len(columns) {
		return nil
	}
	this := columns[columnIndex]

	ages := make([]int, 0, len(c.issues))
	for _, issue := range c.issues {
		timing := c.timing[issue]
		if timing.Started == nil {
			continue
		}
		thisStart, ok, err := issue.FirstTimeInOrRightOfColumn(this.Name)
		if err != nil || !ok {
			continue
		}

		var nextStart *eventlog.ChangeEvent
		if columnIndex+1 < len(columns) {
			if next, ok, err := issue.FirstTimeInOrRightOfColumn(columns[columnIndex+1].Name); err == nil && ok {
				nextStart = &next
			}
		}

		// Left the column before the issue counted as started.
		if nextStart != nil && !nextStart.Time.After(*timing.Started) {
			ages = append(ages, 0)
			continue
		}
		// Already done when it reached this column.
		if timing.Stopped != nil && !timing.Stopped.After(thisStart.Time) {
			continue
		}

		var end Date
		switch {
		case nextStart == nil:
			end = c.today
		case timing.Stopped != nil && timing.Stopped.Before(nextStart.Time):
			end = DateOf(*timing.Stopped, c.cfg.Location)
		default:
			end = DateOf(nextStart.Time, c.cfg.Location)
		}
		ages = append(ages, InclusiveDays(DateOf(*timing.Started, c.cfg.Location), end))
	}
	slices.Sort(ages)
	return ages
}

// AgeDataFor returns, per visible column, the age at the given percentile, made monotonic.
func (c *BoardMovementCalculator) AgeDataFor(pct int) []int {
	data := make([]int, len(c.board.VisibleColumns))
	for i := range c.board.VisibleColumns {
		data[i] = Percentile(c.AgesOfIssuesWhenLeavingColumn(i), pct)
	}
	return MakeMonotonic(data)
}

// AgeDataForPercentiles returns AgeDataFor for each percentage in ascending order.
func (c *BoardMovementCalculator) AgeDataForPercentiles(pcts []int) []PercentileSeries {
	sorted := slices.Clone(pcts)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	result := make([]PercentileSeries, 0, len(sorted))
	for _, pct := range sorted {
		result = append(result, PercentileSeries{Percentage: pct, Data: c.AgeDataFor(pct)})
	}
	return result
}

// Forecast is the expected remaining time of an unfinished issue.
type Forecast struct {
	Days    int    `json:"days"`
	Known   bool   `json:"known"`
	Message string `json:"message,omitempty"`
}

// ForecastedDaysRemaining estimates how many more days an issue needs, based on the 85th percentile
// age data. The forecast assumes the issue moves through the remaining columns like history did.
func (c *BoardMovementCalculator) ForecastedDaysRemaining(issue *eventlog.Issue) (Forecast, error) {
	timing, err := c.cfg.StartedStoppedTimes(issue)
	if err != nil {
		return Forecast{}, err
	}
	if timing.Done() {
		return Forecast{Message: "Already done"}, nil
	}

	column, _, ok := issue.CurrentColumnAndEntryTime()
	if !ok {
		return Forecast{Message: "This issue is not visible on the board. No way to predict when it will be done."}, nil
	}
	age, started := timing.Age(c.today, c.cfg.Location)
	if !started {
		return Forecast{Message: "This issue has not started. No forecast can be made."}, nil
	}

	likely := c.likely
	lastNonZero := 0
	for _, v := range slices.Backward(likely) {
		if v != 0 {
			lastNonZero = v
			break
		}
	}
	if lastNonZero == 0 {
		return Forecast{Message: "There is no historical data for this board. No forecast can be made."}, nil
	}

	idx := c.board.ColumnIndexByName(column)
	forecast := Forecast{Known: true}
	remainingInColumn := likely[idx] - age
	if remainingInColumn < 0 {
		forecast.Message = fmt.Sprintf("This item is an outlier at %d days in the %q column. Most items leave this column by %d days.", age, column, likely[idx])
		remainingInColumn = 0
	}
	forecast.Days = max(lastNonZero-likely[idx], 0) + remainingInColumn
	return forecast, nil
}
