package stats

import (
	"errors"
	"fmt"
	"time"

	"flowlens/internal/eventlog"
)

// ErrZeroTime is returned when a start or stop rule reports a match without a usable time.
var ErrZeroTime = errors.New("cycle time rule matched with a zero time")

// Predicate resolves a point in an issue's life (e.g., "first time in In Progress").
// It returns false when the issue never reached that point.
type Predicate func(issue *eventlog.Issue) (time.Time, bool)

// Timing is the resolved start and stop of an issue. Either may be nil.
type Timing struct {
	Started *time.Time `json:"started,omitempty"`
	Stopped *time.Time `json:"stopped,omitempty"`
}

// CycleTimeConfig holds the start and stop rules of one board.
type CycleTimeConfig struct {
	Start    Predicate
	Stop     Predicate
	Today    Date
	Location *time.Location
}

// StartedStoppedTimes evaluates both rules. When they resolve to the same instant the issue is
// treated as never started, so a same-instant transition is not counted as both start and completion.
func (c CycleTimeConfig) StartedStoppedTimes(issue *eventlog.Issue) (Timing, error) {
	if c.Start == nil || c.Stop == nil {
		return Timing{}, fmt.Errorf("cycle time for %s: start and stop rules are required", issue.Key())
	}

	var timing Timing
	if t, ok := c.Start(issue); ok {
		if t.IsZero() {
			return Timing{}, fmt.Errorf("start of %s: %w", issue.Key(), ErrZeroTime)
		}
		timing.Started = &t
	}
	if t, ok := c.Stop(issue); ok {
		if t.IsZero() {
			return Timing{}, fmt.Errorf("stop of %s: %w", issue.Key(), ErrZeroTime)
		}
		timing.Stopped = &t
	}

	if timing.Started != nil && timing.Stopped != nil && timing.Started.Equal(*timing.Stopped) {
		timing.Started = nil
	}
	return timing, nil
}

// CycleTime returns the inclusive number of days from start to stop. A same-day start and stop is 1 day.
func (c CycleTimeConfig) CycleTime(issue *eventlog.Issue) (int, bool, error) {
	timing, err := c.StartedStoppedTimes(issue)
	if err != nil {
		return 0, false, err
	}
	days, ok := timing.CycleTime(c.Location)
	return days, ok, nil
}

// Age returns the inclusive number of days from start to today. A zero today uses the configured Today.
func (c CycleTimeConfig) Age(issue *eventlog.Issue, today Date) (int, bool, error) {
	timing, err := c.StartedStoppedTimes(issue)
	if err != nil {
		return 0, false, err
	}
	if today.IsZero() {
		today = c.Today
	}
	days, ok := timing.Age(today, c.Location)
	return days, ok, nil
}

// InProgress reports whether the issue has started and not stopped.
func (c CycleTimeConfig) InProgress(issue *eventlog.Issue) (bool, error) {
	timing, err := c.StartedStoppedTimes(issue)
	if err != nil {
		return false, err
	}
	return timing.InProgress(), nil
}

// Done reports whether the issue has stopped.
func (c CycleTimeConfig) Done(issue *eventlog.Issue) (bool, error) {
	timing, err := c.StartedStoppedTimes(issue)
	if err != nil {
		return false, err
	}
	return timing.Stopped != nil, nil
}

// CycleTime returns the inclusive day count between start and stop.
func (t Timing) CycleTime(loc *time.Location) (int, bool) {
	if t.Started == nil || t.Stopped == nil {
		return 0, false
	}
	return InclusiveDays(DateOf(*t.Started, loc), DateOf(*t.Stopped, loc)), true
}

// Age returns the inclusive day count between start and today.
func (t Timing) Age(today Date, loc *time.Location) (int, bool) {
	if t.Started == nil {
		return 0, false
	}
	return InclusiveDays(DateOf(*t.Started, loc), today), true
}

// InProgress reports whether the timing is started and not stopped.
func (t Timing) InProgress() bool {
	return t.Started != nil && t.Stopped == nil
}

// Done reports whether the timing is stopped.
func (t Timing) Done() bool {
	return t.Stopped != nil
}
