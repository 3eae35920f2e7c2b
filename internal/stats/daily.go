package stats

import (
	"time"

	"flowlens/internal/eventlog"
)

// BlockedStalledByDate reports one state per day of the range. A day with any blocked moment is
// blocked; otherwise the last active or stalled entry of the day wins, with active beating stalled.
// Days without an entry carry the last state of the previous day, and days outside the known
// history take the first or last entry.
func BlockedStalledByDate(issue *eventlog.Issue, dateRange DateRange, endTime time.Time, settings BlockedStalledSettings, loc *time.Location) map[Date]BlockedStalledChange {
	changes := BlockedStalledChanges(issue, endTime, settings)
	return aggregateByDate(changes, dateRange, loc)
}

type dayEntry struct {
	winner BlockedStalledChange
	last   BlockedStalledChange
}

func aggregateByDate(changes []BlockedStalledChange, dateRange DateRange, loc *time.Location) map[Date]BlockedStalledChange {
	result := make(map[Date]BlockedStalledChange, dateRange.Len())
	if len(changes) == 0 {
		return result
	}

	// 1. Direct assignment per touched day
	days := make(map[Date]dayEntry)
	var minDate, maxDate Date
	for _, change := range changes {
		date := DateOf(change.Time, loc)
		entry, seen := days[date]
		if !seen || replacesWinner(change, entry.winner) {
			entry.winner = change
		}
		entry.last = change
		days[date] = entry

		if minDate.IsZero() || date.Before(minDate) {
			minDate = date
		}
		if maxDate.IsZero() || date.After(maxDate) {
			maxDate = date
		}
	}

	// 2. Forward-fill the gaps between touched days
	byDate := make(map[Date]BlockedStalledChange, len(days))
	var previous dayEntry
	for d := minDate; !d.After(maxDate); d = d.AddDays(1) {
		if entry, ok := days[d]; ok {
			byDate[d] = entry.winner
			previous = entry
			continue
		}
		byDate[d] = previous.last
	}

	// 3. Clamp to the requested range
	first, last := changes[0], changes[len(changes)-1]
	for _, d := range dateRange.Days() {
		switch {
		case d.Before(minDate):
			result[d] = first
		case d.After(maxDate):
			result[d] = last
		default:
			result[d] = byDate[d]
		}
	}
	return result
}

func replacesWinner(change, winner BlockedStalledChange) bool {
	switch {
	case change.Blocked():
		return true
	case change.Active():
		return winner.Active() || winner.Stalled()
	case change.Stalled():
		return winner.Stalled()
	}
	return false
}

// BlockedStalledDays counts the blocked and stalled days of an issue within the range.
func BlockedStalledDays(issue *eventlog.Issue, dateRange DateRange, endTime time.Time, settings BlockedStalledSettings, loc *time.Location) (blocked, stalled int) {
	for _, state := range BlockedStalledByDate(issue, dateRange, endTime, settings, loc) {
		switch {
		case state.Blocked():
			blocked++
		case state.Stalled():
			stalled++
		}
	}
	return blocked, stalled
}
