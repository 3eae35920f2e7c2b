package stats

import (
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func dateAt(days int) Date {
	return DateOf(at(days, 0), time.UTC)
}

func TestBlockedStalledByDate_ForwardFillsQuietDays(t *testing.T) {
	issue := newIssue("BD-1", day0).build(t, nil)

	rapid.Check(t, func(rt *rapid.T) {
		length := rapid.IntRange(2, 4).Draw(rt, "length")
		dateRange := DateRange{Start: dateAt(0), End: dateAt(length)}

		byDate := BlockedStalledByDate(issue, dateRange, at(0, 5), testSettings(), time.UTC)
		if len(byDate) != dateRange.Len() {
			rt.Fatalf("Expected %d days, got %d", dateRange.Len(), len(byDate))
		}
		first := byDate[dateRange.Start]
		for _, d := range dateRange.Days() {
			if !reflect.DeepEqual(byDate[d], first) {
				rt.Fatalf("Expected %s to equal the first day, got %s vs %s", d, byDate[d], first)
			}
		}
	})
}

func TestBlockedStalledByDate_BlockedMomentTaintsDay(t *testing.T) {
	issue := newIssue("BD-2", day0).
		change(at(1, 1), "Flagged", "", "Impediment").
		change(at(1, 3), "Flagged", "Impediment", "").
		build(t, nil)

	dateRange := DateRange{Start: dateAt(0), End: dateAt(3)}
	byDate := BlockedStalledByDate(issue, dateRange, at(3, 0), testSettings(), time.UTC)

	want := map[Date]State{
		dateAt(0): StateActive,
		dateAt(1): StateBlocked,
		dateAt(2): StateActive,
		dateAt(3): StateActive,
	}
	for d, state := range want {
		if got := byDate[d].State(); got != state {
			t.Errorf("%s: expected %s, got %s", d, state, got)
		}
	}
}

func TestBlockedStalledByDate_ActiveBeatsStalledWithinDay(t *testing.T) {
	issue := newIssue("BD-3", day0).
		moveTo(at(1, 0), waitingID).
		moveTo(at(1, 6), inProgressID).
		moveTo(at(2, 0), waitingID).
		build(t, nil)

	dateRange := DateRange{Start: dateAt(1), End: dateAt(4)}
	byDate := BlockedStalledByDate(issue, dateRange, at(4, 0), testSettings(), time.UTC)

	if got := byDate[dateAt(1)].State(); got != StateActive {
		t.Errorf("Expected day 1 active, got %s", got)
	}
	if got := byDate[dateAt(2)].State(); got != StateStalled {
		t.Errorf("Expected day 2 stalled, got %s", got)
	}
	// Day 3 has no entry and carries day 2.
	if got := byDate[dateAt(3)].State(); got != StateStalled {
		t.Errorf("Expected day 3 stalled by forward fill, got %s", got)
	}
	if _, ok := byDate[dateAt(0)]; ok {
		t.Error("Expected dates outside the range to be dropped")
	}
}

func TestBlockedStalledByDate_ClampsOutsideHistory(t *testing.T) {
	issue := newIssue("BD-4", at(3, 0)).
		moveTo(at(4, 0), blockedID).
		build(t, nil)

	dateRange := DateRange{Start: dateAt(0), End: dateAt(8)}
	byDate := BlockedStalledByDate(issue, dateRange, at(5, 0), testSettings(), time.UTC)

	if len(byDate) != 9 {
		t.Fatalf("Expected 9 days, got %d", len(byDate))
	}
	if got := byDate[dateAt(0)].State(); got != StateActive {
		t.Errorf("Expected days before the history to take the first entry, got %s", got)
	}
	if got := byDate[dateAt(8)].State(); got != StateBlocked {
		t.Errorf("Expected days after the history to take the last entry, got %s", got)
	}
}

func TestBlockedStalledDays(t *testing.T) {
	issue := newIssue("BD-5", day0).
		moveTo(at(1, 0), blockedID).
		moveTo(at(3, 0), waitingID).
		moveTo(at(4, 0), inProgressID).
		build(t, nil)

	dateRange := DateRange{Start: dateAt(0), End: dateAt(5)}
	blocked, stalled := BlockedStalledDays(issue, dateRange, at(5, 0), testSettings(), time.UTC)
	if blocked != 2 {
		t.Errorf("Expected 2 blocked days, got %d", blocked)
	}
	if stalled != 1 {
		t.Errorf("Expected 1 stalled day, got %d", stalled)
	}
}
