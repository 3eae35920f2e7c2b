package stats

import (
	"fmt"
	"time"
)

// Date is a calendar date without a time of day. It is comparable and usable as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns a normalized date (e.g., Jan 32 becomes Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil)
}

// DateOf returns the calendar date of t in loc. A nil loc keeps t's own location.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t, nil), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight of the date in loc (UTC when loc is nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.Time(nil).Compare(other.Time(nil))
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// WeekStart returns the Monday of the date's week.
func (d Date) WeekStart() Date {
	weekday := int(d.Time(nil).Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday -> 7
	}
	return d.AddDays(1 - weekday)
}

func (d Date) String() string {
	return d.Time(nil).Format(time.DateOnly)
}

// MarshalText renders the date as YYYY-MM-DD, which also makes it a valid JSON map key.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses YYYY-MM-DD.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of days from a to b (negative when b is before a).
func DaysBetween(a, b Date) int {
	return int(b.Time(nil).Sub(a.Time(nil)).Hours() / 24)
}

// InclusiveDays counts the days from a through b, so the same day counts as 1.
func InclusiveDays(a, b Date) int {
	return DaysBetween(a, b) + 1
}

// DateRange is an inclusive range of dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d lies within the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Len returns the number of days in the range, or 0 for an inverted range.
func (r DateRange) Len() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return InclusiveDays(r.Start, r.End)
}

// Days lists every date in the range in order.
func (r DateRange) Days() []Date {
	days := make([]Date, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// BucketStart returns the first day of the "week" (Monday) or "month" containing d. Any other bucket is a single day.
func BucketStart(d Date, bucket string) Date {
	switch bucket {
	case "month":
		return Date{Year: d.Year, Month: d.Month, Day: 1}
	case "week":
		return d.WeekStart()
	default:
		return d
	}
}

// GenerateLabel returns a label for the bucket containing d ("2024-01-05", "2024-W01" or "Jan 2024").
func GenerateLabel(d Date, bucket string) string {
	switch bucket {
	case "month":
		return d.Time(nil).Format("Jan 2006")
	case "week":
		year, week := d.Time(nil).ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default: // day
		return d.String()
	}
}
