package stats

import (
	"slices"

	"flowlens/internal/eventlog"
)

// DailyCount is one day of a run chart.
type DailyCount struct {
	Date  Date     `json:"date"`
	Count int      `json:"count"`
	Keys  []string `json:"keys,omitempty"`
}

// DailyWIP counts, for every day of the range, the issues in progress at the end of that day.
// An issue that starts and finishes on the same day is counted on that day.
func DailyWIP(issues []*eventlog.Issue, cfg CycleTimeConfig, dateRange DateRange) ([]DailyCount, error) {
	timings, err := resolveTimings(issues, cfg)
	if err != nil {
		return nil, err
	}

	days := dateRange.Days()
	chart := make([]DailyCount, len(days))
	for i, d := range days {
		chart[i].Date = d
		for j, timing := range timings {
			if timing.Started == nil {
				continue
			}
			start := DateOf(*timing.Started, cfg.Location)
			if start.After(d) {
				continue
			}
			open := timing.Stopped == nil || DateOf(*timing.Stopped, cfg.Location).After(d)
			sameDay := timing.Stopped != nil && start == d && DateOf(*timing.Stopped, cfg.Location) == d
			if open || sameDay {
				chart[i].Count++
				chart[i].Keys = append(chart[i].Keys, issues[j].Key())
			}
		}
	}
	return chart, nil
}

// ThroughputByDay counts the issues that stopped on each day of the range.
func ThroughputByDay(issues []*eventlog.Issue, cfg CycleTimeConfig, dateRange DateRange) ([]DailyCount, error) {
	timings, err := resolveTimings(issues, cfg)
	if err != nil {
		return nil, err
	}

	index := make(map[Date]int, dateRange.Len())
	days := dateRange.Days()
	chart := make([]DailyCount, len(days))
	for i, d := range days {
		chart[i].Date = d
		index[d] = i
	}

	for j, timing := range timings {
		if timing.Stopped == nil {
			continue
		}
		if i, ok := index[DateOf(*timing.Stopped, cfg.Location)]; ok {
			chart[i].Count++
			chart[i].Keys = append(chart[i].Keys, issues[j].Key())
		}
	}
	return chart, nil
}

// Bucket is a run chart aggregated over a calendar week or month.
type Bucket struct {
	Label string   `json:"label"`
	Start Date     `json:"start"`
	Count int      `json:"count"`
	Keys  []string `json:"keys,omitempty"`
}

// BucketCounts sums consecutive days of a run chart into "week" or "month" buckets.
// The first and last buckets may cover only part of their period.
func BucketCounts(daily []DailyCount, bucket string) []Bucket {
	var result []Bucket
	for _, d := range daily {
		start := BucketStart(d.Date, bucket)
		if n := len(result); n > 0 && result[n-1].Start == start {
			result[n-1].Count += d.Count
			result[n-1].Keys = append(result[n-1].Keys, d.Keys...)
			continue
		}
		result = append(result, Bucket{
			Label: GenerateLabel(start, bucket),
			Start: start,
			Count: d.Count,
			Keys:  slices.Clone(d.Keys),
		})
	}
	return result
}

func resolveTimings(issues []*eventlog.Issue, cfg CycleTimeConfig) ([]Timing, error) {
	timings := make([]Timing, len(issues))
	for i, issue := range issues {
		timing, err := cfg.StartedStoppedTimes(issue)
		if err != nil {
			return nil, err
		}
		timings[i] = timing
	}
	return timings, nil
}
