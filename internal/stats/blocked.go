package stats

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"flowlens/internal/eventlog"

	"github.com/rs/zerolog/log"
)

// BlockedStalledSettings configures what counts as blocked or stalled.
type BlockedStalledSettings struct {
	BlockedStatuses      []string
	StalledStatuses      []string
	BlockedLinkText      []string
	StalledThresholdDays int
	FlaggedMeansBlocked  bool
}

// State is the aggregate state of an issue at one point in time.
type State string

const (
	StateActive  State = "active"
	StateBlocked State = "blocked"
	StateStalled State = "stalled"
)

// BlockedStalledChange marks the moment an issue entered a state. Blocked reasons take precedence,
// so an entry that is both blocked and stalled reports as blocked.
type BlockedStalledChange struct {
	Time time.Time `json:"time"`
	// Flag is the value of the Flagged field ("Impediment") while set.
	Flag string `json:"flag,omitempty"`
	// Status is set when the current status is one of the blocked or stalled statuses.
	Status            string   `json:"status,omitempty"`
	StatusIsBlocking  bool     `json:"statusIsBlocking,omitempty"`
	BlockingIssueKeys []string `json:"blockingIssueKeys,omitempty"`
	// StalledDays is non-zero for entries inferred from inactivity.
	StalledDays int `json:"stalledDays,omitempty"`
}

// BlockedByStatus reports whether the status is a blocked status.
func (c BlockedStalledChange) BlockedByStatus() bool {
	return c.Status != "" && c.StatusIsBlocking
}

// StalledByStatus reports whether the status is a stalled status.
func (c BlockedStalledChange) StalledByStatus() bool {
	return c.Status != "" && !c.StatusIsBlocking
}

// StalledByInactivity reports whether the entry was inferred from a gap in activity.
func (c BlockedStalledChange) StalledByInactivity() bool {
	return c.StalledDays > 0
}

// Blocked reports whether any blocking reason holds.
func (c BlockedStalledChange) Blocked() bool {
	return c.Flag != "" || c.BlockedByStatus() || len(c.BlockingIssueKeys) > 0
}

// Stalled reports whether the entry is stalled and not blocked.
func (c BlockedStalledChange) Stalled() bool {
	return !c.Blocked() && (c.StalledByInactivity() || c.StalledByStatus())
}

// Active reports whether the entry is neither blocked nor stalled.
func (c BlockedStalledChange) Active() bool {
	return !c.Blocked() && !c.Stalled()
}

// State returns the single state this entry reports.
func (c BlockedStalledChange) State() State {
	switch {
	case c.Blocked():
		return StateBlocked
	case c.Stalled():
		return StateStalled
	default:
		return StateActive
	}
}

// Reasons lists the human readable reasons for the state, blocked reasons first.
func (c BlockedStalledChange) Reasons() []string {
	var reasons []string
	if c.Blocked() {
		if c.Flag != "" {
			reasons = append(reasons, "Blocked by flag")
		}
		if c.BlockedByStatus() {
			reasons = append(reasons, fmt.Sprintf("Blocked by status: %s", c.Status))
		}
		if len(c.BlockingIssueKeys) > 0 {
			reasons = append(reasons, fmt.Sprintf("Blocked by issues: %s", strings.Join(c.BlockingIssueKeys, ", ")))
		}
		return reasons
	}
	if c.StalledByStatus() {
		reasons = append(reasons, fmt.Sprintf("Stalled by status: %s", c.Status))
	}
	if c.StalledByInactivity() {
		reasons = append(reasons, fmt.Sprintf("Stalled by inactivity: %d days", c.StalledDays))
	}
	return reasons
}

func (c BlockedStalledChange) String() string {
	return fmt.Sprintf("%s %s %v", c.Time.Format(time.RFC3339), c.State(), c.Reasons())
}

// linkPattern matches Jira link text such as "This issue is blocked by PROJ-12".
var linkPattern = regexp.MustCompile(`(?i)^This issue (.+) (\S+-\d+)$`)

// ParseLinkText splits link change text into the relationship phrase and the other issue key.
func ParseLinkText(text string) (phrase, key string, ok bool) {
	m := linkPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

const day = 24 * time.Hour

// BlockedStalledChanges derives the ordered blocked/stalled/active entries of an issue up to endTime.
// The last entry is always at endTime and reports the state as of then.
func BlockedStalledChanges(issue *eventlog.Issue, endTime time.Time, settings BlockedStalledSettings) []BlockedStalledChange {
	threshold := time.Duration(settings.StalledThresholdDays) * day
	subtaskTimes := issue.SubtaskActivityTimes()

	var (
		result             []BlockedStalledChange
		blockingIssueKeys  []string
		flag               string
		blockingStatus     string
		statusIsBlocking   bool
		previousWasActive  bool
		previousChangeTime = issue.Created()
	)

	changes := make([]eventlog.ChangeEvent, 0, len(issue.Changes())+1)
	for _, c := range issue.Changes() {
		if c.Time.After(endTime) {
			break
		}
		changes = append(changes, c)
	}
	// The trailing entry forces one last state at endTime.
	changes = append(changes, eventlog.ChangeEvent{Time: endTime, Artificial: true})
	mockIndex := len(changes) - 1

	for i, change := range changes {
		lastBlocked := len(result) > 0 && result[len(result)-1].Blocked()
		if threshold > 0 && !lastBlocked {
			stalls := inactivityStalls(previousChangeTime, change.Time, threshold, subtaskTimes)
			if len(stalls) > 0 {
				result = append(result, stalls...)
				previousWasActive = false
			}
		}

		switch {
		case i == mockIndex:
		case change.IsFlagged():
			if settings.FlaggedMeansBlocked {
				flag = change.Value
			}
		case change.IsStatus():
			blockingStatus = ""
			statusIsBlocking = change.CurrentStatusMatches(settings.BlockedStatuses...)
			if statusIsBlocking || change.CurrentStatusMatches(settings.StalledStatuses...) {
				blockingStatus = change.Value
			}
		case change.IsLink():
			text := change.Value
			if text == "" {
				text = change.OldValue
			}
			phrase, key, ok := ParseLinkText(text)
			if !ok {
				log.Warn().Str("issue", issue.Key()).Str("text", text).Msg("Unable to parse link text")
				continue
			}
			if !containsFold(settings.BlockedLinkText, phrase) {
				break
			}
			if change.Value != "" {
				if !slices.Contains(blockingIssueKeys, key) {
					blockingIssueKeys = append(blockingIssueKeys, key)
				}
			} else {
				blockingIssueKeys = slices.DeleteFunc(blockingIssueKeys, func(k string) bool { return k == key })
			}
		}

		entry := BlockedStalledChange{
			Time:              change.Time,
			Flag:              flag,
			Status:            blockingStatus,
			StatusIsBlocking:  blockingStatus != "" && statusIsBlocking,
			BlockingIssueKeys: slices.Clone(blockingIssueKeys),
		}
		if len(entry.BlockingIssueKeys) == 0 {
			entry.BlockingIssueKeys = nil
		}

		// Consecutive active entries carry no information, except the one at endTime.
		if !entry.Active() || !previousWasActive || i == mockIndex {
			result = append(result, entry)
		}
		previousWasActive = entry.Active()
		previousChangeTime = change.Time
	}

	// The entry at endTime looks like fresh activity, so it inherits the stall count of the entry before it.
	if n := len(result); n >= 2 {
		result[n-1].StalledDays = result[n-2].StalledDays
	}
	return result
}

// inactivityStalls splits the gap between two changes at every subtask change inside it and
// returns a stalled entry for each piece that still reaches the threshold.
func inactivityStalls(from, to time.Time, threshold time.Duration, subtaskTimes []time.Time) []BlockedStalledChange {
	if to.Sub(from) < threshold {
		return nil
	}

	// subtaskTimes is sorted, so walking it in order splits the gap left to right.
	boundaries := []time.Time{from}
	for _, t := range subtaskTimes {
		if t.Before(from) || t.After(to) {
			continue
		}
		boundaries = append(boundaries, t)
	}
	boundaries = append(boundaries, to)

	var stalls []BlockedStalledChange
	for i := 1; i < len(boundaries); i++ {
		gap := boundaries[i].Sub(boundaries[i-1])
		if gap < threshold {
			continue
		}
		stalls = append(stalls, BlockedStalledChange{
			Time:        boundaries[i-1].Add(time.Hour),
			StalledDays: int(gap / day),
		})
	}
	return stalls
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) })
}
