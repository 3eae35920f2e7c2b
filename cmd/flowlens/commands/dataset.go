package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/config"
	"flowlens/internal/eventlog"
	"flowlens/internal/report"
	"flowlens/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	issuesDir    string
	boardPath    string
	statusesPath string
	settingsPath string
	fromDate     string
	toDate       string
	fields       []string
	percentiles  []int
)

func addDatasetFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&issuesDir, "issues", "", "directory of issue JSON files (default <data>/issues)")
	flags.StringVar(&boardPath, "board", "", "board configuration JSON (default <data>/board.json)")
	flags.StringVar(&statusesPath, "statuses", "", "status list JSON (default <data>/statuses.json)")
	flags.StringVar(&settingsPath, "settings", "", "project settings YAML (default $FLOWLENS_SETTINGS or <data>/settings.yaml)")
	flags.StringVar(&fromDate, "from", "", "first day of the report range, YYYY-MM-DD (default 30 days before --to)")
	flags.StringVar(&toDate, "to", "", "last day of the report range, YYYY-MM-DD (default today)")
	flags.StringSliceVar(&fields, "fields", nil, "issue fields to include in the report")
	flags.IntSliceVar(&percentiles, "percentile", nil, "aging percentiles (default 50,85)")
}

// dataset is everything a command needs after loading the input files.
type dataset struct {
	store    *eventlog.IssueStore
	analyzer *report.Analyzer
	opts     report.Options
}

func loadDataset(ctx context.Context) (*dataset, error) {
	// 1. Settings first, they carry the timezone
	settings, err := config.LoadSettings(orDefault(settingsPath, cfg.SettingsPath, dataFile("settings.yaml")))
	if err != nil {
		return nil, err
	}

	// 2. Board and statuses; both are optional
	b, err := board.Load(orDefault(boardPath, dataFile("board.json")))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Msg("No board configuration found, column based rules and aging are unavailable")
		b = nil
	} else if err != nil {
		return nil, err
	}

	statuses, err := board.LoadStatuses(orDefault(statusesPath, dataFile("statuses.json")))
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Msg("No status list found, status categories will be guessed from names")
		statuses = nil
	} else if err != nil {
		return nil, err
	}

	// 3. Issues
	store, err := eventlog.LoadIssues(ctx, orDefault(issuesDir, dataFile("issues")), b, cfg.Workers)
	if err != nil {
		return nil, err
	}
	store.DiscardChangesBeforeStatus(settings.DiscardBeforeStatuses)

	// 4. Range and analyzer
	today := cfg.TodayIn(settings.Location)
	rng, err := reportRange(today)
	if err != nil {
		return nil, err
	}

	analyzer, err := report.NewAnalyzer(store.TopLevel(), b, statuses, settings, today)
	if err != nil {
		return nil, err
	}

	return &dataset{
		store:    store,
		analyzer: analyzer,
		opts: report.Options{
			Range:       rng,
			EndTime:     endTime(today, settings.Location, time.Now()),
			Fields:      fields,
			Percentiles: report.SortedPercentiles(percentiles),
			Workers:     cfg.Workers,
		},
	}, nil
}

func reportRange(today stats.Date) (stats.DateRange, error) {
	rng := stats.DateRange{End: today}
	var err error
	if toDate != "" {
		if rng.End, err = stats.ParseDate(toDate); err != nil {
			return stats.DateRange{}, fmt.Errorf("--to: %w", err)
		}
	}
	rng.Start = rng.End.AddDays(-29)
	if fromDate != "" {
		if rng.Start, err = stats.ParseDate(fromDate); err != nil {
			return stats.DateRange{}, fmt.Errorf("--from: %w", err)
		}
	}
	if rng.Len() == 0 {
		return stats.DateRange{}, fmt.Errorf("--from %s is after --to %s", rng.Start, rng.End)
	}
	return rng, nil
}

// endTime is now, unless today is pinned to an earlier date, in which case it is the end of that day.
func endTime(today stats.Date, loc *time.Location, now time.Time) time.Time {
	end := today.AddDays(1).Time(loc).Add(-time.Nanosecond)
	if now.Before(end) {
		return now
	}
	return end
}

func dataFile(name string) string {
	return filepath.Join(cfg.DataPath, name)
}

func orDefault(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
