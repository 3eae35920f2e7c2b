package commands

import (
	"fmt"
	"path/filepath"

	"flowlens/internal/eventlog"

	"github.com/spf13/cobra"
)

var timelineOut string

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Write the normalized change timeline of every issue as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		path := timelineOut
		if path == "" {
			if err := cfg.EnsureOutputDir(); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path = filepath.Join(cfg.OutputDir, "timeline.jsonl")
		}
		if err := ds.store.SaveTimeline(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d issues, latest change %s)\n",
			path, ds.store.Count(), latestChange(ds.store))
		return nil
	},
}

func latestChange(store *eventlog.IssueStore) string {
	latest := store.LatestChange()
	if latest.IsZero() {
		return "none"
	}
	return latest.Format("2006-01-02 15:04")
}

func init() {
	timelineCmd.Flags().StringVarP(&timelineOut, "out", "o", "", "timeline file (default <output>/timeline.jsonl)")
}
