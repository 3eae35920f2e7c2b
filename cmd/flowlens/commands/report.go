package commands

import (
	"fmt"
	"path/filepath"

	"flowlens/internal/report"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	reportOut  string
	reportOpen bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Derive every flow metric and write a JSON report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		rep, err := ds.analyzer.Build(cmd.Context(), ds.store.TopLevel(), ds.opts)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		for _, w := range rep.Warnings {
			log.Warn().Msg(w)
		}

		path := reportOut
		if path == "" {
			if err := cfg.EnsureOutputDir(); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("report-%s.json", ds.opts.Range.End))
		}
		if err := report.Write(path, rep); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)

		if reportOpen {
			if err := browser.OpenFile(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to open report")
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "report file (default <output>/report-<to>.json)")
	reportCmd.Flags().BoolVar(&reportOpen, "open", false, "open the report when done")
}
