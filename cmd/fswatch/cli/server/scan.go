package server

import (
	"context"
	"fmt"

	"github.com/fiacre/fswatch/internal/agent"
	"github.com/fiacre/fswatch/pkg/ingest"
	"github.com/spf13/cobra"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan of the watch directory and exit",
		Long: `Walk the watch directory once and deliver every file whose content
has not been delivered yet. Files left pending by an earlier sink outage
are delivered again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			summary, err := agent.NewAgent(cfg).Scan(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scan %s finished in %s\n", summary.RunID, summary.Duration)
			for _, outcome := range ingest.Outcomes {
				fmt.Fprintf(out, "  %-20s %d\n", outcome, summary.Counts[outcome])
			}
			fmt.Fprintf(out, "  %-20s %d\n", "walk_errors", summary.Errors)

			if summary.Counts[ingest.Failed] > 0 {
				return fmt.Errorf("%d files failed to ingest", summary.Counts[ingest.Failed])
			}
			return nil
		},
	}

	addInitDirFlag(cmd)
	return cmd
}
