package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/controller"
)

type crawlFlags struct {
	concurrency int
	expand      bool
	input       string
	db          string
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl over the configured topics file",
		Long: `Loads the topics file, optionally expands each topic with extracted
keywords, crawls every topic with a bounded worker pool and persists the
cleaned page text. Interrupting the process stops the crawl cooperatively
and flushes whatever is already queued.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts := flags.apply(cmd, a.Config.Options())

			summary, err := a.Controller.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("run crawl: %w", err)
			}
			a.Logger.Info("crawl command finished", zap.Stringer("run_id", summary.RunID))
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "maximum concurrent topic workers (floor 4)")
	cmd.Flags().BoolVar(&flags.expand, "expand", false, "expand topics with extracted keywords")
	cmd.Flags().StringVar(&flags.input, "input", "", "topics file, one per line")
	cmd.Flags().StringVar(&flags.db, "db", "", "store location: SQLite file, Postgres DSN, JSONL directory or shard prefix")
	return cmd
}

// apply overrides opts with the flags the user actually set.
func (f crawlFlags) apply(cmd *cobra.Command, opts controller.Options) controller.Options {
	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency = f.concurrency
	}
	if cmd.Flags().Changed("expand") {
		opts.ExpansionEnabled = f.expand
	}
	if f.input != "" {
		opts.InputPath = f.input
	}
	if f.db != "" {
		opts.DBPath = f.db
	}
	return opts
}

func printSummary(w io.Writer, s controller.Summary) {
	status := "completed"
	if s.Cancelled {
		status = "stopped"
	}
	fmt.Fprintf(w, "run %s %s in %s\n", s.RunID, status, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  topics:            %d (completed %d, failed %d, skipped %d)\n",
		s.Topics, s.Pool.Completed, s.Pool.Failed, s.Pool.Skipped)
	fmt.Fprintf(w, "  pages fetched:     %d\n", s.PagesFetched)
	fmt.Fprintf(w, "  fetch failures:    %d\n", s.FetchFailures)
	fmt.Fprintf(w, "  documents saved:   %d\n", s.DocumentsSaved)
	fmt.Fprintf(w, "  documents dropped: %d\n", s.DocumentsDropped)
}
