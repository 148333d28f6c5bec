package cmd

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

func newStatsCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Reports the size of the stored dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if db == "" {
				db = a.Config.Options().DBPath
			}
			store, err := a.OpenStore(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					a.Logger.Warn("close store failed", zap.Error(cerr))
				}
			}()

			st, err := collectStats(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "documents:   %d\ncharacters:  %d\n", st.documents, st.characters)
			if st.documents > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "avg length:  %d\n", st.characters/st.documents)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "store location: SQLite file, Postgres DSN, JSONL directory or shard prefix")
	return cmd
}

type datasetStats struct {
	documents  int64
	characters int64
}

func collectStats(ctx context.Context, store crawler.DocumentStore) (datasetStats, error) {
	if err := store.Init(ctx); err != nil {
		return datasetStats{}, fmt.Errorf("init store: %w", err)
	}
	var st datasetStats
	err := store.ScanText(ctx, func(text string) error {
		st.documents++
		st.characters += int64(utf8.RuneCountInString(text))
		return nil
	})
	if err != nil {
		return datasetStats{}, fmt.Errorf("scan documents: %w", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		return datasetStats{}, fmt.Errorf("count documents: %w", err)
	}
	if count != st.documents {
		zap.L().Warn("document count changed during scan", zap.Int64("count", count), zap.Int64("scanned", st.documents))
	}
	return st, nil
}
