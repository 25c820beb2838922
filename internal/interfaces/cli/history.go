package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"feedqueue/internal/domain/entity"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the stored entry history",
		Long: `Without --feed, prints every feed with its number of recorded entries.
With --feed, prints that feed's entry ids and publication times, newest first.

Loading applies the retention policy but the pruned history is not written
back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLogger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLogger()

			store, err := openHistory(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			snapshot := store.Snapshot()
			if feedID == "" {
				printFeedCounts(cmd.OutOrStdout(), snapshot)
				return nil
			}

			feed, ok := snapshot[feedID]
			if !ok {
				return fmt.Errorf("no history for feed %s", feedID)
			}
			printFeedEntries(cmd.OutOrStdout(), feed)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedID, "feed", "", "show the entries of one feed")

	return cmd
}

func printFeedCounts(w io.Writer, history entity.History) {
	feedIDs := make([]string, 0, len(history))
	for id := range history {
		feedIDs = append(feedIDs, id)
	}
	sort.Strings(feedIDs)

	for _, id := range feedIDs {
		fmt.Fprintf(w, "%s\t%d\n", id, len(history[id]))
	}
}

func printFeedEntries(w io.Writer, feed entity.FeedHistory) {
	type record struct {
		id        string
		published time.Time
	}
	records := make([]record, 0, len(feed))
	for id, published := range feed {
		records = append(records, record{id: id, published: published})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].published.Equal(records[j].published) {
			return records[i].published.After(records[j].published)
		}
		return records[i].id < records[j].id
	})

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\n", r.published.UTC().Format(time.RFC3339), r.id)
	}
}
