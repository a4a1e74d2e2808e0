package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"aethersecure/config"
	"aethersecure/storage"

	"github.com/spf13/cobra"
)

func newEventsCommand() *cobra.Command {
	var (
		filter storage.SecurityEventFilter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded security events (failed logins, denied fetches, face mismatches)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := config.ResolveDataDir()
			if err != nil {
				return err
			}
			store, _, err := storage.Open(dataDir)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			if since > 0 {
				from := time.Now().Add(-since).UnixMilli()
				filter.FromTimestamp = &from
			}
			events, err := store.GetSecurityEvents(filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tSEVERITY\tACCOUNT\tDETAILS")
			for _, event := range events {
				account := "-"
				if event.Account != nil {
					account = *event.Account
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					time.UnixMilli(event.Timestamp).UTC().Format(time.RFC3339),
					event.EventType, event.Severity, account, event.Details)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.EventType, "type", "", "Only this event type")
	cmd.Flags().StringVar(&filter.Account, "account", "", "Only events for this username")
	cmd.Flags().StringVar(&filter.Severity, "severity", "", "Only this severity (info, warning, critical)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 100, "Maximum rows")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this")

	return cmd
}
