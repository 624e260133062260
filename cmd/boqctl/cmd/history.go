package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/store/postgres"
)

var (
	historyLimit   int
	purgeOlderThan time.Duration
)

// historyCmd lists recent imports for a tender
var historyCmd = &cobra.Command{
	Use:   "history TENDER",
	Short: "Show recent BoQ and rate imports for a tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		records, err := b.service.ListImports(ctx, args[0], historyLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tKIND\tBID\tFILE\tSTATUS\tROWS\tMESSAGE")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.BidID, r.FileName, r.Status, r.Rows, r.Message)
		}
		return tw.Flush()
	},
}

// purgeCmd deletes old import history
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete import history older than the retention period",
	Long: `Delete import history records older than --older-than, or
HISTORY_RETENTION_DAYS when the flag is not given.

Examples:
  boqctl purge
  boqctl purge --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		retention := b.cfg.History.Retention()
		if cmd.Flags().Changed("older-than") {
			retention = purgeOlderThan
		}
		if retention <= 0 {
			return fmt.Errorf("retention must be positive, got %s", retention)
		}
		n, err := b.service.PurgeImports(ctx, retention)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d import records\n", n)
		return nil
	},
}

// migrateCmd creates the database schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := postgres.Migrate(ctx, b.pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", core.DefaultHistoryLimit, "maximum records to show")
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "retention period (e.g. 720h)")
}
