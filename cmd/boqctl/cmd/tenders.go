package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	tendersStatus string
	tenderTitle   string
	tenderStatus  string
)

// tendersCmd lists tenders
var tendersCmd = &cobra.Command{
	Use:   "tenders",
	Short: "List tenders",
	Long: `List tenders, optionally filtered by status.

Examples:
  boqctl tenders
  boqctl tenders --status open,evaluation`,
	Args: cobra.NoArgs,
	RunE: runTenders,
}

// tenderCmd manages a single tender
var tenderCmd = &cobra.Command{
	Use:   "tender",
	Short: "Create tenders and change their status",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var tenderCreateCmd = &cobra.Command{
	Use:   "create ID",
	Short: "Create a tender",
	Long: `Create a tender with an empty BoQ.

Examples:
  boqctl tender create T-2024-001 --title "Road resurfacing, phase 2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.ParseTenderStatus(tenderStatus)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.CreateTender(ctx, core.Tender{ID: args[0], Title: tenderTitle, Status: status}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created tender %s (%s)\n", args[0], status)
		return nil
	},
}

var tenderStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Change a tender's status",
	Long: `Change a tender's status: draft, open, evaluation, awarded or cancelled.
Awarded and cancelled tenders no longer accept BoQ imports.

Examples:
  boqctl tender status T-2024-001 evaluation`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.ParseTenderStatus(args[1])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		return b.store.SetTenderStatus(ctx, args[0], status)
	},
}

func init() {
	tendersCmd.Flags().StringVarP(&tendersStatus, "status", "s", "", "comma-separated statuses to include")
	tenderCreateCmd.Flags().StringVarP(&tenderTitle, "title", "t", "", "tender title")
	tenderCreateCmd.Flags().StringVar(&tenderStatus, "status", string(core.TenderDraft), "initial status")

	tenderCmd.AddCommand(tenderCreateCmd)
	tenderCmd.AddCommand(tenderStatusCmd)
}

func runTenders(cmd *cobra.Command, args []string) error {
	var statuses []core.TenderStatus
	for _, s := range strings.Split(tendersStatus, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		st, err := core.ParseTenderStatus(s)
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	tenders, err := b.service.ListTenders(ctx, statuses...)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE")
	for _, t := range tenders {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Status, t.Title)
	}
	return tw.Flush()
}
