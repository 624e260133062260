package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	bidTender string
	bidBidder string
	bidStatus string

	ratesFormat string
	ratesOutput string
)

// bidCmd manages bids
var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Create bids and change their status",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var bidCreateCmd = &cobra.Command{
	Use:   "create ID",
	Short: "Create a bid on a tender",
	Long: `Create a bid with no rates. Import its rate sheet with "boqctl rates import".

Examples:
  boqctl bid create B-17 --tender T-2024-001 --bidder "Acme Civil Ltd"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.ParseBidStatus(bidStatus)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		bid := core.Bid{ID: args[0], TenderID: bidTender, BidderName: bidBidder, Status: status}
		if err := b.store.CreateBid(ctx, bid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created bid %s on %s (%s)\n", bid.ID, bid.TenderID, status)
		return nil
	},
}

var bidStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Change a bid's status",
	Long: `Change a bid's status: draft, submitted, under_review, awarded or
rejected. Only submitted, under_review and awarded bids are compared.

Examples:
  boqctl bid status B-17 submitted`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.ParseBidStatus(args[1])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		return b.store.SetBidStatus(ctx, args[0], status)
	},
}

// ratesCmd manages bid rate sheets
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Import and export bid rate sheets",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var ratesImportCmd = &cobra.Command{
	Use:   "import BID FILE",
	Short: "Replace a bid's rates with a rate sheet",
	Long: `Import a rate sheet (item_code, unit_rate) for a bid and recompute the
bid total. A blank unit_rate marks the item as not quoted.

Examples:
  boqctl rates import B-17 rates.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		src, closeFn, err := openInput(cmd, args[1], ratesFormat)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := b.service.ImportBidRates(ctx, args[0], src)
		if err != nil {
			printRowErrors(cmd.ErrOrStderr(), err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "bid %s: %d quoted, %d not quoted, total %s\n",
			res.BidID, res.Quoted, res.NotQuoted, res.TotalAmount.StringFixed(2))
		return nil
	},
}

var ratesExportCmd = &cobra.Command{
	Use:   "export BID",
	Short: "Export a bid's rate sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		return withOutput(cmd, ratesOutput, func(w io.Writer) error {
			return b.service.ExportBidRates(ctx, args[0], w)
		})
	},
}

func init() {
	bidCreateCmd.Flags().StringVar(&bidTender, "tender", "", "tender the bid is for")
	bidCreateCmd.Flags().StringVar(&bidBidder, "bidder", "", "bidder name")
	bidCreateCmd.Flags().StringVar(&bidStatus, "status", string(core.BidDraft), "initial status")
	_ = bidCreateCmd.MarkFlagRequired("tender")
	_ = bidCreateCmd.MarkFlagRequired("bidder")

	ratesImportCmd.Flags().StringVarP(&ratesFormat, "format", "f", "", "file format (csv, xlsx); default from the file name")
	ratesExportCmd.Flags().StringVarP(&ratesOutput, "output", "o", "", "write to file instead of stdout")

	bidCmd.AddCommand(bidCreateCmd)
	bidCmd.AddCommand(bidStatusCmd)
	ratesCmd.AddCommand(ratesImportCmd)
	ratesCmd.AddCommand(ratesExportCmd)
}
