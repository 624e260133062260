package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	compareBaseline string
	compareFormat   string
	compareOutput   string
)

// compareCmd builds the bid comparison matrix
var compareCmd = &cobra.Command{
	Use:   "compare TENDER",
	Short: "Compare the bids on a tender",
	Long: `Build the bid comparison matrix for a tender: one row per BoQ item,
one rate column per comparable bid, and each bid's variance against the
baseline.

Formats:
  csv   comparison sheet (default)
  xlsx  comparison workbook
  json  the comparison response, as served by the API

Examples:
  boqctl compare T-2024-001
  boqctl compare --baseline estimate --format xlsx -o cmp.xlsx T-2024-001`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareBaseline, "baseline", "b", "", "variance baseline (average, estimate); default from config")
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "csv", "output format (csv, xlsx, json)")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "write to file instead of stdout")
}

func runCompare(cmd *cobra.Command, args []string) error {
	policy, err := core.ParseBaselinePolicy(compareBaseline)
	if err != nil {
		return err
	}
	var format core.Format
	if compareFormat != "json" {
		if format, err = core.ParseFormat(compareFormat); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if compareFormat == "json" {
		resp := b.service.GenerateBidComparison(ctx, args[0], policy)
		err := withOutput(cmd, compareOutput, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		})
		if err != nil {
			return err
		}
		if resp.Status != "success" {
			return fmt.Errorf("%s: %s", args[0], resp.Message)
		}
		return nil
	}

	return withOutput(cmd, compareOutput, func(w io.Writer) error {
		return b.service.ExportComparison(ctx, args[0], policy, format, w)
	})
}
