package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	boqFormat    string
	exportFormat string
	exportOutput string
)

// importCmd replaces a tender's BoQ
var importCmd = &cobra.Command{
	Use:   "import TENDER FILE",
	Short: "Replace a tender's BoQ with a file",
	Long: `Import a BoQ file for a tender. The file is validated in full first;
any error rejects the whole file and the tender is left unchanged.
Items missing from the file are removed together with their bid rates.

Examples:
  boqctl import T-2024-001 boq.csv
  boqctl import --format xlsx T-2024-001 - < boq.xlsx`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

// previewCmd shows what an import would change
var previewCmd = &cobra.Command{
	Use:   "preview TENDER FILE",
	Short: "Show what importing a BoQ file would change",
	Long: `Analyze a BoQ file against the tender's current items without
changing anything.

Examples:
  boqctl preview T-2024-001 boq.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runPreview,
}

// exportCmd writes a tender's BoQ
var exportCmd = &cobra.Command{
	Use:   "export TENDER",
	Short: "Export a tender's BoQ",
	Long: `Write the tender's line items in import order. The output imports back
unchanged.

Examples:
  boqctl export T-2024-001 > boq.csv
  boqctl export --format xlsx -o boq.xlsx T-2024-001`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	importCmd.Flags().StringVarP(&boqFormat, "format", "f", "", "file format (csv, xlsx); default from the file name")
	previewCmd.Flags().StringVarP(&boqFormat, "format", "f", "", "file format (csv, xlsx); default from the file name")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv, xlsx)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	src, closeFn, err := openInput(cmd, args[1], boqFormat)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := b.service.ImportBoQ(ctx, args[0], src)
	if err != nil {
		printRowErrors(cmd.ErrOrStderr(), err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d items into %s (%d removed, %d orphaned rates dropped)\n",
		res.Imported, res.TenderID, res.Removed, res.OrphanedRates)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	src, closeFn, err := openInput(cmd, args[1], boqFormat)
	if err != nil {
		return err
	}
	defer closeFn()

	preview, err := b.service.PreviewBoQ(ctx, args[0], src)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(preview)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := core.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	return withOutput(cmd, exportOutput, func(w io.Writer) error {
		return b.service.ExportBoQ(ctx, args[0], format, w)
	})
}

// printRowErrors lists the row errors behind a rejected file.
func printRowErrors(w io.Writer, err error) {
	if !errors.Is(err, core.ErrValidation) {
		return
	}
	for _, re := range core.RowErrors(err) {
		fmt.Fprintf(w, "  %s\n", re.Error())
	}
}
