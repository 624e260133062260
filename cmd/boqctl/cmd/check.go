package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	checkFormat  string
	checkJSON    bool
	checkMaxSize int64
)

// checkCmd validates a BoQ file without a database
var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a BoQ file offline",
	Long: `Decode and validate a BoQ file exactly as an import would, without
touching any tender. Exits non-zero when the file would be rejected.

FILE may be "-" to read standard input; pass --format then.

Examples:
  boqctl check boq.csv
  boqctl check --json boq.xlsx
  cat boq.csv | boqctl check --format csv -`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "", "file format (csv, xlsx); default from the file name")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the full analysis as JSON")
	checkCmd.Flags().Int64Var(&checkMaxSize, "max-size", core.DefaultMaxFileSize, "maximum file size in bytes")
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, closeFn, err := openInput(cmd, args[0], checkFormat)
	if err != nil {
		return err
	}
	defer closeFn()

	preview, err := core.AnalyzeBoQ(src, nil, checkMaxSize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(preview); err != nil {
			return err
		}
	} else {
		printCheck(out, args[0], preview)
	}

	if !preview.Valid {
		return fmt.Errorf("%s would be rejected", args[0])
	}
	return nil
}

func printCheck(w io.Writer, name string, p *core.PreviewResponse) {
	fmt.Fprintf(w, "%s: %d rows, %d items, %d rows with errors\n",
		name, p.Summary.TotalRows, p.Summary.NewItems, p.Summary.ErrorRows)
	for _, e := range p.ErrorSamples {
		label := fmt.Sprintf("row %d", e.Row)
		if e.ItemCode != "" {
			label += " (" + e.ItemCode + ")"
		}
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(e.Errors, "; "))
	}
	if more := p.Summary.ErrorRows - len(p.ErrorSamples); more > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", more)
	}
	for _, d := range p.DuplicateSamples {
		fmt.Fprintf(w, "  duplicate %s on rows %v\n", d.ItemCode, d.Rows)
	}
}
