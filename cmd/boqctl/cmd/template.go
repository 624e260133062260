package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

var (
	templateRates  bool
	templateOutput string
)

// templateCmd prints an empty import file
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print an empty BoQ or rate sheet file",
	Long: `Print the header row of a BoQ file, or of a bid rate sheet with --rates.

Examples:
  boqctl template > boq.csv
  boqctl template --rates -o rates.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body := core.BoQTemplate()
		if templateRates {
			body = core.RateSheetTemplate()
		}
		return withOutput(cmd, templateOutput, func(w io.Writer) error {
			_, err := io.WriteString(w, body)
			return err
		})
	},
}

func init() {
	templateCmd.Flags().BoolVar(&templateRates, "rates", false, "print a rate sheet instead of a BoQ")
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "write to file instead of stdout")
}
