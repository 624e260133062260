// Command boqctl imports, checks and compares bills of quantities from the
// command line.
package main

import (
	"os"

	"github.com/JonMunkholm/tenderdesk/cmd/boqctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
