package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "civilink-sync",
	Short: "Mirror Mazrica deals into a spreadsheet",
	Long: `civilink-sync keeps a spreadsheet in step with the Mazrica CRM.

Deals (with their product line items) are fetched from the Mazrica open API,
flattened into rows, and reconciled against the rows already present in the
sheet: new deals are appended, deals gone from the CRM are removed, and
everything else is left untouched.

The backing store is a Google spreadsheet (SPREADSHEET_ID) or, with
--excel-file, a local .xlsx workbook.`,
}

func main() {
	// Load .env if present, without failing when missing.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
