package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	sheetsync "github.com/toshionoda/mazrica-civilink"
	"github.com/toshionoda/mazrica-civilink/adapters/excel"
	"github.com/toshionoda/mazrica-civilink/adapters/googlesheets"
	"github.com/toshionoda/mazrica-civilink/mazrica"
)

var (
	flagSheet         string
	flagIDColumn      int
	flagExcelFile     string
	flagDealType      int64
	flagProductFilter string
	flagPhaseFilter   []string
	flagAddr          string
	flagNoClear       bool
	flagURL           string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSheet, "sheet", "", "target sheet name (default from SHEET_NAME)")
	rootCmd.PersistentFlags().IntVar(&flagIDColumn, "id-column", 0, "1-based identifier column (default from ID_COLUMN)")
	rootCmd.PersistentFlags().StringVar(&flagExcelFile, "excel-file", "", "use a local .xlsx workbook instead of Google Sheets")

	for _, cmd := range []*cobra.Command{syncCmd, writeCmd} {
		cmd.Flags().Int64Var(&flagDealType, "deal-type", 0, "deal type ID to fetch (default from DEAL_TYPE_ID, 0 = all)")
		cmd.Flags().StringVar(&flagProductFilter, "product-filter", "", "product name substring filter (default from FILTER_PRODUCT_NAME)")
		cmd.Flags().StringSliceVar(&flagPhaseFilter, "phase-filter", nil, "phase names to keep (default from FILTER_PHASE_NAME, comma-separated)")
	}
	writeCmd.Flags().BoolVar(&flagNoClear, "no-clear", false, "append to existing content instead of clearing first")

	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")

	pingCmd.Flags().StringVar(&flagURL, "url", "", "webhook endpoint to ping (default from WEBHOOK_URL)")

	rootCmd.AddCommand(syncCmd, writeCmd, idsCmd, clearCmd, serveCmd, pingCmd)
}

// loadConfig layers per-flag overrides over environment defaults over the
// built-in defaults. The result is passed by value wherever it is needed;
// nothing reads the environment after startup.
func loadConfig() sheetsync.Config {
	cfg := sheetsync.DefaultConfig()
	if v := os.Getenv("SHEET_NAME"); v != "" {
		cfg.SheetName = v
	}
	if v := os.Getenv("ID_COLUMN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IDColumn = n
		}
	}
	cfg.SecretKey = os.Getenv("SECRET_KEY")

	if flagSheet != "" {
		cfg.SheetName = flagSheet
	}
	if flagIDColumn > 0 {
		cfg.IDColumn = flagIDColumn
	}
	return cfg
}

// newStore picks the backend: a local workbook when --excel-file or
// EXCEL_FILE is set, Google Sheets otherwise.
func newStore(ctx context.Context) (sheetsync.Store, error) {
	path := flagExcelFile
	if path == "" {
		path = os.Getenv("EXCEL_FILE")
	}
	if path != "" {
		return excel.New(&excel.Config{FilePath: path})
	}

	spreadsheetID := os.Getenv("SPREADSHEET_ID")
	if spreadsheetID == "" {
		return nil, fmt.Errorf("SPREADSHEET_ID not set")
	}

	config := googlesheets.Config{SpreadsheetID: spreadsheetID}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credsJSON != "" {
		return googlesheets.NewWithJSONKeyData(ctx, config, []byte(credsJSON))
	}
	return googlesheets.NewWithDefaultCredentials(ctx, config)
}

func loadFilter() sheetsync.Filter {
	f := sheetsync.Filter{
		ProductName: os.Getenv("FILTER_PRODUCT_NAME"),
	}
	if v := os.Getenv("FILTER_PHASE_NAME"); v != "" {
		for _, phase := range strings.Split(v, ",") {
			if phase = strings.TrimSpace(phase); phase != "" {
				f.PhaseNames = append(f.PhaseNames, phase)
			}
		}
	}
	if flagProductFilter != "" {
		f.ProductName = flagProductFilter
	}
	if len(flagPhaseFilter) > 0 {
		f.PhaseNames = flagPhaseFilter
	}
	return f
}

func loadDealType() int64 {
	if flagDealType > 0 {
		return flagDealType
	}
	if v := os.Getenv("DEAL_TYPE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one differential sync cycle",
	Long: `Fetch deals from Mazrica, flatten them, and reconcile the sheet:
new deals are appended, deals no longer upstream are removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := slog.Default()

		apiKey := os.Getenv("MAZRICA_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: MAZRICA_API_KEY not set")
			os.Exit(1)
		}

		client, err := mazrica.New(apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Mazrica client: %v\n", err)
			os.Exit(1)
		}

		store, err := newStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
			os.Exit(1)
		}

		syncer := sheetsync.NewSyncer(client, store, loadConfig(), loadFilter(), logger)
		stats, err := syncer.Run(ctx, loadDealType())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Sync complete\n")
		fmt.Printf("   Deals fetched:  %d\n", stats.TotalDeals)
		fmt.Printf("   After filter:   %d\n", stats.FilteredDeals)
		fmt.Printf("   Existing IDs:   %d\n", stats.ExistingIDs)
		fmt.Printf("   Rows added:     %d\n", stats.NewRows)
		fmt.Printf("   Rows removed:   %d\n", stats.DeletedRows)
		fmt.Printf("   Deals skipped:  %d\n", stats.SkippedDeals)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Rewrite the sheet from a full CRM fetch",
	Long: `Fetch deals from Mazrica, flatten them, and replace the sheet contents
with the result. Unlike sync, this overwrites everything; use --no-clear to
append instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		apiKey := os.Getenv("MAZRICA_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: MAZRICA_API_KEY not set")
			os.Exit(1)
		}

		client, err := mazrica.New(apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Mazrica client: %v\n", err)
			os.Exit(1)
		}

		deals, err := client.FetchDealsWithProducts(ctx, loadDealType())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching deals: %v\n", err)
			os.Exit(1)
		}
		deals = sheetsync.ApplyFilter(deals, loadFilter())

		var rows [][]interface{}
		for _, d := range deals {
			rows = append(rows, sheetsync.Rows(sheetsync.DealRows(d))...)
		}

		store, err := newStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
			os.Exit(1)
		}

		n, err := store.Replace(ctx, cfg.SheetName, sheetsync.Headers, rows, !flagNoClear)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing sheet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d rows written to %q\n", n, cfg.SheetName)
	},
}

var idsCmd = &cobra.Command{
	Use:   "ids",
	Short: "List the identifiers currently in the sheet",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		store, err := newStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
			os.Exit(1)
		}

		ids, err := store.ExistingIDs(ctx, cfg.SheetName, cfg.IDColumn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading ids: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%d ids in sheet %q\n", len(ids), cfg.SheetName)
		for _, id := range ids {
			fmt.Printf("  %v\n", id)
		}
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all content and formatting from the sheet",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		store, err := newStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
			os.Exit(1)
		}

		if err := store.Clear(ctx, cfg.SheetName); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing sheet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sheet %q cleared\n", cfg.SheetName)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook dispatch endpoint",
	Long: `Expose the write/sync/clear/get_existing_ids/ping actions over HTTP.
Every outcome is returned as a JSON envelope with HTTP 200; set SECRET_KEY
to require a shared secret on each request.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := slog.Default()

		store, err := newStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
			os.Exit(1)
		}

		dispatcher := sheetsync.NewDispatcher(store, loadConfig(), logger)
		logger.Info("listening", "addr", flagAddr)
		if err := http.ListenAndServe(flagAddr, sheetsync.NewHTTPHandler(dispatcher)); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a running webhook endpoint answers",
	Run: func(cmd *cobra.Command, args []string) {
		url := flagURL
		if url == "" {
			url = os.Getenv("WEBHOOK_URL")
		}
		if url == "" {
			fmt.Fprintln(os.Stderr, "Error: no endpoint; pass --url or set WEBHOOK_URL")
			os.Exit(1)
		}

		payload, _ := json.Marshal(map[string]string{
			"action":     "ping",
			"secret_key": os.Getenv("SECRET_KEY"),
		})
		resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reaching endpoint: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result sheetsync.Response
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding response: %v\n", err)
			os.Exit(1)
		}
		if !result.Success {
			fmt.Fprintf(os.Stderr, "Endpoint reported failure: %s\n", result.Message)
			os.Exit(1)
		}
		fmt.Printf("%s (%s)\n", result.Message, result.Timestamp)
	},
}
