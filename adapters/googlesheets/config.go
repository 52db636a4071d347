package googlesheets

// Config holds the settings for the Google Sheets store. The target sheet
// (tab) is chosen per operation.
type Config struct {
	// SpreadsheetID identifies the spreadsheet document.
	SpreadsheetID string
}
