// Package googlesheets implements the sheetsync.Store contract on the
// Google Sheets API v4.
package googlesheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	sheetsync "github.com/toshionoda/mazrica-civilink"
)

// Store is a sheetsync.Store backed by one Google spreadsheet.
type Store struct {
	service       *sheets.Service
	spreadsheetID string
}

// New creates a Google Sheets store with the provided client options. See
// auth.go for constructors that wire up service-account credentials.
func New(ctx context.Context, config Config, opts ...option.ClientOption) (*Store, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Store{
		service:       service,
		spreadsheetID: config.SpreadsheetID,
	}, nil
}

// sheetID resolves a sheet title to its numeric ID.
func (s *Store) sheetID(ctx context.Context, sheet string) (int64, bool, error) {
	resp, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	for _, sh := range resp.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheet {
			return sh.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

// ensureSheet resolves the sheet, creating it when absent, and reports
// whether it was created.
func (s *Store) ensureSheet(ctx context.Context, sheet string) (int64, bool, error) {
	id, exists, err := s.sheetID(ctx, sheet)
	if err != nil {
		return 0, false, err
	}
	if exists {
		return id, false, nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheet},
			},
		}},
	}
	resp, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sheet: %w", err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, false, fmt.Errorf("unexpected addSheet reply")
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, true, nil
}

// quoteSheet wraps a sheet title in single quotes for A1 notation. Unquoted
// titles containing spaces, or titles that parse as cell references, are
// rejected by the API. Embedded quotes are doubled.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// readIDColumn fetches the identifier column for the whole sheet, header
// included, in one range read. The identifier column defines the data
// extent: every body row carries an ID, so its length is the last row.
func (s *Store) readIDColumn(ctx context.Context, sheet string, idColumn int) ([][]interface{}, error) {
	col := columnName(idColumn)
	readRange := fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), col, col)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read identifier column: %w", err)
	}
	return resp.Values, nil
}

// ExistingIDs returns the ordered non-empty identifier cells of all body
// rows, in the type the API returned them. A missing sheet yields an empty
// list and no error: it signals "first run, everything is new".
func (s *Store) ExistingIDs(ctx context.Context, sheet string, idColumn int) ([]interface{}, error) {
	_, exists, err := s.sheetID(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []interface{}{}, nil
	}

	values, err := s.readIDColumn(ctx, sheet, idColumn)
	if err != nil {
		return nil, err
	}

	ids := []interface{}{}
	for i := 1; i < len(values); i++ {
		row := values[i]
		if len(row) == 0 {
			continue
		}
		if sheetsync.NormalizeID(row[0]) != "" {
			ids = append(ids, row[0])
		}
	}
	return ids, nil
}

// Apply performs the delta update: one batched read of the identifier
// column, one batched deletion of matching rows from the bottom up, one
// block write of the new rows after the surviving last row.
func (s *Store) Apply(ctx context.Context, sheet string, headers []string, diff sheetsync.Diff, idColumn int) (sheetsync.ApplyResult, error) {
	var result sheetsync.ApplyResult

	sheetID, created, err := s.ensureSheet(ctx, sheet)
	if err != nil {
		return result, err
	}
	if created && len(headers) > 0 {
		if err := s.writeHeaderRow(ctx, sheet, sheetID, headers); err != nil {
			return result, err
		}
	}

	values, err := s.readIDColumn(ctx, sheet, idColumn)
	if err != nil {
		return result, err
	}

	// Deletion pass: build DeleteDimension requests from the highest row
	// down. The API applies the requests of one batchUpdate in order, so
	// reverse ordering keeps every pending index valid.
	deleteSet := diff.DeleteSet()
	if len(deleteSet) > 0 {
		var requests []*sheets.Request
		for i := len(values) - 1; i >= 1; i-- {
			row := values[i]
			if len(row) == 0 {
				continue
			}
			if _, ok := deleteSet[sheetsync.NormalizeID(row[0])]; !ok {
				continue
			}
			requests = append(requests, &sheets.Request{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: int64(i),
						EndIndex:   int64(i + 1),
					},
				},
			})
		}
		if len(requests) > 0 {
			req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
			if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
				return result, fmt.Errorf("failed to delete rows: %w", err)
			}
			result.Deleted = len(requests)
		}
	}

	// Addition pass: one contiguous block write after the last row.
	if len(diff.NewRows) > 0 {
		lastRow := len(values) - result.Deleted
		writeRange := fmt.Sprintf("%s!A%d", quoteSheet(sheet), lastRow+1)
		vr := &sheets.ValueRange{Values: diff.NewRows}
		if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do(); err != nil {
			return result, fmt.Errorf("failed to append rows: %w", err)
		}
		result.Added = len(diff.NewRows)

		width := len(headers)
		if width == 0 {
			width = len(diff.NewRows[0])
		}
		if err := s.autoResize(ctx, sheetID, width); err != nil {
			return result, err
		}
	}

	return result, nil
}

// Replace overwrites the sheet with header plus rows in a single range
// write sized to the data extent.
func (s *Store) Replace(ctx context.Context, sheet string, headers []string, rows [][]interface{}, clearBefore bool) (int, error) {
	sheetID, created, err := s.ensureSheet(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if !created && clearBefore {
		if err := s.clearSheet(ctx, sheetID); err != nil {
			return 0, err
		}
	}

	values := make([][]interface{}, 0, len(rows)+1)
	width := 0
	if len(headers) > 0 {
		header := make([]interface{}, len(headers))
		for i, h := range headers {
			header[i] = h
		}
		values = append(values, header)
		width = len(headers)
	}
	for _, row := range rows {
		values = append(values, row)
		if len(row) > width {
			width = len(row)
		}
	}

	if len(values) > 0 {
		writeRange := fmt.Sprintf("%s!A1", quoteSheet(sheet))
		vr := &sheets.ValueRange{Values: values}
		if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do(); err != nil {
			return 0, fmt.Errorf("failed to write data: %w", err)
		}
	}

	if len(headers) > 0 {
		if err := s.formatHeader(ctx, sheetID); err != nil {
			return 0, err
		}
	}
	if width > 0 {
		if err := s.autoResize(ctx, sheetID, width); err != nil {
			return 0, err
		}
	}

	return len(rows), nil
}

// Clear removes all content and formatting from an existing sheet.
func (s *Store) Clear(ctx context.Context, sheet string) error {
	sheetID, exists, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", sheetsync.ErrSheetNotFound, sheet)
	}
	return s.clearSheet(ctx, sheetID)
}

// writeHeaderRow writes row 1 and applies the header format.
func (s *Store) writeHeaderRow(ctx context.Context, sheet string, sheetID int64, headers []string) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{header}}
	writeRange := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return s.formatHeader(ctx, sheetID)
}

// formatHeader makes row 1 bold on a shaded background and freezes it.
func (s *Store) formatHeader(ctx context.Context, sheetID int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
							TextFormat:      &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				},
			},
			{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        sheetID,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to format header: %w", err)
	}
	return nil
}

// clearSheet wipes values and formatting of the whole grid.
func (s *Store) clearSheet(ctx context.Context, sheetID int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateCells: &sheets.UpdateCellsRequest{
				Range:  &sheets.GridRange{SheetId: sheetID},
				Fields: "userEnteredValue,userEnteredFormat",
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}
	return nil
}

// autoResize fits the first n columns to their content.
func (s *Store) autoResize(ctx context.Context, sheetID int64, columns int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to auto-resize columns: %w", err)
	}
	return nil
}

// columnName converts a 1-based column index to A1 notation (1 -> A,
// 26 -> Z, 27 -> AA).
func columnName(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
