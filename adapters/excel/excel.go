// Package excel implements the sheetsync.Store contract on a local .xlsx
// workbook. It exists for offline mirrors and for exercising the sync engine
// without Google API access.
package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	sheetsync "github.com/toshionoda/mazrica-civilink"
)

// scratchSheet keeps the workbook non-empty while a sheet is recreated;
// excelize refuses to delete the last remaining worksheet.
const scratchSheet = "__scratch__"

// Store is a sheetsync.Store backed by an Excel file. Operations are
// serialized with a mutex; every mutation reopens, edits, and saves the
// workbook, matching the one-cycle-one-pass model of the sync engine.
type Store struct {
	config *Config
	mu     sync.Mutex
}

// New creates an Excel store with the given configuration.
func New(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	configCopy := *config
	return &Store{config: &configCopy}, nil
}

// ExistingIDs returns the ordered non-empty identifier cells of all body
// rows. A missing file or sheet yields an empty list and no error.
func (s *Store) ExistingIDs(ctx context.Context, sheet string, idColumn int) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := excelize.OpenFile(s.config.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet: %w", err)
	}
	if index == -1 {
		return []interface{}{}, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	ids := []interface{}{}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if idColumn-1 >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idColumn-1]); v != "" {
			ids = append(ids, row[idColumn-1])
		}
	}
	return ids, nil
}

// Apply performs the delta update: delete matching rows bottom-up, then
// append the new rows after the current last row.
func (s *Store) Apply(ctx context.Context, sheet string, headers []string, diff sheetsync.Diff, idColumn int) (sheetsync.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result sheetsync.ApplyResult

	select {
	case <-ctx.Done():
		return result, ctx.Err()
	default:
	}

	f, err := s.openOrCreate()
	if err != nil {
		return result, err
	}
	defer f.Close()

	created, err := ensureSheet(f, sheet)
	if err != nil {
		return result, err
	}
	if created && len(headers) > 0 {
		if err := writeHeaderRow(f, sheet, headers); err != nil {
			return result, err
		}
	}

	// Deletion pass. Rows are scanned in reverse so that removing a row
	// never shifts a still-to-process index.
	rows, err := f.GetRows(sheet)
	if err != nil {
		return result, fmt.Errorf("failed to read rows: %w", err)
	}

	deleteSet := diff.DeleteSet()
	if len(deleteSet) > 0 {
		for i := len(rows) - 1; i >= 1; i-- {
			row := rows[i]
			if idColumn-1 >= len(row) {
				continue
			}
			if _, ok := deleteSet[sheetsync.NormalizeID(row[idColumn-1])]; !ok {
				continue
			}
			if err := f.RemoveRow(sheet, i+1); err != nil {
				return result, fmt.Errorf("failed to remove row %d: %w", i+1, err)
			}
			result.Deleted++
		}
	}

	// Addition pass: one contiguous block after the surviving last row.
	lastRow := len(rows) - result.Deleted
	for k, row := range diff.NewRows {
		values := row
		cell := fmt.Sprintf("A%d", lastRow+1+k)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return result, fmt.Errorf("failed to write row at %s: %w", cell, err)
		}
		result.Added++
	}

	if result.Added > 0 {
		width := len(headers)
		if width == 0 && len(diff.NewRows) > 0 {
			width = len(diff.NewRows[0])
		}
		if err := autoFitColumns(f, sheet, width); err != nil {
			return result, err
		}
	}

	if err := s.save(f); err != nil {
		return result, err
	}
	return result, nil
}

// Replace overwrites the sheet with header plus rows in one block.
func (s *Store) Replace(ctx context.Context, sheet string, headers []string, rows [][]interface{}, clearBefore bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	f, err := s.openOrCreate()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	created, err := ensureSheet(f, sheet)
	if err != nil {
		return 0, err
	}
	if !created && clearBefore {
		if err := resetSheet(f, sheet); err != nil {
			return 0, err
		}
	}

	start := 1
	if len(headers) > 0 {
		if err := writeHeaderRow(f, sheet, headers); err != nil {
			return 0, err
		}
		start = 2
	}

	for k, row := range rows {
		values := row
		cell := fmt.Sprintf("A%d", start+k)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row at %s: %w", cell, err)
		}
	}

	width := len(headers)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if err := autoFitColumns(f, sheet, width); err != nil {
		return 0, err
	}

	if err := s.save(f); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Clear removes all content and formatting from an existing sheet. Clearing
// a sheet that does not exist is an error.
func (s *Store) Clear(ctx context.Context, sheet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f, err := excelize.OpenFile(s.config.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", sheetsync.ErrSheetNotFound, sheet)
		}
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("failed to look up sheet: %w", err)
	}
	if index == -1 {
		return fmt.Errorf("%w: %s", sheetsync.ErrSheetNotFound, sheet)
	}

	if err := resetSheet(f, sheet); err != nil {
		return err
	}
	return s.save(f)
}

func (s *Store) openOrCreate() (*excelize.File, error) {
	if _, err := os.Stat(s.config.FilePath); err == nil {
		f, err := excelize.OpenFile(s.config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		return f, nil
	}
	return excelize.NewFile(), nil
}

func (s *Store) save(f *excelize.File) error {
	dir := filepath.Dir(s.config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(s.config.FilePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// ensureSheet creates the sheet when missing and reports whether it did. A
// brand-new workbook keeps only the target sheet; the default one goes away.
func ensureSheet(f *excelize.File, sheet string) (bool, error) {
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return false, fmt.Errorf("failed to look up sheet: %w", err)
	}
	if index != -1 {
		return false, nil
	}

	newIndex, err := f.NewSheet(sheet)
	if err != nil {
		return false, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(newIndex)

	if defaultSheet := f.GetSheetName(0); defaultSheet != sheet && f.SheetCount == 2 {
		rows, err := f.GetRows(defaultSheet)
		if err == nil && len(rows) == 0 {
			_ = f.DeleteSheet(defaultSheet)
		}
	}
	return true, nil
}

// resetSheet drops and recreates a sheet, which clears both content and
// formatting in one step.
func resetSheet(f *excelize.File, sheet string) error {
	if _, err := f.NewSheet(scratchSheet); err != nil {
		return fmt.Errorf("failed to create scratch sheet: %w", err)
	}
	if err := f.DeleteSheet(sheet); err != nil {
		return fmt.Errorf("failed to delete sheet: %w", err)
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to recreate sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet(scratchSheet); err != nil {
		return fmt.Errorf("failed to drop scratch sheet: %w", err)
	}
	return nil
}

// writeHeaderRow writes row 1 bold on a shaded background and freezes it.
func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("invalid header width: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", styleID); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// autoFitColumns approximates auto-fit by sizing each column to its widest
// cell content.
func autoFitColumns(f *excelize.File, sheet string, width int) error {
	if width <= 0 {
		return nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read rows for auto-fit: %w", err)
	}

	for col := 1; col <= width; col++ {
		longest := 0
		for _, row := range rows {
			if col-1 < len(row) {
				if n := utf8.RuneCountInString(row[col-1]); n > longest {
					longest = n
				}
			}
		}

		w := float64(longest) + 2
		if w < 8 {
			w = 8
		}
		if w > 80 {
			w = 80
		}

		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return fmt.Errorf("invalid column %d: %w", col, err)
		}
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", name, err)
		}
	}
	return nil
}
