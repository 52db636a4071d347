package googlesheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	sheetsync "github.com/toshionoda/mazrica-civilink"
)

func TestColumnName(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}

	for _, tt := range tests {
		if got := columnName(tt.col); got != tt.want {
			t.Errorf("columnName(%d) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

// mockSheets serves just enough of the Sheets API for the store: the
// spreadsheet metadata, the identifier column, and batchUpdate. It records
// every mutation for assertions.
type mockSheets struct {
	sheetTitle string
	sheetID    int64
	idColumn   [][]interface{}

	batchUpdates []*sheets.BatchUpdateSpreadsheetRequest
	valueUpdates map[string][][]interface{}
	valueReads   []string
}

func (m *mockSheets) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var req sheets.BatchUpdateSpreadsheetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode batchUpdate: %v", err)
			}
			m.batchUpdates = append(m.batchUpdates, &req)
			fmt.Fprint(w, `{"replies":[{}]}`)

		case strings.Contains(r.URL.Path, "/values/"):
			rangeName := r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):]
			if r.Method == http.MethodPut {
				var vr sheets.ValueRange
				if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
					t.Errorf("decode values update: %v", err)
				}
				if m.valueUpdates == nil {
					m.valueUpdates = map[string][][]interface{}{}
				}
				m.valueUpdates[rangeName] = vr.Values
				fmt.Fprint(w, `{}`)
				return
			}
			m.valueReads = append(m.valueReads, rangeName)
			resp := sheets.ValueRange{Values: m.idColumn}
			_ = json.NewEncoder(w).Encode(&resp)

		default:
			// Spreadsheet metadata.
			resp := sheets.Spreadsheet{}
			if m.sheetTitle != "" {
				resp.Sheets = []*sheets.Sheet{{
					Properties: &sheets.SheetProperties{Title: m.sheetTitle, SheetId: m.sheetID},
				}}
			}
			_ = json.NewEncoder(w).Encode(&resp)
		}
	})
}

func newMockStore(t *testing.T, m *mockSheets) *Store {
	t.Helper()
	server := httptest.NewServer(m.handler(t))
	t.Cleanup(server.Close)

	store, err := New(context.Background(), Config{SpreadsheetID: "test-id"},
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestExistingIDs(t *testing.T) {
	m := &mockSheets{
		sheetTitle: "Deals",
		sheetID:    11,
		idColumn: [][]interface{}{
			{"案件ID"},
			{float64(1)},
			{},
			{"2"},
			{"  "},
		},
	}
	store := newMockStore(t, m)

	ids, err := store.ExistingIDs(context.Background(), "Deals", 1)
	if err != nil {
		t.Fatalf("ExistingIDs: %v", err)
	}

	// The header, the empty row, and the blank cell are all skipped; values
	// keep the type the API returned.
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}
	if sheetsync.NormalizeID(ids[0]) != "1" || sheetsync.NormalizeID(ids[1]) != "2" {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Deals", "'Deals'"},
		{"Deal List", "'Deal List'"},
		{"A1", "'A1'"},
		{"Bob's Deals", "'Bob''s Deals'"},
	}

	for _, tt := range tests {
		if got := quoteSheet(tt.in); got != tt.want {
			t.Errorf("quoteSheet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExistingIDs_QuotesSheetTitle(t *testing.T) {
	// Titles with spaces (or ones that parse as cell references) must be
	// quoted in every A1 range or the API misreads them.
	m := &mockSheets{
		sheetTitle: "Deal List",
		sheetID:    11,
		idColumn:   [][]interface{}{{"案件ID"}, {"1"}},
	}
	store := newMockStore(t, m)

	ids, err := store.ExistingIDs(context.Background(), "Deal List", 1)
	if err != nil {
		t.Fatalf("ExistingIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want 1 entry", ids)
	}
	if len(m.valueReads) != 1 || m.valueReads[0] != "'Deal List'!A:A" {
		t.Errorf("read range = %v, want ['Deal List'!A:A] with a quoted title", m.valueReads)
	}
}

func TestApply_QuotesSheetTitleOnWrite(t *testing.T) {
	m := &mockSheets{
		sheetTitle: "Deal List",
		sheetID:    11,
		idColumn:   [][]interface{}{{"案件ID"}, {"1"}},
	}
	store := newMockStore(t, m)

	diff := sheetsync.Diff{NewRows: [][]interface{}{{2, "b"}}}
	if _, err := store.Apply(context.Background(), "Deal List", []string{"ID", "Name"}, diff, 1); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := m.valueUpdates["'Deal List'!A3"]; !ok {
		t.Errorf("append range missing quoted title; got %v", m.valueUpdates)
	}
}

func TestExistingIDs_MissingSheet(t *testing.T) {
	store := newMockStore(t, &mockSheets{})

	ids, err := store.ExistingIDs(context.Background(), "Deals", 1)
	if err != nil {
		t.Fatalf("ExistingIDs: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %v, want an empty non-nil list", ids)
	}
}

func TestApply_DeletesBottomUpAndAppends(t *testing.T) {
	// Header plus ids 1..5; ids 2 and 4 are stale and two new rows arrive.
	m := &mockSheets{
		sheetTitle: "Deals",
		sheetID:    11,
		idColumn: [][]interface{}{
			{"案件ID"}, {"1"}, {"2"}, {"3"}, {"4"}, {"5"},
		},
	}
	store := newMockStore(t, m)

	diff := sheetsync.Diff{
		NewRows:   [][]interface{}{{6, "f"}, {7, "g"}},
		DeleteIDs: []interface{}{2, 4},
	}
	result, err := store.Apply(context.Background(), "Deals", []string{"ID", "Name"}, diff, 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Deleted != 2 || result.Added != 2 {
		t.Errorf("result = %+v, want 2 deleted, 2 added", result)
	}

	// First batchUpdate carries the deletions, highest row index first, so
	// earlier deletions never shift the indices of later ones.
	if len(m.batchUpdates) == 0 {
		t.Fatalf("no batchUpdate was sent")
	}
	var starts []int64
	for _, req := range m.batchUpdates[0].Requests {
		if req.DeleteDimension == nil {
			t.Fatalf("first batchUpdate holds a non-delete request: %+v", req)
		}
		if req.DeleteDimension.Range.Dimension != "ROWS" {
			t.Errorf("dimension = %q", req.DeleteDimension.Range.Dimension)
		}
		starts = append(starts, req.DeleteDimension.Range.StartIndex)
	}
	if len(starts) != 2 || starts[0] != 4 || starts[1] != 2 {
		t.Errorf("delete start indices = %v, want [4 2]", starts)
	}

	// The append lands in one block right after the surviving last row:
	// 6 column cells minus 2 deletions leaves row 4, so writing starts at 5.
	values, ok := m.valueUpdates["'Deals'!A5"]
	if !ok {
		t.Fatalf("no value update at 'Deals'!A5; got %v", m.valueUpdates)
	}
	if len(values) != 2 {
		t.Errorf("appended %d rows, want 2", len(values))
	}
}

func TestApply_EmptyDiff(t *testing.T) {
	m := &mockSheets{
		sheetTitle: "Deals",
		sheetID:    11,
		idColumn:   [][]interface{}{{"案件ID"}, {"1"}},
	}
	store := newMockStore(t, m)

	result, err := store.Apply(context.Background(), "Deals", []string{"ID"}, sheetsync.Diff{}, 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Added != 0 || result.Deleted != 0 {
		t.Errorf("result = %+v, want no-op", result)
	}
	if len(m.batchUpdates) != 0 || len(m.valueUpdates) != 0 {
		t.Errorf("empty diff still mutated the sheet: %d batchUpdates, %d value updates",
			len(m.batchUpdates), len(m.valueUpdates))
	}
}

func TestApply_UnknownDeleteIDsIgnored(t *testing.T) {
	m := &mockSheets{
		sheetTitle: "Deals",
		sheetID:    11,
		idColumn:   [][]interface{}{{"案件ID"}, {"1"}, {"2"}},
	}
	store := newMockStore(t, m)

	diff := sheetsync.Diff{DeleteIDs: []interface{}{99}}
	result, err := store.Apply(context.Background(), "Deals", []string{"ID"}, diff, 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", result.Deleted)
	}
	if len(m.batchUpdates) != 0 {
		t.Errorf("a no-match deletion still sent a batchUpdate")
	}
}

func TestReplace_WritesHeaderAndRows(t *testing.T) {
	m := &mockSheets{sheetTitle: "Deals", sheetID: 11}
	store := newMockStore(t, m)

	rows := [][]interface{}{{1, "a"}, {2, "b"}}
	n, err := store.Replace(context.Background(), "Deals", []string{"ID", "Name"}, rows, true)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n != 2 {
		t.Errorf("Replace wrote %d rows, want 2", n)
	}

	values, ok := m.valueUpdates["'Deals'!A1"]
	if !ok {
		t.Fatalf("no value update at 'Deals'!A1; got %v", m.valueUpdates)
	}
	if len(values) != 3 {
		t.Fatalf("wrote %d rows, want header + 2", len(values))
	}
	if values[0][0] != "ID" {
		t.Errorf("row 1 = %v, want the header", values[0])
	}

	// clearBefore on an existing sheet wipes values and formatting first.
	if len(m.batchUpdates) == 0 || m.batchUpdates[0].Requests[0].UpdateCells == nil {
		t.Errorf("expected the first batchUpdate to clear the sheet")
	}
}

func TestClear_MissingSheet(t *testing.T) {
	store := newMockStore(t, &mockSheets{})

	err := store.Clear(context.Background(), "Deals")
	if !errors.Is(err, sheetsync.ErrSheetNotFound) {
		t.Errorf("Clear = %v, want ErrSheetNotFound", err)
	}
}

func TestClear(t *testing.T) {
	m := &mockSheets{sheetTitle: "Deals", sheetID: 11}
	store := newMockStore(t, m)

	if err := store.Clear(context.Background(), "Deals"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(m.batchUpdates) != 1 {
		t.Fatalf("sent %d batchUpdates, want 1", len(m.batchUpdates))
	}
	uc := m.batchUpdates[0].Requests[0].UpdateCells
	if uc == nil {
		t.Fatalf("request is not an updateCells clear: %+v", m.batchUpdates[0].Requests[0])
	}
	if uc.Fields != "userEnteredValue,userEnteredFormat" {
		t.Errorf("clear fields = %q", uc.Fields)
	}
	if uc.Range.SheetId != 11 {
		t.Errorf("clear targeted sheet %d, want 11", uc.Range.SheetId)
	}
}
