package sheetsync

import (
	"context"
	"fmt"
)

// Store is a tabular backend holding the mirrored rows. Row 1 is the header
// when headers have been written; the identifier lives in a 1-based column
// index chosen per call. Implementations exist for Google Sheets and local
// Excel files.
//
// Mutations are best-effort and at-least-once: when an operation fails
// midway, rows already deleted or written stay applied, and the next cycle
// re-derives its diff against the partially updated state.
type Store interface {
	// ExistingIDs returns the ordered non-empty identifier values found in
	// all body rows (rows after the header), in their native stored type.
	// A missing sheet or a sheet with no body rows yields an empty list and
	// no error.
	ExistingIDs(ctx context.Context, sheet string, idColumn int) ([]interface{}, error)

	// Apply performs a delta update: creates the sheet if needed (writing
	// headers when supplied), deletes rows whose identifier matches the
	// diff's delete set scanning from the bottom up, then appends the new
	// rows as one contiguous block after the current last row.
	Apply(ctx context.Context, sheet string, headers []string, diff Diff, idColumn int) (ApplyResult, error)

	// Replace overwrites the sheet with header plus rows in a single block
	// write. Unless clearBefore is false, existing content and formatting
	// are removed first. Returns the number of data rows written.
	Replace(ctx context.Context, sheet string, headers []string, rows [][]interface{}, clearBefore bool) (int, error)

	// Clear removes all content and formatting from an existing sheet.
	// Clearing a sheet that does not exist is an error (ErrSheetNotFound).
	Clear(ctx context.Context, sheet string) error
}

// ApplyResult reports what a delta update changed.
type ApplyResult struct {
	Added   int
	Deleted int
}

// Message renders the human-readable summary for the response envelope.
func (r ApplyResult) Message() string {
	return fmt.Sprintf("%d added, %d removed", r.Added, r.Deleted)
}
