package sheetsync

// Diff is the set of mutations one sync cycle applies to a sheet. Both
// halves are supplied by the caller: NewRows are appended verbatim and rows
// whose identifier matches DeleteIDs are removed. The engine does not derive
// the diff from a full desired-vs-existing comparison, and it does not
// deduplicate an ID that appears on both sides (delete-then-add replacement
// is a legitimate caller intent).
type Diff struct {
	NewRows   [][]interface{}
	DeleteIDs []interface{}
}

// Empty reports whether applying the diff would be a no-op.
func (d Diff) Empty() bool {
	return len(d.NewRows) == 0 && len(d.DeleteIDs) == 0
}

// DeleteSet returns the delete identifiers normalized to strings. Matching
// against cell values read from the sheet must go through NormalizeID on
// both sides because sheets store identifiers as numbers or strings
// interchangeably.
func (d Diff) DeleteSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.DeleteIDs))
	for _, id := range d.DeleteIDs {
		if s := NormalizeID(id); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}
