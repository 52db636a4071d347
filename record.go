// Package sheetsync mirrors CRM deal records into a spreadsheet
// incrementally: it flattens deals into rows, compares the fetched deal set
// against the identifiers already present in the sheet, and applies only the
// resulting additions and deletions.
package sheetsync

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one logical row to persist: the owning deal's identifier plus the
// full ordered cell values for the column schema (the identifier appears
// again inside Values at its column position). Identifiers are not
// row-unique; a deal with multiple line items contributes one Record per
// line item, all sharing the deal's ID.
type Record struct {
	ID     interface{}
	Values []interface{}
}

// Rows extracts the raw value rows from a record set, preserving order.
func Rows(records []Record) [][]interface{} {
	rows := make([][]interface{}, len(records))
	for i, r := range records {
		rows[i] = r.Values
	}
	return rows
}

// NormalizeID coerces an identifier to its canonical string form. Cells read
// back from a spreadsheet may carry numbers where the CRM sent strings (or
// the reverse), so all identifier comparison in this package goes through
// string normalization. Floats that hold integral values render without a
// fractional part so that 42 and 42.0 compare equal.
func NormalizeID(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return NormalizeID(float64(val))
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
