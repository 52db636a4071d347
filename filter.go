package sheetsync

import (
	"strings"

	"github.com/toshionoda/mazrica-civilink/mazrica"
)

// Filter narrows the fetched deal set before diffing. Zero values disable
// the corresponding condition; conditions combine with AND.
type Filter struct {
	// ProductName matches case-insensitively as a substring against the
	// deal's product name and each line item's product name.
	ProductName string

	// PhaseNames, when non-empty, requires the deal's phase name to equal
	// one of the entries exactly.
	PhaseNames []string
}

// Match reports whether a deal passes the filter.
func (f Filter) Match(d *mazrica.Deal) bool {
	if len(f.PhaseNames) > 0 {
		found := false
		for _, phase := range f.PhaseNames {
			if d.PhaseName() == phase {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.ProductName != "" {
		needle := strings.ToLower(f.ProductName)
		if strings.Contains(strings.ToLower(d.ProductName()), needle) {
			return true
		}
		for _, pd := range d.ProductDetails {
			if pd.ProductName != "" && strings.Contains(strings.ToLower(pd.ProductName), needle) {
				return true
			}
		}
		return false
	}

	return true
}

// ApplyFilter returns the deals matching f, preserving input order.
func ApplyFilter(deals []*mazrica.Deal, f Filter) []*mazrica.Deal {
	if f.ProductName == "" && len(f.PhaseNames) == 0 {
		return deals
	}

	var matched []*mazrica.Deal
	for _, d := range deals {
		if f.Match(d) {
			matched = append(matched, d)
		}
	}
	return matched
}
