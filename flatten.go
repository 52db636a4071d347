package sheetsync

import (
	"regexp"

	"github.com/toshionoda/mazrica-civilink/mazrica"
)

// Headers is the fixed column schema for the mirrored deal sheet. Column 1
// is the deal ID, which doubles as the sync identifier. The last two columns
// are derived from the deal name.
var Headers = []string{
	"案件ID",
	"案件名",
	"取引先",
	"取引先ID",
	"案件タイプ",
	"フェーズ",
	"担当者",
	"商品名",
	"数量",
	"単価",
	"商品金額",
	"案件金額",
	"受注予定日",
	"作成日時",
	"更新日時",
	"ユーザー数",
	"期間",
}

var (
	// Deal names follow the in-house convention
	// "CiviLink_<company>_<dept>_<feature>_<trial>_10ユーザー_3カ月";
	// X stands in for an undecided count.
	usersPattern  = regexp.MustCompile(`(\d+|X)ユーザー`)
	periodPattern = regexp.MustCompile(`(\d+|X)(カ月|ヶ月|か月)`)
)

// extractUsersAndPeriod pulls the user count and contract period tokens out
// of a deal name. Either result may be empty.
func extractUsersAndPeriod(name string) (users, period string) {
	if m := usersPattern.FindStringSubmatch(name); m != nil {
		users = m[1]
	}
	if m := periodPattern.FindStringSubmatch(name); m != nil {
		period = m[1] + m[2]
	}
	return users, period
}

// DealRows flattens one deal into records matching Headers: one row per
// line item, all sharing the deal's scalar fields, or a single row when the
// deal has no line items. Missing numeric values become empty cells, never
// zeros.
func DealRows(d *mazrica.Deal) []Record {
	users, period := extractUsersAndPeriod(d.Name)

	base := []interface{}{
		d.ID,
		d.Name,
		d.CustomerName(),
		orEmpty(d.CustomerID()),
		d.DealTypeName(),
		d.PhaseName(),
		d.UserName(),
	}

	tail := func(productName string, quantity, unitPrice, productAmount *float64) []interface{} {
		return []interface{}{
			productName,
			floatOrEmpty(quantity),
			floatOrEmpty(unitPrice),
			floatOrEmpty(productAmount),
			floatOrEmpty(d.Amount),
			d.ExpectedContractDate,
			d.CreatedAt,
			d.UpdatedAt,
			users,
			period,
		}
	}

	if len(d.ProductDetails) == 0 {
		values := append(append([]interface{}{}, base...), tail(d.ProductName(), nil, nil, nil)...)
		return []Record{{ID: d.ID, Values: values}}
	}

	records := make([]Record, 0, len(d.ProductDetails))
	for _, pd := range d.ProductDetails {
		name := pd.ProductName
		if name == "" {
			name = d.ProductName()
		}
		values := append(append([]interface{}{}, base...), tail(name, pd.Quantity, pd.UnitPrice, pd.Amount)...)
		records = append(records, Record{ID: d.ID, Values: values})
	}
	return records
}

func orEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
