// Package mazrica is a minimal client for the Mazrica (Senses) open API,
// covering the deal endpoints this project mirrors into spreadsheets.
package mazrica

// NamedRef is a nested id/name pair as the API embeds it (customer,
// dealType, phase, user, product).
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductDetail is one line item under a deal. Numeric fields are pointers
// because the API omits them freely and a missing quantity must not flatten
// to 0 in the sheet.
type ProductDetail struct {
	ProductID    *int64                 `json:"productId"`
	ProductName  string                 `json:"productName"`
	Quantity     *float64               `json:"quantity"`
	UnitPrice    *float64               `json:"unitPrice"`
	Amount       *float64               `json:"amount"`
	CustomFields map[string]interface{} `json:"customFields"`
}

// Deal is one CRM opportunity with its scalar fields and zero or more line
// items.
type Deal struct {
	ID                   int64                  `json:"id"`
	Name                 string                 `json:"name"`
	Customer             *NamedRef              `json:"customer"`
	DealType             *NamedRef              `json:"dealType"`
	Phase                *NamedRef              `json:"phase"`
	User                 *NamedRef              `json:"user"`
	Product              *NamedRef              `json:"product"`
	Amount               *float64               `json:"amount"`
	ExpectedContractDate string                 `json:"expectedContractDate"`
	CreatedAt            string                 `json:"createdAt"`
	UpdatedAt            string                 `json:"updatedAt"`
	ProductDetails       []ProductDetail        `json:"productDetails"`
	CustomFields         map[string]interface{} `json:"customFields"`
}

// CustomerName returns the customer name or "" when the deal has none.
func (d *Deal) CustomerName() string {
	if d.Customer == nil {
		return ""
	}
	return d.Customer.Name
}

// CustomerID returns the customer ID or nil when the deal has none.
func (d *Deal) CustomerID() interface{} {
	if d.Customer == nil {
		return nil
	}
	return d.Customer.ID
}

// DealTypeName returns the deal type name or "".
func (d *Deal) DealTypeName() string {
	if d.DealType == nil {
		return ""
	}
	return d.DealType.Name
}

// PhaseName returns the phase name or "".
func (d *Deal) PhaseName() string {
	if d.Phase == nil {
		return ""
	}
	return d.Phase.Name
}

// UserName returns the owning user's name or "".
func (d *Deal) UserName() string {
	if d.User == nil {
		return ""
	}
	return d.User.Name
}

// ProductName returns the deal-level product name or "". Line items carry
// their own product names and fall back to this one when blank.
func (d *Deal) ProductName() string {
	if d.Product == nil {
		return ""
	}
	return d.Product.Name
}

// DealType is one entry of the deal type listing endpoint.
type DealType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
