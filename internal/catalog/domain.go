package catalog

import "errors"

// Product is the catalog view of an item as the entry engine consumes it.
type Product struct {
	ID            string      `json:"id"`
	Code          string      `json:"code"`
	Barcode       string      `json:"barcode"`
	Name          string      `json:"name"`
	UnitID        string      `json:"unit_id"`
	UnitName      string      `json:"unit_name"`
	PurchasePrice float64     `json:"purchase_price"`
	Retail        float64     `json:"retail"`
	Wholesale     float64     `json:"wholesale"`
	SpecialPrice1 float64     `json:"special_price1"`
	SpecialPrice2 float64     `json:"special_price2"`
	BatchTracked  bool        `json:"batch_tracked"`
	Serials       []string    `json:"serials,omitempty"`
	MultiUnits    []MultiUnit `json:"multi_units,omitempty"`

	// MatchedMultiUnitID is set when a barcode lookup hit a packaging row.
	MatchedMultiUnitID string `json:"matched_multi_unit_id,omitempty"`
}

// MultiUnit is an alternate packaging of a product. Zero prices mean the
// packaging has no price of its own.
type MultiUnit struct {
	ID            string   `json:"id"`
	UnitID        string   `json:"unit_id"`
	UnitName      string   `json:"unit_name"`
	Barcode       string   `json:"barcode"`
	Factor        float64  `json:"factor"`
	Retail        float64  `json:"retail"`
	Wholesale     float64  `json:"wholesale"`
	SpecialPrice1 float64  `json:"special_price1"`
	SpecialPrice2 float64  `json:"special_price2"`
	Serials       []string `json:"serials,omitempty"`
}

// ErrNotFound indicates the lookup matched no product.
var ErrNotFound = errors.New("catalog: product not found")
