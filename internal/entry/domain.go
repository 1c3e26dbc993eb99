package entry

import (
	"time"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/units"
)

// Kind identifies the document being entered.
type Kind string

const (
	KindPurchase      Kind = "purchase"
	KindPurchaseOrder Kind = "purchase_order"
	KindSalesReturn   Kind = "sales_return"
)

// Field names an input position on a row or a document level focus target.
type Field string

const (
	FieldBarcode       Field = "barcode"
	FieldName          Field = "name"
	FieldUnit          Field = "unit"
	FieldQuantity      Field = "quantity"
	FieldPrice         Field = "price"
	FieldDiscPercent   Field = "discPercent"
	FieldDiscAmount    Field = "discAmount"
	FieldProfitPercent Field = "profitPercent"
	FieldRetail        Field = "retail"
	FieldWholesale     Field = "wholesale"
	FieldSpecialPrice1 Field = "specialPrice1"
	FieldSpecialPrice2 Field = "specialPrice2"

	FieldParty          Field = "party"
	FieldSourceDocument Field = "sourceDocument"
	FieldLines          Field = "lines"
	FieldExpiryDate     Field = "expiryDate"
	FieldVatType        Field = "vatType"
	FieldTaxMode        Field = "taxMode"
	FieldReturnMode     Field = "returnMode"
	FieldAdjustments    Field = "adjustments"
)

var numericFields = map[Field]calc.Edit{
	FieldQuantity:      calc.EditQuantity,
	FieldPrice:         calc.EditPrice,
	FieldDiscPercent:   calc.EditDiscPercent,
	FieldDiscAmount:    calc.EditDiscAmount,
	FieldProfitPercent: calc.EditProfitPercent,
	FieldRetail:        calc.EditRetail,
	FieldWholesale:     calc.EditWholesale,
	FieldSpecialPrice1: calc.EditSpecialPrice1,
	FieldSpecialPrice2: calc.EditSpecialPrice2,
}

// ReturnMode tells how a sales return relates to an earlier sale.
type ReturnMode string

const (
	ReturnDirect      ReturnMode = "direct"
	ReturnByReference ReturnMode = "by_reference"
)

// Line is one row of the working document.
type Line struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	ProductCode    string         `json:"productCode"`
	Barcode        string         `json:"barcode"`
	Name           string         `json:"name"`
	UnitID         string         `json:"unitId"`
	UnitName       string         `json:"unitName"`
	MultiUnitID    string         `json:"multiUnitId,omitempty"`
	UnitOptionID   string         `json:"unitOptionId"`
	AvailableUnits []units.Option `json:"availableUnits,omitempty"`
	BatchTracked   bool           `json:"batchTracked"`
	calc.Figures
	BatchNumber string  `json:"batchNumber"`
	ExpiryDate  string  `json:"expiryDate"`
	StockOnHand float64 `json:"stockOnHand"`
}

// IsPlaceholder reports whether no product has been selected on the row.
func (l Line) IsPlaceholder() bool {
	return l.ProductID == ""
}

// HasPartialText reports whether a placeholder carries typed search text.
func (l Line) HasPartialText() bool {
	return l.IsPlaceholder() && (l.Barcode != "" || l.Name != "")
}

func (l Line) value(f Field) float64 {
	switch f {
	case FieldQuantity:
		return l.Quantity
	case FieldPrice:
		return l.Price
	case FieldDiscPercent:
		return l.DiscPercent
	case FieldDiscAmount:
		return l.DiscAmount
	case FieldProfitPercent:
		return l.ProfitPercent
	case FieldRetail:
		return l.Retail
	case FieldWholesale:
		return l.Wholesale
	case FieldSpecialPrice1:
		return l.SpecialPrice1
	case FieldSpecialPrice2:
		return l.SpecialPrice2
	}
	return 0
}

func (l Line) clone() Line {
	if l.AvailableUnits != nil {
		l.AvailableUnits = append([]units.Option(nil), l.AvailableUnits...)
	}
	return l
}

// Header holds the document level settings.
type Header struct {
	DocumentNo       string       `json:"documentNo"`
	Date             time.Time    `json:"date"`
	VatType          calc.VatType `json:"vatType"`
	TaxMode          calc.TaxMode `json:"taxMode"`
	PartyID          string       `json:"partyId"`
	PartyName        string       `json:"partyName"`
	PaymentType      string       `json:"paymentType"`
	ReturnMode       ReturnMode   `json:"returnMode,omitempty"`
	SourceDocumentID string       `json:"sourceDocumentId,omitempty"`
}

// Adjustments are document level amounts applied after the lines.
type Adjustments struct {
	OtherDiscPercent float64 `json:"otherDiscPercent"`
	OtherDiscount    float64 `json:"otherDiscount"`
	OtherCharges     float64 `json:"otherCharges"`
	FreightCharge    float64 `json:"freightCharge"`
	RoundOff         float64 `json:"roundOff"`
	Narration        string  `json:"narration"`
}

// Document is the working entry. ID is set once the store persisted it.
type Document struct {
	ID          string      `json:"id,omitempty"`
	Kind        Kind        `json:"kind"`
	Header      Header      `json:"header"`
	Lines       []Line      `json:"lines"`
	Adjustments Adjustments `json:"adjustments"`
}

func (d Document) clone() Document {
	lines := make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = l.clone()
	}
	d.Lines = lines
	return d
}

// ProductLines returns the rows that carry a product.
func (d Document) ProductLines() []Line {
	out := make([]Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		if !l.IsPlaceholder() {
			out = append(out, l)
		}
	}
	return out
}

// Focus reports the row and field the cursor is on. An empty RowID means no
// row is being edited.
type Focus struct {
	RowID string `json:"rowId"`
	Field Field  `json:"field"`
	Index int    `json:"index"`
}
