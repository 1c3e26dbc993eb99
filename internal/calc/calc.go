// Package calc holds the per-line arithmetic shared by every entry document:
// gross, discount, VAT, total and the rate/profit/retail pricing triangle.
package calc

import (
	"errors"

	"github.com/shopspring/decimal"
)

// VatType tells whether a document carries VAT at all.
type VatType string

const (
	VatTypeVat    VatType = "Vat"
	VatTypeNonVat VatType = "NonVat"
)

// TaxMode tells whether a line rate already contains VAT.
type TaxMode string

const (
	TaxModeInclusive TaxMode = "inclusive"
	TaxModeExclusive TaxMode = "exclusive"
)

// DefaultVATRate is the VAT percentage applied when none is configured.
const DefaultVATRate = 5.0

// DiscountBasis records which discount field the user typed last.
type DiscountBasis string

const (
	DiscountByPercent DiscountBasis = "percent"
	DiscountByAmount  DiscountBasis = "amount"
)

// Tax bundles the document level settings used to derive a line.
type Tax struct {
	Type VatType
	Mode TaxMode
	Rate float64
}

// Figures carries the numeric fields of one entry line.
type Figures struct {
	Quantity      float64       `json:"quantity"`
	Price         float64       `json:"price"`
	Gross         float64       `json:"gross"`
	DiscPercent   float64       `json:"discPercent"`
	DiscAmount    float64       `json:"discAmount"`
	DiscBasis     DiscountBasis `json:"discBasis,omitempty"`
	Net           float64       `json:"net"`
	VatAmount     float64       `json:"vatAmount"`
	Total         float64       `json:"total"`
	ProfitPercent float64       `json:"profitPercent"`
	Retail        float64       `json:"retail"`
	Wholesale     float64       `json:"wholesale"`
	SpecialPrice1 float64       `json:"specialPrice1"`
	SpecialPrice2 float64       `json:"specialPrice2"`
}

// Edit identifies the numeric field a user action changed.
type Edit int

const (
	EditQuantity Edit = iota + 1
	EditPrice
	EditDiscPercent
	EditDiscAmount
	EditProfitPercent
	EditRetail
	EditWholesale
	EditSpecialPrice1
	EditSpecialPrice2
)

var (
	// ErrNegativeValue rejects negative numeric input.
	ErrNegativeValue = errors.New("calc: value must not be negative")
	// ErrDiscountExceedsGross rejects a discount larger than the line gross.
	ErrDiscountExceedsGross = errors.New("calc: discount exceeds gross amount")
	// ErrUnknownEdit indicates an edit outside the numeric field set.
	ErrUnknownEdit = errors.New("calc: unknown edit")
)

var hundred = decimal.NewFromInt(100)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return dec(v).Round(2).InexactFloat64()
}

// Derive recomputes gross, discount, net, VAT and total from quantity, price
// and whichever discount field is the current basis. Every intermediate value
// is rounded so the stored fields match what the user sees.
func Derive(f Figures, tax Tax) Figures {
	gross := grossOf(f.Quantity, f.Price)

	var discAmount, discPercent decimal.Decimal
	switch f.DiscBasis {
	case DiscountByAmount:
		discAmount = dec(f.DiscAmount).Round(2)
		if gross.IsZero() {
			discPercent = decimal.Zero
		} else {
			discPercent = discAmount.Div(gross).Mul(hundred).Round(2)
		}
	default:
		f.DiscBasis = DiscountByPercent
		discPercent = dec(f.DiscPercent)
		discAmount = gross.Mul(discPercent).Div(hundred).Round(2)
	}

	net := gross.Sub(discAmount).Round(2)
	vat, total := applyTax(net, tax)

	f.Gross = gross.InexactFloat64()
	f.DiscAmount = discAmount.InexactFloat64()
	f.DiscPercent = discPercent.InexactFloat64()
	f.Net = net.InexactFloat64()
	f.VatAmount = vat.InexactFloat64()
	f.Total = total.InexactFloat64()
	return f
}

// VAT returns the VAT component and the payable total for a net amount.
func VAT(net float64, tax Tax) (vat, total float64) {
	v, t := applyTax(dec(net).Round(2), tax)
	return v.InexactFloat64(), t.InexactFloat64()
}

// InclusiveVAT extracts the VAT already contained in an amount.
func InclusiveVAT(amount, rate float64) float64 {
	r := dec(rate)
	return dec(amount).Mul(r).Div(hundred.Add(r)).Round(2).InexactFloat64()
}

func applyTax(net decimal.Decimal, tax Tax) (decimal.Decimal, decimal.Decimal) {
	if tax.Type != VatTypeVat || tax.Rate == 0 {
		return decimal.Zero, net
	}
	rate := dec(tax.Rate)
	if tax.Mode == TaxModeInclusive {
		vat := net.Mul(rate).Div(hundred.Add(rate)).Round(2)
		return vat, net.Round(2)
	}
	vat := net.Mul(rate).Div(hundred).Round(2)
	return vat, net.Add(vat).Round(2)
}

// ProfitFrom returns the margin of retail over price in percent. A zero price
// or an unset retail yields zero.
func ProfitFrom(price, retail float64) float64 {
	if price == 0 || retail == 0 {
		return 0
	}
	p := dec(price)
	return dec(retail).Sub(p).Div(p).Mul(hundred).Round(2).InexactFloat64()
}

// PriceWithProfit returns price marked up by pct percent.
func PriceWithProfit(price, pct float64) float64 {
	return dec(price).Mul(hundred.Add(dec(pct))).Div(hundred).Round(2).InexactFloat64()
}

// Check validates a user edit before it is applied. Discounts above the
// gross are refused here instead of being clamped by Derive, including when a
// quantity or price edit would shrink the gross below a discount amount.
func Check(f Figures, e Edit, v float64) error {
	if v < 0 {
		return ErrNegativeValue
	}
	switch e {
	case EditDiscPercent:
		if v > 100 {
			return ErrDiscountExceedsGross
		}
	case EditDiscAmount:
		if dec(v).GreaterThan(grossOf(f.Quantity, f.Price)) {
			return ErrDiscountExceedsGross
		}
	case EditQuantity, EditPrice:
		if f.DiscBasis != DiscountByAmount || f.DiscAmount == 0 {
			return nil
		}
		qty, price := f.Quantity, f.Price
		if e == EditQuantity {
			qty = v
		} else {
			price = v
		}
		if dec(f.DiscAmount).GreaterThan(grossOf(qty, price)) {
			return ErrDiscountExceedsGross
		}
	case EditProfitPercent, EditRetail, EditWholesale, EditSpecialPrice1, EditSpecialPrice2:
	default:
		return ErrUnknownEdit
	}
	return nil
}

func grossOf(qty, price float64) decimal.Decimal {
	return dec(qty).Mul(dec(price)).Round(2)
}

// Apply sets one edited field, updates the pricing fields that depend on it
// and re-derives the line.
func Apply(f Figures, e Edit, v float64, tax Tax) Figures {
	switch e {
	case EditQuantity:
		f.Quantity = v
	case EditPrice:
		f.Price = v
		f.ProfitPercent = ProfitFrom(v, f.Retail)
	case EditDiscPercent:
		f.DiscPercent = v
		f.DiscBasis = DiscountByPercent
	case EditDiscAmount:
		f.DiscAmount = v
		f.DiscBasis = DiscountByAmount
	case EditProfitPercent:
		f.ProfitPercent = v
		marked := PriceWithProfit(f.Price, v)
		f.Retail = marked
		f.Wholesale = marked
	case EditRetail:
		f.Retail = v
		f.ProfitPercent = ProfitFrom(f.Price, v)
	case EditWholesale:
		f.Wholesale = v
	case EditSpecialPrice1:
		f.SpecialPrice1 = v
	case EditSpecialPrice2:
		f.SpecialPrice2 = v
	}
	return Derive(f, tax)
}

// Percent returns pct percent of amount, rounded.
func Percent(amount, pct float64) float64 {
	return dec(amount).Mul(dec(pct)).Div(hundred).Round(2).InexactFloat64()
}
