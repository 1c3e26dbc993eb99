package entry

import "github.com/odyssey-erp/odyssey-entry/internal/calc"

// Totals is the computed summary of a document.
type Totals struct {
	ItemCount      int     `json:"itemCount"`
	ItemsGross     float64 `json:"itemsGross"`
	ItemsDiscount  float64 `json:"itemsDiscount"`
	ItemsVat       float64 `json:"itemsVat"`
	ItemsTotal     float64 `json:"itemsTotal"`
	NetAdjustments float64 `json:"netAdjustments"`
	AdjustmentVat  float64 `json:"adjustmentVat"`
	TotalVat       float64 `json:"totalVat"`
	GrandTotal     float64 `json:"grandTotal"`
}

// ComputeTotals sums the product lines and applies the adjustments. VAT read
// out of adjustments is shown in TotalVat only; it never changes GrandTotal.
func ComputeTotals(doc Document, p Profile, rate float64) Totals {
	var t Totals
	for _, l := range doc.Lines {
		if l.IsPlaceholder() {
			continue
		}
		t.ItemCount++
		t.ItemsGross += l.Gross
		t.ItemsDiscount += l.DiscAmount
		t.ItemsVat += l.VatAmount
		t.ItemsTotal += l.Total
	}
	t.ItemsGross = calc.Round2(t.ItemsGross)
	t.ItemsDiscount = calc.Round2(t.ItemsDiscount)
	t.ItemsVat = calc.Round2(t.ItemsVat)
	t.ItemsTotal = calc.Round2(t.ItemsTotal)

	a := doc.Adjustments
	t.NetAdjustments = calc.Round2(a.OtherCharges + a.FreightCharge + a.RoundOff - a.OtherDiscount)
	if doc.Header.VatType == calc.VatTypeVat && p.AdjustmentVAT == AdjustmentVATInclusive && t.NetAdjustments != 0 {
		t.AdjustmentVat = calc.InclusiveVAT(t.NetAdjustments, rate)
	}
	t.TotalVat = calc.Round2(t.ItemsVat + t.AdjustmentVat)
	t.GrandTotal = calc.Round2(t.ItemsTotal - a.OtherDiscount + a.OtherCharges + a.FreightCharge + a.RoundOff)
	return t
}

// OtherDiscountFor converts a document discount percent into an amount.
func OtherDiscountFor(itemsTotal, pct float64) float64 {
	return calc.Percent(itemsTotal, pct)
}
