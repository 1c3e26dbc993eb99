package entry

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
)

// HeaderPatch changes the header fields that are set.
type HeaderPatch struct {
	DocumentNo       *string       `json:"documentNo"`
	Date             *time.Time    `json:"date"`
	VatType          *calc.VatType `json:"vatType"`
	TaxMode          *calc.TaxMode `json:"taxMode"`
	PartyID          *string       `json:"partyId"`
	PartyName        *string       `json:"partyName"`
	PaymentType      *string       `json:"paymentType"`
	ReturnMode       *ReturnMode   `json:"returnMode"`
	SourceDocumentID *string       `json:"sourceDocumentId"`
}

// AdjustmentPatch changes the adjustment fields that are set. When both the
// discount percent and amount are given the percent wins.
type AdjustmentPatch struct {
	OtherDiscPercent *float64 `json:"otherDiscPercent"`
	OtherDiscount    *float64 `json:"otherDiscount"`
	OtherCharges     *float64 `json:"otherCharges"`
	FreightCharge    *float64 `json:"freightCharge"`
	RoundOff         *float64 `json:"roundOff"`
	Narration        *string  `json:"narration"`
}

// SetHeader applies a header patch. Changing VAT type or tax mode re-derives
// every product row, including a pending snapshot.
func (s *Session) SetHeader(p HeaderPatch) (Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Header{}, ErrSaveInProgress
	}
	h := s.doc.Header
	if p.VatType != nil {
		if *p.VatType != calc.VatTypeVat && *p.VatType != calc.VatTypeNonVat {
			return h, &ValidationError{Field: FieldVatType, Reason: "vat type must be Vat or NonVat"}
		}
		h.VatType = *p.VatType
	}
	if p.TaxMode != nil {
		if *p.TaxMode != calc.TaxModeInclusive && *p.TaxMode != calc.TaxModeExclusive {
			return h, &ValidationError{Field: FieldTaxMode, Reason: "tax mode must be inclusive or exclusive"}
		}
		h.TaxMode = *p.TaxMode
	}
	if p.ReturnMode != nil {
		if !s.profile.Returns {
			return h, &ValidationError{Field: FieldReturnMode, Reason: "return mode applies to returns only"}
		}
		if *p.ReturnMode != ReturnDirect && *p.ReturnMode != ReturnByReference {
			return h, &ValidationError{Field: FieldReturnMode, Reason: "return mode must be direct or by_reference"}
		}
		h.ReturnMode = *p.ReturnMode
	}
	if p.DocumentNo != nil {
		h.DocumentNo = strings.TrimSpace(*p.DocumentNo)
	}
	if p.Date != nil {
		h.Date = p.Date.UTC()
	}
	if p.PartyID != nil {
		h.PartyID = strings.TrimSpace(*p.PartyID)
	}
	if p.PartyName != nil {
		h.PartyName = strings.TrimSpace(*p.PartyName)
	}
	if p.PaymentType != nil {
		h.PaymentType = strings.TrimSpace(*p.PaymentType)
	}
	if p.SourceDocumentID != nil {
		h.SourceDocumentID = strings.TrimSpace(*p.SourceDocumentID)
	}

	rederive := h.VatType != s.doc.Header.VatType || h.TaxMode != s.doc.Header.TaxMode
	s.doc.Header = h
	if rederive {
		tax := s.tax()
		for i, l := range s.doc.Lines {
			if !l.IsPlaceholder() {
				s.doc.Lines[i].Figures = calc.Derive(l.Figures, tax)
			}
		}
		if s.snapshot != nil {
			s.snapshot.Figures = calc.Derive(s.snapshot.Figures, tax)
		}
	}
	return h, nil
}

// SetAdjustments applies an adjustment patch. Setting the discount percent
// recomputes the discount amount from the line totals; setting the amount
// leaves the percent alone.
func (s *Session) SetAdjustments(p AdjustmentPatch) (Adjustments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Adjustments{}, ErrSaveInProgress
	}
	a := s.doc.Adjustments
	for _, v := range []*float64{p.OtherDiscount, p.OtherCharges, p.FreightCharge} {
		if v != nil && *v < 0 {
			return a, &ValidationError{Field: FieldAdjustments, Reason: "adjustments must not be negative"}
		}
	}
	if p.OtherDiscPercent != nil && (*p.OtherDiscPercent < 0 || *p.OtherDiscPercent > 100) {
		return a, &ValidationError{Field: FieldAdjustments, Reason: "discount percent must be between 0 and 100"}
	}
	if p.OtherDiscount != nil {
		a.OtherDiscount = calc.Round2(*p.OtherDiscount)
	}
	if p.OtherCharges != nil {
		a.OtherCharges = calc.Round2(*p.OtherCharges)
	}
	if p.FreightCharge != nil {
		a.FreightCharge = calc.Round2(*p.FreightCharge)
	}
	if p.RoundOff != nil {
		a.RoundOff = calc.Round2(*p.RoundOff)
	}
	if p.Narration != nil {
		a.Narration = *p.Narration
	}
	if p.OtherDiscPercent != nil {
		a.OtherDiscPercent = *p.OtherDiscPercent
		itemsTotal := ComputeTotals(s.doc, s.profile, s.svc.rate).ItemsTotal
		a.OtherDiscount = OtherDiscountFor(itemsTotal, a.OtherDiscPercent)
	}
	s.doc.Adjustments = a
	return a, nil
}
