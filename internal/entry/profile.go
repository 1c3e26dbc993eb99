package entry

// AdjustmentVAT selects how VAT is read out of document adjustments.
type AdjustmentVAT string

const (
	// AdjustmentVATInclusive extracts VAT from adjustments as if they already
	// contained it, whatever the line tax mode is.
	AdjustmentVATInclusive AdjustmentVAT = "inclusive"
	AdjustmentVATNone      AdjustmentVAT = "none"
)

// Profile configures the engine for one document kind.
type Profile struct {
	Kind            Kind
	Sequence        []Field
	Mandatory       []Field
	MultiUnit       bool
	AdjustmentVAT   AdjustmentVAT
	ProducesBatches bool
	Returns         bool
}

var purchaseSequence = []Field{
	FieldBarcode, FieldName, FieldUnit, FieldQuantity, FieldPrice,
	FieldDiscPercent, FieldDiscAmount, FieldProfitPercent, FieldRetail, FieldWholesale,
}

var profiles = map[Kind]Profile{
	KindPurchase: {
		Kind:            KindPurchase,
		Sequence:        purchaseSequence,
		Mandatory:       []Field{FieldQuantity, FieldPrice, FieldRetail, FieldWholesale},
		MultiUnit:       true,
		AdjustmentVAT:   AdjustmentVATInclusive,
		ProducesBatches: true,
	},
	KindPurchaseOrder: {
		Kind:          KindPurchaseOrder,
		Sequence:      purchaseSequence,
		Mandatory:     []Field{FieldQuantity, FieldPrice, FieldRetail, FieldWholesale},
		AdjustmentVAT: AdjustmentVATInclusive,
	},
	KindSalesReturn: {
		Kind:          KindSalesReturn,
		Sequence:      []Field{FieldBarcode, FieldName, FieldUnit, FieldQuantity, FieldPrice, FieldDiscPercent, FieldDiscAmount},
		Mandatory:     []Field{FieldQuantity, FieldPrice},
		MultiUnit:     true,
		AdjustmentVAT: AdjustmentVATNone,
		Returns:       true,
	},
}

// ProfileFor returns the profile registered for kind.
func ProfileFor(kind Kind) (Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, ErrUnknownKind
	}
	return p, nil
}

// Kinds lists the supported document kinds.
func Kinds() []Kind {
	return []Kind{KindPurchase, KindPurchaseOrder, KindSalesReturn}
}

func (p Profile) last() int {
	return len(p.Sequence) - 1
}

func (p Profile) indexOf(f Field) int {
	for i, s := range p.Sequence {
		if s == f {
			return i
		}
	}
	return -1
}

// validateLine runs the commit checks in order and stops at the first failure.
func (p Profile) validateLine(l Line) *ValidationError {
	if l.ProductID == "" || l.Name == "" {
		return &ValidationError{RowID: l.ID, Field: FieldName, Reason: "select a product"}
	}
	for _, f := range p.Mandatory {
		if l.value(f) <= 0 {
			return &ValidationError{RowID: l.ID, Field: f, Reason: string(f) + " must be greater than zero"}
		}
	}
	return nil
}
