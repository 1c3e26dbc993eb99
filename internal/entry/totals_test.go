package entry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
)

func ptr[T any](v T) *T {
	return &v
}

func TestDocumentDiscountPercent(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	setVatType(t, sess, calc.VatTypeNonVat)
	addProduct(t, sess, "p-tea", 2)
	addProduct(t, sess, "p-oil", 1)

	adj, err := sess.SetAdjustments(AdjustmentPatch{OtherDiscPercent: ptr(10.0), OtherDiscount: ptr(99.0)})
	require.NoError(t, err)
	require.Equal(t, 16.9, adj.OtherDiscount)

	totals := sess.Totals()
	require.Equal(t, 169.0, totals.ItemsTotal)
	require.Equal(t, 152.1, totals.GrandTotal)
	require.Zero(t, totals.AdjustmentVat)

	adj, err = sess.SetAdjustments(AdjustmentPatch{OtherDiscount: ptr(20.0), FreightCharge: ptr(5.5)})
	require.NoError(t, err)
	require.Equal(t, 10.0, adj.OtherDiscPercent)
	require.Equal(t, 154.5, sess.Totals().GrandTotal)

	_, err = sess.SetAdjustments(AdjustmentPatch{OtherCharges: ptr(-1.0)})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldAdjustments, verr.Field)

	_, err = sess.SetAdjustments(AdjustmentPatch{OtherDiscPercent: ptr(120.0)})
	require.True(t, errors.As(err, &verr))
}

func TestAdjustmentVATIsReportedButNotAdded(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	addProduct(t, sess, "p-tea", 2)

	_, err := sess.SetAdjustments(AdjustmentPatch{OtherCharges: ptr(21.0)})
	require.NoError(t, err)

	totals := sess.Totals()
	require.Equal(t, 5.0, totals.ItemsVat)
	require.Equal(t, 105.0, totals.ItemsTotal)
	require.Equal(t, 21.0, totals.NetAdjustments)
	require.Equal(t, 1.0, totals.AdjustmentVat)
	require.Equal(t, 6.0, totals.TotalVat)
	require.Equal(t, 126.0, totals.GrandTotal)
}

func TestSalesReturnHasNoAdjustmentVAT(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindSalesReturn)
	addProduct(t, sess, "p-tea", 2)

	_, err := sess.SetAdjustments(AdjustmentPatch{OtherCharges: ptr(21.0)})
	require.NoError(t, err)

	totals := sess.Totals()
	require.Zero(t, totals.AdjustmentVat)
	require.Equal(t, 5.0, totals.TotalVat)
	require.Equal(t, 126.0, totals.GrandTotal)
}

func TestComputeTotalsSkipsPlaceholders(t *testing.T) {
	profile, err := ProfileFor(KindPurchase)
	require.NoError(t, err)
	doc := savedDocument(KindPurchase, "PUR-1",
		savedLine("a", "p-tea", "Teh Botol", 2, 50),
		Line{ID: "b", Name: "typed text"},
	)

	totals := ComputeTotals(doc, profile, calc.DefaultVATRate)
	require.Equal(t, 1, totals.ItemCount)
	require.Equal(t, 100.0, totals.GrandTotal)

	_, err = ProfileFor(Kind("invoice"))
	require.ErrorIs(t, err, ErrUnknownKind)
}
