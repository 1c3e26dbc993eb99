package entry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
)

func TestHoldAndRestoreRoundTrip(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	setVatType(t, sess, calc.VatTypeNonVat)
	setParty(t, sess, "PT Sumber")
	addProduct(t, sess, "p-tea", 2)
	addProduct(t, sess, "p-rice", 3)
	addProduct(t, sess, "p-oil", 1)
	before := sess.Document()
	require.Equal(t, 245.5, sess.Totals().GrandTotal)

	disc, freight, roundOff, note := 5.5, 12.0, -0.5, "titip gudang"
	_, err := sess.SetAdjustments(AdjustmentPatch{OtherDiscount: &disc, FreightCharge: &freight, RoundOff: &roundOff, Narration: &note})
	require.NoError(t, err)
	payment, mode := "credit", calc.TaxModeInclusive
	_, err = sess.SetHeader(HeaderPatch{PaymentType: &payment, TaxMode: &mode})
	require.NoError(t, err)
	before = sess.Document()
	require.Equal(t, 5.5, before.Adjustments.OtherDiscount)
	beforeTotals := sess.Totals()

	held, err := sess.Hold(context.Background())
	require.NoError(t, err)
	require.Contains(t, held.Label, "PT Sumber, 3 items, "+fmt.Sprintf("%.2f", beforeTotals.GrandTotal))
	require.Equal(t, 3, held.ItemCount)

	fresh := sess.Document()
	require.Equal(t, "PUR-000002", fresh.Header.DocumentNo)
	require.Len(t, fresh.Lines, 1)
	require.True(t, fresh.Lines[0].IsPlaceholder())

	list, err := sess.Drafts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	restored, err := sess.Restore(context.Background(), held.ID)
	require.NoError(t, err)
	require.True(t, before.Header.Date.Equal(restored.Header.Date))
	restored.Header.Date = before.Header.Date
	require.Equal(t, before, restored)
	require.Equal(t, beforeTotals, sess.Totals())
	require.Equal(t, -1, sess.Focus().Index)

	list, err = sess.Drafts(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
	require.Equal(t, []string{"ENTRY_HOLD", "ENTRY_RESTORE"}, h.audit.actions())
}

func TestHoldRejections(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)

	_, err := sess.Hold(context.Background())
	require.ErrorIs(t, err, ErrNothingToHold)

	setParty(t, sess, "PT Sumber")
	addProduct(t, sess, "p-tea", 1)
	_, err = sess.Save(context.Background(), SaveOptions{})
	require.NoError(t, err)

	_, err = sess.Hold(context.Background())
	require.ErrorIs(t, err, ErrAlreadySaved)
}

func TestRestoreChecksKind(t *testing.T) {
	h := newHarness(t)
	purchase := h.open(t, KindPurchase)
	addProduct(t, purchase, "p-tea", 1)
	held, err := purchase.Hold(context.Background())
	require.NoError(t, err)

	ret := h.open(t, KindSalesReturn)
	_, err = ret.Restore(context.Background(), held.ID)
	require.ErrorIs(t, err, ErrKindMismatch)

	// the draft stays queued for its own kind
	list, err := purchase.Drafts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = ret.Restore(context.Background(), "missing")
	require.ErrorIs(t, err, drafts.ErrDraftNotFound)

	require.NoError(t, purchase.DiscardDraft(context.Background(), held.ID))
	require.ErrorIs(t, purchase.DiscardDraft(context.Background(), held.ID), drafts.ErrDraftNotFound)
}

func TestRejectedHoldKeepsFocus(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	row := sess.Document().Lines[0].ID
	_, err := sess.UpdateText(row, FieldBarcode, "89")
	require.NoError(t, err)

	_, err = sess.Hold(context.Background())
	require.ErrorIs(t, err, ErrNothingToHold)
	require.Equal(t, row, sess.Focus().RowID)
	line, err := sess.Line(row)
	require.NoError(t, err)
	require.Equal(t, "89", line.Barcode)
}
