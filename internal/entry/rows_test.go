package entry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitStopsAtFirstFailingCheck(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	row := addProduct(t, sess, "p-tea", 1)

	_, err := sess.UpdateField(row, FieldQuantity, 0)
	require.NoError(t, err)
	_, err = sess.UpdateText(row, FieldName, "")
	require.NoError(t, err)
	_, err = sess.EnterRow(row, FieldWholesale)
	require.NoError(t, err)

	focus, err := sess.CommitIfValid(row)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldName, verr.Field)
	require.Equal(t, row, verr.RowID)
	require.Equal(t, FieldName, focus.Field)

	_, err = sess.UpdateText(row, FieldName, "Teh Botol")
	require.NoError(t, err)
	_, err = sess.EnterRow(row, FieldWholesale)
	require.NoError(t, err)
	focus, err = sess.CommitIfValid(row)
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldQuantity, verr.Field)
	require.Equal(t, FieldQuantity, focus.Field)
	require.Equal(t, 3, focus.Index)
}

func TestCommitRequiresFinalField(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	row := addProduct(t, sess, "p-tea", 2)

	focus, err := sess.CommitIfValid(row)
	require.ErrorIs(t, err, ErrSequenceIncomplete)
	require.Equal(t, FieldQuantity, focus.Field)

	_, err = sess.CommitIfValid("other")
	require.ErrorIs(t, err, ErrNotEditing)
}

func TestCommitAppendsPlaceholderAfterLastRow(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	row := addProduct(t, sess, "p-tea", 2)

	var (
		focus Focus
		err   error
	)
	for i := 0; i < 6; i++ {
		focus, err = sess.Advance()
		require.NoError(t, err)
	}
	require.Equal(t, FieldWholesale, focus.Field)

	focus, err = sess.Advance()
	require.NoError(t, err)
	doc := sess.Document()
	require.Len(t, doc.Lines, 2)
	require.Equal(t, row, doc.Lines[0].ID)
	require.True(t, doc.Lines[1].IsPlaceholder())
	require.Equal(t, doc.Lines[1].ID, focus.RowID)
	require.Equal(t, FieldBarcode, focus.Field)
}

func TestCommitMovesToNextExistingRow(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	first := addProduct(t, sess, "p-tea", 2)
	second := addProduct(t, sess, "p-oil", 1)

	_, err := sess.EnterRow(first, FieldWholesale)
	require.NoError(t, err)
	focus, err := sess.CommitIfValid(first)
	require.NoError(t, err)
	require.Equal(t, second, focus.RowID)
	require.Equal(t, 0, focus.Index)
	require.Len(t, sess.Document().Lines, 2)
}

func TestLeavingUncommittedRowRestoresIt(t *testing.T) {
	h := newHarness(t)
	id := h.store.put(savedDocument(KindPurchase, "PUR-000010",
		savedLine("row-a", "p-tea", "Teh Botol", 2, 50),
		savedLine("row-b", "p-oil", "Minyak 2L", 1, 69),
	))
	sess := h.open(t, KindPurchase)
	_, err := sess.Load(context.Background(), id)
	require.NoError(t, err)
	original, err := sess.Line("row-b")
	require.NoError(t, err)

	_, err = sess.EnterRow("row-a", FieldWholesale)
	require.NoError(t, err)
	focus, err := sess.CommitIfValid("row-a")
	require.NoError(t, err)
	require.Equal(t, "row-b", focus.RowID)

	_, err = sess.UpdateField("row-b", FieldQuantity, 9)
	require.NoError(t, err)
	_, err = sess.UpdateField("row-b", FieldPrice, 99)
	require.NoError(t, err)
	_, err = sess.UpdateField("row-b", FieldDiscAmount, 100)
	require.NoError(t, err)

	_, err = sess.EnterRow("row-a", FieldQuantity)
	require.NoError(t, err)
	restored, err := sess.Line("row-b")
	require.NoError(t, err)
	require.Equal(t, original, restored)

	// row-a was committed in this session, so its edits stay.
	_, err = sess.UpdateField("row-a", FieldQuantity, 7)
	require.NoError(t, err)
	reverted, err := sess.RevertIfUncommitted()
	require.NoError(t, err)
	require.False(t, reverted)
	kept, err := sess.Line("row-a")
	require.NoError(t, err)
	require.Equal(t, 7.0, kept.Quantity)
	require.Equal(t, 350.0, kept.Total)
}

func TestOverlayBlurKeepsEdits(t *testing.T) {
	h := newHarness(t)
	id := h.store.put(savedDocument(KindPurchase, "PUR-000011", savedLine("row-a", "p-tea", "Teh Botol", 2, 50)))
	sess := h.open(t, KindPurchase)
	_, err := sess.Load(context.Background(), id)
	require.NoError(t, err)

	_, err = sess.UpdateField("row-a", FieldQuantity, 9)
	require.NoError(t, err)

	reverted, err := sess.Blur(true)
	require.NoError(t, err)
	require.False(t, reverted)
	line, _ := sess.Line("row-a")
	require.Equal(t, 9.0, line.Quantity)
	require.Equal(t, "row-a", sess.Focus().RowID)

	reverted, err = sess.Blur(false)
	require.NoError(t, err)
	require.True(t, reverted)
	line, _ = sess.Line("row-a")
	require.Equal(t, 2.0, line.Quantity)
	require.Equal(t, 100.0, line.Total)
	require.Equal(t, -1, sess.Focus().Index)
}

func TestExtrasSurviveRevert(t *testing.T) {
	h := newHarness(t)
	id := h.store.put(savedDocument(KindPurchase, "PUR-000012", savedLine("row-a", "p-milk", "Susu UHT", 2, 10)))
	sess := h.open(t, KindPurchase)
	_, err := sess.Load(context.Background(), id)
	require.NoError(t, err)

	_, err = sess.UpdateField("row-a", FieldQuantity, 5)
	require.NoError(t, err)
	_, err = sess.SetExtras("row-a", "LOT-7", "2026-06-30")
	require.NoError(t, err)
	_, err = sess.RevertIfUncommitted()
	require.NoError(t, err)

	line, _ := sess.Line("row-a")
	require.Equal(t, 2.0, line.Quantity)
	require.Equal(t, "LOT-7", line.BatchNumber)
	require.Equal(t, "2026-06-30", line.ExpiryDate)

	_, err = sess.SetExtras("row-a", "", "30/06/2026")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldExpiryDate, verr.Field)
}

func TestRemovingLastRowLeavesPlaceholder(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	row := addProduct(t, sess, "p-tea", 1)

	require.NoError(t, sess.RemoveLine(row))
	doc := sess.Document()
	require.Len(t, doc.Lines, 1)
	require.True(t, doc.Lines[0].IsPlaceholder())
	require.Equal(t, -1, sess.Focus().Index)

	require.ErrorIs(t, sess.RemoveLine(row), ErrRowNotFound)
}

func TestNumericEditValidation(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	placeholder := sess.Document().Lines[0].ID

	_, err := sess.UpdateField(placeholder, FieldQuantity, 2)
	require.ErrorIs(t, err, ErrPlaceholderRow)

	row := addProduct(t, sess, "p-tea", 2)
	_, err = sess.UpdateField(row, FieldDiscAmount, 100.01)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldDiscAmount, verr.Field)
	require.Equal(t, "discount exceeds gross amount", verr.Reason)

	_, err = sess.UpdateField(row, FieldPrice, -1)
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldPrice, verr.Field)

	_, err = sess.UpdateField(row, FieldBarcode, 1)
	require.ErrorIs(t, err, ErrUnknownField)

	line, err := sess.UpdateField(row, FieldDiscPercent, 10)
	require.NoError(t, err)
	require.Equal(t, 10.0, line.DiscAmount)
	require.Equal(t, 94.5, line.Total)
}

func TestQuantityEditCannotPushAmountDiscountPastGross(t *testing.T) {
	h := newHarness(t)
	sess := h.open(t, KindPurchase)
	setParty(t, sess, "PT Sumber")
	row := addProduct(t, sess, "p-tea", 2)

	_, err := sess.UpdateField(row, FieldDiscAmount, 80)
	require.NoError(t, err)

	line, err := sess.UpdateField(row, FieldQuantity, 1)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldQuantity, verr.Field)
	require.Equal(t, row, verr.RowID)
	require.Equal(t, "discount exceeds gross amount", verr.Reason)
	require.Equal(t, 2.0, line.Quantity)
	require.Equal(t, 20.0, line.Net)

	_, err = sess.UpdateField(row, FieldPrice, 39)
	require.True(t, errors.As(err, &verr))
	require.Equal(t, FieldPrice, verr.Field)

	current, err := sess.Line(row)
	require.NoError(t, err)
	require.Equal(t, 2.0, current.Quantity)
	require.Equal(t, 50.0, current.Price)
	require.Equal(t, 21.0, current.Total)
	require.GreaterOrEqual(t, sess.Totals().GrandTotal, 0.0)
}
