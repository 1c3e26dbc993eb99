package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/units"
)

// Lookup says how a product is picked for a row. The first non-empty key of
// ProductID, Barcode and Serial is used. UnitID optionally requests a unit.
type Lookup struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	Serial    string `json:"serial"`
	UnitID    string `json:"unitId"`
}

// AddLine appends a placeholder row.
func (s *Session) AddLine() (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Line{}, ErrSaveInProgress
	}
	line := newPlaceholder()
	s.doc.Lines = append(s.doc.Lines, line)
	return line, nil
}

// RemoveLine deletes a row. A pending snapshot of that row is dropped and the
// document always keeps at least one placeholder row.
func (s *Session) RemoveLine(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	idx := s.find(rowID)
	if idx < 0 {
		return ErrRowNotFound
	}
	if s.snapshot != nil && s.snapshot.ID == rowID {
		s.snapshot = nil
	}
	if s.editing == rowID {
		s.editing = ""
		s.field = 0
	}
	delete(s.committed, rowID)
	delete(s.revs, rowID)
	s.doc.Lines = append(s.doc.Lines[:idx:idx], s.doc.Lines[idx+1:]...)
	if len(s.doc.Lines) == 0 {
		s.doc.Lines = []Line{newPlaceholder()}
	}
	return nil
}

// UpdateField applies a numeric edit to a row and re-derives it. The row is
// entered first, so the edit is covered by the row's snapshot.
func (s *Session) UpdateField(rowID string, field Field, value float64) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Line{}, ErrSaveInProgress
	}
	edit, ok := numericFields[field]
	if !ok {
		return Line{}, ErrUnknownField
	}
	idx := s.find(rowID)
	if idx < 0 {
		return Line{}, ErrRowNotFound
	}
	if s.doc.Lines[idx].IsPlaceholder() {
		return Line{}, ErrPlaceholderRow
	}
	if err := s.enterLocked(rowID, ""); err != nil {
		return Line{}, err
	}
	if pos := s.profile.indexOf(field); pos >= 0 {
		s.field = pos
	}
	line := s.doc.Lines[idx]
	if err := calc.Check(line.Figures, edit, value); err != nil {
		s.svc.metrics.ObserveValidation(string(s.profile.Kind), string(field))
		return line.clone(), &ValidationError{RowID: rowID, Field: field, Reason: strings.TrimPrefix(err.Error(), "calc: ")}
	}
	line.Figures = calc.Apply(line.Figures, edit, value, s.tax())
	s.doc.Lines[idx] = line
	return line.clone(), nil
}

// UpdateText stores typed barcode or name text on a row.
func (s *Session) UpdateText(rowID string, field Field, text string) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Line{}, ErrSaveInProgress
	}
	if field != FieldBarcode && field != FieldName {
		return Line{}, ErrUnknownField
	}
	idx := s.find(rowID)
	if idx < 0 {
		return Line{}, ErrRowNotFound
	}
	if err := s.enterLocked(rowID, field); err != nil {
		return Line{}, err
	}
	line := s.doc.Lines[idx]
	if field == FieldBarcode {
		line.Barcode = text
	} else {
		line.Name = text
	}
	s.doc.Lines[idx] = line
	return line.clone(), nil
}

// SetExtras edits batch number and expiry outside the field sequence. The
// change survives a later revert of the row.
func (s *Session) SetExtras(rowID, batchNumber, expiryDate string) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Line{}, ErrSaveInProgress
	}
	idx := s.find(rowID)
	if idx < 0 {
		return Line{}, ErrRowNotFound
	}
	expiryDate = strings.TrimSpace(expiryDate)
	if expiryDate != "" {
		if _, err := time.Parse(time.DateOnly, expiryDate); err != nil {
			return Line{}, &ValidationError{RowID: rowID, Field: FieldExpiryDate, Reason: "expiry date must be YYYY-MM-DD"}
		}
	}
	batchNumber = strings.TrimSpace(batchNumber)
	s.doc.Lines[idx].BatchNumber = batchNumber
	s.doc.Lines[idx].ExpiryDate = expiryDate
	if s.snapshot != nil && s.snapshot.ID == rowID {
		s.snapshot.BatchNumber = batchNumber
		s.snapshot.ExpiryDate = expiryDate
	}
	return s.doc.Lines[idx].clone(), nil
}

// ChangeUnit switches a row to another of its units. Pricing is reseeded from
// the unit with quantity one and no discount.
func (s *Session) ChangeUnit(rowID, unitID string) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Line{}, ErrSaveInProgress
	}
	idx := s.find(rowID)
	if idx < 0 {
		return Line{}, ErrRowNotFound
	}
	if s.doc.Lines[idx].IsPlaceholder() {
		return Line{}, ErrPlaceholderRow
	}
	if err := s.enterLocked(rowID, FieldUnit); err != nil {
		return Line{}, err
	}
	line := s.doc.Lines[idx]
	opt, err := units.Pick(line.AvailableUnits, unitID)
	if err != nil {
		return line.clone(), &ValidationError{RowID: rowID, Field: FieldUnit, Reason: "unit is not available for this product"}
	}
	line = withUnit(line, opt)
	line.Figures = calc.Derive(units.Reseed(line.Figures, opt), s.tax())
	s.doc.Lines[idx] = line
	return line.clone(), nil
}

// SelectProduct fills a row from the catalog. Selection is committed at once
// and focus moves to the quantity. Stock and batch number are fetched
// afterwards; their failures are logged and ignored.
func (s *Session) SelectProduct(ctx context.Context, rowID string, lookup Lookup) (Line, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return Line{}, ErrSaveInProgress
	}
	t, err := s.ticketLocked(rowID)
	s.mu.Unlock()
	if err != nil {
		return Line{}, err
	}

	product, err := s.svc.lookup(ctx, lookup)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, &ValidationError{RowID: rowID, Field: FieldBarcode, Reason: "product not found"}
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.RowID = rowID
			return Line{}, verr
		}
		s.svc.logger.Warn("product lookup", slog.String("row", rowID), slog.Any("error", err))
		return Line{}, fmt.Errorf("entry: product lookup: %w", err)
	}

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return Line{}, ErrSaveInProgress
	}
	if !s.validLocked(t) {
		s.mu.Unlock()
		s.svc.metrics.ObserveStaleLookup(string(s.profile.Kind))
		return Line{}, ErrStaleLookup
	}
	line, err := s.applyProductLocked(rowID, product, lookup)
	if err != nil {
		s.mu.Unlock()
		return Line{}, err
	}
	t, _ = s.ticketLocked(rowID)
	needBatch := s.profile.ProducesBatches && line.BatchNumber == ""
	s.mu.Unlock()

	s.enrich(ctx, t, line.ProductID, needBatch)
	return s.Line(rowID)
}

func (s *Service) lookup(ctx context.Context, lookup Lookup) (catalog.Product, error) {
	switch {
	case strings.TrimSpace(lookup.ProductID) != "":
		return s.catalog.ProductByID(ctx, strings.TrimSpace(lookup.ProductID))
	case strings.TrimSpace(lookup.Barcode) != "":
		return s.catalog.ProductByBarcode(ctx, strings.TrimSpace(lookup.Barcode))
	case strings.TrimSpace(lookup.Serial) != "":
		return s.catalog.ProductBySerial(ctx, strings.TrimSpace(lookup.Serial))
	}
	return catalog.Product{}, &ValidationError{Field: FieldBarcode, Reason: "product, barcode or serial is required"}
}

func (s *Session) applyProductLocked(rowID string, product catalog.Product, lookup Lookup) (Line, error) {
	var (
		opt  units.Option
		opts []units.Option
		err  error
	)
	if lookup.Serial != "" && lookup.ProductID == "" && lookup.Barcode == "" {
		opt, opts = units.ResolveSerial(product, lookup.Serial, s.profile.MultiUnit)
	} else {
		want := lookup.UnitID
		if want == "" {
			want = product.MatchedMultiUnitID
		}
		opt, opts, err = units.Resolve(product, want, s.profile.MultiUnit)
		if err != nil {
			if lookup.UnitID != "" {
				return Line{}, &ValidationError{RowID: rowID, Field: FieldUnit, Reason: "unit is not available for this product"}
			}
			opt = opts[0]
		}
	}

	if err := s.enterLocked(rowID, ""); err != nil {
		return Line{}, err
	}
	idx := s.find(rowID)
	line := s.doc.Lines[idx]
	if line.ProductID != product.ID {
		line.BatchNumber = ""
		line.ExpiryDate = ""
	}
	line.ProductID = product.ID
	line.ProductCode = product.Code
	line.Barcode = product.Barcode
	line.Name = product.Name
	line.BatchTracked = product.BatchTracked
	line.AvailableUnits = opts
	line.StockOnHand = 0
	line = withUnit(line, opt)
	line.Figures = calc.Derive(units.Reseed(calc.Figures{}, opt), s.tax())
	s.doc.Lines[idx] = line

	s.revs[rowID]++
	s.committed[rowID] = true
	s.snapshot = nil
	if pos := s.profile.indexOf(FieldQuantity); pos >= 0 {
		s.field = pos
	}
	return line, nil
}

func (s *Session) enrich(ctx context.Context, t ticket, productID string, needBatch bool) {
	var (
		stock  float64
		number string
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.svc.stock != nil {
		g.Go(func() error {
			v, err := s.svc.stock.OnHand(gctx, productID)
			if err != nil {
				s.svc.logger.Warn("stock lookup", slog.String("product", productID), slog.Any("error", err))
				return nil
			}
			stock = v
			return nil
		})
	}
	if needBatch && s.svc.batchNumbers != nil {
		g.Go(func() error {
			v, err := s.svc.batchNumbers.NextBatchNumber(gctx)
			if err != nil {
				s.svc.logger.Warn("batch number allocation", slog.Any("error", err))
				return nil
			}
			number = v
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validLocked(t) {
		s.svc.metrics.ObserveStaleLookup(string(s.profile.Kind))
		return
	}
	idx := s.find(t.rowID)
	s.doc.Lines[idx].StockOnHand = stock
	if number != "" && s.doc.Lines[idx].BatchNumber == "" {
		s.doc.Lines[idx].BatchNumber = number
	}
}

func withUnit(line Line, opt units.Option) Line {
	line.UnitOptionID = opt.ID
	line.UnitID = opt.UnitID
	line.UnitName = opt.Name
	line.MultiUnitID = opt.MultiUnitID
	return line
}
