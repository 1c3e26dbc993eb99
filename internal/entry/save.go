package entry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-entry/internal/batch"
)

// SaveOptions tunes a save.
type SaveOptions struct {
	// AndNew resets the session to a fresh document after a successful save.
	AndNew bool `json:"andNew"`
}

// Save validates the working document and hands it to the document store.
// A second call while one is outstanding fails with ErrSaveInProgress. Store
// failures come back as *CollaboratorError and leave the document untouched.
func (s *Session) Save(ctx context.Context, opts SaveOptions) (SaveResult, error) {
	kind := string(s.profile.Kind)

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		s.svc.metrics.ObserveSave(kind, "busy")
		return SaveResult{}, ErrSaveInProgress
	}
	if verr := s.validateDocument(s.revertedLocked()); verr != nil {
		s.mu.Unlock()
		s.svc.metrics.ObserveValidation(kind, string(verr.Field))
		s.svc.metrics.ObserveSave(kind, "invalid")
		return SaveResult{}, verr
	}
	s.revertLocked()
	req := s.buildRequestLocked()
	docID := s.doc.ID
	epoch := s.epoch
	s.saving = true
	s.saves++
	s.mu.Unlock()

	var (
		res SaveResult
		err error
	)
	if docID == "" {
		res, err = s.svc.store.Create(ctx, req)
	} else {
		res, err = s.svc.store.Update(ctx, docID, req)
	}
	if err != nil {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
		s.svc.logger.Error("save document", slog.String("kind", kind), slog.String("number", req.Document.Header.DocumentNo), slog.Any("error", err))
		s.svc.metrics.ObserveSave(kind, "failed")
		return SaveResult{}, &CollaboratorError{Op: "save", Err: err}
	}

	var number string
	if opts.AndNew {
		number = s.svc.nextNumber(ctx, s.profile.Kind)
	}

	s.mu.Lock()
	s.saving = false
	if s.epoch == epoch {
		s.doc.ID = res.ID
		if opts.AndNew {
			s.replaceLocked(s.blank(number))
		}
	}
	s.cursor = nil
	s.mu.Unlock()

	s.svc.metrics.ObserveSave(kind, "ok")
	action := "ENTRY_CREATE"
	if docID != "" {
		action = "ENTRY_UPDATE"
	}
	s.svc.recordAudit(ctx, action, s.profile.Kind, res.ID, map[string]any{
		"number":  req.Document.Header.DocumentNo,
		"batches": res.BatchCount,
		"total":   req.Totals.GrandTotal,
	})
	s.handOff(ctx, res.ID, req)
	return res, nil
}

func (s *Session) handOff(ctx context.Context, id string, req SaveRequest) {
	if s.svc.handoff == nil || len(req.Batches) == 0 {
		return
	}
	err := s.svc.handoff.HandOff(ctx, Handoff{
		DocumentID: id,
		DocumentNo: req.Document.Header.DocumentNo,
		Kind:       s.profile.Kind,
		SavedAt:    s.svc.now().UTC(),
		Batches:    req.Batches,
	})
	if err != nil {
		s.svc.logger.Warn("batch handoff", slog.String("document", id), slog.Any("error", err))
	}
}

// validateDocument runs the save checks in order and stops at the first
// failure.
func (s *Session) validateDocument(doc Document) *ValidationError {
	partial := 0
	for _, l := range doc.Lines {
		if l.HasPartialText() {
			partial++
		}
	}
	if partial > 1 {
		return &ValidationError{Field: FieldLines, Reason: "more than one row is incomplete"}
	}
	h := doc.Header
	if strings.TrimSpace(h.PartyID) == "" && strings.TrimSpace(h.PartyName) == "" {
		return &ValidationError{Field: FieldParty, Reason: "select a party"}
	}
	lines := doc.ProductLines()
	if len(lines) == 0 {
		return &ValidationError{Field: FieldLines, Reason: "add at least one product"}
	}
	if s.profile.Returns && h.ReturnMode == ReturnByReference && strings.TrimSpace(h.SourceDocumentID) == "" {
		return &ValidationError{Field: FieldSourceDocument, Reason: "load the source document for a by-reference return"}
	}
	for _, l := range lines {
		if verr := s.profile.validateLine(l); verr != nil {
			return verr
		}
	}
	return nil
}

func (s *Session) buildRequestLocked() SaveRequest {
	doc := s.doc.clone()
	doc.Lines = doc.ProductLines()
	req := SaveRequest{
		SaveKey:  uuid.NewString(),
		Document: doc,
		Totals:   ComputeTotals(doc, s.profile, s.svc.rate),
	}
	if s.profile.ProducesBatches {
		req.Batches = batch.Group(batchLines(doc.Lines))
	}
	return req
}

func batchLines(lines []Line) []batch.Line {
	out := make([]batch.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, batch.Line{
			ProductID:     l.ProductID,
			BatchTracked:  l.BatchTracked,
			Price:         l.Price,
			ExpiryDate:    l.ExpiryDate,
			Quantity:      l.Quantity,
			DiscAmount:    l.DiscAmount,
			VatAmount:     l.VatAmount,
			Gross:         l.Gross,
			Total:         l.Total,
			BatchNumber:   l.BatchNumber,
			MultiUnitID:   l.MultiUnitID,
			Retail:        l.Retail,
			Wholesale:     l.Wholesale,
			SpecialPrice1: l.SpecialPrice1,
			SpecialPrice2: l.SpecialPrice2,
		})
	}
	return out
}
