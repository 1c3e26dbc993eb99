package entry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
)

// Hold sets the working document aside in the draft queue and resets the
// session. Saved documents and documents without products cannot be held.
func (s *Session) Hold(ctx context.Context) (drafts.HeldDraft, error) {
	kind := s.profile.Kind

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return drafts.HeldDraft{}, ErrSaveInProgress
	}
	if s.doc.ID != "" {
		s.mu.Unlock()
		return drafts.HeldDraft{}, ErrAlreadySaved
	}
	snapshot := s.revertedLocked()
	if len(snapshot.ProductLines()) == 0 {
		s.mu.Unlock()
		return drafts.HeldDraft{}, ErrNothingToHold
	}
	totals := ComputeTotals(snapshot, s.profile, s.svc.rate)
	epoch := s.epoch
	s.mu.Unlock()

	held, err := s.svc.drafts.Hold(ctx, string(kind), drafts.Summary{
		PartyName: snapshot.Header.PartyName,
		ItemCount: totals.ItemCount,
		Total:     totals.GrandTotal,
	}, snapshot)
	if err != nil {
		return drafts.HeldDraft{}, &CollaboratorError{Op: "hold", Err: err}
	}
	number := s.svc.nextNumber(ctx, kind)

	s.mu.Lock()
	if s.epoch == epoch {
		s.replaceLocked(s.blank(number))
	}
	if s.cursor != nil {
		s.cursor.Unset()
	}
	s.mu.Unlock()

	s.svc.metrics.ObserveDraft(string(kind), "hold")
	s.svc.recordAudit(ctx, "ENTRY_HOLD", kind, held.ID, map[string]any{"number": snapshot.Header.DocumentNo, "total": totals.GrandTotal})
	return held, nil
}

// Restore takes a draft out of the queue and makes it the working document.
// The current working document is discarded.
func (s *Session) Restore(ctx context.Context, draftID string) (Document, error) {
	kind := s.profile.Kind
	if s.Saving() {
		return Document{}, ErrSaveInProgress
	}

	var doc Document
	_, err := s.svc.drafts.Restore(ctx, draftID, func(d drafts.HeldDraft) error {
		if d.Kind != string(kind) {
			return ErrKindMismatch
		}
		var restored Document
		if err := json.Unmarshal(d.Snapshot, &restored); err != nil {
			return fmt.Errorf("entry: decode draft: %w", err)
		}
		doc = restored
		return nil
	})
	if err != nil {
		if errors.Is(err, drafts.ErrDraftNotFound) || errors.Is(err, ErrKindMismatch) {
			return Document{}, err
		}
		return Document{}, &CollaboratorError{Op: "restore", Err: err}
	}

	s.mu.Lock()
	doc.ID = ""
	doc.Kind = kind
	s.replaceLocked(doc)
	if s.cursor != nil {
		s.cursor.Unset()
	}
	out := s.doc.clone()
	s.mu.Unlock()

	s.svc.metrics.ObserveDraft(string(kind), "restore")
	s.svc.recordAudit(ctx, "ENTRY_RESTORE", kind, draftID, map[string]any{"number": out.Header.DocumentNo})
	return out, nil
}

// DiscardDraft removes a held draft without restoring it.
func (s *Session) DiscardDraft(ctx context.Context, draftID string) error {
	if err := s.svc.drafts.Discard(ctx, draftID); err != nil {
		if errors.Is(err, drafts.ErrDraftNotFound) {
			return err
		}
		return &CollaboratorError{Op: "discard", Err: err}
	}
	s.svc.metrics.ObserveDraft(string(s.profile.Kind), "discard")
	return nil
}

// Drafts lists held drafts of the session's kind.
func (s *Session) Drafts(ctx context.Context) ([]drafts.HeldDraft, error) {
	list, err := s.svc.drafts.List(ctx, string(s.profile.Kind))
	if err != nil {
		return nil, &CollaboratorError{Op: "list drafts", Err: err}
	}
	return list, nil
}
