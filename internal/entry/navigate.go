package entry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-entry/internal/nav"
)

// ErrUnknownDirection indicates an unsupported navigation move.
var ErrUnknownDirection = errors.New("entry: unknown navigation direction")

// Navigate loads the first, previous, next or last saved document. The list
// of saved documents is fetched on first use and after every save. The
// cursor only moves once the document loaded.
func (s *Session) Navigate(ctx context.Context, dir nav.Direction) (Document, error) {
	if !dir.Valid() {
		return Document{}, ErrUnknownDirection
	}
	if err := s.ensureCursor(ctx); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return Document{}, ErrSaveInProgress
	}
	cursor := s.cursor
	idx, ok := cursor.Target(dir)
	summary, _ := cursor.At(idx)
	s.mu.Unlock()
	if !ok {
		return Document{}, ErrNoDocuments
	}
	return s.load(ctx, summary.ID, cursor, idx)
}

// Load replaces the working document with a saved one.
func (s *Session) Load(ctx context.Context, id string) (Document, error) {
	if s.Saving() {
		return Document{}, ErrSaveInProgress
	}
	s.mu.Lock()
	cursor := s.cursor
	idx := -1
	if cursor != nil {
		idx = cursor.IndexOf(id)
	}
	s.mu.Unlock()
	return s.load(ctx, id, cursor, idx)
}

func (s *Session) load(ctx context.Context, id string, cursor *nav.Cursor, idx int) (Document, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	doc, err := s.svc.store.GetByID(ctx, id)
	if err != nil {
		return Document{}, &CollaboratorError{Op: "load", Err: err}
	}
	if doc.Kind != "" && doc.Kind != s.profile.Kind {
		return Document{}, ErrKindMismatch
	}
	doc.Kind = s.profile.Kind
	doc.ID = id
	for i := range doc.Lines {
		if doc.Lines[i].ID == "" {
			doc.Lines[i].ID = uuid.NewString()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.saving {
		s.svc.metrics.ObserveStaleLookup(string(s.profile.Kind))
		return Document{}, ErrStaleLookup
	}
	s.replaceLocked(doc)
	if cursor != nil && s.cursor == cursor {
		s.cursor.Set(idx)
	}
	return s.doc.clone(), nil
}

func (s *Session) ensureCursor(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.cursor != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	items, err := s.svc.store.ListSummaries(ctx, s.profile.Kind)
	if err != nil {
		return &CollaboratorError{Op: "list", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		s.cursor = nav.NewCursor(items)
		if s.doc.ID != "" {
			s.cursor.Set(s.cursor.IndexOf(s.doc.ID))
		}
	}
	return nil
}

// SearchByNumber finds saved documents by number.
func (s *Session) SearchByNumber(ctx context.Context, number string) ([]nav.Summary, error) {
	items, err := s.svc.store.SearchByNumber(ctx, s.profile.Kind, number)
	if err != nil {
		return nil, &CollaboratorError{Op: "search", Err: err}
	}
	return items, nil
}

// DeleteCurrent deletes the loaded saved document and starts a fresh one.
func (s *Session) DeleteCurrent(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	id := s.doc.ID
	number := s.doc.Header.DocumentNo
	epoch := s.epoch
	s.mu.Unlock()
	if id == "" {
		return ErrNoDocumentLoaded
	}

	if err := s.svc.store.Delete(ctx, id); err != nil {
		return &CollaboratorError{Op: "delete", Err: err}
	}
	next := s.svc.nextNumber(ctx, s.profile.Kind)

	s.mu.Lock()
	if s.cursor != nil {
		s.cursor.Remove(id)
	}
	if s.epoch == epoch {
		s.replaceLocked(s.blank(next))
	}
	s.mu.Unlock()

	s.svc.recordAudit(ctx, "ENTRY_DELETE", s.profile.Kind, id, map[string]any{"number": number})
	return nil
}

// Clear drops the working document and starts a fresh one.
func (s *Session) Clear(ctx context.Context) (Document, error) {
	if s.Saving() {
		return Document{}, ErrSaveInProgress
	}
	number := s.svc.nextNumber(ctx, s.profile.Kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(s.blank(number))
	if s.cursor != nil {
		s.cursor.Unset()
	}
	return s.doc.clone(), nil
}
