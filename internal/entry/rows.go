package entry

// EnterRow moves the edit cursor onto a row. Leaving another row that was not
// committed reverts it. A row that has a product and was not committed in this
// session is snapshotted before any edit. An empty field keeps the current
// position on the same row, or starts the sequence on a new one.
func (s *Session) EnterRow(rowID string, field Field) (Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Focus{}, ErrSaveInProgress
	}
	if err := s.enterLocked(rowID, field); err != nil {
		return Focus{}, err
	}
	return s.focusLocked(), nil
}

func (s *Session) enterLocked(rowID string, field Field) error {
	idx := s.find(rowID)
	if idx < 0 {
		return ErrRowNotFound
	}
	pos := -1
	if field != "" {
		if pos = s.profile.indexOf(field); pos < 0 {
			return ErrUnknownField
		}
	}
	if s.editing != rowID {
		s.revertLocked()
		s.editing = rowID
		s.field = 0
		line := s.doc.Lines[idx]
		if !line.IsPlaceholder() && !s.committed[rowID] {
			snap := line.clone()
			s.snapshot = &snap
		}
	}
	if pos >= 0 {
		s.field = pos
	}
	return nil
}

// RevertIfUncommitted leaves the row being edited. When it holds a snapshot
// the row goes back to it field for field. It reports whether a revert
// happened.
func (s *Session) RevertIfUncommitted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return false, ErrSaveInProgress
	}
	return s.revertLocked(), nil
}

// Blur reports that focus left the row. Focus moving into an overlay that
// belongs to the row, such as a unit picker, is not leaving.
func (s *Session) Blur(overlay bool) (bool, error) {
	if overlay {
		return false, nil
	}
	return s.RevertIfUncommitted()
}

// revertedLocked returns the document as a revert of the edited row would
// leave it, without touching the session.
func (s *Session) revertedLocked() Document {
	doc := s.doc.clone()
	if s.editing != "" && s.snapshot != nil && s.snapshot.ID == s.editing {
		if idx := s.find(s.editing); idx >= 0 {
			doc.Lines[idx] = s.snapshot.clone()
		}
	}
	return doc
}

func (s *Session) revertLocked() bool {
	if s.editing == "" {
		return false
	}
	reverted := false
	if s.snapshot != nil && s.snapshot.ID == s.editing {
		if idx := s.find(s.editing); idx >= 0 {
			s.doc.Lines[idx] = s.snapshot.clone()
			reverted = true
		}
	}
	s.editing = ""
	s.field = 0
	s.snapshot = nil
	return reverted
}

// Advance moves to the next field of the sequence. Advancing from the final
// field is the commit action.
func (s *Session) Advance() (Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Focus{}, ErrSaveInProgress
	}
	if s.editing == "" {
		return Focus{}, ErrNotEditing
	}
	if s.field < s.profile.last() {
		s.field++
		return s.focusLocked(), nil
	}
	return s.commitLocked()
}

// CommitIfValid validates the edited row once its cursor sits on the final
// field. The first failing check moves focus to its field and is returned as
// a *ValidationError. On success the next row is entered, or a placeholder is
// appended when there is none.
func (s *Session) CommitIfValid(rowID string) (Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Focus{}, ErrSaveInProgress
	}
	if s.editing == "" || (rowID != "" && s.editing != rowID) {
		return Focus{}, ErrNotEditing
	}
	if s.field != s.profile.last() {
		return s.focusLocked(), ErrSequenceIncomplete
	}
	return s.commitLocked()
}

func (s *Session) commitLocked() (Focus, error) {
	idx := s.find(s.editing)
	if idx < 0 {
		s.editing, s.field, s.snapshot = "", 0, nil
		return s.focusLocked(), ErrRowNotFound
	}
	line := s.doc.Lines[idx]
	if verr := s.profile.validateLine(line); verr != nil {
		if pos := s.profile.indexOf(verr.Field); pos >= 0 {
			s.field = pos
		}
		s.svc.metrics.ObserveValidation(string(s.profile.Kind), string(verr.Field))
		return s.focusLocked(), verr
	}

	s.committed[line.ID] = true
	s.snapshot = nil
	s.field = 0
	if idx+1 < len(s.doc.Lines) {
		next := s.doc.Lines[idx+1]
		s.editing = next.ID
		if !next.IsPlaceholder() && !s.committed[next.ID] {
			snap := next.clone()
			s.snapshot = &snap
		}
		return s.focusLocked(), nil
	}
	placeholder := newPlaceholder()
	s.doc.Lines = append(s.doc.Lines, placeholder)
	s.editing = placeholder.ID
	return s.focusLocked(), nil
}
