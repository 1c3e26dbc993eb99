package entry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind indicates an unsupported document kind.
	ErrUnknownKind = errors.New("entry: unknown document kind")
	// ErrKindMismatch indicates a draft or document of another kind.
	ErrKindMismatch = errors.New("entry: document kind mismatch")
	// ErrSaveInProgress is returned while a save is outstanding.
	ErrSaveInProgress = errors.New("entry: save already in progress")
	// ErrNothingToHold rejects holding a document without product lines.
	ErrNothingToHold = errors.New("entry: nothing to hold")
	// ErrAlreadySaved rejects holding a persisted document.
	ErrAlreadySaved = errors.New("entry: document already saved")
	// ErrNoDocumentLoaded indicates the working document was never saved.
	ErrNoDocumentLoaded = errors.New("entry: no saved document loaded")
	// ErrNoDocuments indicates there is nothing to navigate.
	ErrNoDocuments = errors.New("entry: no saved documents")
	// ErrNotFound indicates the document store has no such document.
	ErrNotFound = errors.New("entry: document not found")
	// ErrRowNotFound indicates an unknown row id.
	ErrRowNotFound = errors.New("entry: row not found")
	// ErrNotEditing indicates no row is being edited.
	ErrNotEditing = errors.New("entry: no row is being edited")
	// ErrSequenceIncomplete rejects a commit before the final field.
	ErrSequenceIncomplete = errors.New("entry: row sequence not complete")
	// ErrPlaceholderRow rejects numeric edits on a row without product.
	ErrPlaceholderRow = errors.New("entry: row has no product")
	// ErrUnknownField indicates a field outside the row set.
	ErrUnknownField = errors.New("entry: unknown field")
	// ErrStaleLookup means a lookup finished after its row changed.
	ErrStaleLookup = errors.New("entry: lookup result no longer applies")
)

// ValidationError is a user correctable failure targeting one field.
type ValidationError struct {
	RowID  string `json:"rowId,omitempty"`
	Field  Field  `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.RowID != "" {
		return fmt.Sprintf("entry: row %s: %s", e.RowID, e.Reason)
	}
	return "entry: " + e.Reason
}

// CollaboratorError wraps a failure reported by an external collaborator. Its
// message is the collaborator's message, unchanged.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
