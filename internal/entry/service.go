package entry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/nav"
	"github.com/odyssey-erp/odyssey-entry/internal/observability"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
)

// Dependencies lists the collaborators a Service talks to. Stock, batch
// numbers, handoff and audit are optional.
type Dependencies struct {
	Catalog      CatalogPort
	Stock        StockPort
	BatchNumbers BatchNumberPort
	Numbers      NumberPort
	Store        DocumentStore
	Drafts       DraftQueue
	Handoff      BatchHandoff
	Audit        AuditPort
	Metrics      *observability.Metrics
	Logger       *slog.Logger
	VATRate      float64
	Now          func() time.Time
}

// Service opens entry sessions and owns their collaborators.
type Service struct {
	catalog      CatalogPort
	stock        StockPort
	batchNumbers BatchNumberPort
	numbers      NumberPort
	store        DocumentStore
	drafts       DraftQueue
	handoff      BatchHandoff
	audit        AuditPort
	metrics      *observability.Metrics
	logger       *slog.Logger
	rate         float64
	now          func() time.Time
}

// NewService constructs the entry service.
func NewService(deps Dependencies) *Service {
	svc := &Service{
		catalog:      deps.Catalog,
		stock:        deps.Stock,
		batchNumbers: deps.BatchNumbers,
		numbers:      deps.Numbers,
		store:        deps.Store,
		drafts:       deps.Drafts,
		handoff:      deps.Handoff,
		audit:        deps.Audit,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		rate:         deps.VATRate,
		now:          deps.Now,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.rate <= 0 {
		svc.rate = calc.DefaultVATRate
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Open starts a session on a fresh document of the given kind.
func (s *Service) Open(ctx context.Context, kind Kind) (*Session, error) {
	profile, err := ProfileFor(kind)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		svc:       s,
		profile:   profile,
		revs:      make(map[string]uint64),
		committed: make(map[string]bool),
	}
	sess.doc = sess.blank(s.nextNumber(ctx, kind))
	return sess, nil
}

// SearchProducts passes a free-text search to the catalog.
func (s *Service) SearchProducts(ctx context.Context, text string, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.catalog.SearchProducts(ctx, text, limit)
}

func (s *Service) nextNumber(ctx context.Context, kind Kind) string {
	if s.numbers == nil {
		return ""
	}
	number, err := s.numbers.NextDocumentNumber(ctx, kind)
	if err != nil {
		s.logger.Warn("allocate document number", slog.String("kind", string(kind)), slog.Any("error", err))
		return ""
	}
	return number
}

func (s *Service) recordAudit(ctx context.Context, action string, kind Kind, entityID string, meta map[string]any) {
	if s.audit == nil || entityID == "" {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   string(kind),
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

// Session is one user's working document. Every call applies one input event
// under the session lock; collaborator calls run with the lock released and
// their results are dropped when the row or document changed meanwhile.
type Session struct {
	svc     *Service
	profile Profile

	mu        sync.Mutex
	doc       Document
	epoch     uint64
	revs      map[string]uint64
	editing   string
	field     int
	snapshot  *Line
	committed map[string]bool
	saving    bool
	saves     uint64
	cursor    *nav.Cursor
}

// View is a consistent read of the session state.
type View struct {
	Document Document `json:"document"`
	Totals   Totals   `json:"totals"`
	Focus    Focus    `json:"focus"`
	Saving   bool     `json:"saving"`
	Position int      `json:"position"`
	Count    int      `json:"count"`
}

// ticket identifies the state a lookup started from. A save started after
// the ticket was taken makes it stale.
type ticket struct {
	rowID string
	rev   uint64
	epoch uint64
	saves uint64
}

// Kind returns the document kind of the session.
func (s *Session) Kind() Kind {
	return s.profile.Kind
}

// Profile returns the session configuration.
func (s *Session) Profile() Profile {
	return s.profile
}

// Document returns a copy of the working document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone()
}

// Totals computes totals for the working document.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.doc, s.profile, s.svc.rate)
}

// Focus returns the current edit position.
func (s *Session) Focus() Focus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusLocked()
}

// Saving reports whether a save is outstanding.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// View returns document, totals and focus in one read.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Document: s.doc.clone(),
		Totals:   ComputeTotals(s.doc, s.profile, s.svc.rate),
		Focus:    s.focusLocked(),
		Saving:   s.saving,
		Position: -1,
	}
	if s.cursor != nil {
		v.Position = s.cursor.Index()
		v.Count = s.cursor.Len()
	}
	return v
}

// Line returns a copy of one row.
func (s *Session) Line(rowID string) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.find(rowID)
	if idx < 0 {
		return Line{}, ErrRowNotFound
	}
	return s.doc.Lines[idx].clone(), nil
}

func (s *Session) tax() calc.Tax {
	return calc.Tax{Type: s.doc.Header.VatType, Mode: s.doc.Header.TaxMode, Rate: s.svc.rate}
}

func (s *Session) find(rowID string) int {
	for i, l := range s.doc.Lines {
		if l.ID == rowID {
			return i
		}
	}
	return -1
}

func (s *Session) focusLocked() Focus {
	if s.editing == "" {
		return Focus{Index: -1}
	}
	return Focus{RowID: s.editing, Field: s.profile.Sequence[s.field], Index: s.field}
}

func (s *Session) blank(number string) Document {
	doc := Document{
		Kind: s.profile.Kind,
		Header: Header{
			DocumentNo: number,
			Date:       s.svc.now().UTC().Truncate(time.Second),
			VatType:    calc.VatTypeVat,
			TaxMode:    calc.TaxModeExclusive,
		},
		Lines: []Line{newPlaceholder()},
	}
	if s.profile.Returns {
		doc.Header.ReturnMode = ReturnDirect
	}
	return doc
}

// replaceLocked swaps in a whole document. Pending lookups from before the
// swap are invalidated by the epoch change.
func (s *Session) replaceLocked(doc Document) {
	if len(doc.Lines) == 0 {
		doc.Lines = []Line{newPlaceholder()}
	}
	s.doc = doc
	s.epoch++
	s.revs = make(map[string]uint64)
	s.committed = make(map[string]bool)
	s.editing = ""
	s.field = 0
	s.snapshot = nil
}

func (s *Session) ticketLocked(rowID string) (ticket, error) {
	if s.find(rowID) < 0 {
		return ticket{}, ErrRowNotFound
	}
	return ticket{rowID: rowID, rev: s.revs[rowID], epoch: s.epoch, saves: s.saves}, nil
}

func (s *Session) validLocked(t ticket) bool {
	return !s.saving && t.saves == s.saves && t.epoch == s.epoch &&
		s.find(t.rowID) >= 0 && s.revs[t.rowID] == t.rev
}

func newPlaceholder() Line {
	return Line{ID: uuid.NewString(), Figures: calc.Figures{DiscBasis: calc.DiscountByPercent}}
}
