package entry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
	"github.com/odyssey-erp/odyssey-entry/internal/nav"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
)

var fixedNow = time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC)

type memoryCatalog struct {
	products map[string]catalog.Product
	onLookup func()
	err      error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{products: map[string]catalog.Product{
		"p-tea": {ID: "p-tea", Code: "TEA", Barcode: "111", Name: "Teh Botol", UnitID: "u-pcs", UnitName: "PCS",
			PurchasePrice: 50, Retail: 60, Wholesale: 55},
		"p-rice": {ID: "p-rice", Code: "RICE", Barcode: "222", Name: "Beras 5kg", UnitID: "u-sak", UnitName: "SAK",
			PurchasePrice: 25.5, Retail: 30, Wholesale: 28},
		"p-oil": {ID: "p-oil", Code: "OIL", Barcode: "333", Name: "Minyak 2L", UnitID: "u-btl", UnitName: "BTL",
			PurchasePrice: 69, Retail: 80, Wholesale: 75},
		"p-milk": {ID: "p-milk", Code: "MILK", Barcode: "444", Name: "Susu UHT", UnitID: "u-pcs", UnitName: "PCS",
			PurchasePrice: 10, Retail: 12, Wholesale: 11, BatchTracked: true,
			MultiUnits: []catalog.MultiUnit{{ID: "mu-milk-box", UnitID: "u-box", UnitName: "BOX", Factor: 24}}},
		"p-soap": {ID: "p-soap", Code: "SOAP", Barcode: "555", Name: "Sabun", UnitID: "u-pcs", UnitName: "PCS",
			PurchasePrice: 3, Retail: 4, Wholesale: 3.5, Serials: []string{"SN-1"},
			MultiUnits: []catalog.MultiUnit{{ID: "mu-soap-box", UnitID: "u-box", UnitName: "BOX", Barcode: "555-BOX", Factor: 12, Retail: 45, Serials: []string{"SN-BOX-1"}}}},
	}}
}

func (c *memoryCatalog) hook() error {
	if c.onLookup != nil {
		c.onLookup()
	}
	return c.err
}

func (c *memoryCatalog) ProductByID(ctx context.Context, id string) (catalog.Product, error) {
	if err := c.hook(); err != nil {
		return catalog.Product{}, err
	}
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *memoryCatalog) ProductByBarcode(ctx context.Context, barcode string) (catalog.Product, error) {
	if err := c.hook(); err != nil {
		return catalog.Product{}, err
	}
	for _, p := range c.products {
		if p.Barcode == barcode {
			return p, nil
		}
		for _, mu := range p.MultiUnits {
			if mu.Barcode == barcode {
				p.MatchedMultiUnitID = mu.ID
				return p, nil
			}
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (c *memoryCatalog) ProductBySerial(ctx context.Context, serial string) (catalog.Product, error) {
	if err := c.hook(); err != nil {
		return catalog.Product{}, err
	}
	for _, p := range c.products {
		for _, s := range p.Serials {
			if s == serial {
				return p, nil
			}
		}
		for _, mu := range p.MultiUnits {
			for _, s := range mu.Serials {
				if s == serial {
					return p, nil
				}
			}
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (c *memoryCatalog) SearchProducts(ctx context.Context, text string, limit int) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range c.products {
		if len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryDocStore struct {
	mu        sync.Mutex
	docs      map[string]Document
	order     []string
	requests  []SaveRequest
	nextID    int
	createErr error
	entered   chan struct{}
	release   chan struct{}
}

func newMemoryDocStore() *memoryDocStore {
	return &memoryDocStore{docs: make(map[string]Document)}
}

func (s *memoryDocStore) wait() {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
}

func (s *memoryDocStore) Create(ctx context.Context, req SaveRequest) (SaveResult, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return SaveResult{}, s.createErr
	}
	s.nextID++
	id := fmt.Sprintf("doc-%d", s.nextID)
	doc := req.Document.clone()
	doc.ID = id
	s.docs[id] = doc
	s.order = append(s.order, id)
	s.requests = append(s.requests, req)
	return SaveResult{ID: id, BatchCount: len(req.Batches)}, nil
}

func (s *memoryDocStore) Update(ctx context.Context, id string, req SaveRequest) (SaveResult, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return SaveResult{}, ErrNotFound
	}
	doc := req.Document.clone()
	doc.ID = id
	s.docs[id] = doc
	s.requests = append(s.requests, req)
	return SaveResult{ID: id, BatchCount: len(req.Batches)}, nil
}

func (s *memoryDocStore) GetByID(ctx context.Context, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc.clone(), nil
}

func (s *memoryDocStore) SearchByNumber(ctx context.Context, kind Kind, number string) ([]nav.Summary, error) {
	var out []nav.Summary
	for _, item := range s.summaries(kind) {
		if item.Number == number {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memoryDocStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memoryDocStore) ListSummaries(ctx context.Context, kind Kind) ([]nav.Summary, error) {
	return s.summaries(kind), nil
}

func (s *memoryDocStore) summaries(kind Kind) []nav.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []nav.Summary
	for _, id := range s.order {
		doc := s.docs[id]
		if doc.Kind != kind {
			continue
		}
		out = append(out, nav.Summary{ID: id, Number: doc.Header.DocumentNo, Date: doc.Header.Date, PartyName: doc.Header.PartyName})
	}
	return out
}

// put stores a saved document directly, bypassing the session.
func (s *memoryDocStore) put(doc Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("doc-%d", s.nextID)
	doc.ID = id
	s.docs[id] = doc
	s.order = append(s.order, id)
	return id
}

func (s *memoryDocStore) lastRequest(t *testing.T) SaveRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

type sequenceNumbers struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceNumbers) NextDocumentNumber(ctx context.Context, kind Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%06d", numberPrefixes[kind], s.n), nil
}

type stubStock struct {
	qty float64
	err error
}

func (s stubStock) OnHand(ctx context.Context, productID string) (float64, error) {
	return s.qty, s.err
}

type sequenceBatches struct {
	mu  sync.Mutex
	n   int
	err error
}

func (s *sequenceBatches) NextBatchNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.n++
	return fmt.Sprintf("B%07d", s.n), nil
}

type recordingHandoff struct {
	mu    sync.Mutex
	calls []Handoff
}

func (h *recordingHandoff) HandOff(ctx context.Context, v Handoff) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, v)
	return nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type harness struct {
	svc     *Service
	catalog *memoryCatalog
	store   *memoryDocStore
	batches *sequenceBatches
	handoff *recordingHandoff
	audit   *recordingAudit
	drafts  *drafts.Queue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		catalog: newMemoryCatalog(),
		store:   newMemoryDocStore(),
		batches: &sequenceBatches{},
		handoff: &recordingHandoff{},
		audit:   &recordingAudit{},
		drafts:  drafts.NewQueue(drafts.NewMemoryStore()),
	}
	h.svc = NewService(Dependencies{
		Catalog:      h.catalog,
		Stock:        stubStock{qty: 42},
		BatchNumbers: h.batches,
		Numbers:      &sequenceNumbers{},
		Store:        h.store,
		Drafts:       h.drafts,
		Handoff:      h.handoff,
		Audit:        h.audit,
		Now:          func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) open(t *testing.T, kind Kind) *Session {
	t.Helper()
	sess, err := h.svc.Open(context.Background(), kind)
	require.NoError(t, err)
	return sess
}

// addProduct selects a product on the trailing placeholder, appending one when
// needed, and sets its quantity.
func addProduct(t *testing.T, sess *Session, productID string, qty float64) string {
	t.Helper()
	doc := sess.Document()
	row := doc.Lines[len(doc.Lines)-1]
	if !row.IsPlaceholder() {
		var err error
		row, err = sess.AddLine()
		require.NoError(t, err)
	}
	_, err := sess.SelectProduct(context.Background(), row.ID, Lookup{ProductID: productID})
	require.NoError(t, err)
	if qty != 1 {
		_, err = sess.UpdateField(row.ID, FieldQuantity, qty)
		require.NoError(t, err)
	}
	return row.ID
}

func setParty(t *testing.T, sess *Session, name string) {
	t.Helper()
	_, err := sess.SetHeader(HeaderPatch{PartyName: &name})
	require.NoError(t, err)
}

func setVatType(t *testing.T, sess *Session, v calc.VatType) {
	t.Helper()
	_, err := sess.SetHeader(HeaderPatch{VatType: &v})
	require.NoError(t, err)
}

func savedLine(id, productID, name string, qty, price float64) Line {
	f := calc.Derive(calc.Figures{Quantity: qty, Price: price, Retail: price + 10, Wholesale: price + 5}, calc.Tax{Type: calc.VatTypeNonVat})
	return Line{ID: id, ProductID: productID, Name: name, UnitOptionID: "main", Figures: f}
}

func savedDocument(kind Kind, number string, lines ...Line) Document {
	return Document{
		Kind:   kind,
		Header: Header{DocumentNo: number, Date: fixedNow, VatType: calc.VatTypeNonVat, TaxMode: calc.TaxModeExclusive, PartyName: "PT Sumber"},
		Lines:  lines,
	}
}
