package entry

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-entry/internal/batch"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
	"github.com/odyssey-erp/odyssey-entry/internal/nav"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
)

// CatalogPort resolves products.
type CatalogPort interface {
	ProductByID(ctx context.Context, id string) (catalog.Product, error)
	ProductByBarcode(ctx context.Context, barcode string) (catalog.Product, error)
	ProductBySerial(ctx context.Context, serial string) (catalog.Product, error)
	SearchProducts(ctx context.Context, text string, limit int) ([]catalog.Product, error)
}

// StockPort reports on-hand quantity for display.
type StockPort interface {
	OnHand(ctx context.Context, productID string) (float64, error)
}

// BatchNumberPort allocates batch numbers.
type BatchNumberPort interface {
	NextBatchNumber(ctx context.Context) (string, error)
}

// NumberPort allocates human readable document numbers.
type NumberPort interface {
	NextDocumentNumber(ctx context.Context, kind Kind) (string, error)
}

// SaveRequest is what the document store persists.
type SaveRequest struct {
	SaveKey  string
	Document Document
	Totals   Totals
	Batches  []batch.Batch
}

// SaveResult reports the stored id and the number of persisted batches.
type SaveResult struct {
	ID         string `json:"id"`
	BatchCount int    `json:"batchCount"`
}

// DocumentStore persists saved documents.
type DocumentStore interface {
	Create(ctx context.Context, req SaveRequest) (SaveResult, error)
	Update(ctx context.Context, id string, req SaveRequest) (SaveResult, error)
	GetByID(ctx context.Context, id string) (Document, error)
	SearchByNumber(ctx context.Context, kind Kind, number string) ([]nav.Summary, error)
	Delete(ctx context.Context, id string) error
	ListSummaries(ctx context.Context, kind Kind) ([]nav.Summary, error)
}

// DraftQueue keeps held documents.
type DraftQueue interface {
	Hold(ctx context.Context, kind string, sum drafts.Summary, snapshot any) (drafts.HeldDraft, error)
	Restore(ctx context.Context, id string, decode func(drafts.HeldDraft) error) (drafts.HeldDraft, error)
	Discard(ctx context.Context, id string) error
	List(ctx context.Context, kind string) ([]drafts.HeldDraft, error)
}

// Handoff carries the batches of a saved document to the ledger side.
type Handoff struct {
	DocumentID string        `json:"document_id"`
	DocumentNo string        `json:"document_no"`
	Kind       Kind          `json:"kind"`
	SavedAt    time.Time     `json:"saved_at"`
	Batches    []batch.Batch `json:"batches"`
}

// BatchHandoff forwards saved batches to the posting service.
type BatchHandoff interface {
	HandOff(ctx context.Context, h Handoff) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
