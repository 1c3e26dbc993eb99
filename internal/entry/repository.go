package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-entry/internal/batch"
	"github.com/odyssey-erp/odyssey-entry/internal/nav"
	"github.com/odyssey-erp/odyssey-entry/internal/platform/db"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
)

const idempotencyModule = "entry.save"

var numberPrefixes = map[Kind]string{
	KindPurchase:      "PUR",
	KindPurchaseOrder: "PO",
	KindSalesReturn:   "SR",
}

// Repository provides PostgreSQL backed persistence for saved documents and
// the number sequences.
type Repository struct {
	pool        *pgxpool.Pool
	companyID   int64
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs a repository scoped to one company.
func NewRepository(pool *pgxpool.Pool, companyID int64, idem *shared.IdempotencyStore) *Repository {
	return &Repository{pool: pool, companyID: companyID, idempotency: idem}
}

// Create inserts a new document with its lines and batches. The save key is
// recorded in the same transaction, so a replayed save is refused.
func (r *Repository) Create(ctx context.Context, req SaveRequest) (SaveResult, error) {
	var res SaveResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.idempotency.CheckAndInsertTx(ctx, tx, req.SaveKey, idempotencyModule); err != nil {
			return err
		}
		doc := req.Document
		err := tx.QueryRow(ctx, `INSERT INTO entry_documents
	(company_id, kind, number, doc_date, party_id, party_name, grand_total, header, adjustments, totals, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	RETURNING id::text`,
			r.companyID, string(doc.Kind), doc.Header.DocumentNo, doc.Header.Date, doc.Header.PartyID, doc.Header.PartyName,
			req.Totals.GrandTotal, doc.Header, doc.Adjustments, req.Totals).Scan(&res.ID)
		if err != nil {
			return err
		}
		res.BatchCount, err = insertChildren(ctx, tx, res.ID, doc.Lines, req.Batches)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

// Update replaces a saved document, its lines and its batches.
func (r *Repository) Update(ctx context.Context, id string, req SaveRequest) (SaveResult, error) {
	res := SaveResult{ID: id}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.idempotency.CheckAndInsertTx(ctx, tx, req.SaveKey, idempotencyModule); err != nil {
			return err
		}
		doc := req.Document
		tag, err := tx.Exec(ctx, `UPDATE entry_documents SET number=$3, doc_date=$4, party_id=$5, party_name=$6,
	grand_total=$7, header=$8, adjustments=$9, totals=$10, updated_at=NOW()
	WHERE id=$1::uuid AND company_id=$2`,
			id, r.companyID, doc.Header.DocumentNo, doc.Header.Date, doc.Header.PartyID, doc.Header.PartyName,
			req.Totals.GrandTotal, doc.Header, doc.Adjustments, req.Totals)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM entry_lines WHERE document_id=$1::uuid`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM entry_batches WHERE document_id=$1::uuid`, id); err != nil {
			return err
		}
		res.BatchCount, err = insertChildren(ctx, tx, id, doc.Lines, req.Batches)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

func insertChildren(ctx context.Context, tx pgx.Tx, id string, lines []Line, batches []batch.Batch) (int, error) {
	for i, l := range lines {
		if _, err := tx.Exec(ctx, `INSERT INTO entry_lines (document_id, line_no, product_id, payload) VALUES ($1::uuid, $2, $3, $4)`,
			id, i+1, l.ProductID, l); err != nil {
			return 0, fmt.Errorf("insert line %d: %w", i+1, err)
		}
	}
	for _, b := range batches {
		_, err := tx.Exec(ctx, `INSERT INTO entry_batches
	(document_id, batch_key, product_id, purchase_price, expiry_date, total_quantity, disc_amount, vat_amount, gross, total, batch_number, multi_unit_id)
	VALUES ($1::uuid, $2, $3, $4, NULLIF($5, '')::date, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''))`,
			id, b.Key, b.ProductID, b.PurchasePrice, b.ExpiryDate, b.TotalQuantity, b.DiscAmount, b.VatAmount, b.Gross, b.Total, b.BatchNumber, b.MultiUnitID)
		if err != nil {
			return 0, fmt.Errorf("insert batch %s: %w", b.Key, err)
		}
	}
	return len(batches), nil
}

// GetByID loads a saved document.
func (r *Repository) GetByID(ctx context.Context, id string) (Document, error) {
	var (
		doc  Document
		kind string
	)
	err := r.pool.QueryRow(ctx, `SELECT id::text, kind, header, adjustments FROM entry_documents WHERE id=$1::uuid AND company_id=$2`, id, r.companyID).
		Scan(&doc.ID, &kind, &doc.Header, &doc.Adjustments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Kind = Kind(kind)

	rows, err := r.pool.Query(ctx, `SELECT payload FROM entry_lines WHERE document_id=$1::uuid ORDER BY line_no`, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l); err != nil {
			return Document{}, err
		}
		doc.Lines = append(doc.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// SearchByNumber lists documents whose number contains the given text.
func (r *Repository) SearchByNumber(ctx context.Context, kind Kind, number string) ([]nav.Summary, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	return r.summaries(ctx, ` AND number ILIKE $3`, string(kind), "%"+number+"%")
}

// ListSummaries lists saved documents oldest first.
func (r *Repository) ListSummaries(ctx context.Context, kind Kind) ([]nav.Summary, error) {
	return r.summaries(ctx, "", string(kind))
}

func (r *Repository) summaries(ctx context.Context, filter string, args ...any) ([]nav.Summary, error) {
	sql := `SELECT id::text, number, doc_date, COALESCE(party_name, ''), grand_total
	FROM entry_documents WHERE company_id=$1 AND kind=$2` + filter + ` ORDER BY doc_date, number`
	rows, err := r.pool.Query(ctx, sql, append([]any{r.companyID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []nav.Summary
	for rows.Next() {
		var item nav.Summary
		if err := rows.Scan(&item.ID, &item.Number, &item.Date, &item.PartyName, &item.GrandTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a saved document together with its lines and batches.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM entry_documents WHERE id=$1::uuid AND company_id=$2`, id, r.companyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextDocumentNumber allocates the next number for a kind, e.g. PUR-000042.
func (r *Repository) NextDocumentNumber(ctx context.Context, kind Kind) (string, error) {
	prefix, ok := numberPrefixes[kind]
	if !ok {
		return "", ErrUnknownKind
	}
	n, err := r.next(ctx, "document:"+string(kind))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

// NextBatchNumber allocates the next company batch number.
func (r *Repository) NextBatchNumber(ctx context.Context) (string, error) {
	n, err := r.next(ctx, "batch")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("B%07d", n), nil
}

func (r *Repository) next(ctx context.Context, name string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `INSERT INTO entry_sequences (company_id, name, next_value) VALUES ($1, $2, 1)
	ON CONFLICT (company_id, name) DO UPDATE SET next_value = entry_sequences.next_value + 1
	RETURNING next_value`, r.companyID, name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("entry: sequence %s: %w", name, err)
	}
	return n, nil
}
