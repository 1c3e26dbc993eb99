// Package catalog looks up products, their packaging units and stock.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `p.id::text, p.code, COALESCE(p.barcode, ''), p.name, COALESCE(p.unit_id::text, ''), COALESCE(u.name, ''),
	p.purchase_price, p.retail_price, p.wholesale_price, p.special_price1, p.special_price2, p.batch_tracked,
	COALESCE(p.serials, '{}')`

// Repository provides PostgreSQL backed product lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductByID returns a product with its packaging units.
func (r *Repository) ProductByID(ctx context.Context, id string) (Product, error) {
	return r.one(ctx, `p.id::text = $1`, id)
}

// ProductByBarcode matches the product barcode first, then packaging
// barcodes. A packaging hit is reported through MatchedMultiUnitID.
func (r *Repository) ProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	p, err := r.one(ctx, `p.barcode = $1`, barcode)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}
	var productID, unitID string
	err = r.pool.QueryRow(ctx, `SELECT product_id::text, id::text FROM product_units WHERE barcode = $1 LIMIT 1`, barcode).Scan(&productID, &unitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	p, err = r.ProductByID(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	p.MatchedMultiUnitID = unitID
	return p, nil
}

// ProductBySerial finds the product owning a serial on its main unit or any
// packaging unit.
func (r *Repository) ProductBySerial(ctx context.Context, serial string) (Product, error) {
	p, err := r.one(ctx, `$1 = ANY(p.serials)`, serial)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}
	var productID string
	err = r.pool.QueryRow(ctx, `SELECT product_id::text FROM product_units WHERE $1 = ANY(serials) LIMIT 1`, serial).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return r.ProductByID(ctx, productID)
}

// SearchProducts matches code, barcode or name.
func (r *Repository) SearchProducts(ctx context.Context, text string, limit int) ([]Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`
	FROM products p LEFT JOIN units u ON u.id = p.unit_id
	WHERE p.is_active AND (p.code ILIKE $1 OR p.barcode = $2 OR p.name ILIKE $1)
	ORDER BY p.name LIMIT $3`, "%"+text+"%", text, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OnHand sums the product balance across warehouses.
func (r *Repository) OnHand(ctx context.Context, productID string) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0)::float8 FROM inventory_balances WHERE product_id::text = $1`, productID).Scan(&qty)
	return qty, err
}

func (r *Repository) one(ctx context.Context, where string, arg any) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+`
	FROM products p LEFT JOIN units u ON u.id = p.unit_id
	WHERE `+where+` LIMIT 1`, arg)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	p.MultiUnits, err = r.multiUnits(ctx, p.ID)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repository) multiUnits(ctx context.Context, productID string) ([]MultiUnit, error) {
	rows, err := r.pool.Query(ctx, `SELECT pu.id::text, pu.unit_id::text, COALESCE(u.name, ''), COALESCE(pu.barcode, ''), pu.factor,
	COALESCE(pu.retail_price, 0), COALESCE(pu.wholesale_price, 0), COALESCE(pu.special_price1, 0), COALESCE(pu.special_price2, 0),
	COALESCE(pu.serials, '{}')
	FROM product_units pu LEFT JOIN units u ON u.id = pu.unit_id
	WHERE pu.product_id::text = $1 ORDER BY pu.factor, pu.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MultiUnit
	for rows.Next() {
		var mu MultiUnit
		if err := rows.Scan(&mu.ID, &mu.UnitID, &mu.UnitName, &mu.Barcode, &mu.Factor,
			&mu.Retail, &mu.Wholesale, &mu.SpecialPrice1, &mu.SpecialPrice2, &mu.Serials); err != nil {
			return nil, err
		}
		out = append(out, mu)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Barcode, &p.Name, &p.UnitID, &p.UnitName,
		&p.PurchasePrice, &p.Retail, &p.Wholesale, &p.SpecialPrice1, &p.SpecialPrice2, &p.BatchTracked, &p.Serials)
	return p, err
}
