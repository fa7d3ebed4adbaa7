package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Product is one tracked product.
type Product struct {
	ID        int64  `json:"id"`
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Size      string `json:"contents_size_weight,omitempty"`
	SdsURL    string `json:"sds_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpsertProduct inserts a product or, when the barcode already exists,
// updates its name and size. Returns the product's id either way.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) (int64, error) {
	now := time.Now().UnixMilli()
	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO products (barcode, name, contents_size_weight, sds_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			name = excluded.name,
			contents_size_weight = excluded.contents_size_weight,
			updated_at = excluded.updated_at
		RETURNING id`,
		p.Barcode, p.Name, p.Size, p.SdsURL, now, now,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// GetProduct retrieves a product by id. Returns nil when absent.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, barcode, name, contents_size_weight, sds_url, created_at, updated_at
		FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// GetProductByBarcode retrieves a product by barcode. Returns nil when absent.
func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*Product, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, barcode, name, contents_size_weight, sds_url, created_at, updated_at
		FROM products WHERE barcode = ?`, barcode)
	return scanProduct(row)
}

// SetSdsURL records the discovered SDS URL on a product. Written from
// inside extraction jobs, so it takes the same busy-retry path as the
// metadata write.
func (s *Store) SetSdsURL(ctx context.Context, id int64, url string) error {
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET sds_url = ?, updated_at = ? WHERE id = ?`,
			url, time.Now().UnixMilli(), id)
		return err
	})
}

// ListProducts returns all products, newest first.
func (s *Store) ListProducts(ctx context.Context) ([]*Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, barcode, name, contents_size_weight, sds_url, created_at, updated_at
		FROM products ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ProductsMissingSdsURL returns products with no discovered SDS URL.
func (s *Store) ProductsMissingSdsURL(ctx context.Context) ([]*Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, barcode, name, contents_size_weight, sds_url, created_at, updated_at
		FROM products WHERE sds_url = '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ProductsMissingMetadata returns products that have an SDS URL but no
// extracted metadata row yet.
func (s *Store) ProductsMissingMetadata(ctx context.Context) ([]*Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.id, p.barcode, p.name, p.contents_size_weight, p.sds_url, p.created_at, p.updated_at
		FROM products p
		LEFT JOIN sds_metadata m ON m.product_id = p.id
		WHERE p.sds_url != '' AND m.product_id IS NULL
		ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func scanProduct(row *sql.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Size, &p.SdsURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]*Product, error) {
	var products []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.Size, &p.SdsURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}
