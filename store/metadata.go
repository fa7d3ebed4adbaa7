package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Metadata is the extracted SDS metadata for one product.
type Metadata struct {
	ProductID          int64    `json:"product_id"`
	Vendor             string   `json:"vendor,omitempty"`
	IssueDate          string   `json:"issue_date,omitempty"` // ISO YYYY-MM-DD
	HazardousSubstance bool     `json:"hazardous_substance"`
	DangerousGood      bool     `json:"dangerous_good"`
	DGClass            string   `json:"dangerous_goods_class,omitempty"`
	Description        string   `json:"description,omitempty"`
	PackingGroup       string   `json:"packing_group,omitempty"`
	SubsidiaryRisks    []string `json:"subsidiary_risks,omitempty"`
	RawJSON            string   `json:"-"` // full extraction result with confidences
	CreatedAt          int64    `json:"created_at"`
	UpdatedAt          int64    `json:"updated_at"`
}

// ReplaceMetadata stores the metadata row for a product, replacing any
// previous extraction wholesale. Runs through RunTx: the extraction worker
// and the HTTP handlers share one database, so the write must survive a
// transient SQLITE_BUSY.
func (s *Store) ReplaceMetadata(ctx context.Context, m *Metadata) error {
	now := time.Now().UnixMilli()
	risks, err := json.Marshal(m.SubsidiaryRisks)
	if err != nil {
		return err
	}
	if m.RawJSON == "" {
		m.RawJSON = "{}"
	}
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sds_metadata (product_id, vendor, issue_date, hazardous_substance,
				dangerous_good, dangerous_goods_class, description, packing_group,
				subsidiary_risks, raw_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(product_id) DO UPDATE SET
				vendor = excluded.vendor,
				issue_date = excluded.issue_date,
				hazardous_substance = excluded.hazardous_substance,
				dangerous_good = excluded.dangerous_good,
				dangerous_goods_class = excluded.dangerous_goods_class,
				description = excluded.description,
				packing_group = excluded.packing_group,
				subsidiary_risks = excluded.subsidiary_risks,
				raw_json = excluded.raw_json,
				updated_at = excluded.updated_at`,
			m.ProductID, m.Vendor, m.IssueDate, m.HazardousSubstance,
			m.DangerousGood, m.DGClass, m.Description, m.PackingGroup,
			string(risks), m.RawJSON, now, now,
		)
		return err
	})
}

// GetMetadata retrieves a product's metadata. Returns nil when no
// extraction has been stored.
func (s *Store) GetMetadata(ctx context.Context, productID int64) (*Metadata, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT product_id, vendor, issue_date, hazardous_substance, dangerous_good,
			dangerous_goods_class, description, packing_group, subsidiary_risks,
			raw_json, created_at, updated_at
		FROM sds_metadata WHERE product_id = ?`, productID)

	var m Metadata
	var risks string
	err := row.Scan(&m.ProductID, &m.Vendor, &m.IssueDate, &m.HazardousSubstance,
		&m.DangerousGood, &m.DGClass, &m.Description, &m.PackingGroup, &risks,
		&m.RawJSON, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if risks != "" {
		if err := json.Unmarshal([]byte(risks), &m.SubsidiaryRisks); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// HasMetadata reports whether a product already has an extraction stored.
func (s *Store) HasMetadata(ctx context.Context, productID int64) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM sds_metadata WHERE product_id = ?`, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
