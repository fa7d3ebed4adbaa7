package store

// Schema is the complete database schema. Timestamps are Unix
// milliseconds. sds_metadata is keyed one-to-one on the product and is
// always replaced wholesale by a new extraction, never patched field by
// field, so a row is internally consistent with a single extraction run.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    barcode              TEXT NOT NULL UNIQUE,
    name                 TEXT NOT NULL,
    contents_size_weight TEXT NOT NULL DEFAULT '',
    sds_url              TEXT NOT NULL DEFAULT '',
    created_at           INTEGER NOT NULL,
    updated_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_sds_url ON products(sds_url);

CREATE TABLE IF NOT EXISTS sds_metadata (
    product_id            INTEGER PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
    vendor                TEXT NOT NULL DEFAULT '',
    issue_date            TEXT NOT NULL DEFAULT '',
    hazardous_substance   INTEGER NOT NULL DEFAULT 0,
    dangerous_good        INTEGER NOT NULL DEFAULT 0,
    dangerous_goods_class TEXT NOT NULL DEFAULT '',
    description           TEXT NOT NULL DEFAULT '',
    packing_group         TEXT NOT NULL DEFAULT '',
    subsidiary_risks      TEXT NOT NULL DEFAULT '[]',
    raw_json              TEXT NOT NULL DEFAULT '{}',
    created_at            INTEGER NOT NULL,
    updated_at            INTEGER NOT NULL
);
`
