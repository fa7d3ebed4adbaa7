// Package jobq is a delayed job queue for extraction work, backed by
// SQLite with a visibility timeout.
//
// Rows are keyed by product: publishing a job for a product that already
// has one pending is a no-op, which coalesces duplicate triggers from
// retries and overlapping batch runs into a single extraction. A claimed
// row is invisible for the visibility duration; if the holder crashes the
// row reappears and another consumer picks it up. Delayed start is the
// same column: a job published with a delay simply becomes visible later,
// which is how batch runs stagger their work.
package jobq

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// Job is one pending extraction.
type Job struct {
	ProductID int64
	Payload   []byte
	VisibleAt time.Time
	CreatedAt time.Time
	Attempts  int
}

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Must exceed
	// the longest plausible extraction (download + OCR). Default: 5m.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in the Run loop.
	// Default: 1s.
	PollInterval time.Duration
	// MaxAttempts limits redeliveries before a job is discarded.
	// Negative means unlimited. Default: 3.
	MaxAttempts int
	Logger      *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Q is the queue handle.
type Q struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle. Call EnsureTable once at startup.
func New(db *sql.DB, opts Options) *Q {
	opts.defaults()
	return &Q{db: db, opts: opts}
}

// EnsureTable creates the extraction_jobs table if it does not exist.
func (q *Q) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS extraction_jobs (
			product_id  INTEGER PRIMARY KEY,
			payload     BLOB,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_extraction_jobs_visible ON extraction_jobs (visible_at);
	`)
	return err
}

// Publish enqueues an immediately visible job for the product. If the
// product already has a pending job the call is a no-op and reports
// false.
func (q *Q) Publish(ctx context.Context, productID int64, payload []byte) (bool, error) {
	return q.PublishAfter(ctx, productID, payload, 0)
}

// PublishAfter enqueues a job that becomes visible after delay. Duplicate
// publishes for a product coalesce into the existing row.
func (q *Q) PublishAfter(ctx context.Context, productID int64, payload []byte, delay time.Duration) (bool, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (product_id, payload, visible_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id) DO NOTHING`,
		productID, payload, now.Add(delay).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Claim atomically picks the oldest visible job, marks it invisible for
// the visibility duration, and returns it. Returns nil, nil if nothing is
// visible yet.
func (q *Q) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE extraction_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE product_id = (
			SELECT product_id FROM extraction_jobs
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING product_id, payload, visible_at, created_at, attempts`,
		hideUntil, now.UnixMilli(),
	)

	var j Job
	var visAt, creAt int64
	err := row.Scan(&j.ProductID, &j.Payload, &visAt, &creAt, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.VisibleAt = time.UnixMilli(visAt)
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}

// Ack deletes a processed job.
func (q *Q) Ack(ctx context.Context, productID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM extraction_jobs WHERE product_id = ?`, productID)
	return err
}

// Nack makes a job immediately visible again.
func (q *Q) Nack(ctx context.Context, productID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET visible_at = 0 WHERE product_id = ?`, productID)
	return err
}

// Pending reports whether the product has a job queued or in flight.
func (q *Q) Pending(ctx context.Context, productID int64) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM extraction_jobs WHERE product_id = ?`, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the total number of jobs, visible or not.
func (q *Q) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extraction_jobs`).Scan(&n)
	return n, err
}

// Handler processes a claimed job. Return nil to ack, non-nil to nack.
type Handler func(ctx context.Context, job *Job) error

// Run polls for visible jobs and calls handler for each. Blocks until ctx
// is cancelled.
func (q *Q) Run(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	log.Info("jobq: consumer started",
		"visibility", q.opts.Visibility, "poll", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("jobq: consumer stopped")
			return
		case <-ticker.C:
			q.poll(ctx, handler, log)
		}
	}
}

func (q *Q) poll(ctx context.Context, handler Handler, log *slog.Logger) {
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("jobq: claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return // nothing visible
		}

		if q.opts.MaxAttempts > 0 && job.Attempts > q.opts.MaxAttempts {
			log.Warn("jobq: job exceeded max attempts, discarding",
				"product_id", job.ProductID, "attempts", job.Attempts)
			_ = q.Ack(ctx, job.ProductID)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Warn("jobq: handler failed, nacking",
				"product_id", job.ProductID, "error", err)
			_ = q.Nack(context.WithoutCancel(ctx), job.ProductID)
		} else {
			_ = q.Ack(context.WithoutCancel(ctx), job.ProductID)
		}
	}
}
