// Package orchestrator coordinates the SDS pipeline: it decides when an
// extraction should run, enqueues the work, and executes queued jobs
// through discovery, download, extraction and storage.
//
// The trigger rules keep work deduplicated and idempotent: a product with
// an extraction already running is never double-queued, a product that
// already has stored metadata is skipped unless forced, and duplicate
// triggers while a job is pending coalesce in the queue.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chemfetch/sdspipe/discovery"
	"github.com/chemfetch/sdspipe/fetch"
	"github.com/chemfetch/sdspipe/jobq"
	"github.com/chemfetch/sdspipe/sdsextract"
	"github.com/chemfetch/sdspipe/store"
)

// ErrProductNotFound is returned when a trigger names an unknown product.
var ErrProductNotFound = errors.New("orchestrator: product not found")

// Discoverer finds an SDS URL for a product.
type Discoverer interface {
	FindSdsURL(ctx context.Context, name, size, barcode string) (*discovery.Result, error)
}

// Downloader retrieves a document by URL.
type Downloader interface {
	Get(ctx context.Context, rawURL string) (*fetch.Document, error)
}

// Extractor pulls SDS fields out of a document.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*sdsextract.Result, error)
	ExtractHTML(ctx context.Context, data []byte, sourceURL string) (*sdsextract.Result, error)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Store     *store.Store
	Queue     *jobq.Q
	Discovery Discoverer
	Fetcher   Downloader
	Extractor Extractor
	Logger    *slog.Logger
}

// Options controls one extraction trigger.
type Options struct {
	// Delay postpones the job's visibility, used to stagger batch runs.
	Delay time.Duration
	// Force re-runs extraction even when metadata is already stored.
	Force bool
}

// Orchestrator owns extraction scheduling and execution.
type Orchestrator struct {
	cfg Config
	reg *registry
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, reg: newRegistry()}
}

type jobPayload struct {
	Force bool `json:"force"`
}

// TriggerExtraction requests an extraction for the product. Returns true
// when a job was enqueued, false when the trigger was deduplicated away:
// an extraction is already running, metadata already exists and Force is
// off, or a job is already pending.
func (o *Orchestrator) TriggerExtraction(ctx context.Context, productID int64, opts Options) (bool, error) {
	log := o.cfg.Logger.With("product_id", productID)

	p, err := o.cfg.Store.GetProduct(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("orchestrator: get product: %w", err)
	}
	if p == nil {
		return false, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}

	if o.reg.isRunning(productID) {
		log.Debug("trigger: extraction already running, skipping")
		return false, nil
	}

	if !opts.Force {
		has, err := o.cfg.Store.HasMetadata(ctx, productID)
		if err != nil {
			return false, fmt.Errorf("orchestrator: check metadata: %w", err)
		}
		if has {
			log.Debug("trigger: metadata already stored, skipping")
			return false, nil
		}
	}

	payload, err := json.Marshal(jobPayload{Force: opts.Force})
	if err != nil {
		return false, err
	}
	queued, err := o.cfg.Queue.PublishAfter(ctx, productID, payload, opts.Delay)
	if err != nil {
		return false, fmt.Errorf("orchestrator: enqueue: %w", err)
	}
	if !queued {
		log.Debug("trigger: job already pending, coalesced")
		return false, nil
	}

	o.reg.set(productID, StateQueued, "")
	log.Info("trigger: extraction queued", "force", opts.Force, "delay", opts.Delay)
	return true, nil
}

// Status reports the product's extraction status. The in-process registry
// wins; absent an entry, a pending queue row means queued and stored
// metadata means succeeded.
func (o *Orchestrator) Status(ctx context.Context, productID int64) (Status, error) {
	if s, ok := o.reg.get(productID); ok {
		return s, nil
	}
	pending, err := o.cfg.Queue.Pending(ctx, productID)
	if err != nil {
		return Status{}, err
	}
	if pending {
		return Status{State: StateQueued}, nil
	}
	has, err := o.cfg.Store.HasMetadata(ctx, productID)
	if err != nil {
		return Status{}, err
	}
	if has {
		return Status{State: StateSucceeded}, nil
	}
	return Status{State: StateNotRequested}, nil
}

// HandleJob is the queue handler: it runs one product's extraction end to
// end. A returned error nacks the job for redelivery.
func (o *Orchestrator) HandleJob(ctx context.Context, job *jobq.Job) error {
	productID := job.ProductID
	log := o.cfg.Logger.With("product_id", productID)

	var payload jobPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			log.Warn("job: bad payload, proceeding unforced", "error", err)
		}
	}

	o.reg.set(productID, StateRunning, "")
	log.Debug("job: extraction started", "force", payload.Force, "attempt", job.Attempts)
	err := o.runExtraction(ctx, productID, log)
	if err != nil {
		o.reg.set(productID, StateFailed, err.Error())
		log.Warn("job: extraction failed", "error", err)
		return err
	}
	o.reg.set(productID, StateSucceeded, "")
	log.Info("job: extraction succeeded")
	return nil
}

func (o *Orchestrator) runExtraction(ctx context.Context, productID int64, log *slog.Logger) error {
	p, err := o.cfg.Store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return fmt.Errorf("product %d not found", productID)
	}

	sdsURL := p.SdsURL
	if sdsURL == "" {
		found, err := o.cfg.Discovery.FindSdsURL(ctx, p.Name, p.Size, p.Barcode)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		if found.SdsURL == "" {
			return fmt.Errorf("no sds url found for %q", p.Name)
		}
		sdsURL = found.SdsURL
		if err := o.cfg.Store.SetSdsURL(ctx, productID, sdsURL); err != nil {
			return fmt.Errorf("save sds url: %w", err)
		}
		log.Info("job: discovered sds url", "url", sdsURL)
	}

	doc, err := o.cfg.Fetcher.Get(ctx, sdsURL)
	if err != nil {
		return fmt.Errorf("download %s: %w", sdsURL, err)
	}

	var result *sdsextract.Result
	if doc.Kind == fetch.KindHTML {
		result, err = o.cfg.Extractor.ExtractHTML(ctx, doc.Data, sdsURL)
	} else {
		result, err = o.cfg.Extractor.Extract(ctx, doc.Data)
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	meta, err := metadataFromResult(productID, result)
	if err != nil {
		return err
	}
	if err := o.cfg.Store.ReplaceMetadata(ctx, meta); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

// metadataFromResult maps an extraction result onto the stored row. The
// full result, confidences included, rides along as raw JSON for audit.
func metadataFromResult(productID int64, r *sdsextract.Result) (*store.Metadata, error) {
	raw, err := json.Marshal(struct {
		Fields  map[string]sdsextract.Field `json:"fields"`
		Method  string                      `json:"method"`
		Quality *sdsextract.TextQuality     `json:"quality,omitempty"`
	}{r.Fields, r.Method, r.Quality})
	if err != nil {
		return nil, err
	}

	value := func(name string) string {
		return r.Fields[name].Value
	}
	return &store.Metadata{
		ProductID:          productID,
		Vendor:             value(sdsextract.FieldVendor),
		IssueDate:          value(sdsextract.FieldIssueDate),
		HazardousSubstance: r.HazardousSubstance(),
		DangerousGood:      r.DangerousGood(),
		DGClass:            value(sdsextract.FieldDGClass),
		Description:        value(sdsextract.FieldDescription),
		PackingGroup:       value(sdsextract.FieldPackingGroup),
		SubsidiaryRisks:    r.SubsidiaryRisks(),
		RawJSON:            string(raw),
	}, nil
}

// ReextractAll force-queues extraction for the given products, staggering
// each job by interval so a large batch does not hammer the discovery
// provider and the OCR sidecar all at once. Returns how many jobs were
// queued; products that could not be queued are counted as skipped.
func (o *Orchestrator) ReextractAll(ctx context.Context, productIDs []int64, interval time.Duration) (queued, skipped int, err error) {
	for i, id := range productIDs {
		ok, terr := o.TriggerExtraction(ctx, id, Options{
			Force: true,
			Delay: time.Duration(i) * interval,
		})
		if terr != nil {
			o.cfg.Logger.Warn("reextract: trigger failed", "product_id", id, "error", terr)
			skipped++
			continue
		}
		if ok {
			queued++
		} else {
			skipped++
		}
		if ctx.Err() != nil {
			return queued, skipped, ctx.Err()
		}
	}
	return queued, skipped, nil
}

// BackfillMissing queues extraction for every product that has no stored
// metadata yet, staggered by interval. Products without an SDS URL are
// included: discovery runs as part of the job.
func (o *Orchestrator) BackfillMissing(ctx context.Context, interval time.Duration) (queued int, err error) {
	var candidates []*store.Product

	withURL, err := o.cfg.Store.ProductsMissingMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: list missing metadata: %w", err)
	}
	noURL, err := o.cfg.Store.ProductsMissingSdsURL(ctx)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: list missing sds url: %w", err)
	}
	candidates = append(candidates, withURL...)
	candidates = append(candidates, noURL...)

	i := 0
	for _, p := range candidates {
		ok, terr := o.TriggerExtraction(ctx, p.ID, Options{
			Delay: time.Duration(i) * interval,
		})
		if terr != nil {
			o.cfg.Logger.Warn("backfill: trigger failed", "product_id", p.ID, "error", terr)
			continue
		}
		if ok {
			queued++
			i++
		}
	}
	return queued, nil
}
