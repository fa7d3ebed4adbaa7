package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chemfetch/sdspipe/discovery"
	"github.com/chemfetch/sdspipe/fetch"
	"github.com/chemfetch/sdspipe/jobq"
	"github.com/chemfetch/sdspipe/sdsextract"
	"github.com/chemfetch/sdspipe/store"
)

type fakeDiscovery struct {
	url   string
	err   error
	calls int
}

func (f *fakeDiscovery) FindSdsURL(_ context.Context, name, size, barcode string) (*discovery.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &discovery.Result{SdsURL: f.url}, nil
}

type fakeFetcher struct {
	doc *fetch.Document
	err error
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (*fetch.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.doc
	d.URL = rawURL
	return &d, nil
}

type fakeExtractor struct {
	result *sdsextract.Result
	err    error
	method string
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (*sdsextract.Result, error) {
	f.method = "pdf"
	return f.result, f.err
}

func (f *fakeExtractor) ExtractHTML(_ context.Context, _ []byte, _ string) (*sdsextract.Result, error) {
	f.method = "html"
	return f.result, f.err
}

func goodResult() *sdsextract.Result {
	return &sdsextract.Result{
		Fields: map[string]sdsextract.Field{
			sdsextract.FieldVendor:       {Value: "Acme Chemical Co", Confidence: 0.9},
			sdsextract.FieldIssueDate:    {Value: "2023-03-15", Confidence: 0.9},
			sdsextract.FieldDGClass:      {Value: "3", Confidence: 0.9},
			sdsextract.FieldPackingGroup: {Value: "III", Confidence: 0.9},
		},
		Method: sdsextract.MethodStructured,
	}
}

type fixture struct {
	orch  *Orchestrator
	store *store.Store
	queue *jobq.Q
	disc  *fakeDiscovery
	fetch *fakeFetcher
	extr  *fakeExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.OpenMemory(t)
	q := jobq.New(s.DB, jobq.Options{})
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		store: s,
		queue: q,
		disc:  &fakeDiscovery{url: "https://acme.example/sds.pdf"},
		fetch: &fakeFetcher{doc: &fetch.Document{Data: []byte("%PDF-"), Kind: fetch.KindPDF}},
		extr:  &fakeExtractor{result: goodResult()},
	}
	f.orch = New(Config{
		Store:     s,
		Queue:     q,
		Discovery: f.disc,
		Fetcher:   f.fetch,
		Extractor: f.extr,
	})
	return f
}

func (f *fixture) addProduct(t *testing.T, barcode, name, sdsURL string) int64 {
	t.Helper()
	id, err := f.store.UpsertProduct(context.Background(), &store.Product{Barcode: barcode, Name: name})
	if err != nil {
		t.Fatal(err)
	}
	if sdsURL != "" {
		if err := f.store.SetSdsURL(context.Background(), id, sdsURL); err != nil {
			t.Fatal(err)
		}
	}
	return id
}

func TestTriggerExtraction_Queues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "")

	ok, err := f.orch.TriggerExtraction(ctx, id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("fresh product not queued")
	}

	st, err := f.orch.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateQueued {
		t.Errorf("state: got %q", st.State)
	}
}

func TestTriggerExtraction_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.TriggerExtraction(context.Background(), 12345, Options{}); err == nil {
		t.Fatal("expected error for unknown product")
	}
}

func TestTriggerExtraction_IdempotentUnlessForced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "https://acme.example/sds.pdf")

	if err := f.store.ReplaceMetadata(ctx, &store.Metadata{ProductID: id, Vendor: "Acme"}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.orch.TriggerExtraction(ctx, id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("extraction queued despite existing metadata")
	}

	ok, err = f.orch.TriggerExtraction(ctx, id, Options{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("forced extraction not queued")
	}
}

func TestTriggerExtraction_SkipsWhileRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "")

	f.orch.reg.set(id, StateRunning, "")

	ok, err := f.orch.TriggerExtraction(ctx, id, Options{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("queued while extraction running")
	}
}

func TestTriggerExtraction_CoalescesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "")

	if ok, _ := f.orch.TriggerExtraction(ctx, id, Options{}); !ok {
		t.Fatal("first trigger not queued")
	}
	ok, err := f.orch.TriggerExtraction(ctx, id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("duplicate trigger not coalesced")
	}
	if n, _ := f.queue.Len(ctx); n != 1 {
		t.Fatalf("queue len: got %d", n)
	}
}

func TestHandleJob_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "")

	if _, err := f.orch.TriggerExtraction(ctx, id, Options{}); err != nil {
		t.Fatal(err)
	}
	job, err := f.queue.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: job=%v err=%v", job, err)
	}

	if err := f.orch.HandleJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	// Discovery ran and the URL was persisted.
	if f.disc.calls != 1 {
		t.Errorf("discovery calls: got %d", f.disc.calls)
	}
	p, _ := f.store.GetProduct(ctx, id)
	if p.SdsURL != "https://acme.example/sds.pdf" {
		t.Errorf("sds url not saved: %q", p.SdsURL)
	}

	m, err := f.store.GetMetadata(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("metadata not stored")
	}
	if m.Vendor != "Acme Chemical Co" || m.DGClass != "3" || m.IssueDate != "2023-03-15" {
		t.Errorf("metadata: %+v", m)
	}
	if !m.DangerousGood || !m.HazardousSubstance {
		t.Error("derived flags not set for class 3")
	}
	if !strings.Contains(m.RawJSON, "confidence") {
		t.Errorf("raw json missing confidences: %s", m.RawJSON)
	}

	st, _ := f.orch.Status(ctx, id)
	if st.State != StateSucceeded {
		t.Errorf("state: got %q", st.State)
	}
}

func TestHandleJob_SkipsDiscoveryWhenURLKnown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "https://known.example/sds.pdf")

	f.orch.TriggerExtraction(ctx, id, Options{})
	job, _ := f.queue.Claim(ctx)
	if err := f.orch.HandleJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if f.disc.calls != 0 {
		t.Errorf("discovery ran despite known url: %d calls", f.disc.calls)
	}
}

func TestHandleJob_HTMLDocument(t *testing.T) {
	f := newFixture(t)
	f.fetch.doc = &fetch.Document{Data: []byte("<html></html>"), Kind: fetch.KindHTML}
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "https://acme.example/sds")

	f.orch.TriggerExtraction(ctx, id, Options{})
	job, _ := f.queue.Claim(ctx)
	if err := f.orch.HandleJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if f.extr.method != "html" {
		t.Errorf("extractor path: got %q, want html", f.extr.method)
	}
}

func TestHandleJob_NoSdsFoundFails(t *testing.T) {
	f := newFixture(t)
	f.disc.url = "" // discovery finds nothing
	ctx := context.Background()

	// The rubbing alcohol case: a known product whose SDS search comes up
	// empty must land in failed, with the error preserved for status.
	id := f.addProduct(t, "93549004", "Isocol Rubbing Alcohol", "")

	f.orch.TriggerExtraction(ctx, id, Options{})
	job, _ := f.queue.Claim(ctx)

	if err := f.orch.HandleJob(ctx, job); err == nil {
		t.Fatal("expected failure when no sds url found")
	}

	st, _ := f.orch.Status(ctx, id)
	if st.State != StateFailed {
		t.Errorf("state: got %q", st.State)
	}
	if st.Error == "" {
		t.Error("failure reason not recorded")
	}
	if m, _ := f.store.GetMetadata(ctx, id); m != nil {
		t.Error("metadata stored despite failure")
	}
}

func TestHandleJob_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.fetch.err = errors.New("connection refused")
	ctx := context.Background()
	id := f.addProduct(t, "9300611", "AcmeSolve", "https://down.example/sds.pdf")

	f.orch.TriggerExtraction(ctx, id, Options{})
	job, _ := f.queue.Claim(ctx)
	if err := f.orch.HandleJob(ctx, job); err == nil {
		t.Fatal("expected failure on download error")
	}
	st, _ := f.orch.Status(ctx, id)
	if st.State != StateFailed {
		t.Errorf("state: got %q", st.State)
	}
}

func TestReextractAll_Staggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := []int64{
		f.addProduct(t, "b1", "One", "https://x.example/1.pdf"),
		f.addProduct(t, "b2", "Two", "https://x.example/2.pdf"),
		f.addProduct(t, "b3", "Three", "https://x.example/3.pdf"),
	}
	for _, id := range ids {
		if err := f.store.ReplaceMetadata(ctx, &store.Metadata{ProductID: id}); err != nil {
			t.Fatal(err)
		}
	}

	queued, skipped, err := f.orch.ReextractAll(ctx, ids, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if queued != 3 || skipped != 0 {
		t.Fatalf("queued=%d skipped=%d", queued, skipped)
	}

	// Only the first job (delay 0) is visible now; the rest are staggered
	// an hour apart.
	job, err := f.queue.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("first job not visible: %v %v", job, err)
	}
	if job.ProductID != ids[0] {
		t.Errorf("first visible job: got product %d", job.ProductID)
	}
	if j2, _ := f.queue.Claim(ctx); j2 != nil {
		t.Errorf("staggered job visible immediately: %+v", j2)
	}
}

func TestBackfillMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withURL := f.addProduct(t, "c1", "HasURL", "https://x.example/c1.pdf")
	noURL := f.addProduct(t, "c2", "NoURL", "")
	done := f.addProduct(t, "c3", "Done", "https://x.example/c3.pdf")
	if err := f.store.ReplaceMetadata(ctx, &store.Metadata{ProductID: done}); err != nil {
		t.Fatal(err)
	}

	queued, err := f.orch.BackfillMissing(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if queued != 2 {
		t.Fatalf("queued: got %d, want 2", queued)
	}
	for _, id := range []int64{withURL, noURL} {
		if ok, _ := f.queue.Pending(ctx, id); !ok {
			t.Errorf("product %d not queued", id)
		}
	}
	if ok, _ := f.queue.Pending(ctx, done); ok {
		t.Error("already-extracted product queued")
	}
}

func TestStatus_FallbacksWithoutRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := f.addProduct(t, "d1", "Fresh", "")
	st, err := f.orch.Status(ctx, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateNotRequested {
		t.Errorf("fresh: got %q", st.State)
	}

	extracted := f.addProduct(t, "d2", "Extracted", "https://x.example/d2.pdf")
	if err := f.store.ReplaceMetadata(ctx, &store.Metadata{ProductID: extracted}); err != nil {
		t.Fatal(err)
	}
	// A fresh orchestrator has no registry memory of this product.
	other := New(Config{Store: f.store, Queue: f.queue, Discovery: f.disc, Fetcher: f.fetch, Extractor: f.extr})
	st, _ = other.Status(ctx, extracted)
	if st.State != StateSucceeded {
		t.Errorf("extracted: got %q", st.State)
	}
}
