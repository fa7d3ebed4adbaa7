// Package httpapi exposes the pipeline over HTTP: product registration,
// extraction triggering, status polling, and direct SDS discovery.
// Handlers are thin: validate, delegate, encode.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/chemfetch/sdspipe/ident"
	"github.com/chemfetch/sdspipe/kit"
	"github.com/chemfetch/sdspipe/orchestrator"
	"github.com/chemfetch/sdspipe/store"
)

// Service wires the HTTP surface to the pipeline.
type Service struct {
	Store     *store.Store
	Orch      *orchestrator.Orchestrator
	Discovery orchestrator.Discoverer
	Logger    *slog.Logger
}

// Router builds the chi router with all routes mounted.
func (s *Service) Router() chi.Router {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/healthz", s.handleHealth)
	r.Get("/products", s.handleListProducts)
	r.Post("/products", s.handleUpsertProduct)
	r.Post("/parse", s.handleParse)
	r.Get("/parse-status/{productID}", s.handleParseStatus)
	r.Post("/sds-by-name", s.handleSdsByName)
	return r
}

// requestID tags each request with a fresh id for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), uuid.NewString())
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UpsertProductRequest is the body for POST /products.
type UpsertProductRequest struct {
	Barcode string `json:"barcode"`
	Name    string `json:"name"`
	Size    string `json:"contents_size_weight"`
}

func (s *Service) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req UpsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := ident.CheckProductInput(req.Barcode, req.Name, req.Size); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := &store.Product{Barcode: req.Barcode, Name: req.Name, Size: req.Size}
	if _, err := s.Store.UpsertProduct(r.Context(), p); err != nil {
		s.logError(r, "httpapi: upsert product", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.ListProducts(r.Context())
	if err != nil {
		s.logError(r, "httpapi: list products", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []*store.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// ParseRequest is the body for POST /parse.
type ParseRequest struct {
	ProductID int64  `json:"product_id"`
	SdsURL    string `json:"sds_url,omitempty"`
	Force     bool   `json:"force,omitempty"`
	DelayMS   int64  `json:"delay_ms,omitempty"`
}

// ParseResponse reports whether a job was queued and the current state.
type ParseResponse struct {
	Queued bool                `json:"queued"`
	Status orchestrator.Status `json:"status"`
}

func (s *Service) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID <= 0 {
		http.Error(w, "product_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	// A caller-supplied URL skips discovery inside the job.
	if req.SdsURL != "" {
		if err := s.Store.SetSdsURL(ctx, req.ProductID, req.SdsURL); err != nil {
			s.logError(r, "httpapi: set sds url", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	queued, err := s.Orch.TriggerExtraction(ctx, req.ProductID, orchestrator.Options{
		Force: req.Force,
		Delay: time.Duration(req.DelayMS) * time.Millisecond,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logError(r, "httpapi: trigger", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status, err := s.Orch.Status(ctx, req.ProductID)
	if err != nil {
		s.logError(r, "httpapi: status", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ParseResponse{Queued: queued, Status: status})
}

func (s *Service) handleParseStatus(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	status, err := s.Orch.Status(r.Context(), productID)
	if err != nil {
		s.logError(r, "httpapi: status", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SdsByNameRequest is the body for POST /sds-by-name.
type SdsByNameRequest struct {
	Name    string `json:"name"`
	Size    string `json:"size,omitempty"`
	Barcode string `json:"barcode,omitempty"`
}

func (s *Service) handleSdsByName(w http.ResponseWriter, r *http.Request) {
	var req SdsByNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !ident.ValidName(req.Name) {
		http.Error(w, "name must be non-blank and at most 100 characters", http.StatusBadRequest)
		return
	}

	result, err := s.Discovery.FindSdsURL(r.Context(), req.Name, req.Size, req.Barcode)
	if err != nil {
		if errors.Is(err, ident.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logError(r, "httpapi: discovery", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) logError(r *http.Request, msg string, err error) {
	s.Logger.Error(msg, "error", err, "request_id", kit.GetRequestID(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
