package sdsextract

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Config configures the extraction engine.
type Config struct {
	// MinTextLen is the minimum character count below which a strategy's
	// output is considered failed and the chain continues. Default: 50.
	MinTextLen int

	// OCR is the optional recognition sidecar. When nil, scanned documents
	// degrade to whatever the byte-scan baseline recovered.
	OCR *OCRClient

	Logger *slog.Logger

	// Now is injectable for tests; defaults to time.Now. Used by the
	// future-date guard in issue date parsing.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.MinTextLen <= 0 {
		c.MinTextLen = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine extracts SDS metadata from documents by running a chain of text
// extraction strategies and scanning the winning text for labeled fields.
type Engine struct {
	cfg Config
}

// New creates an extraction engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// Extract runs the strategy chain over a PDF and scans the best text for
// fields. It never fails on bad input: a document no strategy can read
// yields a Result with empty Fields. The only returned error is context
// cancellation during the OCR call.
func (e *Engine) Extract(ctx context.Context, data []byte) (*Result, error) {
	log := e.cfg.Logger

	bestText := ""
	bestMethod := MethodRawScan
	var quality *TextQuality

	if text, q, err := extractStructured(data); err == nil {
		bestText, bestMethod, quality = text, MethodStructured, q
	} else {
		log.Debug("extract: structured strategy failed", "error", err)
	}

	if len(bestText) < e.cfg.MinTextLen {
		if text, err := extractTextLayer(data); err == nil && len(text) > len(bestText) {
			bestText, bestMethod = text, MethodTextLayer
		} else if err != nil {
			log.Debug("extract: text-layer strategy failed", "error", err)
		}
	}

	if len(bestText) < e.cfg.MinTextLen {
		if text := extractRawScan(data); len(text) > len(bestText) {
			bestText, bestMethod = text, MethodRawScan
		}
	}

	confFactor := 1.0
	needsOCR := len(bestText) < e.cfg.MinTextLen
	if quality != nil && quality.NeedsOCR() {
		needsOCR = true
	}
	if needsOCR && e.cfg.OCR != nil {
		text, err := e.cfg.OCR.Recognize(ctx, data)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn("extract: ocr failed, keeping structural text", "error", err)
		case len(text) > len(bestText):
			bestText, bestMethod = text, MethodOCR
			confFactor = ocrConfidenceFactor
		}
	}

	result := e.scan(bestText, bestMethod, confFactor)
	result.Quality = quality
	log.Debug("extract: done",
		"method", result.Method, "text_len", len(result.RawText),
		"fields", len(result.Fields))
	return result, nil
}

// ExtractHTML handles an SDS served as a web page: sanitise, convert to
// markdown, scan. sourceURL resolves relative links.
func (e *Engine) ExtractHTML(_ context.Context, data []byte, sourceURL string) (*Result, error) {
	text, err := extractHTML(data, sourceURL)
	if err != nil {
		e.cfg.Logger.Debug("extract: html conversion failed", "error", err)
		return &Result{Fields: map[string]Field{}, Method: MethodHTML}, nil
	}
	return e.scan(text, MethodHTML, 1.0), nil
}

// scan runs field and date extraction over final text.
func (e *Engine) scan(text, method string, confFactor float64) *Result {
	text = strings.TrimSpace(text)
	fields := extractFields(text, confFactor)
	if d, ok := extractIssueDate(text, e.cfg.Now(), confFactor); ok {
		fields[FieldIssueDate] = d
	}
	return &Result{
		Fields:  fields,
		RawText: text,
		Method:  method,
	}
}
