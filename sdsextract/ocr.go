package sdsextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OCRClient talks to the OCR sidecar service, which rasterises PDF pages
// and runs character recognition on them. The sidecar is the last resort
// for image-only/scanned documents; it is optional; a pipeline without
// one degrades to the byte-scan baseline.
type OCRClient struct {
	baseURL string
	client  *http.Client
}

// OCROptions configures an OCRClient.
type OCROptions struct {
	// BaseURL of the sidecar, e.g. "http://ocr:5001".
	BaseURL string
	// Timeout bounds one recognition call. OCR on a long scanned document
	// is slow; the default is generous but finite. Default: 2 minutes.
	Timeout time.Duration
}

// NewOCRClient creates a client for the OCR sidecar.
func NewOCRClient(opts OCROptions) *OCRClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &OCRClient{
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Recognize sends the PDF to the sidecar and returns the recognised text.
func (c *OCRClient) Recognize(ctx context.Context, pdfData []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(pdfData))
	if err != nil {
		return "", fmt.Errorf("ocr: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr: status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("ocr: read response: %w", err)
	}
	return string(text), nil
}
