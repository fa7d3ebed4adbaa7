package sdsextract

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Some suppliers publish the SDS as a web page rather than a PDF. The
// HTML path sanitises the markup and converts it to markdown, which keeps
// headings and table structure intact for the same label scanner the PDF
// strategies feed.

var htmlSanitizer = bluemonday.UGCPolicy()

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// extractHTML converts an HTML document to markdown text for field
// scanning. sourceURL resolves relative links during conversion.
func extractHTML(data []byte, sourceURL string) (string, error) {
	clean := htmlSanitizer.Sanitize(string(data))
	if strings.TrimSpace(clean) == "" {
		return "", fmt.Errorf("html: empty after sanitize")
	}
	md, err := mdConverter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return "", fmt.Errorf("html: convert: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", fmt.Errorf("html: no text content")
	}
	return md, nil
}
