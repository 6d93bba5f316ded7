// Package pdftext reads the embedded text layer of PDF pages. Scanned pages
// usually have none; the classifier falls back to it only for pages the
// oracle returned no text for.
package pdftext

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	spaceRun    = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Extractor reads page text with ledongthuc/pdf.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Pages returns the text of the requested 1-based pages. Pages that cannot be
// read are omitted from the result rather than failing the call.
func (e *Extractor) Pages(data []byte, pages []int) (map[int]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	numPages := r.NumPage()
	out := make(map[int]string, len(pages))
	for _, nr := range pages {
		if nr < 1 || nr > numPages {
			continue
		}
		text, ok := e.page(r.Page(nr), nr)
		if ok {
			out[nr] = text
		}
	}
	return out, nil
}

func (e *Extractor) page(page pdf.Page, nr int) (text string, ok bool) {
	defer func() {
		// ledongthuc/pdf panics on some malformed content streams.
		if rec := recover(); rec != nil {
			e.logger.Warn("Text extraction panicked.", "page", nr, "panic", rec)
			text, ok = "", false
		}
	}()
	if page.V.IsNull() {
		e.logger.Debug("Skipping null page.", "page", nr)
		return "", false
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Debug("No text layer on page.", "page", nr, "error", err)
		return "", false
	}
	return clean(content), true
}

func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
