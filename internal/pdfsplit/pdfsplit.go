// Package pdfsplit cuts a source PDF into one output document per split,
// leaving out pages judged blank.
package pdfsplit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/salespackflow/internal/blank"
	"github.com/Lllllllleong/salespackflow/internal/models"
)

var (
	// ErrSourceParse means the source PDF could not be opened at all.
	ErrSourceParse = errors.New("source PDF could not be parsed")
	// ErrPageOutOfRange means the partition names a page the source lacks.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Splitter turns a reviewed partition into output PDFs.
type Splitter struct {
	detector *blank.Detector
	logger   *slog.Logger
}

// NewSplitter returns a Splitter using detector to drop blank pages.
func NewSplitter(detector *blank.Detector, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = blank.NewDetector(logger)
	}
	return &Splitter{detector: detector, logger: logger}
}

// Open reads and validates a PDF in relaxed mode.
func Open(source []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(source), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceParse, err)
	}
	return pdfCtx, nil
}

// PageCount returns the number of pages of a PDF.
func PageCount(source []byte) (int, error) {
	pdfCtx, err := Open(source)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// Split produces one document per split, in partition order. A source that
// cannot be parsed fails the whole call with no output. A split whose pages
// are all blank produces no document.
func (s *Splitter) Split(ctx context.Context, source []byte, p models.Partition, texts models.PageTexts) ([]models.OutputDocument, error) {
	pdfCtx, err := Open(source)
	if err != nil {
		return nil, err
	}
	for _, split := range p.Splits {
		for _, page := range split.Pages {
			if page < 1 || page > pdfCtx.PageCount {
				return nil, fmt.Errorf("%w: split %s names page %d of %d", ErrPageOutOfRange, split.ID, page, pdfCtx.PageCount)
			}
		}
	}

	docs := make([]models.OutputDocument, 0, len(p.Splits))
	for _, split := range p.Splits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logCtx := s.logger.With("splitId", split.ID, "documentType", split.DocumentType)

		var keep []int
		for _, page := range split.Pages {
			if s.detector.IsBlankPage(pdfCtx, page, texts) {
				logCtx.Info("Dropping blank page.", "page", page)
				continue
			}
			keep = append(keep, page)
		}
		if len(keep) == 0 {
			logCtx.Warn("Every page of split is blank, skipping.", "pages", split.Pages)
			continue
		}

		data, err := extract(pdfCtx, keep)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", split.ID, err)
		}
		docs = append(docs, models.OutputDocument{
			SourceSplitID: split.ID,
			DocumentType:  split.DocumentType,
			FileBytes:     data,
			PageCount:     len(keep),
			Pages:         keep,
		})
		logCtx.Info("Split extracted.", "pageCount", len(keep), "bytes", len(data))
	}
	return docs, nil
}

func extract(pdfCtx *model.Context, pages []int) ([]byte, error) {
	out, err := pdfcpu.ExtractPages(pdfCtx, pages, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pages %v: %w", pages, err)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(out, &buf); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return buf.Bytes(), nil
}
