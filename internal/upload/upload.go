// Package upload stores split documents one by one, recording a per-document
// outcome instead of aborting the batch when one upload fails.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// Request is one document handed to the blob store.
type Request struct {
	Target       string
	DocumentType string
	Filename     string
	Data         []byte
}

// BlobStore stores documents for a target (customer) and keeps a listing of
// them that must be invalidated after new uploads.
type BlobStore interface {
	Upload(ctx context.Context, req Request) (*models.StoredDocument, error)
	InvalidateListingCache(ctx context.Context, target string) error
}

// Orchestrator uploads a batch of output documents sequentially.
type Orchestrator struct {
	store  BlobStore
	namer  FileNamer
	now    func() time.Time
	logger *slog.Logger
}

// NewOrchestrator returns an Orchestrator naming files with tax labels.
func NewOrchestrator(store BlobStore, tax taxonomy.Taxonomy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		namer:  FileNamer{Taxonomy: tax},
		now:    time.Now,
		logger: logger,
	}
}

// UploadAll uploads docs in order under their SuggestedFilename; documents
// without one are named by the FileNamer. A failed upload is recorded and the
// loop moves on to the next document. Cancellation is only observed between
// documents; documents after it are not attempted. The target's listing cache
// is invalidated once at the end if anything was attempted.
func (o *Orchestrator) UploadAll(ctx context.Context, docs []models.OutputDocument, target string) models.UploadSummary {
	logCtx := o.logger.With("target", target, "documentCount", len(docs))
	logCtx.Info("Starting sequential upload of split documents.")

	summary := models.UploadSummary{Outcomes: make([]models.UploadOutcome, 0, len(docs))}
	stamp := o.now()
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			logCtx.Warn("Upload cancelled between documents.", "attempted", i, "error", err)
			summary.Cancelled = true
			break
		}
		if doc.SuggestedFilename == "" {
			doc.SuggestedFilename = o.namer.Name(target, doc.DocumentType, stamp, i)
		}
		outcome := models.UploadOutcome{
			Filename:     doc.SuggestedFilename,
			DocumentType: doc.DocumentType,
		}
		stored, err := o.store.Upload(ctx, Request{
			Target:       target,
			DocumentType: doc.DocumentType,
			Filename:     outcome.Filename,
			Data:         doc.FileBytes,
		})
		if err != nil {
			logCtx.Error("Failed to upload document", "error", err, "filename", outcome.Filename, "splitId", doc.SourceSplitID)
			outcome.ErrorMessage = err.Error()
			summary.FailedCount++
		} else {
			outcome.Succeeded = true
			outcome.Stored = stored
			summary.SuccessCount++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	if len(summary.Outcomes) > 0 {
		if err := o.store.InvalidateListingCache(ctx, target); err != nil {
			logCtx.Warn("Failed to invalidate document listing cache.", "error", err)
		}
	}
	logCtx.Info("Upload batch complete.", "successCount", summary.SuccessCount, "failedCount", summary.FailedCount)
	return summary
}

// FileNamer builds upload filenames.
type FileNamer struct {
	Taxonomy taxonomy.Taxonomy
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Name returns "<target>_<type label>_<stamp>_<n>.pdf", sanitized. index is
// the document's 0-based position in its batch and keeps same-type documents
// of one batch apart.
func (n FileNamer) Name(target, docType string, stamp time.Time, index int) string {
	t := TargetSlug(target)
	label := sanitize(n.Taxonomy.Label(docType), 40)
	if label == "" {
		label = taxonomy.Other
	}
	return fmt.Sprintf("%s_%s_%s_%d.pdf", t, label, stamp.UTC().Format("20060102-150405"), index+1)
}

// TargetSlug is the sanitized form of a customer name used in filenames and
// storage paths.
func TargetSlug(target string) string {
	if t := sanitize(target, 60); t != "" {
		return t
	}
	return "unknown_customer"
}

func sanitize(s string, maxLength int) string {
	sanitized := nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "_")
	sanitized = strings.Trim(sanitized, "_")
	if len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], "_")
	}
	return sanitized
}
