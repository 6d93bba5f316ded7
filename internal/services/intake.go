package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/salespackflow/internal/classify"
	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
	"github.com/Lllllllleong/salespackflow/internal/pdfsplit"
	"github.com/Lllllllleong/salespackflow/internal/pdftext"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// GCSEvent is the payload of a storage object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// IntakeFunction classifies an uploaded sales pack and opens a review
// session holding the proposed partition.
type IntakeFunction struct {
	sessions SessionRepository
	objects  ObjectReader
	oracle   classify.Oracle
	text     classify.TextSource
	builder  *partition.Builder
	taxonomy taxonomy.Taxonomy
}

func NewIntake(ctx context.Context) (*IntakeFunction, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	tax, err := config.Taxonomy()
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexRegion, config.ClassifierModel, tax)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	f := newIntakeFunction(
		gcp.NewSessionStore(firestoreClient, config.SessionsCollection),
		gcsReader{client: storageClient},
		gcp.NewVertexClassifier(vertexClient, config.ClassifyConcurrency, slog.Default()),
		pdftext.NewExtractor(slog.Default()),
		tax,
	)
	slog.Info("Sales pack intake initialized.", "classifierModel", config.ClassifierModel, "concurrency", config.ClassifyConcurrency)
	return f, nil
}

func newIntakeFunction(sessions SessionRepository, objects ObjectReader, oracle classify.Oracle, text classify.TextSource, tax taxonomy.Taxonomy) *IntakeFunction {
	return &IntakeFunction{
		sessions: sessions,
		objects:  objects,
		oracle:   oracle,
		text:     text,
		builder:  partition.NewBuilder(tax),
		taxonomy: tax,
	}
}

// Process handles one uploaded object. Objects that are not PDFs and files
// already seen are skipped without error.
func (f *IntakeFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new sales pack.")

	data, err := f.objects.ReadObject(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := calculateHash(data)
	logCtx = logCtx.With("fileHash", fileHash)

	sessionID, session, err := f.openSession(ctx, logCtx, e, fileHash)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	logCtx = logCtx.With("sessionId", sessionID)
	logCtx.Info("Review session opened.")

	pageCount, err := pdfsplit.PageCount(data)
	if err != nil {
		return handleError(ctx, logCtx, f.sessions, sessionID, "failed to read source PDF", err)
	}

	result, err := f.oracle.Classify(ctx, data, f.taxonomy)
	if err != nil {
		return handleError(ctx, logCtx, f.sessions, sessionID, "failed to classify pages", err)
	}
	if err := classify.Normalize(result, pageCount, f.taxonomy, logCtx); err != nil {
		return handleError(ctx, logCtx, f.sessions, sessionID, "classification result rejected", err)
	}
	if err := classify.FillMissingText(result, data, f.text); err != nil {
		// Pages keep "text unavailable" and fall back to inspection at split time.
		logCtx.Warn("Could not read local page text.", "error", err)
	}

	p := f.builder.BuildFromGroups(*result)
	if !partition.Covers(p, pageCount) {
		return handleError(ctx, logCtx, f.sessions, sessionID, "proposed partition is invalid", partition.ErrCoverage)
	}

	session.Status = models.StatusReview
	session.CustomerName = result.CustomerName
	session.PageCount = pageCount
	session.SetTexts(classify.PageTexts(result))
	session.Splits = p.Splits
	if err := f.sessions.Save(ctx, sessionID, session); err != nil {
		return handleError(ctx, logCtx, f.sessions, sessionID, "failed to save proposed partition", err)
	}

	logCtx.Info("Sales pack ready for review.", "pageCount", pageCount, "splitCount", p.Len(), "customerName", result.CustomerName)
	return nil
}

// openSession creates the session for a new file, or reopens the FAILED
// session of a file seen before so it can be classified again. A nil session
// means the file needs no processing.
func (f *IntakeFunction) openSession(ctx context.Context, logCtx *slog.Logger, e GCSEvent, fileHash string) (string, *models.Session, error) {
	existingID, existing, err := f.sessions.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return "", nil, err
	}

	if existing == nil {
		session := &models.Session{
			FileHash:     fileHash,
			SourceBucket: e.Bucket,
			SourceObject: e.Name,
			Status:       models.StatusClassifying,
		}
		sessionID, err := f.sessions.Create(ctx, session)
		if err != nil {
			logCtx.Error("Failed to create session document", "error", err)
			return "", nil, err
		}
		return sessionID, session, nil
	}

	if existing.Status != models.StatusFailed {
		logCtx.Info("Duplicate file detected. Skipping.", "existingSessionId", existingID, "status", existing.Status)
		return "", nil, nil
	}
	session, err := f.sessions.Transition(ctx, existingID, models.StatusFailed, models.StatusClassifying)
	if errors.Is(err, ErrSessionState) {
		logCtx.Info("Failed session is already being retried. Skipping.", "existingSessionId", existingID)
		return "", nil, nil
	}
	if err != nil {
		logCtx.Error("Failed to reopen failed session", "error", err, "existingSessionId", existingID)
		return "", nil, err
	}
	logCtx.Info("Retrying failed session.", "existingSessionId", existingID)
	session.SourceBucket = e.Bucket
	session.SourceObject = e.Name
	session.ErrorDetails = ""
	session.Splits = nil
	session.PageTexts = nil
	return existingID, session, nil
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
