package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/salespackflow/internal/blank"
	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
	"github.com/Lllllllleong/salespackflow/internal/pdfsplit"
	"github.com/Lllllllleong/salespackflow/internal/upload"
)

// WorkflowStarter hands a finished session to the downstream workflow.
type WorkflowStarter interface {
	Launch(ctx context.Context, argument any) (string, error)
}

// DocumentLister lists a customer's stored documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, target string) ([]models.StoredDocument, error)
}

type workflowPayload struct {
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
	SuccessCount int    `json:"successCount"`
	FailedCount  int    `json:"failedCount"`
}

// FinalizeFunction cuts the reviewed partition out of the source PDF and
// uploads one document per split.
type FinalizeFunction struct {
	sessions  SessionRepository
	objects   ObjectReader
	splitter  *pdfsplit.Splitter
	uploader  *upload.Orchestrator
	workflow  WorkflowStarter
	documents DocumentLister
}

func NewFinalize(ctx context.Context) (*FinalizeFunction, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if config.DocumentsBucket == "" {
		return nil, fmt.Errorf("DOCUMENTS_BUCKET environment variable must be set")
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
	// The hand-off is optional; without a workflow id finalize stops after upload.
	var workflow WorkflowStarter
	if config.WorkflowID != "" {
		launcher, err := gcp.NewWorkflowLauncher(ctx, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
		if err != nil {
			return nil, err
		}
		workflow = launcher
	}

	detector := blank.NewDetector(slog.Default())
	detector.MinTextLength = config.BlankMinText
	store := gcp.NewDocumentStore(storageClient, config.DocumentsBucket, firestoreClient, config.DocumentsCollection)

	f := &FinalizeFunction{
		sessions:  gcp.NewSessionStore(firestoreClient, config.SessionsCollection),
		objects:   gcsReader{client: storageClient},
		splitter:  pdfsplit.NewSplitter(detector, slog.Default()),
		uploader:  upload.NewOrchestrator(store, tax, slog.Default()),
		workflow:  workflow,
		documents: store,
	}
	slog.Info("Sales pack finalize initialized.", "documentsBucket", config.DocumentsBucket, "workflowId", config.WorkflowID)
	return f, nil
}

// Process splits and uploads a reviewed session. Individual upload failures
// do not fail the call; they are reported in the response and leave the
// session PARTIAL.
func (f *FinalizeFunction) Process(ctx context.Context, req *models.FinalizeRequest) (*models.FinalizeResponse, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	logCtx := slog.With("sessionId", req.SessionID)

	// Claiming the session moves it out of REVIEW in the same transaction
	// that checks it, so a repeated request cannot upload the documents twice.
	session, err := f.sessions.Modify(ctx, req.SessionID, func(session *models.Session) error {
		if session.Status != models.StatusReview {
			return fmt.Errorf("%w: status is %s", ErrSessionState, session.Status)
		}
		if err := partition.Validate(models.Partition{Splits: session.Splits}, session.PageCount); err != nil {
			return err
		}
		session.Status = models.StatusSplitting
		return nil
	})
	if err != nil {
		logCtx.Warn("Rejecting finalize.", "error", err)
		return nil, err
	}

	target := req.Target
	if target == "" {
		target = session.CustomerName
	}
	logCtx = logCtx.With("target", target)

	source, err := f.objects.ReadObject(ctx, session.SourceBucket, session.SourceObject)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.sessions, req.SessionID, "failed to download source PDF", err)
	}
	docs, err := f.splitter.Split(ctx, source, models.Partition{Splits: session.Splits}, session.Texts())
	if err != nil {
		return nil, handleError(ctx, logCtx, f.sessions, req.SessionID, "failed to split source PDF", err)
	}
	logCtx.Info("Source PDF split.", "documentCount", len(docs))

	summary := f.uploader.UploadAll(ctx, docs, target)

	session.Status = models.StatusUploaded
	if summary.FailedCount > 0 || summary.Cancelled {
		session.Status = models.StatusPartial
	}
	session.SuccessCount = summary.SuccessCount
	session.FailedCount = summary.FailedCount
	if err := f.sessions.Save(context.WithoutCancel(ctx), req.SessionID, session); err != nil {
		logCtx.Error("Failed to record upload outcome", "error", err)
		return nil, err
	}

	if f.workflow != nil && summary.SuccessCount > 0 {
		f.triggerWorkflow(ctx, logCtx, req.SessionID, target, summary)
	}

	logCtx.Info("Finalize complete.", "status", session.Status, "successCount", summary.SuccessCount, "failedCount", summary.FailedCount)
	return &models.FinalizeResponse{
		Status:       session.Status,
		SessionID:    req.SessionID,
		SuccessCount: summary.SuccessCount,
		FailedCount:  summary.FailedCount,
		Outcomes:     summary.Outcomes,
	}, nil
}

// triggerWorkflow only logs a failed launch; the documents are already stored.
func (f *FinalizeFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, sessionID, target string, summary models.UploadSummary) {
	logCtx.Info("Triggering workflow.")
	execution, err := f.workflow.Launch(ctx, workflowPayload{
		SessionID:    sessionID,
		CustomerName: target,
		SuccessCount: summary.SuccessCount,
		FailedCount:  summary.FailedCount,
	})
	if err != nil {
		logCtx.Error("Failed to trigger workflow execution", "error", err)
		return
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", execution)
}

// ListDocuments returns what has been uploaded for target so far.
func (f *FinalizeFunction) ListDocuments(ctx context.Context, target string) ([]models.StoredDocument, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidRequest)
	}
	docs, err := f.documents.ListDocuments(ctx, target)
	if err != nil {
		slog.Error("Failed to list documents", "target", target, "error", err)
		return nil, err
	}
	return docs, nil
}
