package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// ReviewFunction applies a reviewer's edits to a session's partition.
type ReviewFunction struct {
	sessions SessionRepository
	editor   partition.Editor
}

func NewReview(ctx context.Context) (*ReviewFunction, error) {
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
	slog.Info("Sales pack review initialized.", "sessionsCollection", config.SessionsCollection)
	return newReviewFunction(gcp.NewSessionStore(firestoreClient, config.SessionsCollection), tax), nil
}

func newReviewFunction(sessions SessionRepository, tax taxonomy.Taxonomy) *ReviewFunction {
	return &ReviewFunction{sessions: sessions, editor: partition.NewEditor(tax)}
}

// Process applies the edits in order inside one session transaction, so
// concurrent reviews of a session cannot overwrite each other. Nothing is
// saved unless every edit is well-formed and the result still satisfies the
// page invariants. Edits that name an unknown split or merge past either end
// change nothing.
func (f *ReviewFunction) Process(ctx context.Context, req *models.ReviewRequest) (*models.ReviewResponse, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	logCtx := slog.With("sessionId", req.SessionID, "editCount", len(req.Edits))

	session, err := f.sessions.Modify(ctx, req.SessionID, func(session *models.Session) error {
		if session.Status != models.StatusReview {
			return fmt.Errorf("%w: status is %s", ErrSessionState, session.Status)
		}
		p := models.Partition{Splits: session.Splits}
		var err error
		for i, edit := range req.Edits {
			p, err = f.editor.Apply(p, edit)
			if err != nil {
				return fmt.Errorf("edit %d: %w", i, err)
			}
		}
		if err := partition.Validate(p, session.PageCount); err != nil {
			return err
		}
		session.Splits = p.Splits
		return nil
	})
	if err != nil {
		logCtx.Warn("Review edits rejected.", "error", err)
		return nil, err
	}
	logCtx.Info("Applied review edits.", "splitCount", len(session.Splits))

	return &models.ReviewResponse{
		Status:       session.Status,
		SessionID:    req.SessionID,
		CustomerName: session.CustomerName,
		Splits:       session.Splits,
	}, nil
}
