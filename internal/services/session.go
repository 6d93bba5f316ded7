package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
)

var (
	// ErrSessionState is returned when a session is not in the status an
	// operation requires.
	ErrSessionState = gcp.ErrSessionState
	// ErrInvalidRequest is returned for a request missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// SessionRepository is the session persistence the functions depend on.
type SessionRepository interface {
	FindByHash(ctx context.Context, fileHash string) (string, *models.Session, error)
	Create(ctx context.Context, session *models.Session) (string, error)
	Save(ctx context.Context, id string, session *models.Session) error
	UpdateStatus(ctx context.Context, id, status, errDetails string) error
	Modify(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
	Transition(ctx context.Context, id, from, to string) (*models.Session, error)
}

// ObjectReader downloads source PDFs.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

type gcsReader struct {
	client *storage.Client
}

func (r gcsReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	return gcp.ReadObject(ctx, r.client, bucket, object)
}

// handleError logs the failure, marks the session FAILED and returns the
// wrapped error.
func handleError(ctx context.Context, logCtx *slog.Logger, sessions SessionRepository, sessionID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	if err := sessions.UpdateStatus(context.WithoutCancel(ctx), sessionID, models.StatusFailed, fullError.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fullError
}

// HTTPStatus maps a function error to the response code the HTTP entry
// points send.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, partition.ErrUnknownEdit), errors.Is(err, partition.ErrCoverage):
		return http.StatusBadRequest
	case errors.Is(err, gcp.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
