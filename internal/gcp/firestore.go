package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/salespackflow/internal/models"
)

var (
	// ErrSessionNotFound is returned when no session document has the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionState is returned when a session is not in the status an
	// operation requires.
	ErrSessionState = errors.New("session is not in the required state")
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// SessionStore persists review sessions in a Firestore collection.
type SessionStore struct {
	client   *firestore.Client
	sessions *firestore.CollectionRef
	now      func() time.Time
}

func NewSessionStore(client *firestore.Client, collection string) *SessionStore {
	return &SessionStore{client: client, sessions: client.Collection(collection), now: time.Now}
}

// FindByHash returns a session created from a file with this hash, or a nil
// session when there is none. A live session is preferred over a FAILED one.
func (s *SessionStore) FindByHash(ctx context.Context, fileHash string) (string, *models.Session, error) {
	docs, err := s.sessions.Where("fileHash", "==", fileHash).Documents(ctx).GetAll()
	if err != nil {
		return "", nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	ids := make([]string, len(docs))
	sessions := make([]models.Session, len(docs))
	for i, snap := range docs {
		if err := snap.DataTo(&sessions[i]); err != nil {
			return "", nil, fmt.Errorf("failed to decode session %s: %w", snap.Ref.ID, err)
		}
		ids[i] = snap.Ref.ID
	}
	i := preferLive(sessions)
	if i < 0 {
		return "", nil, nil
	}
	return ids[i], &sessions[i], nil
}

// preferLive picks the first session that has not failed, else the first one.
func preferLive(sessions []models.Session) int {
	for i, session := range sessions {
		if session.Status != models.StatusFailed {
			return i
		}
	}
	if len(sessions) > 0 {
		return 0
	}
	return -1
}

// Create adds a new session document and returns its id.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) (string, error) {
	now := s.now()
	session.CreatedAt = now
	session.UpdatedAt = now
	ref, _, err := s.sessions.Add(ctx, session)
	if err != nil {
		return "", fmt.Errorf("failed to create session document: %w", err)
	}
	return ref.ID, nil
}

// Modify reads the session, lets fn change it and writes it back inside one
// Firestore transaction. Nothing is written when fn returns an error. fn may
// run more than once if the transaction is retried.
func (s *SessionStore) Modify(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	ref := s.sessions.Doc(id)
	var result *models.Session
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
			}
			return fmt.Errorf("failed to read session %s: %w", id, err)
		}
		var session models.Session
		if err := snap.DataTo(&session); err != nil {
			return fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		if err := fn(&session); err != nil {
			return err
		}
		session.UpdatedAt = s.now()
		if err := tx.Set(ref, &session); err != nil {
			return err
		}
		result = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transition moves the session from one status to another atomically and
// returns it. ErrSessionState is returned when it is not in from.
func (s *SessionStore) Transition(ctx context.Context, id, from, to string) (*models.Session, error) {
	return s.Modify(ctx, id, func(session *models.Session) error {
		return transition(session, from, to)
	})
}

func transition(session *models.Session, from, to string) error {
	if session.Status != from {
		return fmt.Errorf("%w: status is %s, want %s", ErrSessionState, session.Status, from)
	}
	session.Status = to
	return nil
}

// Save overwrites the whole session document.
func (s *SessionStore) Save(ctx context.Context, id string, session *models.Session) error {
	session.UpdatedAt = s.now()
	if _, err := s.sessions.Doc(id).Set(ctx, session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

// UpdateStatus sets the session status and, when given, the error details.
func (s *SessionStore) UpdateStatus(ctx context.Context, id, newStatus, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: newStatus},
		{Path: "updatedAt", Value: s.now()},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if _, err := s.sessions.Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update session %s status: %w", id, err)
	}
	return nil
}
