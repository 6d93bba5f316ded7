package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
	"github.com/Lllllllleong/salespackflow/internal/upload"
)

type statusUpdate struct {
	ID, Status, Details string
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	updates  []statusUpdate
	saves    int
	saveErr  error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]models.Session{}}
}

func (f *fakeSessions) FindByHash(_ context.Context, fileHash string) (string, *models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failedID string
	for id, s := range f.sessions {
		if s.FileHash != fileHash {
			continue
		}
		if s.Status != models.StatusFailed {
			return id, &s, nil
		}
		failedID = id
	}
	if failedID == "" {
		return "", nil, nil
	}
	s := f.sessions[failedID]
	return failedID, &s, nil
}

func (f *fakeSessions) Create(_ context.Context, session *models.Session) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("session-%d", len(f.sessions)+1)
	f.sessions[id] = *session
	return id, nil
}

func (f *fakeSessions) Modify(_ context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gcp.ErrSessionNotFound, id)
	}
	s.Splits = append([]models.Split(nil), s.Splits...)
	if err := fn(&s); err != nil {
		return nil, err
	}
	f.saves++
	f.sessions[id] = s
	return &s, nil
}

func (f *fakeSessions) Transition(ctx context.Context, id, from, to string) (*models.Session, error) {
	return f.Modify(ctx, id, func(s *models.Session) error {
		if s.Status != from {
			return fmt.Errorf("%w: status is %s", gcp.ErrSessionState, s.Status)
		}
		s.Status = to
		return nil
	})
}

func (f *fakeSessions) Save(_ context.Context, id string, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.sessions[id] = *session
	return nil
}

func (f *fakeSessions) UpdateStatus(_ context.Context, id, status, errDetails string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{ID: id, Status: status, Details: errDetails})
	s := f.sessions[id]
	s.Status = status
	if errDetails != "" {
		s.ErrorDetails = errDetails
	}
	f.sessions[id] = s
	return nil
}

func (f *fakeSessions) get(id string) models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

type fakeObjects map[string][]byte

func (f fakeObjects) ReadObject(_ context.Context, bucket, object string) ([]byte, error) {
	data, ok := f[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: object doesn't exist", bucket, object)
	}
	return data, nil
}

type fakeOracle struct {
	result *models.ClassificationResult
	err    error
	calls  int
}

func (f *fakeOracle) Classify(_ context.Context, _ []byte, _ taxonomy.Taxonomy) (*models.ClassificationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeText map[int]string

func (f fakeText) Pages(_ []byte, pages []int) (map[int]string, error) {
	out := map[int]string{}
	for _, p := range pages {
		if text, ok := f[p]; ok {
			out[p] = text
		}
	}
	return out, nil
}

type fakeBlobs struct {
	failOn      map[string]error
	uploaded    []upload.Request
	invalidated []string
}

func (f *fakeBlobs) Upload(_ context.Context, req upload.Request) (*models.StoredDocument, error) {
	if err := f.failOn[req.DocumentType]; err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, req)
	return &models.StoredDocument{ID: req.Filename, Name: req.Filename, DocumentType: req.DocumentType, Target: req.Target}, nil
}

func (f *fakeBlobs) InvalidateListingCache(_ context.Context, target string) error {
	f.invalidated = append(f.invalidated, target)
	return nil
}

func (f *fakeBlobs) ListDocuments(_ context.Context, target string) ([]models.StoredDocument, error) {
	var docs []models.StoredDocument
	for _, req := range f.uploaded {
		if req.Target == target {
			docs = append(docs, models.StoredDocument{Name: req.Filename, DocumentType: req.DocumentType, Target: req.Target})
		}
	}
	return docs, nil
}

type fakeWorkflow struct {
	arguments []any
	err       error
}

func (f *fakeWorkflow) Launch(_ context.Context, argument any) (string, error) {
	f.arguments = append(f.arguments, argument)
	if f.err != nil {
		return "", f.err
	}
	return "executions/1", nil
}
