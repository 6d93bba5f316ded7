package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/upload"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, returning fallback when it
// is unset or not a number.
func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment variable.", "key", key, "value", value)
		return fallback
	}
	return n
}

// ErrObjectExists is returned when an upload would overwrite an object.
var ErrObjectExists = errors.New("object already exists")

// DocumentStore uploads customer documents to GCS, records each one in
// Firestore and caches per-customer listings of those records for a short
// time.
type DocumentStore struct {
	bucketName string
	bucket     *storage.BucketHandle
	records    *firestore.CollectionRef
	now        func() time.Time
	listings   *listingCache
}

// NewDocumentStore returns a store writing objects to bucketName and records
// to the given Firestore collection.
func NewDocumentStore(storageClient *storage.Client, bucketName string, firestoreClient *firestore.Client, collection string) *DocumentStore {
	return &DocumentStore{
		bucketName: bucketName,
		bucket:     storageClient.Bucket(bucketName),
		records:    firestoreClient.Collection(collection),
		now:        time.Now,
		listings:   newListingCache(DefaultListingTTL, time.Now),
	}
}

// Upload writes the document only if no object of that name exists yet, then
// adds its Firestore record.
func (s *DocumentStore) Upload(ctx context.Context, req upload.Request) (*models.StoredDocument, error) {
	objectName := ObjectName(req.Target, req.Filename)
	writer := s.bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/pdf"
	writer.Metadata = map[string]string{
		"documentType": req.DocumentType,
		"target":       req.Target,
	}

	if _, err := writer.Write(req.Data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectExists, s.bucketName, objectName)
		}
		return nil, fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	doc := models.StoredDocument{
		Name:         req.Filename,
		URL:          fmt.Sprintf("gs://%s/%s", s.bucketName, objectName),
		DocumentType: req.DocumentType,
		Target:       req.Target,
		SizeBytes:    len(req.Data),
		UploadedAt:   s.now(),
	}
	ref, _, err := s.records.Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to record uploaded document %s: %w", objectName, err)
	}
	doc.ID = ref.ID
	return &doc, nil
}

// ListDocuments returns the target's stored documents, oldest first, from the
// cache when a fresh entry is present.
func (s *DocumentStore) ListDocuments(ctx context.Context, target string) ([]models.StoredDocument, error) {
	cached, generation, ok := s.listings.get(target)
	if ok {
		return cached, nil
	}

	it := s.records.Where("target", "==", target).Documents(ctx)
	defer it.Stop()
	var docs []models.StoredDocument
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents for %q: %w", target, err)
		}
		var doc models.StoredDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
		}
		doc.ID = snap.Ref.ID
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })

	s.listings.put(target, generation, docs)
	return docs, nil
}

// InvalidateListingCache drops the cached listing for target.
func (s *DocumentStore) InvalidateListingCache(_ context.Context, target string) error {
	s.listings.invalidate(target)
	return nil
}

// ObjectName places a customer's documents under a folder named after them.
func ObjectName(target, filename string) string {
	return upload.TargetSlug(target) + "/" + filename
}

// ReadObject downloads a whole GCS object into memory.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
