// Package objectstore wraps Google Cloud Storage for the two concerns this
// service needs beyond plain upload: existence checks (for C7's idempotence
// rule) and object reads (for snapshot blob fetch). Upload + signed-URL
// shape follows tomasbasham-har-capture's storage.GCSUploader.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const signedURLTTL = 1 * time.Hour

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("objectstore: object not found")

// Store persists and retrieves objects in a single GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a Store for bucket. opts are passed through to the GCS client,
// allowing credential injection.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: create client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// UploadRequest describes one object write.
type UploadRequest struct {
	ObjectName  string
	Content     io.Reader
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	ObjectName string
	SignedURL  string
	ExpiresAt  time.Time
}

// Upload writes req.Content to objectName and returns a 1h signed URL.
func (s *Store) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	obj := s.client.Bucket(s.bucket).Object(req.ObjectName)
	w := obj.NewWriter(ctx)
	w.ContentType = req.ContentType

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("objectstore: upload write %q: %w", req.ObjectName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("objectstore: upload close %q: %w", req.ObjectName, err)
	}

	expiresAt := time.Now().Add(signedURLTTL)
	signedURL, err := s.client.Bucket(s.bucket).SignedURL(req.ObjectName, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: sign URL %q: %w", req.ObjectName, err)
	}

	return &UploadResult{ObjectName: req.ObjectName, SignedURL: signedURL, ExpiresAt: expiresAt}, nil
}

// Exists reports whether objectName is already present, used by C7's
// idempotence check before recomputing a day's batch.
func (s *Store) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(objectName).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("objectstore: stat %q: %w", objectName, err)
	}
	return true, nil
}

// Read fetches the full contents of objectName, used to load snapshot blobs
// during crunching.
func (s *Store) Read(ctx context.Context, objectName string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: open reader %q: %w", objectName, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read %q: %w", objectName, err)
	}
	return data, nil
}

// WriteSnapshot uploads a snapshot blob at the conventional snapshots/<id>
// key layout from spec.md's persisted-state-layout.
func (s *Store) WriteSnapshot(ctx context.Context, recordID string, data []byte) error {
	_, err := s.Upload(ctx, &UploadRequest{
		ObjectName:  "snapshots/" + recordID,
		Content:     bytes.NewReader(data),
		ContentType: "application/json",
	})
	return err
}
