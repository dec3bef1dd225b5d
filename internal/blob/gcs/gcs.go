// Package gcs keeps uploaded files in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"rechnungen/internal/blob"
)

const uploadTimeout = 2 * time.Minute

type Store struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// New connects with Application Default Credentials unless opts say otherwise.
// Objects are addressed as https://storage.googleapis.com/<bucket>/<name>.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing GCS bucket")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: "https://storage.googleapis.com/" + url.PathEscape(bucket),
	}, nil
}

func (s *Store) Put(ctx context.Context, name, contentType string, r io.Reader) (blob.Object, error) {
	if !blob.ValidName(name) {
		return blob.Object{}, fmt.Errorf("invalid object name %q", name)
	}
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return blob.Object{}, fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return blob.Object{}, fmt.Errorf("finalize upload: %w", err)
	}
	return blob.Object{Name: name, ContentType: contentType, Size: n, URL: s.baseURL + "/" + name}, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, blob.Object, error) {
	if !blob.ValidName(name) {
		return nil, blob.Object{}, blob.ErrNotFound
	}
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, blob.Object{}, blob.ErrNotFound
	}
	if err != nil {
		return nil, blob.Object{}, fmt.Errorf("open GCS object %s: %w", name, err)
	}
	return rc, blob.Object{
		Name:        name,
		ContentType: rc.Attrs.ContentType,
		Size:        rc.Attrs.Size,
		URL:         s.baseURL + "/" + name,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
