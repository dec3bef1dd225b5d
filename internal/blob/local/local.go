// Package local keeps uploaded files in a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rechnungen/internal/blob"
)

type Store struct {
	dir     string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// New creates dir if needed. Object URLs are baseURL + "/" + name.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Put(ctx context.Context, name, contentType string, r io.Reader) (blob.Object, error) {
	if !blob.ValidName(name) {
		return blob.Object{}, fmt.Errorf("invalid object name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return blob.Object{}, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return blob.Object{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return blob.Object{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return blob.Object{}, fmt.Errorf("store %s: %w", name, err)
	}

	return blob.Object{Name: name, ContentType: contentType, Size: n, URL: s.baseURL + "/" + name}, nil
}

func (s *Store) Open(_ context.Context, name string) (io.ReadCloser, blob.Object, error) {
	if !blob.ValidName(name) {
		return nil, blob.Object{}, blob.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blob.Object{}, blob.ErrNotFound
	}
	if err != nil {
		return nil, blob.Object{}, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, blob.Object{}, fmt.Errorf("stat %s: %w", name, err)
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, blob.Object{Name: name, ContentType: ct, Size: info.Size(), URL: s.baseURL + "/" + name}, nil
}
