// Package blob stores uploaded invoice files.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Object is a stored file.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	URL         string
}

// Store writes objects and hands out their public URL.
type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, name string) (io.ReadCloser, Object, error)
}

// ObjectName returns a fresh collision-free object name keeping the
// lower-cased extension of filename.
func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 8 || strings.ContainsAny(ext, " /?#%") {
		ext = ""
	}
	return uuid.NewString() + ext
}

// ValidName reports whether name looks like an ObjectName result. It guards
// Open against path traversal.
func ValidName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return false
	}
	base := strings.TrimSuffix(name, path.Ext(name))
	return uuid.Validate(base) == nil
}
