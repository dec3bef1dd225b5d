package records

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by a ServiceError carrying a 404 status.
var ErrNotFound = errors.New("record not found")

// TransportError reports that the service could not be reached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("records %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError reports a non-success HTTP status. Body holds the response text.
type ServiceError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("records %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("records %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// UploadError reports a failed file upload.
type UploadError struct {
	Filename   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("upload %q: %v", e.Filename, e.Err)
	case e.Body != "":
		return fmt.Sprintf("upload %q: status %d: %s", e.Filename, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("upload %q: status %d", e.Filename, e.StatusCode)
	}
}

func (e *UploadError) Unwrap() error { return e.Err }
