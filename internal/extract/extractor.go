package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rechnungen/internal/log"
	"rechnungen/internal/middleware/metrics"
)

// Extractor reads invoice fields off an image. A single attempt is made per
// call. Transport or service failures and unparseable answers are returned
// as *Failure; missing or malformed individual fields are not errors.
type Extractor interface {
	Extract(ctx context.Context, imageDataURI string, schema Schema) (Result, error)
}

// ErrDisabled is returned when no extraction backend is configured.
var ErrDisabled = errors.New("extraction is not configured")

// Disabled is the Extractor used when EXTRACT_BACKEND is "none".
type Disabled struct{}

func (Disabled) Extract(context.Context, string, Schema) (Result, error) {
	return Result{}, &Failure{Reason: "no backend", Err: ErrDisabled}
}

var ErrInvalidDataURI = errors.New("invalid data URI")

// EncodeDataURI wraps raw bytes as a base64 data URI. An empty mime type is
// sniffed from the content.
func EncodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its mime type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mime, data, nil
}

type instrumented struct {
	next   Extractor
	logger *log.Logger
}

// Instrument logs every call and counts outcomes in the extraction metrics.
func Instrument(next Extractor, logger *log.Logger) Extractor {
	if logger == nil {
		logger = log.Discard()
	}
	return &instrumented{next: next, logger: logger.WithComponent(log.ComponentExtract)}
}

func (i *instrumented) Extract(ctx context.Context, imageDataURI string, schema Schema) (Result, error) {
	start := time.Now()
	res, err := i.next.Extract(ctx, imageDataURI, schema)
	if err != nil {
		metrics.ObserveExtraction("failed")
		i.logger.WarnContext(ctx, "Extraction failed",
			log.FieldOperation, log.OpExtract,
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return res, err
	}

	outcome := "ok"
	if res.IsPartial() {
		outcome = "partial"
	}
	metrics.ObserveExtraction(outcome)
	i.logger.InfoContext(ctx, "Extraction finished",
		log.FieldOperation, log.OpExtract,
		"present", len(res.Present()),
		"absent", len(res.Absent()),
		log.FieldFailedFields, res.Failed(),
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}
