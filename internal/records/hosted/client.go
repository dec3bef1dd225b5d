// Package hosted implements the records ports against the hosted-records REST API.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/log"
	"rechnungen/internal/records"
)

// maxErrorBody caps how much of a failed response is kept in error values.
const maxErrorBody = 64 << 10

// Config is the explicit connection setting of one record collection.
type Config struct {
	// BaseURL is the API root, e.g. https://records.example.com/api.
	BaseURL string
	// AppID selects the collection.
	AppID string
	// SessionCookie is attached to every request when set.
	SessionCookie     string
	SessionCookieName string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	base       *url.URL
	appID      string
	cookie     *http.Cookie
	httpClient *http.Client
	logger     *log.Logger
}

var _ records.Client = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid records base URL %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("missing records app id")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	c := &Client{
		base:       base,
		appID:      cfg.AppID,
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentRecords),
	}
	if cfg.SessionCookie != "" {
		name := cfg.SessionCookieName
		if name == "" {
			name = "session"
		}
		c.cookie = &http.Cookie{Name: name, Value: cfg.SessionCookie}
	}
	return c, nil
}

// List fetches the whole collection, preserving the service's key order.
func (c *Client) List(ctx context.Context) ([]core.Record, error) {
	resp, err := c.do(ctx, log.OpList, http.MethodGet, c.recordsURL(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := records.DecodeCollectionWith(resp.Body, func(id string, fields []core.Field) {
		c.logger.WarnContext(ctx, "Ignoring undecodable record fields",
			log.FieldRecordID, id,
			log.FieldFailedFields, fields)
	})
	if err != nil {
		return nil, &records.ServiceError{Op: log.OpList, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	c.logger.DebugContext(ctx, "Listed records", log.FieldRecordCount, len(out))
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (core.Record, error) {
	resp, err := c.do(ctx, log.OpRead, http.MethodGet, c.recordURL(id), nil, "")
	if err != nil {
		return core.Record{}, err
	}
	defer resp.Body.Close()
	return c.decodeDocument(ctx, log.OpRead, resp, id)
}

// Create posts the present fields and returns the record as stored by the service.
func (c *Client) Create(ctx context.Context, fields core.Fields) (core.Record, error) {
	body, err := json.Marshal(records.CreateRequest{Fields: fields})
	if err != nil {
		return core.Record{}, fmt.Errorf("encode create body: %w", err)
	}
	resp, err := c.do(ctx, log.OpCreate, http.MethodPost, c.recordsURL(), bytes.NewReader(body), "application/json")
	if err != nil {
		return core.Record{}, err
	}
	defer resp.Body.Close()
	return c.decodeDocument(ctx, log.OpCreate, resp, "")
}

// Update sends only the keys the patch touches. Cleared fields go out as null.
func (c *Client) Update(ctx context.Context, id string, patch core.Patch) (core.Record, error) {
	body, err := json.Marshal(records.UpdateRequest{Fields: patch})
	if err != nil {
		return core.Record{}, fmt.Errorf("encode update body: %w", err)
	}
	resp, err := c.do(ctx, log.OpUpdate, http.MethodPatch, c.recordURL(id), bytes.NewReader(body), "application/json")
	if err != nil {
		return core.Record{}, err
	}
	defer resp.Body.Close()
	return c.decodeDocument(ctx, log.OpUpdate, resp, id)
}

// Delete removes the record. A 404 counts as success since the record is gone either way.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, log.OpDelete, http.MethodDelete, c.recordURL(id), nil, "")
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			c.logger.InfoContext(ctx, "Record already gone", log.FieldRecordID, id)
			return nil
		}
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// UploadFile posts the file as multipart form data and returns its public URL.
func (c *Client) UploadFile(ctx context.Context, r io.Reader, filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "rechnung"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("files").String(), pr)
	if err != nil {
		pr.Close()
		return "", &records.UploadError{Filename: name, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return "", &records.UploadError{Filename: name, Err: &records.TransportError{Op: log.OpUpload, Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &records.UploadError{Filename: name, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
	var out records.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &records.UploadError{Filename: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.URL == "" {
		return "", &records.UploadError{Filename: name, StatusCode: resp.StatusCode, Err: errors.New("response without url")}
	}
	c.logger.InfoContext(ctx, "Uploaded invoice file", "filename", name, "url", out.URL)
	return out.URL, nil
}

func (c *Client) recordsURL() string {
	return c.base.JoinPath("apps", c.appID, "records").String()
}

func (c *Client) recordURL(id string) string {
	return c.base.JoinPath("apps", c.appID, "records", id).String()
}

func (c *Client) authorize(req *http.Request) {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	req.Header.Set("Accept", "application/json")
}

// do performs one round-trip and turns failures into TransportError or
// ServiceError. On success the caller owns the response body.
func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Records request failed",
			log.FieldOperation, op,
			log.FieldError, err)
		return nil, &records.TransportError{Op: op, Err: err}
	}
	c.logger.DebugContext(ctx, "Records request",
		log.FieldOperation, op,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &records.ServiceError{Op: op, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}
	return resp, nil
}

func (c *Client) decodeDocument(ctx context.Context, op string, resp *http.Response, fallbackID string) (core.Record, error) {
	var doc records.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return core.Record{}, &records.ServiceError{Op: op, StatusCode: resp.StatusCode, Body: "decode response: " + err.Error()}
	}
	if doc.ID == "" && doc.URL == "" {
		doc.ID = fallbackID
	}
	rec, err := doc.Record()
	if err != nil {
		return core.Record{}, &records.ServiceError{Op: op, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if len(doc.Dropped) > 0 {
		c.logger.WarnContext(ctx, "Ignoring undecodable record fields",
			log.FieldOperation, op,
			log.FieldRecordID, rec.ID,
			log.FieldFailedFields, doc.Dropped)
	}
	return rec, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
