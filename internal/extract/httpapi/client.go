// Package httpapi is an extraction backend for services that take the image
// and schema description as one JSON request.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rechnungen/internal/extract"
)

type Config struct {
	Endpoint string
	// Header is copied onto every request, e.g. for an API key.
	Header     http.Header
	HTTPClient *http.Client
}

type Client struct {
	endpoint   string
	header     http.Header
	httpClient *http.Client
}

var _ extract.Extractor = (*Client)(nil)

type request struct {
	Image  string `json:"image"`
	Schema string `json:"schema"`
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("missing extraction endpoint")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{endpoint: cfg.Endpoint, header: cfg.Header.Clone(), httpClient: httpClient}, nil
}

func (c *Client) Extract(ctx context.Context, imageDataURI string, schema extract.Schema) (extract.Result, error) {
	body, err := json.Marshal(request{Image: imageDataURI, Schema: schema.Describe()})
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "build request", Err: err}
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "transport", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return extract.Result{}, &extract.Failure{
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
			Err:    errors.New(strings.TrimSpace(string(raw))),
		}
	}
	return extract.ParseResult(schema, raw)
}
