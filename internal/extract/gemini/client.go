// Package gemini is an extraction backend on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"rechnungen/internal/core"
	"rechnungen/internal/extract"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	// APIKey falls back to GOOGLE_API_KEY / GEMINI_API_KEY when empty.
	APIKey string
	Model  string
	// BaseURL and HTTPClient override the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	models *genai.Models
	model  string
}

var _ extract.Extractor = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: client.Models, model: model}, nil
}

func (c *Client) Extract(ctx context.Context, imageDataURI string, schema extract.Schema) (extract.Result, error) {
	mime, data, err := extract.DecodeDataURI(imageDataURI)
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "image", Err: err}
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: schema.Describe()},
				{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
			},
		},
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(schema),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return extract.Result{}, &extract.Failure{Reason: "generate content", Err: err}
	}
	text := resp.Text()
	if text == "" {
		return extract.Result{}, &extract.Failure{Reason: "empty response", Err: errors.New("model returned no text")}
	}
	return extract.ParseResult(schema, []byte(text))
}

// ResponseSchema converts the field schema into a Gemini structured-output
// schema in which every property is nullable.
func ResponseSchema(schema extract.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		prop := &genai.Schema{
			Description: f.Description,
			Nullable:    core.Ptr(true),
			Enum:        f.Enum,
		}
		switch f.Type {
		case extract.TypeNumber:
			prop.Type = genai.TypeNumber
		case extract.TypeBoolean:
			prop.Type = genai.TypeBoolean
		case extract.TypeDate:
			prop.Type = genai.TypeString
			prop.Format = "date"
		default:
			prop.Type = genai.TypeString
		}
		if len(f.Enum) > 0 {
			prop.Format = "enum"
		}
		out.Properties[string(f.Name)] = prop
		out.Required = append(out.Required, string(f.Name))
		out.PropertyOrdering = append(out.PropertyOrdering, string(f.Name))
	}
	return out
}
