package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
	"rechnungen/internal/records"
)

func setupMockService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:           server.URL + "/api/",
		AppID:             "app1",
		SessionCookie:     "s3cr3t",
		SessionCookieName: "sid",
	})
	require.NoError(t, err)
	return client
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url", AppID: "x"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "https://records.example.com", AppID: " "})
	assert.Error(t, err)
}

func TestClient_ListKeepsDocumentOrder(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/apps/app1/records", r.URL.Path)
		cookie, err := r.Cookie("sid")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", cookie.Value)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"ffff00000000000000000003": {"created_date": "2024-01-03T08:00:00Z", "updated_date": null, "fields": {"rechnungsnummer": "C", "betrag": 30}},
			"aaaa00000000000000000001": {"created_date": "2024-01-01T08:00:00.000000", "fields": {"rechnungsnummer": "A", "bezahlt": true}},
			"cccc00000000000000000002": {"created_date": "2024-01-02T08:00:00Z", "updated_date": "2024-01-05T09:30:00Z", "fields": {}}
		}`)
	})

	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "ffff00000000000000000003", list[0].ID)
	assert.Equal(t, "aaaa00000000000000000001", list[1].ID)
	assert.Equal(t, "cccc00000000000000000002", list[2].ID)

	assert.Equal(t, int64(3000), list[0].AmountCents())
	assert.Nil(t, list[0].UpdatedAt)
	assert.True(t, list[1].IsPaid())
	assert.Nil(t, list[1].Amount)
	require.NotNil(t, list[2].UpdatedAt)
	assert.Equal(t, 5, list[2].UpdatedAt.Day())
}

func TestClient_ListEmptyAndNull(t *testing.T) {
	for _, body := range []string{`{}`, `null`} {
		client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		list, err := client.List(context.Background())
		require.NoError(t, err, body)
		assert.Empty(t, list, body)
	}
}

func TestClient_ListServiceError(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.List(context.Background())
	var svcErr *records.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusTooManyRequests, svcErr.StatusCode)
	assert.Equal(t, "quota exceeded", svcErr.Body)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := New(Config{BaseURL: baseURL, AppID: "app1"})
	require.NoError(t, err)

	_, err = client.List(context.Background())
	var transportErr *records.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_GetNotFound(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	})
	_, err := client.Get(context.Background(), "aaaa00000000000000000001")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestClient_GetTakesIDFromURL(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/apps/app1/records/5f1a2b3c4d5e6f7a8b9c0d1e", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"url": "https://records.example.com/apps/app1/records/5f1a2b3c4d5e6f7a8b9c0d1e",
			"created_date": "2024-03-01T00:00:00Z",
			"fields": {"rechnungsnummer": "RE-1", "kategorie": {"label": "Reise", "key": "reise"}}
		}`)
	})

	rec, err := client.Get(context.Background(), "5f1a2b3c4d5e6f7a8b9c0d1e")
	require.NoError(t, err)
	assert.Equal(t, "5f1a2b3c4d5e6f7a8b9c0d1e", rec.ID)
	assert.Equal(t, core.CategoryTravel, rec.CategoryKey())
}

func TestClient_CreateSendsFieldsEnvelope(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"fields": {"rechnungsnummer": "RE-9", "betrag": 12.50}}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "abc0000000000000000000ff", "created_date": "2024-03-01T00:00:00Z", "fields": {"rechnungsnummer": "RE-9", "betrag": 12.5}}`)
	})

	rec, err := client.Create(context.Background(), core.Fields{
		InvoiceNumber: core.Ptr("RE-9"),
		Amount:        &core.Money{Cents: 1250},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc0000000000000000000ff", rec.ID)
	assert.Equal(t, int64(1250), rec.AmountCents())
}

func TestClient_UpdateSendsOnlyTouchedKeys(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/apps/app1/records/abc0000000000000000000ff", r.URL.Path)

		var got map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]any{"bezahlt": true, "notizen": nil}, got["fields"])

		_, _ = io.WriteString(w, `{"id": "abc0000000000000000000ff", "created_date": "2024-03-01T00:00:00Z", "fields": {"rechnungsnummer": "RE-9", "bezahlt": true}}`)
	})

	rec, err := client.Update(context.Background(), "abc0000000000000000000ff", core.Patch{
		Set:   core.Fields{Paid: core.Ptr(true)},
		Clear: []core.Field{core.FieldNotes},
	})
	require.NoError(t, err)
	assert.True(t, rec.IsPaid())
}

func TestClient_DeleteTreatsMissingAsSuccess(t *testing.T) {
	status := http.StatusNoContent
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(status)
	})

	require.NoError(t, client.Delete(context.Background(), "abc0000000000000000000ff"))

	status = http.StatusNotFound
	require.NoError(t, client.Delete(context.Background(), "abc0000000000000000000ff"))

	status = http.StatusInternalServerError
	assert.Error(t, client.Delete(context.Background(), "abc0000000000000000000ff"))
}

func TestClient_UploadFile(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)

		assert.Equal(t, "beleg.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(content))
		_, _ = io.WriteString(w, `{"url": "https://files.example.com/beleg.pdf"}`)
	})

	url, err := client.UploadFile(context.Background(), strings.NewReader("%PDF-1.4"), "C:\\scans\\beleg.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/beleg.pdf", url)
}

func TestClient_UploadFileFailure(t *testing.T) {
	client := setupMockService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	})

	_, err := client.UploadFile(context.Background(), strings.NewReader("x"), "a.png")
	var uploadErr *records.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, uploadErr.StatusCode)
	assert.Equal(t, "too large", uploadErr.Body)
}
