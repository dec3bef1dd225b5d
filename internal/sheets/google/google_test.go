package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"rechnungen/internal/core"
)

// fakeSheet serves the subset of the Sheets v4 values API the client uses.
type fakeSheet struct {
	mu    sync.Mutex
	rows  map[int][]any
	calls []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path", http.StatusNotFound)
		return
	}
	action := r.Method
	if strings.HasSuffix(rng, ":clear") {
		rng, action = strings.TrimSuffix(rng, ":clear"), "CLEAR"
	}
	_, cells, _ := strings.Cut(rng, "!")
	start, end := rowSpan(cells)
	f.calls = append(f.calls, action+" "+cells)

	switch action {
	case http.MethodGet:
		last := 0
		for row := range f.rows {
			last = max(last, row)
		}
		values := make([][]any, last)
		for i := range values {
			values[i] = []any{}
			if cellsOfRow, ok := f.rows[i+1]; ok && len(cellsOfRow) > 0 {
				values[i] = []any{cellsOfRow[0]}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case http.MethodPut:
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i, v := range body.Values {
			f.rows[start+i] = v
		}
		_, _ = w.Write([]byte(`{}`))
	case "CLEAR":
		for row := range f.rows {
			if row >= start && (end == 0 || row <= end) {
				delete(f.rows, row)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

// rowSpan parses "A2:K5", "A2:K" or "A:A" into a 1-based row span; end 0 means open.
func rowSpan(cells string) (int, int) {
	from, to, _ := strings.Cut(cells, ":")
	start, err := strconv.Atoi(strings.TrimLeft(from, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	if err != nil {
		start = 1
	}
	end, _ := strconv.Atoi(strings.TrimLeft(to, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return start, end
}

func setupFakeSheet(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{rows: map[int][]any{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-1",
		SheetName:     "Rechnungen",
		Options: []goption.ClientOption{
			goption.WithEndpoint(server.URL + "/"),
			goption.WithoutAuthentication(),
		},
	})
	require.NoError(t, err)
	return c, fake
}

func invoice(id, number string, cents int64) core.Record {
	return core.Record{ID: id, Fields: core.Fields{InvoiceNumber: core.Ptr(number), Amount: &core.Money{Cents: cents}}}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-1")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestClient_UpsertAppendsThenUpdatesInPlace(t *testing.T) {
	c, fake := setupFakeSheet(t)
	ctx := context.Background()

	ref, err := c.Upsert(ctx, invoice("aaa", "RE-1", 1000))
	require.NoError(t, err)
	assert.Equal(t, "'Rechnungen'!A2:K2", ref)
	assert.Equal(t, "ID", fake.rows[1][0], "header written into an empty sheet")

	_, err = c.Upsert(ctx, invoice("bbb", "RE-2", 2000))
	require.NoError(t, err)
	assert.Equal(t, "bbb", fake.rows[3][0])

	ref, err = c.Upsert(ctx, invoice("aaa", "RE-1b", 1500))
	require.NoError(t, err)
	assert.Equal(t, "'Rechnungen'!A2:K2", ref)
	assert.Equal(t, "RE-1b", fake.rows[2][1])
	assert.Len(t, fake.rows, 3)
}

func TestClient_UpsertFindsExistingRowOnCacheMiss(t *testing.T) {
	c, fake := setupFakeSheet(t)
	fake.rows[1] = []any{"ID"}
	fake.rows[2] = []any{"old"}
	fake.rows[3] = []any{"target"}

	ref, err := c.Upsert(context.Background(), invoice("target", "RE-9", 900))
	require.NoError(t, err)
	assert.Equal(t, "'Rechnungen'!A3:K3", ref)
	assert.Equal(t, "RE-9", fake.rows[3][1])

	fake.calls = nil
	_, err = c.Upsert(context.Background(), invoice("old", "RE-8", 800))
	require.NoError(t, err)
	assert.Equal(t, []string{"PUT A2:K2"}, fake.calls, "row comes from the cache filled by the scan")
}

func TestClient_RemoveClearsRow(t *testing.T) {
	c, fake := setupFakeSheet(t)
	ctx := context.Background()

	_, err := c.Upsert(ctx, invoice("aaa", "RE-1", 1000))
	require.NoError(t, err)
	_, err = c.Upsert(ctx, invoice("bbb", "RE-2", 2000))
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, "aaa"))
	_, ok := fake.rows[2]
	assert.False(t, ok)
	assert.Equal(t, "bbb", fake.rows[3][0])

	require.NoError(t, c.Remove(ctx, "unknown"))
}

func TestClient_ResyncRewritesSheet(t *testing.T) {
	c, fake := setupFakeSheet(t)
	fake.rows[1] = []any{"ID"}
	fake.rows[2] = []any{"stale"}
	fake.rows[7] = []any{"also-stale"}

	require.NoError(t, c.Resync(context.Background(), []core.Record{
		invoice("aaa", "RE-1", 100),
		invoice("bbb", "RE-2", 200),
	}))

	assert.Len(t, fake.rows, 3)
	assert.Equal(t, "aaa", fake.rows[2][0])
	assert.Equal(t, "bbb", fake.rows[3][0])

	row, ok := c.RowCache().Get("bbb")
	require.True(t, ok)
	assert.Equal(t, 3, row)
}

func TestClient_A1QuotesSheetName(t *testing.T) {
	c := &Client{sheetName: "Rechnungen '24"}
	assert.Equal(t, "'Rechnungen ''24'!A:A", c.a1("A:A"))
}
