// Package google mirrors invoices into a Google Sheet through the Sheets v4 API.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"rechnungen/internal/cache"
	"rechnungen/internal/core"
	"rechnungen/internal/log"
	ports "rechnungen/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	rowCacheSize = 4096
	rowCacheTTL  = 10 * time.Minute
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// rows maps record ids to 1-based row numbers.
	rows *cache.LRU[int]
	// mu serializes writers so two upserts never pick the same free row.
	mu sync.Mutex
}

var _ ports.Mirror = (*Client)(nil)

// Config selects the target sheet. Options are passed to the Sheets service
// as is; without options credentials are read from the environment.
type Config struct {
	SpreadsheetID string
	SheetName     string
	Options       []goption.ClientOption
	Logger        *log.Logger
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Rechnungen"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	opts := cfg.Options
	if len(opts) == 0 {
		creds, err := credentialsFromEnv(ctx, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     strings.TrimSpace(cfg.SheetName),
		logger:        logger,
		rows:          cache.NewLRU[int](rowCacheSize, rowCacheTTL),
	}, nil
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and GOOGLE_SHEET_NAME
// using service account credentials.
func NewFromEnv(ctx context.Context, logger *log.Logger) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:     os.Getenv("GOOGLE_SHEET_NAME"),
		Logger:        logger,
	})
}

// RowCache exposes the id to row cache so it can be registered with a janitor.
func (c *Client) RowCache() *cache.LRU[int] {
	return c.rows
}

// credentialsFromEnv reads service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentialsFromEnv(ctx context.Context, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Upsert writes r into the row holding its id, or below the last used row.
func (c *Client) Upsert(ctx context.Context, r core.Record) (string, error) {
	if r.ID == "" {
		return "", errors.New("record without id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	row, found := c.rows.Get(r.ID)
	if !found {
		index, used, err := c.scanIDs(ctx)
		if err != nil {
			return "", err
		}
		row, found = index[r.ID]
		if !found {
			row = used + 1
			if row < 2 {
				if err := c.writeHeader(ctx); err != nil {
					return "", err
				}
				row = 2
			}
		}
	}

	rng := c.rowRange(row)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(r)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		c.rows.Delete(r.ID)
		return "", fmt.Errorf("write %s: %w", rng, err)
	}
	c.rows.Set(r.ID, row)

	c.logger.DebugContext(ctx, "Mirrored invoice",
		log.FieldRecordID, r.ID,
		log.FieldSheetRow, row,
		"updated", found)
	return rng, nil
}

// Remove clears the row holding id. The row is left empty rather than deleted
// so cached row numbers of other records stay valid.
func (c *Client) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows.Get(id)
	if !ok {
		index, _, err := c.scanIDs(ctx)
		if err != nil {
			return err
		}
		if row, ok = index[id]; !ok {
			c.logger.DebugContext(ctx, "Invoice not in sheet", log.FieldRecordID, id)
			return nil
		}
	}

	rng := c.rowRange(row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.rows.Delete(id)
	c.logger.DebugContext(ctx, "Removed invoice from sheet",
		log.FieldRecordID, id,
		log.FieldSheetRow, row)
	return nil
}

// Resync replaces every row below the header with records, in order.
func (c *Client) Resync(ctx context.Context, records []core.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clearRng := c.a1(fmt.Sprintf("A2:%s", ports.LastColumn))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}
	c.rows.Purge()

	values := make([][]any, 0, len(records)+1)
	values = append(values, headerRow())
	for _, r := range records {
		values = append(values, ports.Row(r))
	}
	rng := c.a1(fmt.Sprintf("A1:%s%d", ports.LastColumn, len(values)))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	for i, r := range records {
		c.rows.Set(r.ID, i+2)
	}

	c.logger.InfoContext(ctx, "Resynced sheet",
		log.FieldOperation, log.OpSync,
		log.FieldRecordCount, len(records))
	return nil
}

// scanIDs reads column A and returns the id index plus the number of rows in use.
func (c *Client) scanIDs(ctx context.Context) (map[string]int, int, error) {
	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	index := ports.IndexIDs(resp.Values)
	for id, row := range index {
		c.rows.Set(id, row)
	}
	return index, len(resp.Values), nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := c.a1(fmt.Sprintf("A1:%s1", ports.LastColumn))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{headerRow()}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (c *Client) rowRange(row int) string {
	return c.a1(fmt.Sprintf("A%d:%s%d", row, ports.LastColumn, row))
}

// a1 prefixes cells with the quoted sheet name.
func (c *Client) a1(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.sheetName, "'", "''"), cells)
}

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}
