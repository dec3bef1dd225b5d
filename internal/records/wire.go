package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rechnungen/internal/core"
)

type (
	// Entry is one value of the list response object, keyed by record id.
	Entry struct {
		CreatedDate Timestamp   `json:"created_date"`
		UpdatedDate *Timestamp  `json:"updated_date"`
		Fields      core.Fields `json:"fields"`
		// Dropped lists fields whose stored value could not be decoded.
		Dropped []core.Field `json:"-"`
	}

	// Document is a single record as returned by get, create and update.
	Document struct {
		ID          string       `json:"id,omitempty"`
		URL         string       `json:"url,omitempty"`
		CreatedDate Timestamp    `json:"created_date"`
		UpdatedDate *Timestamp   `json:"updated_date"`
		Fields      core.Fields  `json:"fields"`
		Dropped     []core.Field `json:"-"`
	}

	CreateRequest struct {
		Fields core.Fields `json:"fields"`
	}

	UpdateRequest struct {
		Fields core.Patch `json:"fields"`
	}

	UploadResponse struct {
		URL string `json:"url"`
	}

	// Timestamp accepts RFC 3339 as well as the zone-less ISO form some
	// services emit, and always encodes RFC 3339 in UTC.
	Timestamp struct {
		time.Time
	}
)

var ErrMissingID = errors.New("record without id")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// envelope is the decoding shape shared by Entry and Document. Fields are
// decoded leniently so one malformed value does not hide the whole record.
type envelope struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	CreatedDate Timestamp       `json:"created_date"`
	UpdatedDate *Timestamp      `json:"updated_date"`
	Fields      json.RawMessage `json:"fields"`
}

func (e *envelope) decode(data []byte) (core.Fields, []core.Field, error) {
	if err := json.Unmarshal(data, e); err != nil {
		return core.Fields{}, nil, err
	}
	return core.DecodeFields(e.Fields)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var env envelope
	fields, dropped, err := env.decode(data)
	if err != nil {
		return err
	}
	*e = Entry{CreatedDate: env.CreatedDate, UpdatedDate: env.UpdatedDate, Fields: fields, Dropped: dropped}
	return nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var env envelope
	fields, dropped, err := env.decode(data)
	if err != nil {
		return err
	}
	*d = Document{
		ID:          env.ID,
		URL:         env.URL,
		CreatedDate: env.CreatedDate,
		UpdatedDate: env.UpdatedDate,
		Fields:      fields,
		Dropped:     dropped,
	}
	return nil
}

// Record converts an entry stored under id.
func (e Entry) Record(id string) core.Record {
	return core.Record{
		ID:        id,
		CreatedAt: e.CreatedDate.Time,
		UpdatedAt: updatedAt(e.UpdatedDate),
		Fields:    e.Fields,
	}
}

// Record converts the document, falling back to the storage URL for the id.
func (d Document) Record() (core.Record, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		var ok bool
		if id, ok = core.ExtractRecordID(d.URL); !ok {
			return core.Record{}, ErrMissingID
		}
	}
	return core.Record{
		ID:        id,
		CreatedAt: d.CreatedDate.Time,
		UpdatedAt: updatedAt(d.UpdatedDate),
		Fields:    d.Fields,
	}, nil
}

// NewDocument builds the wire document of r. url may be empty.
func NewDocument(r core.Record, url string) Document {
	d := Document{
		ID:          r.ID,
		URL:         url,
		CreatedDate: Timestamp{r.CreatedAt},
		Fields:      r.Fields,
	}
	if r.UpdatedAt != nil {
		d.UpdatedDate = &Timestamp{*r.UpdatedAt}
	}
	return d
}

// NewEntry builds the list entry of r.
func NewEntry(r core.Record) Entry {
	d := NewDocument(r, "")
	return Entry{CreatedDate: d.CreatedDate, UpdatedDate: d.UpdatedDate, Fields: d.Fields}
}

func updatedAt(t *Timestamp) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// DecodeCollection reads the id-to-entry object of a list response and
// flattens it in document order. A later duplicate key replaces the earlier
// entry in place. A JSON null decodes to an empty collection.
func DecodeCollection(r io.Reader) ([]core.Record, error) {
	return DecodeCollectionWith(r, nil)
}

// DecodeCollectionWith is DecodeCollection that calls dropped for every record
// with field values that could not be decoded. Those fields are left absent.
func DecodeCollectionWith(r io.Reader, dropped func(id string, fields []core.Field)) ([]core.Record, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if tok == nil {
		return []core.Record{}, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode collection: expected object, got %v", tok)
	}

	out := []core.Record{}
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode collection: %w", err)
		}
		id, _ := tok.(string)
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode collection entry %q: %w", id, err)
		}
		if len(entry.Dropped) > 0 && dropped != nil {
			dropped(id, entry.Dropped)
		}
		rec := entry.Record(id)
		if i, dup := index[id]; dup {
			out[i] = rec
			continue
		}
		index[id] = len(out)
		out = append(out, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return out, nil
}

// EncodeCollection writes records as an id-to-entry object in slice order.
func EncodeCollection(w io.Writer, list []core.Record) error {
	var b strings.Builder
	b.WriteByte('{')
	for i, r := range list {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(r.ID)
		if err != nil {
			return fmt.Errorf("encode collection key: %w", err)
		}
		entry, err := json.Marshal(NewEntry(r))
		if err != nil {
			return fmt.Errorf("encode collection entry %q: %w", r.ID, err)
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(entry)
	}
	b.WriteByte('}')
	_, err := io.WriteString(w, b.String())
	return err
}
