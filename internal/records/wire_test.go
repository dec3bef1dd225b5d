package records

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
)

func TestDecodeCollection_DuplicateKeyReplacesInPlace(t *testing.T) {
	list, err := DecodeCollection(strings.NewReader(`{
		"b": {"created_date": "2024-01-01T00:00:00Z", "fields": {"rechnungsnummer": "first"}},
		"a": {"created_date": "2024-01-01T00:00:00Z", "fields": {}},
		"b": {"created_date": "2024-01-01T00:00:00Z", "fields": {"rechnungsnummer": "second"}}
	}`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "second", *list[0].InvoiceNumber)
	assert.Equal(t, "a", list[1].ID)
}

func TestDecodeCollection_RejectsNonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"x"`, `{"a": 1}`, `{"a": {}`, ``} {
		_, err := DecodeCollection(strings.NewReader(body))
		assert.Error(t, err, body)
	}
}

func TestTimestamp_Layouts(t *testing.T) {
	for _, in := range []string{
		`"2024-05-01T10:20:30Z"`,
		`"2024-05-01T12:20:30+02:00"`,
		`"2024-05-01T10:20:30.123456"`,
		`"2024-05-01 10:20:30"`,
	} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts), in)
		assert.Equal(t, 10, ts.UTC().Hour(), in)
	}

	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"01.05.2024"`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDocument_RecordIDFallback(t *testing.T) {
	rec, err := Document{URL: "https://records.example.com/apps/x/records/5f1a2b3c4d5e6f7a8b9c0d1e"}.Record()
	require.NoError(t, err)
	assert.Equal(t, "5f1a2b3c4d5e6f7a8b9c0d1e", rec.ID)

	rec, err = Document{ID: "explicit", URL: "https://records.example.com/apps/x/records/5f1a2b3c4d5e6f7a8b9c0d1e"}.Record()
	require.NoError(t, err)
	assert.Equal(t, "explicit", rec.ID)

	_, err = Document{URL: "https://records.example.com/apps/x/records/short"}.Record()
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestEncodeCollection_KeepsSliceOrder(t *testing.T) {
	updated := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	in := []core.Record{
		{ID: "zzz", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Fields: core.Fields{Amount: &core.Money{Cents: 250}}},
		{ID: "aaa", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), UpdatedAt: &updated},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeCollection(&buf, in))
	assert.Less(t, strings.Index(buf.String(), `"zzz"`), strings.Index(buf.String(), `"aaa"`))

	out, err := DecodeCollection(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "zzz", out[0].ID)
	assert.Equal(t, int64(250), out[0].AmountCents())
	assert.Nil(t, out[0].UpdatedAt)
	require.NotNil(t, out[1].UpdatedAt)
	assert.True(t, updated.Equal(*out[1].UpdatedAt))

	buf.Reset()
	require.NoError(t, EncodeCollection(&buf, nil))
	assert.Equal(t, "{}", buf.String())
}

func TestDecodeCollection_OddFieldValuesDoNotHideOtherRecords(t *testing.T) {
	body := `{
		"aaaaaaaaaaaaaaaaaaaaaaaa": {"created_date": "2024-01-01T00:00:00Z", "fields": {"betrag": 10}},
		"bbbbbbbbbbbbbbbbbbbbbbbb": {"created_date": "2024-01-01T00:00:00Z", "fields": {"rechnungsdatum": "", "betrag": ""}},
		"cccccccccccccccccccccccc": {"created_date": "2024-01-01T00:00:00Z", "fields": {"rechnungsdatum": "2024-01-15T10:30", "betrag": 5}},
		"dddddddddddddddddddddddd": {"created_date": "2024-01-01T00:00:00Z", "fields": {"rechnungsnummer": "RE-4", "zahlungsdatum": "gestern", "betrag": 1e20}}
	}`

	dropped := map[string][]core.Field{}
	list, err := DecodeCollectionWith(strings.NewReader(body), func(id string, fields []core.Field) {
		dropped[id] = fields
	})
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Nil(t, list[1].InvoiceDate)
	assert.Nil(t, list[1].Amount)

	require.NotNil(t, list[2].InvoiceDate)
	assert.Equal(t, "2024-01-15", list[2].InvoiceDate.String())

	assert.Equal(t, "RE-4", *list[3].InvoiceNumber)
	assert.Nil(t, list[3].PaymentDate)
	assert.Nil(t, list[3].Amount)
	assert.Equal(t, map[string][]core.Field{
		"dddddddddddddddddddddddd": {core.FieldAmount, core.FieldPaymentDate},
	}, dropped)

	assert.Equal(t, int64(1500), core.TotalAmount(list).Cents)
}

func TestDocument_DecodesFieldsLeniently(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "5f1a2b3c4d5e6f7a8b9c0d1e",
		"created_date": "2024-01-01T00:00:00Z",
		"fields": {"rechnungsnummer": "RE-1", "bezahlt": "ja"}
	}`), &doc))
	assert.Equal(t, []core.Field{core.FieldPaid}, doc.Dropped)

	rec, err := doc.Record()
	require.NoError(t, err)
	assert.Equal(t, "RE-1", *rec.InvoiceNumber)
	assert.Nil(t, rec.Paid)
}
