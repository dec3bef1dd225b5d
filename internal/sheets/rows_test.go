package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
)

func TestRow_FullRecord(t *testing.T) {
	d := core.NewDate(2024, 3, 15)
	r := core.Record{
		ID:        "5f1a2b3c4d5e6f7a8b9c0d1e",
		CreatedAt: time.Date(2024, 3, 16, 8, 30, 0, 0, time.UTC),
		Fields: core.Fields{
			InvoiceNumber: core.Ptr("RE-2024-001"),
			InvoiceDate:   &d,
			Amount:        &core.Money{Cents: 12345},
			Supplier:      core.Ptr("Büromarkt GmbH"),
			Category:      core.Ptr(core.CategoryOffice),
			Paid:          core.Ptr(false),
			Notes:         core.Ptr("Toner"),
		},
	}

	row := Row(r)
	require.Len(t, row, len(Header))
	assert.Equal(t, "5f1a2b3c4d5e6f7a8b9c0d1e", row[0])
	assert.Equal(t, "RE-2024-001", row[1])
	assert.Equal(t, "2024-03-15", row[2])
	assert.InDelta(t, 123.45, row[3], 1e-9)
	assert.Equal(t, core.CategoryOffice.Label(), row[5])
	assert.Equal(t, "nein", row[6])
	assert.Equal(t, "", row[7])
	assert.Equal(t, "", row[9])
	assert.Equal(t, "2024-03-16 08:30:00", row[10])
}

func TestRow_AbsentFieldsAreEmpty(t *testing.T) {
	row := Row(core.Record{ID: "x"})
	require.Len(t, row, len(Header))
	for i, cell := range row[1:] {
		assert.Equal(t, "", cell, "column %s", Header[i+1])
	}
}

func TestIndexIDs(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"aaa"},
		{},
		{" bbb "},
		{"aaa"},
		{float64(7)},
	}
	assert.Equal(t, map[string]int{"aaa": 2, "bbb": 4}, IndexIDs(values))
	assert.Empty(t, IndexIDs(nil))
}
