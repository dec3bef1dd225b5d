package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() Fields {
	return Fields{
		InvoiceNumber: Ptr("RE-7"),
		Amount:        &Money{Cents: 5000},
		Supplier:      Ptr("Bahn"),
		Category:      Ptr(CategoryTravel),
		Paid:          Ptr(false),
		Notes:         Ptr("Dienstreise"),
	}
}

func TestApplyOnlyTouchesSuppliedFields(t *testing.T) {
	base := sampleFields()
	got := base.Apply(Patch{Set: Fields{Paid: Ptr(true)}})

	assert.True(t, got.IsPaid())
	assert.Equal(t, "RE-7", *got.InvoiceNumber)
	assert.Equal(t, int64(5000), got.Amount.Cents)
	assert.Equal(t, "Bahn", *got.Supplier)
	assert.Equal(t, CategoryTravel, *got.Category)
	assert.Equal(t, "Dienstreise", *got.Notes)
	assert.Nil(t, got.InvoiceDate)

	// the receiver is left untouched
	assert.False(t, *base.Paid)
}

func TestApplyClear(t *testing.T) {
	got := sampleFields().Apply(Patch{Clear: []Field{FieldNotes, FieldSupplier}})
	assert.Nil(t, got.Notes)
	assert.Nil(t, got.Supplier)
	assert.NotNil(t, got.Amount)

	// a value in Set wins over a Clear of the same field
	got = sampleFields().Apply(Patch{Set: Fields{Notes: Ptr("neu")}, Clear: []Field{FieldNotes}})
	assert.Equal(t, "neu", *got.Notes)
}

func TestApplyDoesNotAliasPatch(t *testing.T) {
	p := Patch{Set: Fields{Amount: &Money{Cents: 1}}}
	got := Fields{}.Apply(p)
	p.Set.Amount.Cents = 99
	assert.Equal(t, int64(1), got.Amount.Cents)
}

func TestPatchJSON(t *testing.T) {
	p := Patch{Set: Fields{Paid: Ptr(true)}, Clear: []Field{FieldNotes}}
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bezahlt": true, "notizen": null}`, string(out))

	var back Patch
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Set.IsPaid())
	assert.Equal(t, []Field{FieldNotes}, back.Clear)
	assert.True(t, back.Touches(FieldNotes))
	assert.False(t, back.Touches(FieldAmount))

	err = json.Unmarshal([]byte(`{"farbe": "rot"}`), &back)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, Patch{Clear: []Field{FieldPaid}}.IsEmpty())
	assert.False(t, NewPatch(Fields{Amount: &Money{}}).IsEmpty())
}
