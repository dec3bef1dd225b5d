package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1,005", 101, true}, // half-up rounding
		{"0.005", 1, true},
		{"1.234", 123400, true},
		{"12.5", 1250, true},
		{"1.2345", 123, true},
		{" 2.50 ", 250, true},
		{"1.234,56", 123456, true},
		{"1,234.56", 123456, true},
		{"12,50 €", 1250, true},
		{"0", 0, true},
		{"-19,99", -1999, true},
		{"abc", 0, false},
		{"1.2,3,4", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "0,00 €", Money{}.String())
	assert.Equal(t, "12,30 €", Money{Cents: 1230}.String())
	assert.Equal(t, "1.234,56 €", Money{Cents: 123456}.String())
	assert.Equal(t, "-1.000.000,01 €", Money{Cents: -100000001}.String())
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`149.9`), &m))
	assert.Equal(t, int64(14990), m.Cents)

	require.NoError(t, json.Unmarshal([]byte(`"149,90"`), &m))
	assert.Equal(t, int64(14990), m.Cents)

	out, err := json.Marshal(Money{Cents: 14990})
	require.NoError(t, err)
	assert.JSONEq(t, `149.90`, string(out))

	assert.ErrorIs(t, json.Unmarshal([]byte(`true`), &m), ErrInvalidAmount)
}

func TestMoneyJSON_RejectsAmountsBeyondCentRange(t *testing.T) {
	for _, in := range []string{`1e20`, `-1e20`, `"1e20"`, `92233720368547758.08`} {
		var m Money
		assert.ErrorIs(t, json.Unmarshal([]byte(in), &m), ErrInvalidAmount, in)
		assert.Zero(t, m.Cents, in)
	}

	_, err := Euros(1e17)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	m, err := Euros(-19.99)
	require.NoError(t, err)
	assert.Equal(t, int64(-1999), m.Cents)
}
