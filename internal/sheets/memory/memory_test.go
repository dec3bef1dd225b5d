package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
)

func TestStore_UpsertRemoveResync(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Upsert(ctx, core.Record{ID: "a", Fields: core.Fields{InvoiceNumber: core.Ptr("RE-1")}})
	require.NoError(t, err)
	assert.Equal(t, "mem:2", ref)
	_, err = s.Upsert(ctx, core.Record{ID: "b"})
	require.NoError(t, err)

	ref, err = s.Upsert(ctx, core.Record{ID: "a", Fields: core.Fields{InvoiceNumber: core.Ptr("RE-1b")}})
	require.NoError(t, err)
	assert.Equal(t, "mem:2", ref)
	row, ok := s.Row("a")
	require.True(t, ok)
	assert.Equal(t, "RE-1b", row[1])

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "a"))
	assert.Equal(t, []string{"b"}, s.IDs())

	require.NoError(t, s.Resync(ctx, []core.Record{{ID: "x"}, {ID: "y"}}))
	assert.Equal(t, []string{"x", "y"}, s.IDs())

	_, err = s.Upsert(ctx, core.Record{})
	assert.Error(t, err)
}
