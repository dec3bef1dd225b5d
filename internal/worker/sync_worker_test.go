package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/amqp"
	"rechnungen/internal/core"
	"rechnungen/internal/records"
	"rechnungen/internal/sheets/memory"
)

type fakeSource struct {
	byID    map[string]core.Record
	list    []core.Record
	getErr  error
	listErr error
}

func (f *fakeSource) List(context.Context) ([]core.Record, error) {
	return f.list, f.listErr
}

func (f *fakeSource) Get(_ context.Context, id string) (core.Record, error) {
	if f.getErr != nil {
		return core.Record{}, f.getErr
	}
	r, ok := f.byID[id]
	if !ok {
		return core.Record{}, &records.ServiceError{Op: "read", StatusCode: 404}
	}
	return r, nil
}

func TestSyncWorker_UpsertReadsBackRecord(t *testing.T) {
	mirror := memory.New()
	source := &fakeSource{byID: map[string]core.Record{
		"a": {ID: "a", Fields: core.Fields{InvoiceNumber: core.Ptr("RE-1")}},
	}}
	w := NewSyncWorker(source, mirror, nil)

	require.NoError(t, w.HandleRecordChange(context.Background(), amqp.NewRecordChangeMessage("a", amqp.OpUpsert)))
	row, ok := mirror.Row("a")
	require.True(t, ok)
	assert.Equal(t, "RE-1", row[1])
}

func TestSyncWorker_VanishedRecordIsRemoved(t *testing.T) {
	mirror := memory.New()
	ctx := context.Background()
	_, err := mirror.Upsert(ctx, core.Record{ID: "a"})
	require.NoError(t, err)

	w := NewSyncWorker(&fakeSource{byID: map[string]core.Record{}}, mirror, nil)
	require.NoError(t, w.HandleRecordChange(ctx, amqp.NewRecordChangeMessage("a", amqp.OpUpsert)))
	assert.Empty(t, mirror.IDs())
}

func TestSyncWorker_DeleteMessage(t *testing.T) {
	mirror := memory.New()
	ctx := context.Background()
	_, err := mirror.Upsert(ctx, core.Record{ID: "a"})
	require.NoError(t, err)
	_, err = mirror.Upsert(ctx, core.Record{ID: "b"})
	require.NoError(t, err)

	w := NewSyncWorker(&fakeSource{}, mirror, nil)
	require.NoError(t, w.HandleRecordChange(ctx, amqp.NewRecordChangeMessage("a", amqp.OpDelete)))
	assert.Equal(t, []string{"b"}, mirror.IDs())
}

func TestSyncWorker_GetFailurePropagates(t *testing.T) {
	w := NewSyncWorker(&fakeSource{getErr: errors.New("timeout")}, memory.New(), nil)
	err := w.HandleRecordChange(context.Background(), amqp.NewRecordChangeMessage("a", amqp.OpUpsert))
	assert.ErrorContains(t, err, "timeout")
}

func TestSyncWorker_Resync(t *testing.T) {
	mirror := memory.New()
	source := &fakeSource{list: []core.Record{{ID: "x"}, {ID: "y"}}}
	w := NewSyncWorker(source, mirror, nil)

	require.NoError(t, w.Resync(context.Background()))
	assert.Equal(t, []string{"x", "y"}, mirror.IDs())

	source.listErr = errors.New("down")
	assert.Error(t, w.Resync(context.Background()))
	assert.Equal(t, []string{"x", "y"}, mirror.IDs(), "failed list leaves the sheet alone")

	w.StartupSync(context.Background())
}

type countingResyncer struct{ n atomic.Int32 }

func (c *countingResyncer) Resync(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestResyncProcessor_Lifecycle(t *testing.T) {
	target := &countingResyncer{}
	p := NewResyncProcessor(target, 5*time.Millisecond, nil)
	ctx := context.Background()

	assert.False(t, p.IsRunning())
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.ErrorIs(t, p.Start(ctx), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return target.n.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(ctx))
}
