package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
)

type listFunc func(ctx context.Context) ([]core.Record, error)

func (f listFunc) List(ctx context.Context) ([]core.Record, error) { return f(ctx) }

func recs(ids ...string) []core.Record {
	out := make([]core.Record, len(ids))
	for i, id := range ids {
		out[i] = core.Record{ID: id}
	}
	return out
}

func ids(rs []core.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestLoader_StateTransitions(t *testing.T) {
	l := New(listFunc(func(context.Context) ([]core.Record, error) {
		return recs("a", "b"), nil
	}), nil)

	snap := l.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Records)

	got, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))

	snap = l.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestLoader_FailureKeepsLastGoodCollection(t *testing.T) {
	fail := false
	boom := errors.New("service unavailable")
	l := New(listFunc(func(context.Context) ([]core.Record, error) {
		if fail {
			return nil, boom
		}
		return recs("a"), nil
	}), nil)

	require.NoError(t, l.Refresh(context.Background()))
	fail = true
	assert.ErrorIs(t, l.Refresh(context.Background()), boom)

	snap := l.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, []string{"a"}, ids(snap.Records))

	// a new load clears the error again
	fail = false
	require.NoError(t, l.Refresh(context.Background()))
	assert.NoError(t, l.Snapshot().Err)
}

func TestLoader_StaleLoadIsSuperseded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	l := New(listFunc(func(ctx context.Context) ([]core.Record, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return recs("stale"), nil
		}
		return recs("fresh"), nil
	}), nil)

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background())
		done <- err
	}()
	<-started

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("stale load did not return")
	}
	assert.Equal(t, []string{"fresh"}, ids(l.Records()))
	assert.Equal(t, StateReady, l.Snapshot().State)
}

func TestLoader_NewLoadCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var first sync.Once
	l := New(listFunc(func(ctx context.Context) ([]core.Record, error) {
		isFirst := false
		first.Do(func() { isFirst = true })
		if isFirst {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return recs("x"), nil
	}), nil)

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background())
		done <- err
	}()
	<-started

	require.NoError(t, l.Refresh(context.Background()))
	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.NoError(t, l.Snapshot().Err)
}

func TestLoader_RemoveFiltersLocally(t *testing.T) {
	var calls int
	l := New(listFunc(func(context.Context) ([]core.Record, error) {
		calls++
		return recs("a", "b", "c"), nil
	}), nil)
	require.NoError(t, l.Refresh(context.Background()))

	assert.True(t, l.Remove("b"))
	assert.False(t, l.Remove("zzz"))
	assert.Equal(t, []string{"a", "c"}, ids(l.Records()))
	assert.Equal(t, 1, calls, "remove must not refetch")
}

func TestLoader_RemoveDuringLoadIsNotUndone(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	l := New(listFunc(func(context.Context) ([]core.Record, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			close(started)
			<-release
		}
		return recs("a", "b"), nil
	}), nil)
	require.NoError(t, l.Refresh(context.Background()))

	done := make(chan error, 1)
	go func() { done <- l.Refresh(context.Background()) }()
	<-started

	// the list answer was produced before the deletion reached the service
	assert.True(t, l.Remove("b"))
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("load did not return")
	}
	assert.Equal(t, []string{"a"}, ids(l.Records()))
	assert.Equal(t, StateReady, l.Snapshot().State)

	// a load that starts after the removal is trusted as is
	got, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestLoader_SnapshotIsACopy(t *testing.T) {
	l := New(listFunc(func(context.Context) ([]core.Record, error) {
		return recs("a"), nil
	}), nil)
	require.NoError(t, l.Refresh(context.Background()))

	snap := l.Snapshot()
	snap.Records[0].ID = "mutated"
	assert.Equal(t, "a", l.Records()[0].ID)
}
