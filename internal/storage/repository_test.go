package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/core"
	"rechnungen/internal/storage"
	"rechnungen/internal/storage/memory"
)

func repositories(t *testing.T) map[string]storage.Repository {
	t.Helper()
	sqliteRepo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "records.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]storage.Repository{
		"sqlite": sqliteRepo,
		"memory": memory.New(),
	}
}

func TestRepository_Contract(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			invoiceDate := core.NewDate(2024, 2, 28)

			first := core.Record{
				ID:        "bbbb00000000000000000001",
				CreatedAt: created,
				Fields: core.Fields{
					InvoiceNumber: core.Ptr("RE-1"),
					InvoiceDate:   &invoiceDate,
					Amount:        &core.Money{Cents: 11990},
					Category:      core.Ptr(core.CategorySoftware),
					Paid:          core.Ptr(false),
				},
			}
			second := core.Record{ID: "aaaa00000000000000000002", CreatedAt: created.Add(time.Minute)}

			require.NoError(t, repo.Insert(ctx, "app", first))
			require.NoError(t, repo.Insert(ctx, "app", second))
			require.NoError(t, repo.Insert(ctx, "other", core.Record{ID: "cccc00000000000000000003", CreatedAt: created}))

			list, err := repo.List(ctx, "app")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID, "insertion order")
			assert.Equal(t, second.ID, list[1].ID)

			got, err := repo.Get(ctx, "app", first.ID)
			require.NoError(t, err)
			assert.Equal(t, first.Fields, got.Fields)
			assert.True(t, created.Equal(got.CreatedAt))
			assert.Nil(t, got.UpdatedAt)

			at := created.Add(time.Hour)
			updated, err := repo.Update(ctx, "app", first.ID, core.Patch{
				Set:   core.Fields{Paid: core.Ptr(true)},
				Clear: []core.Field{core.FieldCategory},
			}, at)
			require.NoError(t, err)
			assert.True(t, updated.IsPaid())
			assert.Nil(t, updated.Category)
			assert.Equal(t, "RE-1", *updated.InvoiceNumber)
			require.NotNil(t, updated.UpdatedAt)
			assert.True(t, at.Equal(*updated.UpdatedAt))

			got, err = repo.Get(ctx, "app", first.ID)
			require.NoError(t, err)
			assert.Equal(t, updated.Fields, got.Fields)

			require.NoError(t, repo.Delete(ctx, "app", first.ID))
			assert.ErrorIs(t, repo.Delete(ctx, "app", first.ID), storage.ErrNotFound)
			_, err = repo.Get(ctx, "app", first.ID)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = repo.Update(ctx, "app", first.ID, core.Patch{}, at)
			assert.ErrorIs(t, err, storage.ErrNotFound)

			require.NoError(t, repo.SaveFile(ctx, storage.FileInfo{
				ObjectName: "x.pdf", Filename: "beleg.pdf", ContentType: "application/pdf",
				Size: 4, URL: "http://localhost/files/x.pdf", CreatedAt: created,
			}))
		})
	}
}

func TestSQLiteRepository_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	repo, err := storage.NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), "app", core.Record{ID: "a", CreatedAt: time.Now()}))
	require.NoError(t, repo.Close())

	repo, err = storage.NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	list, err := repo.List(context.Background(), "app")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
