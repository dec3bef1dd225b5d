package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechnungen/internal/blob/local"
	"rechnungen/internal/config"
	"rechnungen/internal/storage"
	"rechnungen/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{DevStore: "sqlite", SQLiteDBPath: "x.db", DevBlobDir: "files"}
	cfg, err := FromAppConfig(app, "http://localhost:8090/")
	require.NoError(t, err)
	assert.Equal(t, SQLiteStore, cfg.Store)
	assert.Equal(t, "http://localhost:8090/files", cfg.FilesURL)

	_, err = FromAppConfig(&config.Config{DevStore: "postgres"}, "")
	assert.Error(t, err)
	_, err = FromAppConfig(nil, "")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Store: "nope", BlobDir: "x"}.Validate())
	assert.Error(t, Config{Store: SQLiteStore, BlobDir: "x"}.Validate())
	assert.Error(t, Config{Store: MemoryStore}.Validate())
	assert.NoError(t, Config{Store: MemoryStore, GCSBucket: "b"}.Validate())
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(context.Background(), Config{Store: MemoryStore, BlobDir: filepath.Join(dir, "files")})
		require.NoError(t, err)
		defer res.Cleanup()
		assert.IsType(t, &memory.Repository{}, res.Repository)
		assert.IsType(t, &local.Store{}, res.Blobs)
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(context.Background(), Config{
			Store:        SQLiteStore,
			SQLiteDBPath: filepath.Join(dir, "db", "records.db"),
			BlobDir:      filepath.Join(dir, "files"),
		})
		require.NoError(t, err)
		assert.IsType(t, &storage.SQLiteRepository{}, res.Repository)
		assert.NoError(t, res.Cleanup())
	})
}
