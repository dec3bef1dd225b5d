package backend

import (
	"fmt"
	"strings"

	"rechnungen/internal/config"
)

// FromAppConfig converts the application config to backend config.
// publicURL is the externally visible address of the dev records service.
func FromAppConfig(appConfig *config.Config, publicURL string) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storeType := StoreType(appConfig.DevStore)
	if !storeType.IsValid() {
		return Config{}, fmt.Errorf("invalid store type in config: %s (want one of %v)", appConfig.DevStore, GetStoreTypes())
	}

	return Config{
		Store:        storeType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		BlobDir:      appConfig.DevBlobDir,
		GCSBucket:    appConfig.GCSBucket,
		FilesURL:     strings.TrimRight(publicURL, "/") + "/files",
	}, nil
}

func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if c.Store == SQLiteStore && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite store")
	}
	if c.GCSBucket == "" && c.BlobDir == "" {
		return fmt.Errorf("either a GCS bucket or a blob directory is required")
	}
	return nil
}

// GetStoreTypes returns all valid store types.
func GetStoreTypes() []StoreType {
	return []StoreType{SQLiteStore, MemoryStore}
}
