package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Hosted-records service
	RecordsBaseURL           string
	RecordsAppID             string
	RecordsSessionCookie     string
	RecordsSessionCookieName string

	// AI extraction
	ExtractBackend  string
	ExtractModel    string
	ExtractEndpoint string
	GeminiAPIKey    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string
	SyncInterval        time.Duration

	// Dev records service
	DevAddr      string
	DevStore     string
	SQLiteDBPath string
	DevBlobDir   string
	GCSBucket    string
	DevPublicURL string
}

var (
	validExtractBackends = []string{"gemini", "http", "none"}
	validDevStores       = []string{"memory", "sqlite"}
)

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RecordsBaseURL:           getEnv("RECORDS_BASE_URL", "http://localhost:8090"),
		RecordsAppID:             getEnv("RECORDS_APP_ID", "rechnungen"),
		RecordsSessionCookie:     getEnv("RECORDS_SESSION_COOKIE", ""),
		RecordsSessionCookieName: getEnv("RECORDS_SESSION_COOKIE_NAME", "session"),

		ExtractBackend:  getEnv("EXTRACT_BACKEND", "none"),
		ExtractModel:    getEnv("EXTRACT_MODEL", "gemini-2.5-flash"),
		ExtractEndpoint: getEnv("EXTRACT_ENDPOINT", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "rechnungen"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_invoices"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Rechnungen"),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 15*time.Minute),

		DevAddr:      getEnv("DEV_ADDR", ":8090"),
		DevStore:     getEnv("DEV_STORE", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/records.db"),
		DevBlobDir:   getEnv("DEV_BLOB_DIR", "./data/files"),
		GCSBucket:    getEnv("GCS_BUCKET", ""),
		DevPublicURL: getEnv("DEV_PUBLIC_URL", ""),
	}
}

// Validate checks the configuration and returns all problems in a single error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RecordsBaseURL == "" {
		errors = append(errors, "records base URL cannot be empty")
	} else if u, err := url.Parse(c.RecordsBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid records base URL '%s': must be an absolute http(s) URL", c.RecordsBaseURL))
	}
	if strings.TrimSpace(c.RecordsAppID) == "" {
		errors = append(errors, "records app id cannot be empty")
	}
	if c.RecordsSessionCookie != "" && c.RecordsSessionCookieName == "" {
		errors = append(errors, "session cookie name cannot be empty when a session cookie is set")
	}

	if !slices.Contains(validExtractBackends, c.ExtractBackend) {
		errors = append(errors, fmt.Sprintf("invalid extract backend '%s': must be one of %v", c.ExtractBackend, validExtractBackends))
	}
	if c.ExtractBackend == "http" && c.ExtractEndpoint == "" {
		errors = append(errors, "EXTRACT_ENDPOINT is required when using the http extract backend")
	}
	if c.ExtractBackend == "gemini" && c.ExtractModel == "" {
		errors = append(errors, "EXTRACT_MODEL is required when using the gemini extract backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet id is set")
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateDev checks the settings only the dev records service needs.
func (c *Config) ValidateDev() error {
	var errors []string

	if c.DevAddr == "" {
		errors = append(errors, "dev records address cannot be empty")
	}
	if !slices.Contains(validDevStores, c.DevStore) {
		errors = append(errors, fmt.Sprintf("invalid dev store '%s': must be one of %v", c.DevStore, validDevStores))
	}
	if c.DevStore == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite store")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.GCSBucket == "" && c.DevBlobDir == "" {
		errors = append(errors, "either GCS_BUCKET or DEV_BLOB_DIR must be set for file uploads")
	}
	if c.DevPublicURL != "" {
		if u, err := url.Parse(c.DevPublicURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid dev public URL '%s'", c.DevPublicURL))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether the sheets mirror has what it needs to run.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
