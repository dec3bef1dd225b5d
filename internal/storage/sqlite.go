package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateRecordsSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.WithComponent(log.ComponentStorage).Info("SQLite repository ready",
		"db_path", dbPath,
		"schema_version", version)
	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, appID string) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, fields FROM records WHERE app_id = ? ORDER BY rowid`, appID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, appID, id string) (core.Record, error) {
	return r.get(ctx, r.db, appID, id)
}

func (r *SQLiteRepository) Insert(ctx context.Context, appID string, rec core.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (id, app_id, created_at, updated_at, fields) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, appID, rec.CreatedAt.UTC().Format(timeLayout), formatOptionalTime(rec.UpdatedAt), string(fields))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	r.logger.DebugContext(ctx, "Record inserted", log.FieldRecordID, rec.ID)
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, appID, id string, patch core.Patch, at time.Time) (core.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := r.get(ctx, tx, appID, id)
	if err != nil {
		return core.Record{}, err
	}
	rec.Fields = rec.Fields.Apply(patch)
	at = at.UTC()
	rec.UpdatedAt = &at

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return core.Record{}, fmt.Errorf("encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET fields = ?, updated_at = ? WHERE app_id = ? AND id = ?`,
		string(fields), at.Format(timeLayout), appID, id); err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Record{}, fmt.Errorf("commit update: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, appID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE app_id = ? AND id = ?`, appID, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SaveFile(ctx context.Context, f FileInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (object_name, filename, content_type, size_bytes, url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ObjectName, f.Filename, f.ContentType, f.Size, f.URL, f.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) get(ctx context.Context, q queryer, appID, id string) (core.Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, fields FROM records WHERE app_id = ? AND id = ?`, appID, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.Record, error) {
	var (
		rec       core.Record
		createdAt string
		updatedAt sql.NullString
		fields    string
	)
	if err := s.Scan(&rec.ID, &createdAt, &updatedAt, &fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, err
		}
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Record{}, fmt.Errorf("parse created_at of %s: %w", rec.ID, err)
	}
	if updatedAt.Valid {
		t, err := time.Parse(timeLayout, updatedAt.String)
		if err != nil {
			return core.Record{}, fmt.Errorf("parse updated_at of %s: %w", rec.ID, err)
		}
		rec.UpdatedAt = &t
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return core.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
