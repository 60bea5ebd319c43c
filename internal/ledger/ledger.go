// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package ledger is the sqlite record of installed applications and the
// paths each installation created.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/ledger/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	appsTable  = "installed_apps"
	filesTable = "install_files"
)

var (
	// ErrInvalidAppID is returned for ids unsafe to store.
	ErrInvalidAppID = errors.New("invalid application id")
	// ErrNotRecorded is returned when updating an application with no ledger row.
	ErrNotRecorded = errors.New("application not recorded in ledger")
)

// Store implements domain.Ledger on sqlite.
type Store struct {
	db *sql.DB

	apps  string
	files string
}

var _ domain.Ledger = (*Store)(nil)

// Open opens or creates the ledger at path and applies migrations.
// The path ":memory:" gives a private in-memory ledger.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:    db,
		apps:  quoteIdentifier(appsTable),
		files: quoteIdentifier(filesTable),
	}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}

	return nil
}

// quoteIdentifier quotes a sqlite identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkID(appID string) error {
	if !domain.ValidAppID(appID) {
		return fmt.Errorf("%w: %q", ErrInvalidAppID, appID)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Upsert inserts rec or replaces the existing row for its app id.
func (s *Store) Upsert(ctx context.Context, rec *domain.Record) error {
	return s.upsert(ctx, s.db, rec)
}

func (s *Store) upsert(ctx context.Context, ex execer, rec *domain.Record) error {
	if err := checkID(rec.AppID); err != nil {
		return err
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	installDate := rec.InstallDate
	if installDate.IsZero() {
		installDate = time.Now()
	}

	// #nosec G201 - table names are constants passed through quoteIdentifier
	query := fmt.Sprintf(`INSERT INTO %s (app_id, app_name, install_method, version, install_date, install_location, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(app_id) DO UPDATE SET
    app_name = excluded.app_name,
    install_method = excluded.install_method,
    version = excluded.version,
    install_date = excluded.install_date,
    install_location = excluded.install_location,
    metadata = excluded.metadata`, s.apps)

	_, err = ex.ExecContext(ctx, query,
		rec.AppID, rec.AppName, string(rec.Method), rec.Version,
		installDate.UTC().Format(time.RFC3339Nano), rec.InstallLocation, string(metaJSON))
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", rec.AppID, err)
	}

	return nil
}

// Remove deletes the row for appID; its files go with it.
func (s *Store) Remove(ctx context.Context, appID string) error {
	if err := checkID(appID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// explicit child delete keeps the cascade intact on databases opened
	// without foreign key enforcement
	// #nosec G201
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE app_id = ?", s.files), appID); err != nil {
		return fmt.Errorf("failed to forget files of %s: %w", appID, err)
	}

	// #nosec G201
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE app_id = ?", s.apps), appID); err != nil {
		return fmt.Errorf("failed to forget %s: %w", appID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger removal: %w", err)
	}

	return nil
}

// Get returns the record for appID, or nil when there is none.
func (s *Store) Get(ctx context.Context, appID string) (*domain.Record, error) {
	if err := checkID(appID); err != nil {
		return nil, err
	}

	// #nosec G201
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT app_id, app_name, install_method, version, install_date, install_location, metadata
FROM %s WHERE app_id = ?`, s.apps), appID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.Record, error) {
	var (
		rec      domain.Record
		method   string
		date     string
		metaJSON string
	)

	if err := row.Scan(&rec.AppID, &rec.AppName, &method, &rec.Version, &date, &rec.InstallLocation, &metaJSON); err != nil {
		return nil, err
	}

	rec.Method = domain.InstallMethod(method)

	if t, err := time.Parse(time.RFC3339Nano, date); err == nil {
		rec.InstallDate = t
	}

	rec.Metadata = map[string]string{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", rec.AppID, err)
		}
	}

	return &rec, nil
}

// IsInstalled reports whether appID has a ledger row.
func (s *Store) IsInstalled(ctx context.Context, appID string) (bool, error) {
	rec, err := s.Get(ctx, appID)
	if err != nil {
		return false, err
	}

	return rec != nil, nil
}

// ListFiles returns the recorded paths of appID in the order they were added.
func (s *Store) ListFiles(ctx context.Context, appID string) ([]domain.InstalledFile, error) {
	if err := checkID(appID); err != nil {
		return nil, err
	}

	// #nosec G201
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT file_path, file_type FROM %s WHERE app_id = ? ORDER BY id", s.files), appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", appID, err)
	}
	defer func() { _ = rows.Close() }()

	var files []domain.InstalledFile

	for rows.Next() {
		f := domain.InstalledFile{AppID: appID}

		var fileType string
		if err := rows.Scan(&f.Path, &fileType); err != nil {
			return nil, fmt.Errorf("failed to read file row: %w", err)
		}

		f.Type = domain.FileType(fileType)
		files = append(files, f)
	}

	return files, rows.Err()
}

// AddFile records a path created for appID. Recording a path twice is a no-op.
func (s *Store) AddFile(ctx context.Context, appID, path string, fileType domain.FileType) error {
	return s.addFile(ctx, s.db, appID, path, fileType)
}

func (s *Store) addFile(ctx context.Context, ex execer, appID, path string, fileType domain.FileType) error {
	if err := checkID(appID); err != nil {
		return err
	}

	if fileType == "" {
		fileType = domain.FileUnspecified
	}

	// #nosec G201
	_, err := ex.ExecContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (app_id, file_path, file_type) VALUES (?, ?, ?)", s.files),
		appID, path, string(fileType))
	if err != nil {
		return fmt.Errorf("failed to record file %s for %s: %w", path, appID, err)
	}

	return nil
}

// UpdateVersion changes only the version of an existing row.
func (s *Store) UpdateVersion(ctx context.Context, appID, version string) error {
	if err := checkID(appID); err != nil {
		return err
	}

	// #nosec G201
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET version = ? WHERE app_id = ?", s.apps), version, appID)
	if err != nil {
		return fmt.Errorf("failed to update version of %s: %w", appID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotRecorded, appID)
	}

	return nil
}

// List returns every record ordered by app id.
func (s *Store) List(ctx context.Context) ([]*domain.Record, error) {
	// #nosec G201
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT app_id, app_name, install_method, version, install_date, install_location, metadata
FROM %s ORDER BY app_id`, s.apps))
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// Commit upserts rec and records files atomically. Nothing is written when
// any statement fails.
func (s *Store) Commit(ctx context.Context, rec *domain.Record, files []domain.InstalledFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsert(ctx, tx, rec); err != nil {
		return err
	}

	for _, f := range files {
		if err := s.addFile(ctx, tx, rec.AppID, f.Path, f.Type); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}

	return nil
}
