package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"workdiary/internal/core"
	"workdiary/internal/source"

	_ "modernc.org/sqlite"
)

var (
	_ source.EntryReader = (*SQLiteRepository)(nil)
	_ source.EntryWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

// ImportRecord describes one completed import run.
type ImportRecord struct {
	Source     string
	EntryCount int
	Changed    bool
	ImportedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion returns the migration version applied at open time.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListEntries implements source.EntryReader
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, content, entry_date FROM entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var title, content, date string
		if err := rows.Scan(&title, &content, &date); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseISODate(date)
		if err != nil {
			return nil, fmt.Errorf("parse entry date %q: %w", date, err)
		}
		entries = append(entries, core.Entry{Title: title, Content: content, Date: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReplaceEntries implements source.EntryWriter. The whole set is swapped in
// one transaction; list order is stored as position.
func (r *SQLiteRepository) ReplaceEntries(ctx context.Context, entries []core.Entry) (int, error) {
	if err := core.ValidateAll(entries); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (position, title, content, entry_date) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Title, e.Content, e.Date.ISO()); err != nil {
			return 0, fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit entries: %w", err)
	}

	slog.InfoContext(ctx, "Entries replaced in SQLite", "count", len(entries))
	return len(entries), nil
}

// CountEntries returns the number of stored entries.
func (r *SQLiteRepository) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// SeedIfEmpty writes entries only when the table has none. It reports whether it wrote.
func (r *SQLiteRepository) SeedIfEmpty(ctx context.Context, entries []core.Entry) (bool, error) {
	n, err := r.CountEntries(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := r.ReplaceEntries(ctx, entries); err != nil {
		return false, fmt.Errorf("seed entries: %w", err)
	}
	return true, nil
}

// RecordImport stores the outcome of an import run.
func (r *SQLiteRepository) RecordImport(ctx context.Context, rec ImportRecord) error {
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now()
	}
	changed := 0
	if rec.Changed {
		changed = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO imports (source, entry_count, changed, imported_at) VALUES (?, ?, ?, ?)`,
		rec.Source, rec.EntryCount, changed, rec.ImportedAt.Unix())
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// LastImport returns the most recent import run, if any.
func (r *SQLiteRepository) LastImport(ctx context.Context) (ImportRecord, bool, error) {
	var (
		rec     ImportRecord
		changed int
		at      int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT source, entry_count, changed, imported_at FROM imports ORDER BY id DESC LIMIT 1`).
		Scan(&rec.Source, &rec.EntryCount, &changed, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportRecord{}, false, nil
	}
	if err != nil {
		return ImportRecord{}, false, fmt.Errorf("read last import: %w", err)
	}
	rec.Changed = changed == 1
	rec.ImportedAt = time.Unix(at, 0)
	return rec, true, nil
}
