package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-widgets/internal/widget"
)

//go:embed sql/sqlite-schema.sql
var sqliteSchemaSQL string

// sqliteTimeLayout has a fixed width so created_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is a widget repository backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database file at path.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn, err := buildSQLiteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func buildSQLiteDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// NewSQLiteStore applies the schema and returns the store.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]widget.Widget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, location_norm, created_at
		FROM widgets
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close widget rows", "error", err)
		}
	}()

	out := []widget.Widget{}
	for rows.Next() {
		var (
			w  widget.Widget
			ts string
		)
		if err := rows.Scan(&w.ID, &w.Location, &w.LocationNorm, &ts); err != nil {
			return nil, err
		}
		created, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", ts, err)
		}
		w.CreatedAt = created
		out = append(out, w)
	}
	return out, rows.Err()
}

// Create relies on the unique index over location_norm.
func (s *SQLiteStore) Create(ctx context.Context, w widget.Widget) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO widgets (id, location, location_norm, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.Location, w.LocationNorm, w.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return widget.ErrDuplicate
		}
		return fmt.Errorf("insert widget: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM widgets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete widget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ widget.Repository = (*SQLiteStore)(nil)
