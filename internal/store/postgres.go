package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-widgets/internal/widget"
)

//go:embed sql/postgres-schema.sql
var postgresSchemaSQL string

const pgUniqueViolation = "23505"

// PostgresStore is a widget repository backed by PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool, applies the schema and returns the store.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]widget.Widget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, location, location_norm, created_at
		FROM widgets
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []widget.Widget{}
	for rows.Next() {
		var w widget.Widget
		if err := rows.Scan(&w.ID, &w.Location, &w.LocationNorm, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.CreatedAt = w.CreatedAt.UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

// Create relies on the unique index over location_norm.
func (s *PostgresStore) Create(ctx context.Context, w widget.Widget) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO widgets (id, location, location_norm, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.Location, w.LocationNorm, w.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return widget.ErrDuplicate
		}
		return fmt.Errorf("insert widget: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete widget: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ widget.Repository = (*PostgresStore)(nil)
