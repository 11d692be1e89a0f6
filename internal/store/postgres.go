package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fairyhunter13/inventory-manager/internal/model"

	_ "github.com/lib/pq"
)

// Postgres stores documents in a JSONB column. Updates merge server side
// with the jsonb concatenation operator, so stored key order follows JSONB
// normalization rather than arrival order.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database. Call Migrate to create the table.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects with lib/pq and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	s := NewPostgres(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the documents table.
func (s *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			seq BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			body JSONB NOT NULL,
			UNIQUE (collection, id)
		)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: migrate postgres: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, collection string) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT body FROM documents WHERE collection = $1 ORDER BY seq", collection)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()
	return scanBodies(rows)
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE collection = $1 AND id = $2", collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return decodeBody(body)
}

func (s *Postgres) Insert(ctx context.Context, collection, id string, doc *model.Document) error {
	body, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3) ON CONFLICT (collection, id) DO NOTHING",
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, collection, id string, changes *model.Document) (*model.Document, error) {
	patch, err := changes.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var body []byte
	err = s.db.QueryRowContext(ctx,
		"UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2 RETURNING body",
		collection, id, string(patch)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	return decodeBody(body)
}

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return requireAffected(res)
}

func (s *Postgres) Close() error { return s.db.Close() }
