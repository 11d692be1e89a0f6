package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fairyhunter13/inventory-manager/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite stores documents as JSON text in a single table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open database and creates the documents table.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens dsn with the modernc driver. A single connection is used
// so that in-memory databases are shared.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLite(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		UNIQUE (collection, id)
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()
	return scanBodies(rows)
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return decodeBody(body)
}

func (s *SQLite) Insert(ctx context.Context, collection, id string, doc *model.Document) error {
	body, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&one)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, collection, id, string(body)); err != nil {
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *SQLite) Update(ctx context.Context, collection, id string, changes *model.Document) (*model.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body []byte
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	prev, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	merged := prev.Merge(changes)
	out, err := merged.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, string(out), collection, id); err != nil {
		return nil, fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return merged, nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return requireAffected(res)
}

func (s *SQLite) Close() error { return s.db.Close() }

func scanBodies(rows *sql.Rows) ([]*model.Document, error) {
	out := []*model.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeBody(body []byte) (*model.Document, error) {
	v, err := model.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("store: decode body: %w", err)
	}
	doc, ok := v.(*model.Document)
	if !ok {
		return nil, fmt.Errorf("store: stored body is %T, not an object", v)
	}
	return doc, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
