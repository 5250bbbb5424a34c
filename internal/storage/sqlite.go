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

	_ "modernc.org/sqlite"
)

// historyLimit bounds the previous versions kept per document.
const historyLimit = 20

// SQLiteStore keeps documents in a single table and retains the previous
// versions of each document in document_history.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := MigrateDocuments(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	return body, nil
}

// Save replaces the document and moves the previous body into the history
// table in the same transaction.
func (s *SQLiteStore) Save(ctx context.Context, name string, body []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_history (name, body, saved_at)
		 SELECT name, body, updated_at FROM documents WHERE name = ?`, name); err != nil {
		return fmt.Errorf("archive document %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, body, now); err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_history WHERE name = ? AND id NOT IN (
			SELECT id FROM document_history WHERE name = ? ORDER BY id DESC LIMIT ?)`,
		name, name, historyLimit); err != nil {
		return fmt.Errorf("prune history for %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %s: %w", name, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "document", name, "bytes", len(body))
	return nil
}

// Revision is a previous version of a document.
type Revision struct {
	ID      int64
	Body    []byte
	SavedAt time.Time
}

// History returns up to limit previous versions of a document, newest first.
func (s *SQLiteStore) History(ctx context.Context, name string, limit int) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, saved_at FROM document_history WHERE name = ? ORDER BY id DESC LIMIT ?`,
		name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", name, err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Body, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
