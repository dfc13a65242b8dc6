package mariadb

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// Backend persists the embedding store in the enrolled_embeddings table.
type Backend struct {
	pool *Pool
}

// NewBackend creates a store backend. The schema must exist, see Pool.EnsureSchema.
func NewBackend(pool *Pool) *Backend {
	return &Backend{pool: pool}
}

// Location describes the backend for status output.
func (b *Backend) Location() string {
	return "mariadb:enrolled_embeddings"
}

// Load reads all entries in position order. An empty table loads as an empty store.
func (b *Backend) Load(ctx context.Context) ([]database.Entry, error) {
	rows, err := b.pool.db.QueryContext(ctx, `
		SELECT label, dim, embedding
		FROM enrolled_embeddings
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var entries []database.Entry
	for rows.Next() {
		var label string
		var dim int
		var blob []byte
		if err := rows.Scan(&label, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(entries), err)
		}
		entries = append(entries, database.Entry{Embedding: emb, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	if len(entries) == 0 {
		return nil, database.ErrStoreNotFound
	}
	return entries, nil
}

// Save replaces the table content with entries in a single transaction.
func (b *Backend) Save(ctx context.Context, entries []database.Entry) error {
	tx, err := b.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrolled_embeddings`); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enrolled_embeddings (position, label, dim, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Label, len(e.Embedding), encodeVector(e.Embedding)); err != nil {
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
