package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// Backend persists the embedding store in the enrolled_embeddings table, one row
// per entry keyed by its position in store order.
type Backend struct {
	pool *Pool
}

// NewBackend creates a store backend on an already migrated pool.
func NewBackend(pool *Pool) *Backend {
	return &Backend{pool: pool}
}

// Location describes the backend for status output.
func (b *Backend) Location() string {
	return "postgres:enrolled_embeddings"
}

// Load reads all entries in position order. A database that was never saved to
// yields database.ErrStoreNotFound.
func (b *Backend) Load(ctx context.Context) ([]database.Entry, error) {
	var dim int
	err := b.pool.db.QueryRowContext(ctx, `SELECT dim FROM store_meta WHERE id = 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query store meta: %w", err)
	}

	rows, err := b.pool.db.QueryContext(ctx, `
		SELECT label, embedding
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
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb := vec.Slice()
		if len(emb) != dim {
			return nil, fmt.Errorf("row %d has length %d, store says %d", len(entries), len(emb), dim)
		}
		entries = append(entries, database.Entry{Embedding: emb, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
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

	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Embedding)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (id, dim, saved_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET dim = EXCLUDED.dim, saved_at = EXCLUDED.saved_at
	`, dim); err != nil {
		return fmt.Errorf("update store meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enrolled_embeddings (position, label, embedding)
		VALUES ($1, $2, $3::vector)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Label, pgvector.NewVector(e.Embedding)); err != nil {
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
