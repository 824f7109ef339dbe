package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	seq        BIGSERIAL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS documents_kind_seq_idx ON documents (kind, seq);
`

// EnsureSchema creates the documents table when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

type pgCollection[T any, P Entity[T]] struct {
	pool *pgxpool.Pool
	kind string
	opts options
	now  func() time.Time
}

func (c *pgCollection[T, P]) List(ctx context.Context) ([]T, error) {
	query := `SELECT data FROM documents WHERE kind = $1 ORDER BY seq ASC`
	if c.opts.newestFirst {
		query = `SELECT data FROM documents WHERE kind = $1 ORDER BY seq DESC`
	}
	rows, err := c.pool.Query(ctx, query, c.kind)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c.kind, err)
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		doc, err := decode[T](data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *pgCollection[T, P]) Get(ctx context.Context, id string) (T, error) {
	var data []byte
	err := c.pool.QueryRow(ctx, `SELECT data FROM documents WHERE kind = $1 AND id = $2`, c.kind, id).Scan(&data)
	if err != nil {
		var zero T
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("store: get %s: %w", c.kind, err)
	}
	return decode[T](data)
}

func (c *pgCollection[T, P]) Create(ctx context.Context, doc T) (T, error) {
	var zero T
	now := c.now().UTC()
	meta := P(&doc).Document()
	meta.ID = uuid.NewString()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	data, err := encode(&doc)
	if err != nil {
		return zero, err
	}
	_, err = c.pool.Exec(ctx,
		`INSERT INTO documents (kind, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.kind, meta.ID, data, meta.CreatedAt, meta.UpdatedAt)
	if err != nil {
		return zero, fmt.Errorf("store: create %s: %w", c.kind, err)
	}
	return doc, nil
}

func (c *pgCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var result T
	err := db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT data FROM documents WHERE kind = $1 AND id = $2 FOR UPDATE`, c.kind, id).Scan(&data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("store: load %s: %w", c.kind, err)
		}
		doc, err := decode[T](data)
		if err != nil {
			return err
		}
		meta := *P(&doc).Document()
		if mutate != nil {
			if err := mutate(&doc); err != nil {
				return err
			}
		}
		meta.UpdatedAt = c.now().UTC()
		*P(&doc).Document() = meta
		updated, err := encode(&doc)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE documents SET data = $3, updated_at = $4 WHERE kind = $1 AND id = $2`,
			c.kind, id, updated, meta.UpdatedAt); err != nil {
			return fmt.Errorf("store: update %s: %w", c.kind, err)
		}
		result = doc
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (c *pgCollection[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, c.kind, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", c.kind, err)
	}
	return tag.RowsAffected() > 0, nil
}
