// Package store holds the document collections shared by every workflow module.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no record carries the requested identifier.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidPatch indicates a partial update that cannot be merged.
	ErrInvalidPatch = errors.New("store: invalid patch")
)

// Meta is embedded by every stored document.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Document exposes the embedded metadata to the store.
func (m *Meta) Document() *Meta {
	return m
}

// Entity constrains pointer types whose value embeds Meta.
type Entity[T any] interface {
	*T
	Document() *Meta
}

// Collection is the uniform CRUD surface over one document type.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, doc T) (T, error)
	// Update applies mutate to a copy of the stored record and persists it with a
	// refreshed UpdatedAt. A nil mutate only touches the timestamp.
	Update(ctx context.Context, id string, mutate func(*T) error) (T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Option tunes a collection.
type Option func(*options)

type options struct {
	newestFirst bool
}

// NewestFirst lists records in reverse insertion order.
func NewestFirst() Option {
	return func(o *options) { o.newestFirst = true }
}

// Backend builds collections on the configured storage.
type Backend struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewMemoryBackend returns a process-local backend.
func NewMemoryBackend() *Backend {
	return &Backend{now: time.Now}
}

// NewPostgresBackend returns a backend persisting documents as JSONB rows.
func NewPostgresBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool, now: time.Now}
}

// WithClock overrides the timestamp source, mostly for tests.
func (b *Backend) WithClock(now func() time.Time) *Backend {
	if now != nil {
		b.now = now
	}
	return b
}

// Driver names the storage in use.
func (b *Backend) Driver() string {
	if b.pool != nil {
		return "postgres"
	}
	return "memory"
}

// Open returns the collection of kind on backend b.
func Open[T any, P Entity[T]](b *Backend, kind string, opts ...Option) Collection[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if b.pool != nil {
		return &pgCollection[T, P]{pool: b.pool, kind: kind, opts: o, now: b.now}
	}
	return newMemoryCollection[T, P](kind, o, b.now)
}

// Filter lists the records of c for which keep returns true.
func Filter[T any](ctx context.Context, c Collection[T], keep func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(all))
	for _, doc := range all {
		if keep(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// First returns the first record matching keep or ErrNotFound.
func First[T any](ctx context.Context, c Collection[T], keep func(T) bool) (T, error) {
	var zero T
	matches, err := Filter(ctx, c, keep)
	if err != nil {
		return zero, err
	}
	if len(matches) == 0 {
		return zero, ErrNotFound
	}
	return matches[0], nil
}

// MergeJSON builds a mutation merging the top-level fields of patch into the
// record. Identifier and creation time are preserved. When allowed is not empty
// only the listed fields may appear in patch.
func MergeJSON[T any, P Entity[T]](patch []byte, allowed ...string) func(*T) error {
	return func(doc *T) error {
		trimmed := bytes.TrimSpace(patch)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		if len(allowed) > 0 {
			permitted := make(map[string]struct{}, len(allowed))
			for _, name := range allowed {
				permitted[name] = struct{}{}
			}
			for name := range fields {
				if _, ok := permitted[name]; !ok {
					return fmt.Errorf("%w: field %q is not editable", ErrInvalidPatch, name)
				}
			}
		}
		meta := *P(doc).Document()
		if err := json.Unmarshal(trimmed, doc); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		*P(doc).Document() = meta
		return nil
	}
}

func encode[T any](doc *T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("store: decode: %w", err)
	}
	return doc, nil
}
