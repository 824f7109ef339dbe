package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryCollection keeps JSON snapshots so callers never share slices with the
// stored copy.
type memoryCollection[T any, P Entity[T]] struct {
	mu    sync.RWMutex
	kind  string
	opts  options
	now   func() time.Time
	order []string
	docs  map[string][]byte
}

func newMemoryCollection[T any, P Entity[T]](kind string, opts options, now func() time.Time) *memoryCollection[T, P] {
	return &memoryCollection[T, P]{kind: kind, opts: opts, now: now, docs: make(map[string][]byte)}
}

func (c *memoryCollection[T, P]) List(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for i := range c.order {
		id := c.order[i]
		if c.opts.newestFirst {
			id = c.order[len(c.order)-1-i]
		}
		doc, err := decode[T](c.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *memoryCollection[T, P]) Get(ctx context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.docs[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return decode[T](data)
}

func (c *memoryCollection[T, P]) Create(ctx context.Context, doc T) (T, error) {
	now := c.now().UTC()
	meta := P(&doc).Document()
	meta.ID = uuid.NewString()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	data, err := encode(&doc)
	if err != nil {
		var zero T
		return zero, err
	}
	c.mu.Lock()
	c.docs[meta.ID] = data
	c.order = append(c.order, meta.ID)
	c.mu.Unlock()
	return decode[T](data)
}

func (c *memoryCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.docs[id]
	if !ok {
		return zero, ErrNotFound
	}
	doc, err := decode[T](data)
	if err != nil {
		return zero, err
	}
	meta := *P(&doc).Document()
	if mutate != nil {
		if err := mutate(&doc); err != nil {
			return zero, err
		}
	}
	meta.UpdatedAt = c.now().UTC()
	*P(&doc).Document() = meta
	updated, err := encode(&doc)
	if err != nil {
		return zero, err
	}
	c.docs[id] = updated
	return decode[T](updated)
}

func (c *memoryCollection[T, P]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}
