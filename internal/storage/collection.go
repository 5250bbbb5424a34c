package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSkipSave may be returned by an Update function that made no change; the
// document is returned as loaded and nothing is written.
var ErrSkipSave = errors.New("skip save")

// Document is a persisted aggregate that recomputes its metadata block.
type Document interface {
	Touch(now time.Time)
}

// Collection is a typed view over one named document. Updates run the
// load-mutate-save cycle under a mutex so concurrent writers in the same
// process cannot lose each other's changes.
type Collection[D any, P interface {
	*D
	Document
}] struct {
	store DocumentStore
	name  string
	now   func() time.Time
	mu    sync.RWMutex
}

func NewCollection[D any, P interface {
	*D
	Document
}](store DocumentStore, name string) *Collection[D, P] {
	return &Collection[D, P]{
		store: store,
		name:  name,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for metadata timestamps.
func (c *Collection[D, P]) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Collection[D, P]) Name() string { return c.name }

// Read returns the current document. A document that was never saved is
// returned empty.
func (c *Collection[D, P]) Read(ctx context.Context) (D, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.load(ctx)
}

func (c *Collection[D, P]) load(ctx context.Context) (D, error) {
	var doc D
	data, err := c.store.Load(ctx, c.name)
	if errors.Is(err, ErrDocumentNotFound) {
		P(&doc).Touch(c.now())
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("load %s: %w", c.name, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return doc, nil
}

// Update loads the document, applies fn and saves the result with refreshed
// metadata. If fn or the save fails, nothing is written and the error is
// returned; the in-memory copy is discarded.
func (c *Collection[D, P]) Update(ctx context.Context, fn func(P) error) (D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load(ctx)
	if err != nil {
		var zero D
		return zero, err
	}
	if err := fn(P(&doc)); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return doc, nil
		}
		var zero D
		return zero, err
	}
	P(&doc).Touch(c.now())

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		var zero D
		return zero, fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.store.Save(ctx, c.name, data); err != nil {
		var zero D
		return zero, fmt.Errorf("save %s: %w", c.name, err)
	}
	return doc, nil
}
