package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"teamapp/internal/amqp"
	"teamapp/internal/recurrence"
	"teamapp/internal/storage"
)

var epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, e *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []*amqp.ExpenseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ExpenseEvent(nil), p.events...)
}

func newCollections(t *testing.T) Collections {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	c := NewCollections(store)
	c.SetClock(func() time.Time { return epoch })
	return c
}

func newExpenseService(t *testing.T, now time.Time) (*ExpenseService, *recordingPublisher, Collections) {
	t.Helper()
	c := newCollections(t)
	pub := &recordingPublisher{}
	svc := NewExpenseService(c.Expenses, recurrence.NewEngine(recurrence.Fixed(now)), pub)
	return svc, pub, c
}

var errBroker = errors.New("broker down")
