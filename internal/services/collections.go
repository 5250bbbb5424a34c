// Package services provides business logic and orchestration services.
//
// Each service owns one document collection and runs every mutation through
// Collection.Update, so the read-mutate-write cycle of a store is serialized
// within the process.
package services

import (
	"context"
	"time"

	"teamapp/internal/amqp"
	"teamapp/internal/core"
	"teamapp/internal/storage"
)

type (
	ExpensesCollection    = storage.Collection[core.ExpensesDoc, *core.ExpensesDoc]
	CommissionsCollection = storage.Collection[core.CommissionsDoc, *core.CommissionsDoc]
	AgentsCollection      = storage.Collection[core.AgentsDoc, *core.AgentsDoc]
)

// Collections groups the three documents kept in one store.
type Collections struct {
	Expenses    *ExpensesCollection
	Commissions *CommissionsCollection
	Agents      *AgentsCollection
}

func NewCollections(store storage.DocumentStore) Collections {
	return Collections{
		Expenses:    storage.NewCollection[core.ExpensesDoc](store, core.ExpensesDocument),
		Commissions: storage.NewCollection[core.CommissionsDoc](store, core.CommissionsDocument),
		Agents:      storage.NewCollection[core.AgentsDoc](store, core.AgentsDocument),
	}
}

// SetClock overrides the metadata timestamp source of every collection.
func (c Collections) SetClock(now func() time.Time) {
	c.Expenses.SetClock(now)
	c.Commissions.SetClock(now)
	c.Agents.SetClock(now)
}

// EventPublisher is implemented by amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}
