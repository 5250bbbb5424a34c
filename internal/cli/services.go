package cli

import (
	"teamapp/internal/amqp"
	"teamapp/internal/recurrence"
	"teamapp/internal/services"
	"teamapp/internal/storage"
)

// Services bundles the domain services built over one store.
type Services struct {
	Collections services.Collections
	Agents      *services.AgentService
	Commissions *services.CommissionService
	Expenses    *services.ExpenseService
	Summary     *services.SummaryService
}

// NewServices wires every domain service to store. client may be nil, in
// which case expense events are not published.
func NewServices(store storage.DocumentStore, client *amqp.Client) Services {
	var publisher services.EventPublisher
	if client != nil {
		publisher = client
	}
	c := services.NewCollections(store)
	expenses := services.NewExpenseService(c.Expenses, recurrence.NewEngine(recurrence.Real()), publisher)
	return Services{
		Collections: c,
		Agents:      services.NewAgentService(c.Agents),
		Commissions: services.NewCommissionService(c.Commissions),
		Expenses:    expenses,
		Summary:     services.NewSummaryService(c, expenses),
	}
}
