package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to an expense.
type EventType string

const (
	// EventExpenseCreated is emitted for expenses created through the API.
	EventExpenseCreated EventType = "expense.created"
	// EventExpenseMaterialized is emitted for expenses produced by the recurrence engine.
	EventExpenseMaterialized EventType = "expense.materialized"
	// EventExpenseDeleted is emitted when an expense is removed.
	EventExpenseDeleted EventType = "expense.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseMaterialized, EventExpenseDeleted:
		return true
	}
	return false
}

// ExpenseEvent is a lightweight notification. It carries only identifiers;
// consumers load the full expense from the store.
type ExpenseEvent struct {
	MessageID  string    `json:"messageId"`
	Type       EventType `json:"type"`
	ExpenseID  int       `json:"expenseId"`
	TemplateID *int      `json:"templateId,omitempty"`
	OccursAt   time.Time `json:"occursAt"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewExpenseEvent(typ EventType, expenseID int, templateID *int, occursAt time.Time) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID:  uuid.NewString(),
		Type:       typ,
		ExpenseID:  expenseID,
		TemplateID: templateID,
		OccursAt:   occursAt,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if _, err := uuid.Parse(msg.MessageID); err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", msg.MessageID, err)
	}
	return &msg, nil
}
