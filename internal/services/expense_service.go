package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"teamapp/internal/amqp"
	"teamapp/internal/core"
	"teamapp/internal/recurrence"
	"teamapp/internal/storage"
)

// ExpenseInput is the editable part of an expense. Recurring nil keeps the
// current recurrence settings on update; false clears them.
type ExpenseInput struct {
	Label           string     `json:"label"`
	Description     string     `json:"description"`
	Amount          core.Money `json:"amount"`
	Currency        string     `json:"currency"`
	Category        string     `json:"category"`
	Status          string     `json:"status"`
	OccursAt        string     `json:"occursAt"`
	Comment         string     `json:"comment"`
	Recurring       *bool      `json:"recurring"`
	Frequency       string     `json:"frequency"`
	NextDueAt       string     `json:"nextDueAt"`
	ParentExpenseID *int       `json:"parentExpenseId"`
}

// TemplateInput is the editable part of a template. ExpiresAt nil keeps the
// current expiry on update and an empty string clears it.
type TemplateInput struct {
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Currency    string     `json:"currency"`
	Category    string     `json:"category"`
	Frequency   string     `json:"frequency"`
	NextDueAt   string     `json:"nextDueAt"`
	ExpiresAt   *string    `json:"expiresAt"`
	Active      *bool      `json:"active"`
}

// ExpenseFilter narrows List. Zero fields match everything.
type ExpenseFilter struct {
	Status   core.ExpenseStatus
	Category string
}

func (f ExpenseFilter) match(e core.Expense) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
		return false
	}
	return true
}

// GenerateResult summarizes an explicit materialization run.
type GenerateResult struct {
	Created       int `json:"created"`
	Deactivated   int `json:"deactivated"`
	Skipped       int `json:"skipped"`
	TotalExpenses int `json:"totalExpenses"`
}

// ExpenseService manages expenses and templates and drives the recurrence
// engine over the expenses document.
type ExpenseService struct {
	expenses  *ExpensesCollection
	engine    *recurrence.Engine
	publisher EventPublisher
	group     singleflight.Group
}

// NewExpenseService wires the service. publisher may be nil when no broker
// is configured.
func NewExpenseService(expenses *ExpensesCollection, engine *recurrence.Engine, publisher EventPublisher) *ExpenseService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &ExpenseService{
		expenses:  expenses,
		engine:    engine,
		publisher: publisher,
	}
}

type materialized struct {
	doc core.ExpensesDoc
	res recurrence.Result
}

// Materialize runs the recurrence engine and saves the document when it
// changed. Concurrent callers share a single run.
func (s *ExpenseService) Materialize(ctx context.Context) (core.ExpensesDoc, recurrence.Result, error) {
	v, err, shared := s.group.Do("materialize", func() (any, error) {
		// Joined callers share this run, so one caller going away must not
		// abort it for the others.
		ctx := context.WithoutCancel(ctx)
		var res recurrence.Result
		doc, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
			res = s.engine.Run(ctx, doc)
			if !res.Changed() {
				return storage.ErrSkipSave
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("materialize recurring expenses: %w", err)
		}
		for _, e := range res.Created {
			s.publish(ctx, amqp.EventExpenseMaterialized, e)
		}
		return materialized{doc: doc, res: res}, nil
	})
	if err != nil {
		return core.ExpensesDoc{}, recurrence.Result{}, err
	}
	m := v.(materialized)
	if shared {
		slog.DebugContext(ctx, "Joined in-flight materialization")
	}
	return m.doc, m.res, nil
}

// List materializes due recurring expenses, then returns the document with
// its expenses narrowed by f.
func (s *ExpenseService) List(ctx context.Context, f ExpenseFilter) (core.ExpensesDoc, error) {
	doc, _, err := s.Materialize(ctx)
	if err != nil {
		return core.ExpensesDoc{}, err
	}
	filtered := make([]core.Expense, 0, len(doc.Expenses))
	for _, e := range doc.Expenses {
		if f.match(e) {
			filtered = append(filtered, e)
		}
	}
	doc.Expenses = filtered
	return doc, nil
}

// Generate is the explicit form of the materialization List performs.
func (s *ExpenseService) Generate(ctx context.Context) (GenerateResult, error) {
	doc, res, err := s.Materialize(ctx)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{
		Created:       len(res.Created),
		Deactivated:   len(res.Deactivated),
		Skipped:       len(res.Skipped),
		TotalExpenses: len(doc.Expenses),
	}, nil
}

func (s *ExpenseService) Get(ctx context.Context, id int) (core.Expense, error) {
	doc, _, err := s.Materialize(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	e, err := doc.Expense(id)
	if err != nil {
		return core.Expense{}, err
	}
	return *e, nil
}

func (in ExpenseInput) apply(e *core.Expense) error {
	e.Label = strings.TrimSpace(in.Label)
	e.Description = strings.TrimSpace(in.Description)
	e.Amount = in.Amount
	e.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if e.Currency == "" {
		e.Currency = core.DefaultCurrency
	}
	e.Category = strings.TrimSpace(in.Category)

	if in.Status == "" {
		return core.NewValidationError("status", core.ErrInvalidStatus)
	}
	st, err := core.ParseExpenseStatus(in.Status)
	if err != nil {
		return core.NewValidationError("status", err)
	}
	e.Status = st

	occurs, err := core.ParseDate(in.OccursAt)
	if err != nil {
		return core.NewValidationError("occursAt", err)
	}
	e.OccursAt = occurs

	if in.Recurring != nil {
		e.Recurring = *in.Recurring
		e.Frequency = ""
		e.NextDueAt = nil
		if e.Recurring {
			if in.Frequency == "" {
				return core.NewValidationError("frequency", core.ErrInvalidFrequency)
			}
			freq, err := core.ParseFrequency(in.Frequency)
			if err != nil {
				return core.NewValidationError("frequency", err)
			}
			next, err := core.ParseDate(in.NextDueAt)
			if err != nil {
				return core.NewValidationError("nextDueAt", err)
			}
			e.Frequency = freq
			e.NextDueAt = &next
		}
	}
	return e.Validate()
}

func (s *ExpenseService) Create(ctx context.Context, author string, in ExpenseInput) (core.Expense, error) {
	var created core.Expense
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		now := s.engine.Now()
		e := core.Expense{ID: doc.NextExpenseID(), CreatedAt: now, ParentExpenseID: in.ParentExpenseID}
		if err := in.apply(&e); err != nil {
			return err
		}
		if c := strings.TrimSpace(in.Comment); c != "" {
			e.Comments = []core.Comment{{Author: author, Text: c, CreatedAt: now}}
		}
		doc.Expenses = append(doc.Expenses, e)
		created = e
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", created.ID,
		"label", created.Label,
		"recurring", created.Recurring)
	s.publish(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

// Update replaces the editable fields. Existing comments are kept and a new
// comment, if any, is appended.
func (s *ExpenseService) Update(ctx context.Context, id int, author string, in ExpenseInput) (core.Expense, error) {
	var updated core.Expense
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		e, err := doc.Expense(id)
		if err != nil {
			return err
		}
		next := *e
		if err := in.apply(&next); err != nil {
			return err
		}
		now := s.engine.Now()
		if c := strings.TrimSpace(in.Comment); c != "" {
			next.Comments = append(next.Comments, core.Comment{Author: author, Text: c, CreatedAt: now})
		}
		next.UpdatedAt = &now
		*e = next
		updated = next
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int) error {
	var deleted core.Expense
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		e, err := doc.Expense(id)
		if err != nil {
			return err
		}
		deleted = *e
		return doc.DeleteExpense(id)
	})
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.publish(ctx, amqp.EventExpenseDeleted, deleted)
	return nil
}

func (s *ExpenseService) AddComment(ctx context.Context, id int, author, text string) (core.Expense, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Expense{}, core.NewValidationError("text", ErrEmptyComment)
	}
	var updated core.Expense
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		e, err := doc.Expense(id)
		if err != nil {
			return err
		}
		e.Comments = append(e.Comments, core.Comment{Author: author, Text: text, CreatedAt: s.engine.Now()})
		updated = *e
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("comment on expense %d: %w", id, err)
	}
	return updated, nil
}

func (s *ExpenseService) ListTemplates(ctx context.Context) ([]core.Template, error) {
	doc, _, err := s.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Templates, nil
}

func (s *ExpenseService) GetTemplate(ctx context.Context, id int) (core.Template, error) {
	doc, _, err := s.Materialize(ctx)
	if err != nil {
		return core.Template{}, err
	}
	t, err := doc.Template(id)
	if err != nil {
		return core.Template{}, err
	}
	return *t, nil
}

func (in TemplateInput) apply(t *core.Template) error {
	t.Label = strings.TrimSpace(in.Label)
	t.Description = strings.TrimSpace(in.Description)
	t.Amount = in.Amount
	t.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency
	}
	t.Category = strings.TrimSpace(in.Category)

	freq, err := core.ParseFrequency(in.Frequency)
	if err != nil {
		return core.NewValidationError("frequency", err)
	}
	t.Frequency = freq

	if in.NextDueAt != "" {
		next, err := core.ParseDate(in.NextDueAt)
		if err != nil {
			return core.NewValidationError("nextDueAt", err)
		}
		t.NextDueAt = &next
	}
	if in.ExpiresAt != nil {
		exp, err := core.ParseOptionalDate(*in.ExpiresAt)
		if err != nil {
			return core.NewValidationError("expiresAt", err)
		}
		t.ExpiresAt = exp
	}
	if in.Active != nil {
		t.Active = *in.Active
	}
	return t.Validate()
}

// CreateTemplate rejects unknown frequencies before they reach the engine.
func (s *ExpenseService) CreateTemplate(ctx context.Context, in TemplateInput) (core.Template, error) {
	var created core.Template
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		t := core.Template{ID: doc.NextTemplateID(), Active: true, CreatedAt: s.engine.Now()}
		if err := in.apply(&t); err != nil {
			return err
		}
		doc.Templates = append(doc.Templates, t)
		created = t
		return nil
	})
	if err != nil {
		return core.Template{}, fmt.Errorf("create template: %w", err)
	}
	slog.InfoContext(ctx, "Template created",
		"template_id", created.ID,
		"frequency", created.Frequency,
		"next_due_at", created.NextDueAt.Format(core.DateLayout))
	return created, nil
}

// UpdateTemplate edits a template. An empty nextDueAt keeps the current one.
func (s *ExpenseService) UpdateTemplate(ctx context.Context, id int, in TemplateInput) (core.Template, error) {
	var updated core.Template
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		t, err := doc.Template(id)
		if err != nil {
			return err
		}
		next := *t
		if err := in.apply(&next); err != nil {
			return err
		}
		now := s.engine.Now()
		next.UpdatedAt = &now
		*t = next
		updated = next
		return nil
	})
	if err != nil {
		return core.Template{}, fmt.Errorf("update template %d: %w", id, err)
	}
	return updated, nil
}

// DeleteTemplate removes the template. Expenses it produced keep their
// sourceTemplateId.
func (s *ExpenseService) DeleteTemplate(ctx context.Context, id int) error {
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		return doc.DeleteTemplate(id)
	})
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	return nil
}

// Instantiate creates an upcoming expense from a template for its current
// due date. The template is not advanced.
func (s *ExpenseService) Instantiate(ctx context.Context, templateID int) (core.Expense, error) {
	var created core.Expense
	_, err := s.expenses.Update(ctx, func(doc *core.ExpensesDoc) error {
		t, err := doc.Template(templateID)
		if err != nil {
			return err
		}
		if t.NextDueAt == nil {
			return core.NewValidationError("nextDueAt", core.ErrMissingNextDue)
		}
		id := t.ID
		e := core.Expense{
			ID:               doc.NextExpenseID(),
			Label:            t.Label,
			Description:      t.Description,
			Amount:           t.Amount,
			Currency:         t.Currency,
			Category:         t.Category,
			Status:           core.StatusUpcoming,
			OccursAt:         *t.NextDueAt,
			CreatedAt:        s.engine.Now(),
			SourceTemplateID: &id,
		}
		doc.Expenses = append(doc.Expenses, e)
		created = e
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("instantiate template %d: %w", templateID, err)
	}
	s.publish(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

// publish is best effort: failures are logged and never returned.
func (s *ExpenseService) publish(ctx context.Context, typ amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", typ, "expense_id", e.ID)
		return
	}
	event := amqp.NewExpenseEvent(typ, e.ID, e.SourceTemplateID, e.OccursAt)
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", typ,
			"expense_id", e.ID,
			"message_id", event.MessageID,
			"error", err)
	}
}

// Now exposes the engine clock to callers that report alongside the data.
func (s *ExpenseService) Now() time.Time { return s.engine.Now() }
