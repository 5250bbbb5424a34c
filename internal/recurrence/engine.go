package recurrence

import (
	"context"
	"log/slog"
	"time"

	"teamapp/internal/core"
)

// SourceKind tags the two recurrence schemes.
type SourceKind string

const (
	TemplateSource SourceKind = "template"
	LegacySource   SourceKind = "legacy_expense"
)

// Source is a view over a record that can materialize expenses: a Template
// or a self-recurring Expense. Fields point into the underlying document.
type Source struct {
	Kind      SourceKind
	ID        int
	Frequency core.Frequency
	NextDueAt **time.Time
	ExpiresAt *time.Time
	active    *bool
	proto     core.Expense
}

// Skipped records a source the engine could not process.
type Skipped struct {
	Kind SourceKind `json:"kind"`
	ID   int        `json:"id"`
	Err  string     `json:"error"`
}

// Advanced records a source whose due date moved forward.
type Advanced struct {
	Kind      SourceKind `json:"kind"`
	ID        int        `json:"id"`
	NextDueAt time.Time  `json:"nextDueAt"`
}

// Result reports what a MaterializeDue call changed.
type Result struct {
	Created     []core.Expense `json:"created"`
	Advanced    []Advanced     `json:"advanced"`
	Deactivated []int          `json:"deactivated"`
	Skipped     []Skipped      `json:"skipped,omitempty"`
}

// Changed reports whether the document was mutated and must be persisted.
func (r Result) Changed() bool {
	return len(r.Created) > 0 || len(r.Advanced) > 0 || len(r.Deactivated) > 0
}

// Sources lists every recurrence source in doc: active templates first, then
// legacy recurring expenses, in document order.
func Sources(doc *core.ExpensesDoc) []Source {
	var out []Source
	for i := range doc.Templates {
		t := &doc.Templates[i]
		if !t.Active || t.NextDueAt == nil {
			continue
		}
		out = append(out, Source{
			Kind:      TemplateSource,
			ID:        t.ID,
			Frequency: t.Frequency,
			NextDueAt: &t.NextDueAt,
			ExpiresAt: t.ExpiresAt,
			active:    &t.Active,
			proto: core.Expense{
				Label:       t.Label,
				Description: t.Description,
				Amount:      t.Amount,
				Currency:    t.Currency,
				Category:    t.Category,
			},
		})
	}
	for i := range doc.Expenses {
		e := &doc.Expenses[i]
		if !e.IsLegacyRecurring() {
			continue
		}
		out = append(out, Source{
			Kind:      LegacySource,
			ID:        e.ID,
			Frequency: e.Frequency,
			NextDueAt: &e.NextDueAt,
			proto: core.Expense{
				Label:       e.Label,
				Description: e.Description,
				Amount:      e.Amount,
				Currency:    e.Currency,
				Category:    e.Category,
			},
		})
	}
	return out
}

// MaterializeDue creates at most one expense per due source, advances each
// fired source by one period and retires expired templates. It performs no
// I/O; persisting doc is the caller's job when Result.Changed is true.
func MaterializeDue(ctx context.Context, now time.Time, doc *core.ExpensesDoc) Result {
	var res Result
	nextID := doc.NextExpenseID()

	for _, src := range Sources(doc) {
		if src.Kind == TemplateSource && src.ExpiresAt != nil && now.After(*src.ExpiresAt) {
			*src.active = false
			res.Deactivated = append(res.Deactivated, src.ID)
			slog.InfoContext(ctx, "Deactivated expired template",
				"template_id", src.ID,
				"expires_at", src.ExpiresAt.Format(time.RFC3339))
			continue
		}

		due := **src.NextDueAt
		if due.After(now) {
			continue
		}

		freq := src.Frequency
		if src.Kind == LegacySource && !freq.IsValid() {
			slog.WarnContext(ctx, "Unknown frequency on legacy recurring expense, using monthly",
				"expense_id", src.ID,
				"frequency", freq)
			freq = core.Monthly
		}
		next, err := Advance(due, freq)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping recurrence source",
				"kind", src.Kind,
				"id", src.ID,
				"error", err)
			res.Skipped = append(res.Skipped, Skipped{Kind: src.Kind, ID: src.ID, Err: err.Error()})
			continue
		}

		exp := src.proto
		exp.ID = nextID
		nextID++
		exp.Status = core.StatusUpcoming
		exp.OccursAt = due
		exp.CreatedAt = now
		if exp.Currency == "" {
			exp.Currency = core.DefaultCurrency
		}
		id := src.ID
		if src.Kind == TemplateSource {
			exp.SourceTemplateID = &id
		} else {
			exp.ParentExpenseID = &id
		}
		res.Created = append(res.Created, exp)

		*src.NextDueAt = &next
		res.Advanced = append(res.Advanced, Advanced{Kind: src.Kind, ID: src.ID, NextDueAt: next})

		slog.InfoContext(ctx, "Materialized recurring expense",
			"kind", src.Kind,
			"source_id", src.ID,
			"expense_id", exp.ID,
			"occurs_at", due.Format("2006-01-02"),
			"next_due_at", next.Format("2006-01-02"))
	}

	// Appended last: the sources hold pointers into doc.Expenses.
	doc.Expenses = append(doc.Expenses, res.Created...)
	return res
}

// Engine binds MaterializeDue to a clock.
type Engine struct {
	clock Clock
}

func NewEngine(clock Clock) *Engine {
	if clock == nil {
		clock = Real()
	}
	return &Engine{clock: clock}
}

func (e *Engine) Now() time.Time { return e.clock.Now() }

// Run materializes everything due at the clock's current time.
func (e *Engine) Run(ctx context.Context, doc *core.ExpensesDoc) Result {
	return MaterializeDue(ctx, e.clock.Now(), doc)
}
