package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"teamapp/internal/amqp"
	"teamapp/internal/cache"
	"teamapp/internal/core"
	"teamapp/internal/sheets"
)

// ExpenseSource loads the current expenses document.
type ExpenseSource interface {
	Read(ctx context.Context) (core.ExpensesDoc, error)
}

// ExportWorker copies new expenses to the external ledger as their events
// arrive.
type ExportWorker struct {
	source   ExpenseSource
	exporter sheets.ExpenseExporter
	exported *cache.LRUCache[string]
}

// Config tunes the duplicate filter. A redelivered event for an expense
// exported within DedupeTTL is acknowledged without a second row.
type Config struct {
	DedupeSize int
	DedupeTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{DedupeSize: 10000, DedupeTTL: 24 * time.Hour}
}

func NewExportWorker(source ExpenseSource, exporter sheets.ExpenseExporter, cfg Config) *ExportWorker {
	def := DefaultConfig()
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = def.DedupeSize
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = def.DedupeTTL
	}
	return &ExportWorker{
		source:   source,
		exporter: exporter,
		exported: cache.NewLRUCache[string](cfg.DedupeSize, cfg.DedupeTTL),
	}
}

// RegisterCaches adds the duplicate filter to the periodic cleanup.
func (w *ExportWorker) RegisterCaches(m *cache.Manager) {
	m.Register("exported_expenses", w.exported)
}

// HandleEvent processes one expense event. Returning an error makes the
// consumer requeue the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	switch ev.Type {
	case amqp.EventExpenseCreated, amqp.EventExpenseMaterialized:
		return w.export(ctx, ev)
	case amqp.EventExpenseDeleted:
		w.exported.Delete(strconv.Itoa(ev.ExpenseID))
		slog.InfoContext(ctx, "Expense deleted, exported row left in place",
			"component", "worker",
			"expense_id", ev.ExpenseID,
			"message_id", ev.MessageID)
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown expense event",
			"component", "worker",
			"type", ev.Type,
			"message_id", ev.MessageID)
		return nil
	}
}

func (w *ExportWorker) export(ctx context.Context, ev *amqp.ExpenseEvent) error {
	key := strconv.Itoa(ev.ExpenseID)
	if ref, ok := w.exported.Get(key); ok {
		slog.InfoContext(ctx, "Expense already exported, skipping",
			"component", "worker",
			"expense_id", ev.ExpenseID,
			"row_ref", ref)
		return nil
	}

	doc, err := w.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	e, err := doc.Expense(ev.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before we got to it; nothing to export.
		slog.WarnContext(ctx, "Expense from event no longer exists",
			"component", "worker",
			"expense_id", ev.ExpenseID,
			"type", ev.Type)
		return nil
	}
	if err != nil {
		return err
	}

	ref, err := w.exporter.Export(ctx, *e)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			slog.ErrorContext(ctx, "Expense cannot be exported, dropping event",
				"component", "worker",
				"expense_id", e.ID,
				"error", err)
			return nil
		}
		if inv, ok := w.exporter.(interface{ InvalidateRowCache() }); ok {
			inv.InvalidateRowCache()
		}
		return fmt.Errorf("export expense %d: %w", e.ID, err)
	}
	w.exported.Set(key, ref)

	slog.InfoContext(ctx, "Expense exported",
		"component", "worker",
		"expense_id", e.ID,
		"template_id", e.SourceTemplateID,
		"row_ref", ref,
		"amount", e.Amount.String())
	return nil
}
