package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"teamapp/internal/recurrence"
)

// RecurringProcessorConfig holds configuration for the recurring processor
type RecurringProcessorConfig struct {
	// Interval between materialization runs (default: 1h)
	Interval time.Duration
}

func DefaultRecurringProcessorConfig() RecurringProcessorConfig {
	return RecurringProcessorConfig{Interval: time.Hour}
}

// RecurringProcessor materializes due recurring expenses on a timer, so
// expenses appear even when nobody lists them.
type RecurringProcessor struct {
	expenses *ExpenseService
	config   RecurringProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringProcessor(expenses *ExpenseService, config RecurringProcessorConfig) *RecurringProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRecurringProcessorConfig().Interval
	}
	return &RecurringProcessor{
		expenses: expenses,
		config:   config,
	}
}

// ProcessDue runs the recurrence engine once.
func (p *RecurringProcessor) ProcessDue(ctx context.Context) (recurrence.Result, error) {
	if p.expenses == nil {
		return recurrence.Result{}, fmt.Errorf("processor not properly initialized")
	}
	_, res, err := p.expenses.Materialize(ctx)
	if err != nil {
		return recurrence.Result{}, err
	}
	slog.InfoContext(ctx, "Recurring expense processing complete",
		"created", len(res.Created),
		"deactivated", len(res.Deactivated),
		"skipped", len(res.Skipped),
		"processing_date", p.expenses.Now().Format("2006-01-02"))
	return res, nil
}

// Run processes immediately and then on every tick until ctx is done.
func (p *RecurringProcessor) Run(ctx context.Context) error {
	return p.loop(ctx, nil)
}

func (p *RecurringProcessor) loop(ctx context.Context, stop <-chan struct{}) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *RecurringProcessor) tick(ctx context.Context) {
	if _, err := p.ProcessDue(ctx); err != nil {
		slog.ErrorContext(ctx, "Recurring expense processing failed", "error", err)
	}
}

// Start begins the processing loop in the background. Returns an error if
// already running.
func (p *RecurringProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("recurring processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(done)
		_ = p.loop(ctx, stop)
	}()

	slog.InfoContext(ctx, "Recurring processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *RecurringProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running || p.stopCh == nil {
		p.mu.Unlock()
		return nil
	}
	stop, done := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	close(stop)

	select {
	case <-done:
		slog.InfoContext(ctx, "Recurring processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *RecurringProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
