package memory

import (
	"context"
	"fmt"
	"sync"

	"teamapp/internal/core"
	"teamapp/internal/sheets"
)

// Exporter keeps exported expenses in memory. It stands in for the sheet
// when no spreadsheet is configured.
type Exporter struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ sheets.ExpenseExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Export stores the expense and returns a synthetic row reference.
func (s *Exporter) Export(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Exported returns a copy of everything exported so far.
func (s *Exporter) Exported() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...)
}
