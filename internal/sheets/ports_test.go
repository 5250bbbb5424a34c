package sheets

import (
	"testing"
	"time"

	"teamapp/internal/core"
)

func TestRow(t *testing.T) {
	tid := 3
	pid := 9
	base := core.Expense{
		ID:       12,
		Label:    "Hosting",
		Category: "infra",
		Amount:   core.MustMoney("19.9"),
		Currency: "EUR",
		Status:   core.StatusUpcoming,
		OccursAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		mutate func(*core.Expense)
		source string
	}{
		{"manual", func(*core.Expense) {}, "manual"},
		{"template", func(e *core.Expense) { e.SourceTemplateID = &tid }, "template:3"},
		{"legacy", func(e *core.Expense) { e.ParentExpenseID = &pid }, "expense:9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			row := Row(e)
			if len(row) != len(Columns) {
				t.Fatalf("len(Row()) = %d, want %d", len(row), len(Columns))
			}
			if row[1] != "2025-02-01" {
				t.Errorf("date = %v, want 2025-02-01", row[1])
			}
			if row[4] != "19.90" {
				t.Errorf("amount = %v, want 19.90", row[4])
			}
			if row[7] != tt.source {
				t.Errorf("source = %v, want %v", row[7], tt.source)
			}
		})
	}
}
