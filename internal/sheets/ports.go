package sheets

import (
	"context"
	"strconv"

	"teamapp/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter appends one expense to an external ledger and returns
	// a reference to the written row.
	ExpenseExporter interface {
		Export(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)

// Columns is the header of an exported expense row.
var Columns = []string{"ID", "Date", "Label", "Category", "Amount", "Currency", "Status", "Source"}

// Row renders an expense in Columns order.
func Row(e core.Expense) []any {
	source := "manual"
	switch {
	case e.SourceTemplateID != nil:
		source = "template:" + strconv.Itoa(*e.SourceTemplateID)
	case e.ParentExpenseID != nil:
		source = "expense:" + strconv.Itoa(*e.ParentExpenseID)
	}
	return []any{
		e.ID,
		e.OccursAt.Format("2006-01-02"),
		e.Label,
		e.Category,
		e.Amount.String(),
		e.Currency,
		string(e.Status),
		source,
	}
}
