package services

import (
	"context"
	"sort"
	"time"

	"teamapp/internal/commission"
	"teamapp/internal/core"
)

const upcomingWindow = 30 * 24 * time.Hour

// SummaryService builds the dashboard overview from all three documents.
// Expenses are read through the ExpenseService so due recurring expenses
// are materialized first.
type SummaryService struct {
	collections Collections
	expenses    *ExpenseService
	now         func() time.Time
}

func NewSummaryService(c Collections, expenses *ExpenseService) *SummaryService {
	if expenses == nil {
		expenses = NewExpenseService(c.Expenses, nil, nil)
	}
	return &SummaryService{
		collections: c,
		expenses:    expenses,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *SummaryService) SetClock(now func() time.Time) { s.now = now }

func (s *SummaryService) Summary(ctx context.Context) (core.Summary, error) {
	expenses, _, err := s.expenses.Materialize(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	commissions, err := s.collections.Commissions.Read(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	agents, err := s.collections.Agents.Read(ctx)
	if err != nil {
		return core.Summary{}, err
	}

	now := s.now()
	return core.Summary{
		Expenses:    summarizeExpenses(expenses, now),
		Commissions: summarizeCommissions(commissions),
		Agents:      summarizeAgents(agents),
	}, nil
}

func summarizeExpenses(doc core.ExpensesDoc, now time.Time) core.ExpenseSummary {
	var out core.ExpenseSummary
	byCategory := map[string]core.Money{}
	horizon := now.Add(upcomingWindow)

	for _, e := range doc.Expenses {
		out.Total = out.Total.Add(e.Amount)
		switch e.Status {
		case core.StatusUpcoming:
			out.Upcoming++
			if !e.OccursAt.Before(now) && !e.OccursAt.After(horizon) {
				out.DueNext30Days = out.DueNext30Days.Add(e.Amount)
			}
		case core.StatusPast:
			out.Past++
		}
		cat := e.Category
		if cat == "" {
			cat = "uncategorized"
		}
		byCategory[cat] = byCategory[cat].Add(e.Amount)
	}
	for _, t := range doc.Templates {
		if t.Active {
			out.ActiveTemplates++
		}
	}

	out.ByCategory = make([]core.CategoryAmount, 0, len(byCategory))
	for name, amount := range byCategory {
		out.ByCategory = append(out.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		return out.ByCategory[i].Name < out.ByCategory[j].Name
	})
	return out
}

// summarizeCommissions leaves cancelled commissions out of the outstanding
// balance.
func summarizeCommissions(doc core.CommissionsDoc) core.CommissionSummary {
	out := core.CommissionSummary{ByStatus: map[core.CommissionStatus]int{}}
	for _, c := range doc.Commissions {
		out.Total++
		out.ByStatus[c.Status]++
		out.Revenue = out.Revenue.Add(c.Price)

		sum := commission.Summarize(c)
		out.Collected = out.Collected.Add(sum.TotalPaid)
		if c.Status != core.Cancelled && sum.Remaining.IsPositive() {
			out.Outstanding = out.Outstanding.Add(sum.Remaining)
		}
	}
	return out
}

func summarizeAgents(doc core.AgentsDoc) core.AgentSummary {
	var out core.AgentSummary
	for _, a := range doc.Agents {
		out.Total++
		if a.Active {
			out.Active++
		}
		if a.InTeam {
			out.InTeam++
		}
	}
	return out
}
