package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

type ExpenseSummary struct {
	Upcoming        int              `json:"upcoming"`
	Past            int              `json:"past"`
	Total           Money            `json:"total"`
	DueNext30Days   Money            `json:"dueNext30Days"`
	ActiveTemplates int              `json:"activeTemplates"`
	ByCategory      []CategoryAmount `json:"byCategory"`
}

type CommissionSummary struct {
	Total       int                      `json:"total"`
	ByStatus    map[CommissionStatus]int `json:"byStatus"`
	Revenue     Money                    `json:"revenue"`
	Collected   Money                    `json:"collected"`
	Outstanding Money                    `json:"outstanding"`
}

type AgentSummary struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	InTeam int `json:"inTeam"`
}

// Summary is the dashboard overview across all three stores.
type Summary struct {
	Expenses    ExpenseSummary    `json:"expenses"`
	Commissions CommissionSummary `json:"commissions"`
	Agents      AgentSummary      `json:"agents"`
}
