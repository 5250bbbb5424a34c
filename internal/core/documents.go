package core

import "time"

// DocumentVersion is written into every persisted document's metadata.
const DocumentVersion = "1.0"

// Document names used by the stores.
const (
	ExpensesDocument    = "expenses"
	CommissionsDocument = "commissions"
	AgentsDocument      = "agents"
)

type (
	ExpensesMetadata struct {
		Version        string    `json:"version"`
		LastUpdated    time.Time `json:"lastUpdated"`
		TotalExpenses  int       `json:"totalExpenses"`
		TotalAmount    Money     `json:"totalAmount"`
		TotalTemplates int       `json:"totalTemplates"`
	}

	// ExpensesDoc holds expenses and templates together: the recurrence
	// engine mutates both in a single pass.
	ExpensesDoc struct {
		Metadata  ExpensesMetadata `json:"metadata"`
		Expenses  []Expense        `json:"expenses"`
		Templates []Template       `json:"templates"`
	}

	CommissionsMetadata struct {
		Version          string    `json:"version"`
		LastUpdated      time.Time `json:"lastUpdated"`
		TotalCommissions int       `json:"totalCommissions"`
		TotalRevenue     Money     `json:"totalRevenue"`
	}

	CommissionsDoc struct {
		Metadata    CommissionsMetadata `json:"metadata"`
		Commissions []Commission        `json:"commissions"`
	}

	AgentsMetadata struct {
		Version     string    `json:"version"`
		LastUpdated time.Time `json:"lastUpdated"`
		TotalAgents int       `json:"totalAgents"`
	}

	AgentsDoc struct {
		Metadata AgentsMetadata `json:"metadata"`
		Agents   []Agent        `json:"agents"`
	}
)

// Touch recomputes the metadata block after a mutation.
func (d *ExpensesDoc) Touch(now time.Time) {
	if d.Expenses == nil {
		d.Expenses = []Expense{}
	}
	if d.Templates == nil {
		d.Templates = []Template{}
	}
	total := Money{}
	for _, e := range d.Expenses {
		total = total.Add(e.Amount)
	}
	d.Metadata = ExpensesMetadata{
		Version:        DocumentVersion,
		LastUpdated:    now.UTC(),
		TotalExpenses:  len(d.Expenses),
		TotalAmount:    total,
		TotalTemplates: len(d.Templates),
	}
}

func (d *ExpensesDoc) NextExpenseID() int {
	next := 1
	for _, e := range d.Expenses {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}

func (d *ExpensesDoc) NextTemplateID() int {
	next := 1
	for _, t := range d.Templates {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	return next
}

// Expense returns a pointer into the document, or a NotFoundError.
func (d *ExpensesDoc) Expense(id int) (*Expense, error) {
	for i := range d.Expenses {
		if d.Expenses[i].ID == id {
			return &d.Expenses[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "expense", ID: id}
}

func (d *ExpensesDoc) Template(id int) (*Template, error) {
	for i := range d.Templates {
		if d.Templates[i].ID == id {
			return &d.Templates[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "template", ID: id}
}

func (d *ExpensesDoc) DeleteExpense(id int) error {
	for i := range d.Expenses {
		if d.Expenses[i].ID == id {
			d.Expenses = append(d.Expenses[:i], d.Expenses[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "expense", ID: id}
}

func (d *ExpensesDoc) DeleteTemplate(id int) error {
	for i := range d.Templates {
		if d.Templates[i].ID == id {
			d.Templates = append(d.Templates[:i], d.Templates[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "template", ID: id}
}

func (d *CommissionsDoc) Touch(now time.Time) {
	if d.Commissions == nil {
		d.Commissions = []Commission{}
	}
	revenue := Money{}
	for _, c := range d.Commissions {
		revenue = revenue.Add(c.Price)
	}
	d.Metadata = CommissionsMetadata{
		Version:          DocumentVersion,
		LastUpdated:      now.UTC(),
		TotalCommissions: len(d.Commissions),
		TotalRevenue:     revenue,
	}
}

func (d *CommissionsDoc) NextID() int {
	next := 1
	for _, c := range d.Commissions {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	return next
}

func (d *CommissionsDoc) Commission(id int) (*Commission, error) {
	for i := range d.Commissions {
		if d.Commissions[i].ID == id {
			return &d.Commissions[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "commission", ID: id}
}

func (d *CommissionsDoc) Delete(id int) error {
	for i := range d.Commissions {
		if d.Commissions[i].ID == id {
			d.Commissions = append(d.Commissions[:i], d.Commissions[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "commission", ID: id}
}

func (d *AgentsDoc) Touch(now time.Time) {
	if d.Agents == nil {
		d.Agents = []Agent{}
	}
	d.Metadata = AgentsMetadata{
		Version:     DocumentVersion,
		LastUpdated: now.UTC(),
		TotalAgents: len(d.Agents),
	}
}

func (d *AgentsDoc) NextID() int {
	next := 1
	for _, a := range d.Agents {
		if a.ID >= next {
			next = a.ID + 1
		}
	}
	return next
}

func (d *AgentsDoc) Agent(id int) (*Agent, error) {
	for i := range d.Agents {
		if d.Agents[i].ID == id {
			return &d.Agents[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "agent", ID: id}
}

func (d *AgentsDoc) Delete(id int) error {
	for i := range d.Agents {
		if d.Agents[i].ID == id {
			d.Agents = append(d.Agents[:i], d.Agents[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "agent", ID: id}
}
