package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
)

const (
	StatusUpcoming ExpenseStatus = "upcoming"
	StatusPast     ExpenseStatus = "past"
)

// DefaultCurrency is applied to expenses and templates created without one.
const DefaultCurrency = "EUR"

type (
	Frequency     string
	ExpenseStatus string

	Comment struct {
		Author    string    `json:"author"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Template is a recurring-expense blueprint.
	Template struct {
		ID          int        `json:"id"`
		Label       string     `json:"label"`
		Description string     `json:"description,omitempty"`
		Amount      Money      `json:"amount"`
		Currency    string     `json:"currency"`
		Category    string     `json:"category,omitempty"`
		Frequency   Frequency  `json:"frequency"`
		NextDueAt   *time.Time `json:"nextDueAt"`
		ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
		Active      bool       `json:"active"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	}

	// Expense is a concrete, dated expense. Records with Recurring set carry
	// their own recurrence fields (the scheme that predates Template).
	Expense struct {
		ID               int           `json:"id"`
		Label            string        `json:"label"`
		Description      string        `json:"description,omitempty"`
		Amount           Money         `json:"amount"`
		Currency         string        `json:"currency"`
		Category         string        `json:"category,omitempty"`
		Status           ExpenseStatus `json:"status"`
		OccursAt         time.Time     `json:"occursAt"`
		CreatedAt        time.Time     `json:"createdAt"`
		UpdatedAt        *time.Time    `json:"updatedAt,omitempty"`
		SourceTemplateID *int          `json:"sourceTemplateId"`
		ParentExpenseID  *int          `json:"parentExpenseId,omitempty"`
		Recurring        bool          `json:"recurring,omitempty"`
		Frequency        Frequency     `json:"frequency,omitempty"`
		NextDueAt        *time.Time    `json:"nextDueAt,omitempty"`
		Comments         []Comment     `json:"comments,omitempty"`
	}

	Agent struct {
		ID        int        `json:"id"`
		Pseudo    string     `json:"pseudo"`
		Discord   string     `json:"discord,omitempty"`
		Active    bool       `json:"active"`
		InTeam    bool       `json:"inTeam"`
		Roles     []string   `json:"roles"`
		Comments  string     `json:"comments,omitempty"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	}
)

var (
	ErrEmptyLabel       = errors.New("empty label")
	ErrEmptyPseudo      = errors.New("empty pseudo")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingNextDue   = errors.New("missing next due date")
)

var frequencyAliases = map[string]Frequency{
	"weekly":       Weekly,
	"hebdomadaire": Weekly,
	"monthly":      Monthly,
	"mensuel":      Monthly,
	"quarterly":    Quarterly,
	"trimestriel":  Quarterly,
	"semiannual":   Semiannual,
	"semestriel":   Semiannual,
	"annual":       Annual,
	"annuel":       Annual,
	"yearly":       Annual,
}

// ParseFrequency normalizes a frequency name. French names written by older
// clients are accepted.
func ParseFrequency(s string) (Frequency, error) {
	f, ok := frequencyAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f Frequency) IsValid() bool {
	switch f {
	case Weekly, Monthly, Quarterly, Semiannual, Annual:
		return true
	default:
		return false
	}
}

func (s ExpenseStatus) IsValid() bool {
	return s == StatusUpcoming || s == StatusPast
}

// ParseExpenseStatus accepts the canonical names and the legacy French ones.
func ParseExpenseStatus(s string) (ExpenseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upcoming", "à_venir", "a_venir":
		return StatusUpcoming, nil
	case "past", "passé", "passe":
		return StatusPast, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Label) == "" {
		return NewValidationError("label", ErrEmptyLabel)
	}
	if err := t.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if !t.Frequency.IsValid() {
		return NewValidationError("frequency", fmt.Errorf("%w: %q", ErrInvalidFrequency, t.Frequency))
	}
	if t.NextDueAt == nil || t.NextDueAt.IsZero() {
		return NewValidationError("nextDueAt", ErrMissingNextDue)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Label) == "" {
		return NewValidationError("label", ErrEmptyLabel)
	}
	if err := e.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if !e.Status.IsValid() {
		return NewValidationError("status", fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status))
	}
	if e.OccursAt.IsZero() {
		return NewValidationError("occursAt", ErrMissingDate)
	}
	if e.Recurring {
		if !e.Frequency.IsValid() {
			return NewValidationError("frequency", fmt.Errorf("%w: %q", ErrInvalidFrequency, e.Frequency))
		}
		if e.NextDueAt == nil || e.NextDueAt.IsZero() {
			return NewValidationError("nextDueAt", ErrMissingNextDue)
		}
	}
	return nil
}

// IsLegacyRecurring reports whether the expense drives its own recurrence.
func (e Expense) IsLegacyRecurring() bool {
	return e.Recurring && e.NextDueAt != nil
}

func (a Agent) Validate() error {
	if strings.TrimSpace(a.Pseudo) == "" {
		return NewValidationError("pseudo", ErrEmptyPseudo)
	}
	return nil
}

// Normalize enforces that agents outside the team are never active.
func (a *Agent) Normalize() {
	if !a.InTeam {
		a.Active = false
	}
	if a.Roles == nil {
		a.Roles = []string{}
	}
}
