package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	NotStarted CommissionStatus = "not_started"
	Planned    CommissionStatus = "planned"
	InProgress CommissionStatus = "in_progress"
	InReview   CommissionStatus = "in_review"
	Paused     CommissionStatus = "paused"
	Overdue    CommissionStatus = "overdue"
	Completed  CommissionStatus = "completed"
	Cancelled  CommissionStatus = "cancelled"
)

const (
	DepositNotRequested DepositStatus = "not_requested"
	DepositPending      DepositStatus = "pending"
	DepositPartial      DepositStatus = "partial"
	DepositReceived     DepositStatus = "received"
	DepositOverdue      DepositStatus = "overdue"
)

type (
	CommissionStatus string
	DepositStatus    string

	// Participant is an agent's share of a commission.
	Participant struct {
		AgentID    int     `json:"agentId"`
		Pseudo     string  `json:"pseudo,omitempty"`
		Percentage float64 `json:"percentage"`
		TaxRate    float64 `json:"taxRate,omitempty"`
	}

	Payment struct {
		Amount Money     `json:"amount"`
		PaidAt time.Time `json:"paidAt"`
		Method string    `json:"method,omitempty"`
		Note   string    `json:"note,omitempty"`
	}

	// Deposit holds the upfront amount agreed with the client and both payment
	// histories: deposit payments and settlement (final) payments.
	Deposit struct {
		Amount      Money         `json:"amount"`
		Status      DepositStatus `json:"status"`
		ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
		ReceivedAt  *time.Time    `json:"receivedAt,omitempty"`
		History     []Payment     `json:"history"`
		Settlements []Payment     `json:"settlements"`
	}

	Commission struct {
		ID           int              `json:"id"`
		Client       string           `json:"client"`
		Project      string           `json:"project"`
		Price        Money            `json:"price"`
		Description  string           `json:"description,omitempty"`
		Status       CommissionStatus `json:"status"`
		Deadline     *time.Time       `json:"deadline,omitempty"`
		Participants []Participant    `json:"participants"`
		Deposit      *Deposit         `json:"deposit,omitempty"`
		Comments     []Comment        `json:"comments,omitempty"`
		CreatedAt    time.Time        `json:"createdAt"`
		UpdatedAt    *time.Time       `json:"updatedAt,omitempty"`
	}
)

var (
	ErrEmptyClient       = errors.New("empty client")
	ErrEmptyProject      = errors.New("empty project")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

var commissionStatuses = map[CommissionStatus]string{
	NotStarted: "pas_commence",
	Planned:    "planifie",
	InProgress: "en_cours",
	InReview:   "en_revision",
	Paused:     "en_pause",
	Overdue:    "en_retard",
	Completed:  "termine",
	Cancelled:  "annule",
}

func (s CommissionStatus) IsValid() bool {
	_, ok := commissionStatuses[s]
	return ok
}

// IsTerminal reports whether no further transition is expected.
func (s CommissionStatus) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

// ParseCommissionStatus accepts canonical names and the French names stored
// by older clients.
func ParseCommissionStatus(s string) (CommissionStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if st := CommissionStatus(v); st.IsValid() {
		return st, nil
	}
	for st, legacy := range commissionStatuses {
		if legacy == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s DepositStatus) IsValid() bool {
	switch s {
	case DepositNotRequested, DepositPending, DepositPartial, DepositReceived, DepositOverdue:
		return true
	default:
		return false
	}
}

func (c Commission) Validate() error {
	if strings.TrimSpace(c.Client) == "" {
		return NewValidationError("client", ErrEmptyClient)
	}
	if strings.TrimSpace(c.Project) == "" {
		return NewValidationError("project", ErrEmptyProject)
	}
	if err := c.Price.Validate(); err != nil {
		return NewValidationError("price", err)
	}
	if c.Status != "" && !c.Status.IsValid() {
		return NewValidationError("status", fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status))
	}
	for _, p := range c.Participants {
		if p.Percentage < 0 || p.Percentage > 100 {
			return NewValidationError("participants", ErrInvalidPercentage)
		}
	}
	if c.Deposit != nil && c.Deposit.Status != "" && !c.Deposit.Status.IsValid() {
		return NewValidationError("deposit.status", fmt.Errorf("%w: %q", ErrInvalidStatus, c.Deposit.Status))
	}
	return nil
}

// EnsureDeposit returns the commission's deposit, creating an empty one.
func (c *Commission) EnsureDeposit() *Deposit {
	if c.Deposit == nil {
		c.Deposit = &Deposit{Status: DepositNotRequested}
	}
	if c.Deposit.History == nil {
		c.Deposit.History = []Payment{}
	}
	if c.Deposit.Settlements == nil {
		c.Deposit.Settlements = []Payment{}
	}
	return c.Deposit
}
