package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teamapp/internal/commission"
	"teamapp/internal/core"
)

var ErrEmptyComment = errors.New("empty comment")

// CommissionInput is the editable part of a commission.
type CommissionInput struct {
	Client       string             `json:"client"`
	Project      string             `json:"project"`
	Price        core.Money         `json:"price"`
	Description  string             `json:"description"`
	Deadline     string             `json:"deadline"`
	Status       string             `json:"status"`
	Participants []core.Participant `json:"participants"`
	Deposit      *DepositInput      `json:"deposit"`
}

// DepositInput edits the deposit terms. Empty fields are left unchanged.
type DepositInput struct {
	Amount      *core.Money `json:"amount"`
	Status      string      `json:"status"`
	ScheduledAt string      `json:"scheduledAt"`
	ReceivedAt  string      `json:"receivedAt"`
}

func (in DepositInput) update() (commission.DepositUpdate, error) {
	u := commission.DepositUpdate{Amount: in.Amount}
	if in.Status != "" {
		st := core.DepositStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !st.IsValid() {
			return u, core.NewValidationError("deposit.status", fmt.Errorf("%w: %q", core.ErrInvalidStatus, in.Status))
		}
		u.Status = &st
	}
	var err error
	if u.ScheduledAt, err = core.ParseOptionalDate(in.ScheduledAt); err != nil {
		return u, core.NewValidationError("deposit.scheduledAt", err)
	}
	if u.ReceivedAt, err = core.ParseOptionalDate(in.ReceivedAt); err != nil {
		return u, core.NewValidationError("deposit.receivedAt", err)
	}
	return u, nil
}

// PaymentInput is a deposit or settlement payment. PaidAt defaults to now.
type PaymentInput struct {
	Amount core.Money `json:"amount"`
	PaidAt string     `json:"paidAt"`
	Method string     `json:"method"`
	Note   string     `json:"note"`
}

func (in PaymentInput) payment(now time.Time) (core.Payment, error) {
	p := core.Payment{
		Amount: in.Amount,
		PaidAt: now,
		Method: strings.TrimSpace(in.Method),
		Note:   strings.TrimSpace(in.Note),
	}
	if in.PaidAt != "" {
		t, err := core.ParseDate(in.PaidAt)
		if err != nil {
			return p, core.NewValidationError("paidAt", err)
		}
		p.PaidAt = t
	}
	return p, nil
}

// LedgerResult is returned by the payment operations.
type LedgerResult struct {
	Commission core.Commission    `json:"commission"`
	Summary    commission.Summary `json:"summary"`
}

// Finances is the financial view of one commission.
type Finances struct {
	CommissionID int                 `json:"commissionId"`
	Summary      commission.Summary  `json:"summary"`
	Deposit      *core.Deposit       `json:"deposit"`
	Payouts      []commission.Payout `json:"payouts"`
}

type CommissionService struct {
	commissions *CommissionsCollection
	now         func() time.Time
}

func NewCommissionService(commissions *CommissionsCollection) *CommissionService {
	return &CommissionService{commissions: commissions, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source used for timestamps and deadlines.
func (s *CommissionService) SetClock(now func() time.Time) { s.now = now }

func (s *CommissionService) List(ctx context.Context) ([]core.Commission, error) {
	doc, err := s.commissions.Read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Commissions, nil
}

func (s *CommissionService) Get(ctx context.Context, id int) (core.Commission, error) {
	doc, err := s.commissions.Read(ctx)
	if err != nil {
		return core.Commission{}, err
	}
	c, err := doc.Commission(id)
	if err != nil {
		return core.Commission{}, err
	}
	return *c, nil
}

func (in CommissionInput) apply(c *core.Commission) error {
	c.Client = strings.TrimSpace(in.Client)
	c.Project = strings.TrimSpace(in.Project)
	c.Price = in.Price
	c.Description = strings.TrimSpace(in.Description)

	deadline, err := core.ParseOptionalDate(in.Deadline)
	if err != nil {
		return core.NewValidationError("deadline", err)
	}
	c.Deadline = deadline

	if in.Status != "" {
		st, err := core.ParseCommissionStatus(in.Status)
		if err != nil {
			return core.NewValidationError("status", err)
		}
		c.Status = st
	}
	if c.Status == "" {
		c.Status = core.Planned
	}

	c.Participants = in.Participants
	if c.Participants == nil {
		c.Participants = []core.Participant{}
	}
	return c.Validate()
}

func (s *CommissionService) Create(ctx context.Context, in CommissionInput) (core.Commission, error) {
	var created core.Commission
	_, err := s.commissions.Update(ctx, func(doc *core.CommissionsDoc) error {
		now := s.now()
		c := core.Commission{ID: doc.NextID(), CreatedAt: now}
		if err := in.apply(&c); err != nil {
			return err
		}
		if in.Deposit != nil {
			u, err := in.Deposit.update()
			if err != nil {
				return err
			}
			if _, err := commission.UpdateDeposit(&c, u, now); err != nil {
				return err
			}
		}
		doc.Commissions = append(doc.Commissions, c)
		created = c
		return nil
	})
	if err != nil {
		return core.Commission{}, fmt.Errorf("create commission: %w", err)
	}
	slog.InfoContext(ctx, "Commission created",
		"commission_id", created.ID,
		"client", created.Client,
		"price", created.Price.String())
	return created, nil
}

// Update replaces the editable fields. An empty status keeps the current one;
// a nil deposit leaves the deposit untouched.
func (s *CommissionService) Update(ctx context.Context, id int, in CommissionInput) (core.Commission, error) {
	return s.mutate(ctx, id, "update", func(c *core.Commission, now time.Time) error {
		if err := in.apply(c); err != nil {
			return err
		}
		if in.Deposit != nil {
			u, err := in.Deposit.update()
			if err != nil {
				return err
			}
			if _, err := commission.UpdateDeposit(c, u, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CommissionService) Delete(ctx context.Context, id int) error {
	_, err := s.commissions.Update(ctx, func(doc *core.CommissionsDoc) error {
		return doc.Delete(id)
	})
	if err != nil {
		return fmt.Errorf("delete commission %d: %w", id, err)
	}
	return nil
}

// mutate applies fn to one commission and stamps UpdatedAt.
func (s *CommissionService) mutate(ctx context.Context, id int, op string, fn func(c *core.Commission, now time.Time) error) (core.Commission, error) {
	var out core.Commission
	_, err := s.commissions.Update(ctx, func(doc *core.CommissionsDoc) error {
		c, err := doc.Commission(id)
		if err != nil {
			return err
		}
		now := s.now()
		next := *c
		if err := fn(&next, now); err != nil {
			return err
		}
		next.UpdatedAt = &now
		*c = next
		out = next
		return nil
	})
	if err != nil {
		return core.Commission{}, fmt.Errorf("%s commission %d: %w", op, id, err)
	}
	return out, nil
}

func (s *CommissionService) UpdateDeposit(ctx context.Context, id int, in DepositInput) (LedgerResult, error) {
	u, err := in.update()
	if err != nil {
		return LedgerResult{}, err
	}
	var sum commission.Summary
	c, err := s.mutate(ctx, id, "update deposit of", func(c *core.Commission, now time.Time) error {
		sum, err = commission.UpdateDeposit(c, u, now)
		return err
	})
	if err != nil {
		return LedgerResult{}, err
	}
	return LedgerResult{Commission: c, Summary: sum}, nil
}

// AddDepositPayment records a deposit payment. It is not capped.
func (s *CommissionService) AddDepositPayment(ctx context.Context, id int, in PaymentInput) (LedgerResult, error) {
	var sum commission.Summary
	c, err := s.mutate(ctx, id, "add deposit payment to", func(c *core.Commission, now time.Time) error {
		p, err := in.payment(now)
		if err != nil {
			return err
		}
		sum, err = commission.AddDepositPayment(c, p)
		return err
	})
	if err != nil {
		return LedgerResult{}, err
	}
	return LedgerResult{Commission: c, Summary: sum}, nil
}

// AddSettlement records a final payment. Overpayments are rejected and
// nothing is saved.
func (s *CommissionService) AddSettlement(ctx context.Context, id int, in PaymentInput) (LedgerResult, error) {
	var sum commission.Summary
	c, err := s.mutate(ctx, id, "add settlement to", func(c *core.Commission, now time.Time) error {
		p, err := in.payment(now)
		if err != nil {
			return err
		}
		sum, err = commission.AddSettlement(c, p)
		return err
	})
	if err != nil {
		return LedgerResult{}, err
	}
	if c.Status == core.Completed && sum.Status == commission.FullyPaid {
		slog.InfoContext(ctx, "Commission fully paid", "commission_id", id)
	}
	return LedgerResult{Commission: c, Summary: sum}, nil
}

func (s *CommissionService) RemoveSettlement(ctx context.Context, id, index int) (LedgerResult, error) {
	var sum commission.Summary
	c, err := s.mutate(ctx, id, "remove settlement from", func(c *core.Commission, _ time.Time) error {
		var err error
		sum, err = commission.RemoveSettlement(c, index)
		return err
	})
	if err != nil {
		return LedgerResult{}, err
	}
	return LedgerResult{Commission: c, Summary: sum}, nil
}

func (s *CommissionService) Finances(ctx context.Context, id int) (Finances, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Finances{}, err
	}
	return Finances{
		CommissionID: c.ID,
		Summary:      commission.Summarize(c),
		Deposit:      c.Deposit,
		Payouts:      commission.Payouts(c),
	}, nil
}

// Suggestions is recomputed from the stored commission on every call.
func (s *CommissionService) Suggestions(ctx context.Context, id int) ([]commission.Suggestion, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := commission.Suggest(c, s.now())
	if out == nil {
		out = []commission.Suggestion{}
	}
	return out, nil
}

// ApplyStatus overwrites the status with a user-confirmed suggestion.
func (s *CommissionService) ApplyStatus(ctx context.Context, id int, status string) (core.Commission, error) {
	st, err := core.ParseCommissionStatus(status)
	if err != nil {
		return core.Commission{}, core.NewValidationError("status", err)
	}
	c, err := s.mutate(ctx, id, "set status of", func(c *core.Commission, _ time.Time) error {
		c.Status = st
		return nil
	})
	if err != nil {
		return core.Commission{}, err
	}
	slog.InfoContext(ctx, "Commission status changed", "commission_id", id, "status", st)
	return c, nil
}

func (s *CommissionService) AddComment(ctx context.Context, id int, author, text string) (core.Commission, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Commission{}, core.NewValidationError("text", ErrEmptyComment)
	}
	return s.mutate(ctx, id, "comment on", func(c *core.Commission, now time.Time) error {
		c.Comments = append(c.Comments, core.Comment{Author: author, Text: text, CreatedAt: now})
		return nil
	})
}
