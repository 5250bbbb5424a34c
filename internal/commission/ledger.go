// Package commission holds the payment ledger and status advisor for
// commissions. Nothing here performs I/O.
package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"teamapp/internal/core"
)

// FinancialStatus is a coarse view of how much of a commission is paid.
type FinancialStatus string

const (
	NoPayment       FinancialStatus = "no_payment"
	DepositPartial  FinancialStatus = "deposit_partial"
	DepositReceived FinancialStatus = "deposit_received"
	FullyPaid       FinancialStatus = "fully_paid"
)

// Summary is the ledger state of a commission.
type Summary struct {
	Price          core.Money      `json:"price"`
	DepositAmount  core.Money      `json:"depositAmount"`
	DepositPaid    core.Money      `json:"depositPaid"`
	SettlementPaid core.Money      `json:"settlementPaid"`
	TotalPaid      core.Money      `json:"totalPaid"`
	Remaining      core.Money      `json:"remaining"`
	PercentPaid    float64         `json:"percentPaid"`
	Status         FinancialStatus `json:"status"`
}

// Summarize computes totals from the deposit and settlement histories.
func Summarize(c core.Commission) Summary {
	s := Summary{Price: c.Price}
	if d := c.Deposit; d != nil {
		s.DepositAmount = d.Amount
		for _, p := range d.History {
			s.DepositPaid = s.DepositPaid.Add(p.Amount)
		}
		for _, p := range d.Settlements {
			s.SettlementPaid = s.SettlementPaid.Add(p.Amount)
		}
	}
	s.TotalPaid = s.DepositPaid.Add(s.SettlementPaid)
	s.Remaining = c.Price.Sub(s.TotalPaid)
	if c.Price.IsPositive() {
		pct := s.TotalPaid.Decimal().Div(c.Price.Decimal()).Mul(decimal.NewFromInt(100)).Round(2)
		s.PercentPaid, _ = pct.Float64()
	}
	s.Status = financialStatus(s)
	return s
}

func financialStatus(s Summary) FinancialStatus {
	switch {
	case isFullyPaid(s.TotalPaid, s.Price):
		return FullyPaid
	case s.DepositAmount.IsPositive() && s.DepositPaid.GreaterThanOrEqual(s.DepositAmount):
		return DepositReceived
	case s.DepositPaid.IsPositive():
		return DepositPartial
	default:
		return NoPayment
	}
}

func isFullyPaid(total, price core.Money) bool {
	return total.GreaterThanOrEqual(price.Sub(core.Epsilon))
}

// AddSettlement records a final payment. A payment above the remaining
// balance (plus epsilon) is rejected with an OverpaymentError and the
// commission is left untouched. Reaching the full price completes the
// commission.
func AddSettlement(c *core.Commission, p core.Payment) (Summary, error) {
	if err := p.Amount.Validate(); err != nil {
		return Summary{}, core.NewValidationError("amount", err)
	}
	before := Summarize(*c)
	if p.Amount.GreaterThan(before.Remaining.Add(core.Epsilon)) {
		remaining := before.Remaining
		if !remaining.IsPositive() {
			remaining = core.Money{}
		}
		return before, &core.OverpaymentError{Amount: p.Amount, Remaining: remaining}
	}

	d := c.EnsureDeposit()
	d.Settlements = append(d.Settlements, p)

	after := Summarize(*c)
	if after.Status == FullyPaid {
		c.Status = core.Completed
	}
	return after, nil
}

// RemoveSettlement deletes the settlement payment at index. When the
// commission falls back below its price it leaves the completed status.
func RemoveSettlement(c *core.Commission, index int) (Summary, error) {
	if c.Deposit == nil || index < 0 || index >= len(c.Deposit.Settlements) {
		return Summary{}, fmt.Errorf("settlement payment %d: %w", index, core.ErrNotFound)
	}
	s := c.Deposit.Settlements
	c.Deposit.Settlements = append(s[:index:index], s[index+1:]...)

	after := Summarize(*c)
	if after.Status != FullyPaid && c.Status == core.Completed {
		c.Status = core.InProgress
	}
	return after, nil
}

// AddDepositPayment appends to the deposit history. Deposit payments are
// not capped by the deposit amount or the price.
func AddDepositPayment(c *core.Commission, p core.Payment) (Summary, error) {
	if err := p.Amount.Validate(); err != nil {
		return Summary{}, core.NewValidationError("amount", err)
	}
	d := c.EnsureDeposit()
	d.History = append(d.History, p)

	s := Summarize(*c)
	switch {
	case d.Amount.IsPositive() && s.DepositPaid.GreaterThanOrEqual(d.Amount):
		d.Status = core.DepositReceived
		received := p.PaidAt
		d.ReceivedAt = &received
	case s.DepositPaid.IsPositive():
		d.Status = core.DepositPartial
	}
	return s, nil
}

// DepositUpdate carries the editable deposit fields. Nil fields are left
// unchanged.
type DepositUpdate struct {
	Amount      *core.Money
	Status      *core.DepositStatus
	ScheduledAt *time.Time
	ReceivedAt  *time.Time
}

// UpdateDeposit edits the deposit terms. A history entry is added only when
// the update itself marks the deposit received with an amount and a date,
// and no entry with that date and amount exists yet. Editing other fields of
// a received deposit never adds to the history.
func UpdateDeposit(c *core.Commission, u DepositUpdate, now time.Time) (Summary, error) {
	if u.Amount != nil && u.Amount.LessThan(core.Money{}) {
		return Summary{}, core.NewValidationError("amount", core.ErrInvalidAmount)
	}
	if u.Status != nil && !u.Status.IsValid() {
		return Summary{}, core.NewValidationError("status", core.ErrInvalidStatus)
	}

	d := c.EnsureDeposit()
	if u.Amount != nil {
		d.Amount = *u.Amount
	}
	if u.ScheduledAt != nil {
		d.ScheduledAt = u.ScheduledAt
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.ReceivedAt != nil {
		received := *u.ReceivedAt
		d.ReceivedAt = &received
	} else if d.Status == core.DepositReceived && d.ReceivedAt == nil {
		received := now
		d.ReceivedAt = &received
	}

	marksReceived := u.Status != nil && *u.Status == core.DepositReceived
	if marksReceived && u.Amount != nil && u.Amount.IsPositive() && u.ReceivedAt != nil &&
		!hasPayment(d.History, *u.Amount, *u.ReceivedAt) {
		d.History = append(d.History, core.Payment{Amount: *u.Amount, PaidAt: *u.ReceivedAt, Method: "deposit"})
	}
	return Summarize(*c), nil
}

func hasPayment(history []core.Payment, amount core.Money, on time.Time) bool {
	y, m, d := on.Date()
	for _, p := range history {
		py, pm, pd := p.PaidAt.Date()
		if py == y && pm == m && pd == d && p.Amount.Cmp(amount) == 0 {
			return true
		}
	}
	return false
}
