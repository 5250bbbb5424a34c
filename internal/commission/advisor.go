package commission

import (
	"sort"
	"time"

	"teamapp/internal/core"
)

type Priority string

const (
	Urgent Priority = "urgent"
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

var priorityRank = map[Priority]int{Urgent: 0, High: 1, Medium: 2, Low: 3}

// Suggestion is a proposed next status. Suggestions are advisory; applying
// one is an explicit user action.
type Suggestion struct {
	Status   core.CommissionStatus `json:"status"`
	Reason   string                `json:"reason"`
	Priority Priority              `json:"priority"`
}

// Suggest derives next-status suggestions from the commission's current
// status, deadline and deposit. It is recomputed on every call.
func Suggest(c core.Commission, now time.Time) []Suggestion {
	var out []Suggestion
	add := func(s core.CommissionStatus, p Priority, reason string) {
		out = append(out, Suggestion{Status: s, Priority: p, Reason: reason})
	}

	switch c.Status {
	case core.NotStarted:
		if d := c.Deposit; d != nil && d.Amount.IsPositive() {
			if d.Status == core.DepositReceived {
				add(core.Planned, High, "Deposit received, the project can be planned")
			} else {
				add(core.Planned, Medium, "Deposit configured, plan the project")
			}
		}
	case core.Planned:
		add(core.InProgress, High, "Project is planned, start the work")
	case core.InProgress:
		if c.Deadline != nil && c.Deadline.Before(now) {
			add(core.Overdue, Urgent, "Deadline has passed")
		}
		add(core.InReview, Medium, "Work done, send it for client review")
		add(core.Paused, Low, "Put the project on hold")
	case core.InReview:
		add(core.Completed, High, "Client validated the delivery")
		add(core.InProgress, Medium, "Corrections needed")
	case core.Paused:
		add(core.InProgress, High, "Resume the project")
		add(core.Cancelled, Low, "Cancel the project")
	case core.Overdue:
		add(core.InProgress, High, "Deadline renegotiated, resume the work")
		add(core.InReview, Medium, "Late delivery ready for review")
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
	})
	return out
}
