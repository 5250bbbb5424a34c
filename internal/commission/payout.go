package commission

import "teamapp/internal/core"

// Payout is a participant's share of the commission price.
type Payout struct {
	AgentID    int        `json:"agentId"`
	Pseudo     string     `json:"pseudo,omitempty"`
	Percentage float64    `json:"percentage"`
	Gross      core.Money `json:"gross"`
	Tax        core.Money `json:"tax"`
	Net        core.Money `json:"net"`
}

// Payouts splits the price between participants: gross is the percentage
// share, tax is taken from gross at the participant's tax rate.
func Payouts(c core.Commission) []Payout {
	out := make([]Payout, 0, len(c.Participants))
	for _, p := range c.Participants {
		gross := c.Price.Percent(p.Percentage).Round()
		tax := gross.Percent(p.TaxRate).Round()
		out = append(out, Payout{
			AgentID:    p.AgentID,
			Pseudo:     p.Pseudo,
			Percentage: p.Percentage,
			Gross:      gross,
			Tax:        tax,
			Net:        gross.Sub(tax),
		})
	}
	return out
}
