// Package recurrence materializes expenses from recurring sources.
//
// This file implements the strategy registry for date advancement. Each
// frequency has an Advancer that moves a due date forward by one period.
package recurrence

import (
	"fmt"
	"time"

	"teamapp/internal/core"
)

// Advancer moves a due date forward by exactly one period.
type Advancer interface {
	Advance(t time.Time) time.Time
}

// AdvancerFunc adapts a plain function to Advancer.
type AdvancerFunc func(time.Time) time.Time

func (f AdvancerFunc) Advance(t time.Time) time.Time { return f(t) }

// Days advances by a fixed number of calendar days.
type Days int

func (d Days) Advance(t time.Time) time.Time { return t.AddDate(0, 0, int(d)) }

// Months advances by whole calendar months. The day of month is clamped to
// the last day of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
type Months int

func (m Months) Advance(t time.Time) time.Time {
	return addMonthsClamped(t, int(m))
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, mo, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, mo+time.Month(n), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// advancers maps frequencies to their strategies.
var advancers = map[core.Frequency]Advancer{
	core.Weekly:     Days(7),
	core.Monthly:    Months(1),
	core.Quarterly:  Months(3),
	core.Semiannual: Months(6),
	core.Annual:     Months(12),
}

// GetAdvancer returns the advancer for a frequency.
func GetAdvancer(f core.Frequency) (Advancer, error) {
	a, ok := advancers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
	return a, nil
}

// RegisterAdvancer installs a strategy for a new frequency. Registration is
// not synchronized; call it during program initialization.
func RegisterAdvancer(f core.Frequency, a Advancer) {
	advancers[f] = a
}

// Advance returns t moved forward by one period of frequency f.
func Advance(t time.Time, f core.Frequency) (time.Time, error) {
	a, err := GetAdvancer(f)
	if err != nil {
		return time.Time{}, err
	}
	next := a.Advance(t)
	if !next.After(t) {
		return time.Time{}, fmt.Errorf("%w: %q does not move forward", core.ErrInvalidFrequency, f)
	}
	return next, nil
}
