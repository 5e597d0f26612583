// Package market wraps the exchange trading calendar. It is advisory only:
// the append engine's duplicate guard decides whether a session exists, and
// this package merely explains no-op days in logs and run records.
package market

import (
	"time"

	"github.com/scmhub/calendar"
)

// Calendar answers whether a given day is a trading day on one exchange.
type Calendar struct {
	cal *calendar.Calendar
	loc *time.Location
	// fallback switches to a plain Mon-Fri rule when no calendar is
	// available for the requested market.
	fallback bool
}

// New returns the calendar for an ISO 10383 market identifier (e.g. "xnys").
// Unknown MICs fall back to a Mon-Fri rule in the local timezone.
func New(mic string) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &Calendar{fallback: true, loc: time.Local}
	}
	return &Calendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether the exchange holds a session on the given
// calendar day.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if c.fallback {
		return isWeekday(t)
	}
	return c.isBusinessDay(t)
}

// isBusinessDay consults the library, degrading to the Mon-Fri rule for
// dates outside its compiled year window, where IsBusinessDay panics.
func (c *Calendar) isBusinessDay(t time.Time) (open bool) {
	defer func() {
		if recover() != nil {
			open = isWeekday(t)
		}
	}()
	return c.cal.IsBusinessDay(t)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Describe classifies a day for logging: "trading day", "weekend" or
// "holiday".
func (c *Calendar) Describe(t time.Time) string {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	if !c.IsTradingDay(t) {
		return "holiday"
	}
	return "trading day"
}
