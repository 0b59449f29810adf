// Package calendar decides which status announcement, if any, applies at a
// given moment in the business timezone.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"SignalRelay/internal/model"
)

// DateKeyLayout formats the business-timezone calendar day used for
// announcement de-duplication.
const DateKeyLayout = "2006-01-02"

// Clock is a wall-clock minute of the day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

// Calendar holds the business timezone and the trigger instants.
type Calendar struct {
	loc        *time.Location
	marketOpen Clock
	midday     Clock
	midnight   Clock
}

// New builds a Calendar. A nil location means UTC.
func New(loc *time.Location, marketOpen, midday, midnight Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, marketOpen: marketOpen, midday: midday, midnight: midnight}
}

func (c *Calendar) Location() *time.Location { return c.loc }

// DateKey is the calendar date of t in the business timezone.
func (c *Calendar) DateKey(t time.Time) string {
	return t.In(c.loc).Format(DateKeyLayout)
}

// Decide returns the announcement that fires at now, checked in order:
// weekday market open resets, weekday midday posts closing (Mon-Thu) or
// weekend (Fri), and midnight on any day posts the reopen notice.
// Triggers match on the exact minute, not a window.
func (c *Calendar) Decide(now time.Time) (model.AnnouncementEvent, bool) {
	local := now.In(c.loc)
	weekday := isWeekday(local.Weekday())
	ev := model.AnnouncementEvent{DateKey: local.Format(DateKeyLayout)}

	switch {
	case weekday && c.marketOpen.matches(local):
		ev.Type = model.EventMarketOpenReset
	case weekday && c.midday.matches(local):
		ev.Type = model.EventMiddayClose
		if local.Weekday() == time.Friday {
			ev.Type = model.EventWeekend
		}
		ev.NextBusinessDay = NextBusinessDay(local).String()
	case c.midnight.matches(local):
		ev.Type = model.EventMidnightReopen
		ev.NextBusinessDay = NextBusinessDay(local).String()
	default:
		return model.AnnouncementEvent{}, false
	}
	return ev, true
}

// NextBusinessDay advances one calendar day from t and rolls a Saturday or
// Sunday forward to Monday.
func NextBusinessDay(t time.Time) time.Weekday {
	next := t.AddDate(0, 0, 1)
	switch next.Weekday() {
	case time.Saturday:
		next = next.AddDate(0, 0, 2)
	case time.Sunday:
		next = next.AddDate(0, 0, 1)
	}
	return next.Weekday()
}

func isWeekday(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}
