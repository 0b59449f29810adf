package model

import "strings"

// EventType identifies a scheduled status announcement. The string values of
// the message-bearing types match the Type column of the Messages table.
type EventType string

const (
	EventMarketOpenReset EventType = "reset"
	EventMiddayClose     EventType = "closing"
	EventWeekend         EventType = "weekend"
	EventMidnightReopen  EventType = "midnight"
)

// NextBusinessDayPlaceholder is replaced in templates with the weekday name of
// the next business day.
const NextBusinessDayPlaceholder = "{nextBusinessDay}"

// HasMessage reports whether the event posts new text. The market-open reset
// only clears the previous status message.
func (t EventType) HasMessage() bool {
	return t != EventMarketOpenReset
}

// EventKey is the de-duplication identity of an announcement: at most one
// dispatch per type per business-timezone calendar day.
type EventKey struct {
	Type    EventType `json:"type"`
	DateKey string    `json:"date"`
}

// AnnouncementEvent is a scheduled announcement occurrence.
type AnnouncementEvent struct {
	Type            EventType
	DateKey         string
	NextBusinessDay string
}

func (e AnnouncementEvent) Key() EventKey {
	return EventKey{Type: e.Type, DateKey: e.DateKey}
}

// Render fills a template with the event's next business day.
func (e AnnouncementEvent) Render(template string) string {
	return strings.ReplaceAll(template, NextBusinessDayPlaceholder, e.NextBusinessDay)
}
