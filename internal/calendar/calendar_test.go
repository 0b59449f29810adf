package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalRelay/internal/model"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	return New(newYork(t), Clock{9, 30}, Clock{11, 33}, Clock{0, 0})
}

func at(t *testing.T, day string, hh, mm int) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", day, newYork(t))
	require.NoError(t, err)
	return d.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func TestDecide(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name     string
		now      time.Time
		wantType model.EventType
		wantNext string
		wantNone bool
	}{
		{name: "monday open resets", now: at(t, "2026-10-12", 9, 30), wantType: model.EventMarketOpenReset},
		{name: "friday open resets", now: at(t, "2026-10-16", 9, 30), wantType: model.EventMarketOpenReset},
		{name: "saturday open is quiet", now: at(t, "2026-10-17", 9, 30), wantNone: true},
		{name: "wednesday midday closing", now: at(t, "2026-10-14", 11, 33), wantType: model.EventMiddayClose, wantNext: "Thursday"},
		{name: "friday midday weekend", now: at(t, "2026-10-16", 11, 33), wantType: model.EventWeekend, wantNext: "Monday"},
		{name: "sunday midday is quiet", now: at(t, "2026-10-18", 11, 33), wantNone: true},
		{name: "weekday midnight", now: at(t, "2026-10-14", 0, 0), wantType: model.EventMidnightReopen},
		{name: "saturday midnight", now: at(t, "2026-10-17", 0, 0), wantType: model.EventMidnightReopen},
		{name: "minute after open", now: at(t, "2026-10-14", 9, 31), wantNone: true},
		{name: "ordinary afternoon", now: at(t, "2026-10-14", 15, 0), wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := cal.Decide(tt.now)
			if tt.wantNone {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.now.Format(DateKeyLayout), ev.DateKey)
			if tt.wantNext != "" {
				assert.Equal(t, tt.wantNext, ev.NextBusinessDay)
			}
		})
	}
}

func TestDecide_ResetHasNoMessage(t *testing.T) {
	ev, ok := testCalendar(t).Decide(at(t, "2026-10-13", 9, 30))
	require.True(t, ok)
	assert.False(t, ev.Type.HasMessage())
}

func TestDecide_SecondsWithinMinuteAgree(t *testing.T) {
	cal := testCalendar(t)
	first, ok := cal.Decide(at(t, "2026-10-14", 11, 33).Add(5 * time.Second))
	require.True(t, ok)
	second, ok := cal.Decide(at(t, "2026-10-14", 11, 33).Add(55 * time.Second))
	require.True(t, ok)
	assert.Equal(t, first.Key(), second.Key())
}

func TestDecide_ConvertsToBusinessTimezone(t *testing.T) {
	cal := testCalendar(t)
	// 15:33 UTC is 11:33 EDT in October.
	ev, ok := cal.Decide(time.Date(2026, 10, 14, 15, 33, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, model.EventMiddayClose, ev.Type)

	// 04:00 UTC Thursday is midnight Thursday in New York; the date key is local.
	ev, ok = cal.Decide(time.Date(2026, 10, 15, 4, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, model.EventMidnightReopen, ev.Type)
	assert.Equal(t, "2026-10-15", ev.DateKey)
}

func TestNextBusinessDay(t *testing.T) {
	for day, want := range map[string]time.Weekday{
		"2026-10-12": time.Tuesday,
		"2026-10-15": time.Friday,
		"2026-10-16": time.Monday,
		"2026-10-17": time.Monday,
		"2026-10-18": time.Monday,
	} {
		assert.Equal(t, want, NextBusinessDay(at(t, day, 12, 0)), day)
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{9, 30}, c)
	assert.Equal(t, "09:30", c.String())

	_, err = ParseClock("9.30am")
	assert.Error(t, err)
}
