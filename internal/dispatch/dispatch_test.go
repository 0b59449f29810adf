package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalRelay/internal/model"
	"SignalRelay/internal/notifier"
)

// opLog records operations across destinations in call order.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, s)
}

type fakeDest struct {
	id        string
	name      string
	markup    notifier.Markup
	log       *opLog
	sendErr   error
	deleteErr error
	texts     []string
	next      int
}

func (f *fakeDest) ID() string {
	if f.id != "" {
		return f.id
	}
	return f.name
}

func (f *fakeDest) Name() string            { return f.name }
func (f *fakeDest) Markup() notifier.Markup { return f.markup }

func (f *fakeDest) Send(ctx context.Context, text string) (string, error) {
	return f.SendRich(ctx, text, notifier.Embed{})
}

func (f *fakeDest) SendRich(_ context.Context, text string, embed notifier.Embed) (string, error) {
	if f.sendErr != nil {
		f.log.add(f.ID() + ":send-fail")
		return "", f.sendErr
	}
	f.next++
	id := fmt.Sprintf("%s-%d", f.ID(), f.next)
	f.texts = append(f.texts, text+"|"+embed.Description)
	f.log.add(f.ID() + ":send:" + id)
	return id, nil
}

func (f *fakeDest) Delete(_ context.Context, id string) error {
	f.log.add(f.ID() + ":delete:" + id)
	return f.deleteErr
}

func testSignal() *model.Signal {
	return &model.Signal{
		Trend:                 "Bullish",
		TrendScore:            decimal.NewFromInt(8),
		Securities:            "SPY",
		MorningBreakerEntry:   model.BreakerOff,
		ReverseSignalDetected: model.ReverseNo,
	}
}

func closing(day string) model.AnnouncementEvent {
	return model.AnnouncementEvent{Type: model.EventMiddayClose, DateKey: day, NextBusinessDay: "Thursday"}
}

func TestSendSignal_FailureDoesNotStopOthers(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	b := &fakeDest{name: "b", log: log, sendErr: errors.New("forbidden")}
	c := &fakeDest{name: "c", log: log, markup: notifier.HTML}
	d := New(zerolog.Nop(), nil)

	report := d.SendSignal(context.Background(), []notifier.Destination{a, b, c}, testSignal())

	require.Len(t, report, 3)
	assert.Equal(t, 2, report.Sent())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, KindSendFailed, report[1].Kind)
	assert.Equal(t, []string{"a:send:a-1", "b:send-fail", "c:send:c-1"}, log.ops)

	require.Len(t, a.texts, 1)
	assert.Contains(t, a.texts[0], "**Trend:** Bullish")
	assert.Contains(t, a.texts[0], "Risk Disclaimer")
	require.Len(t, c.texts, 1)
	assert.Contains(t, c.texts[0], "<b>Trend:</b> Bullish")
}

func TestAnnounce_DeletesPreviousBeforeSend(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()

	_, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-13"), "first")
	require.True(t, ok)
	assert.Equal(t, "a-1", d.Handles()["a"])

	report, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-14"), "second")
	require.True(t, ok)
	assert.Equal(t, []string{"a:send:a-1", "a:delete:a-1", "a:send:a-2"}, log.ops)
	assert.Equal(t, "a-2", d.Handles()["a"])
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, "|ℹ️ second", a.texts[1])
}

func TestAnnounce_DeleteFailureStillSends(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()

	_, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-13"), "first")
	require.True(t, ok)

	a.deleteErr = errors.New("missing permissions")
	report, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-14"), "second")
	require.True(t, ok)
	require.Len(t, report, 2)
	assert.Equal(t, KindDeleteFailed, report[0].Kind)
	assert.Equal(t, KindOK, report[1].Kind)
	assert.Equal(t, "a-2", d.Handles()["a"])
}

func TestAnnounce_SendFailureKeepsOldHandle(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()

	_, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-13"), "first")
	require.True(t, ok)

	a.sendErr = errors.New("timeout")
	report, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-14"), "second")
	require.True(t, ok)
	assert.Equal(t, KindSendFailed, report[1].Kind)
	assert.Equal(t, "a-1", d.Handles()["a"])
}

func TestAnnounce_DedupSameTypeSameDay(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()

	_, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-14"), "x")
	require.True(t, ok)
	assert.True(t, d.Seen(closing("2026-10-14").Key()))

	report, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-14"), "x")
	assert.False(t, ok)
	assert.Nil(t, report)
	assert.Len(t, log.ops, 1)

	// Same type on a new day and a new type on the same day both fire.
	_, ok = d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-15"), "x")
	assert.True(t, ok)
	midnight := model.AnnouncementEvent{Type: model.EventMidnightReopen, DateKey: "2026-10-15"}
	_, ok = d.Announce(ctx, []notifier.Destination{a}, midnight, "y")
	assert.True(t, ok)

	last, ok := d.LastEvent()
	require.True(t, ok)
	assert.Equal(t, midnight.Key(), last)
}

func TestAnnounce_ResetOnlyDeletes(t *testing.T) {
	log := &opLog{}
	a := &fakeDest{name: "a", log: log}
	b := &fakeDest{name: "b", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()

	_, ok := d.Announce(ctx, []notifier.Destination{a}, closing("2026-10-13"), "first")
	require.True(t, ok)

	reset := model.AnnouncementEvent{Type: model.EventMarketOpenReset, DateKey: "2026-10-14"}
	report, ok := d.Announce(ctx, []notifier.Destination{a, b}, reset, "")
	require.True(t, ok)
	require.Len(t, report, 1)
	assert.Equal(t, OpDelete, report[0].Op)
	assert.Equal(t, []string{"a:send:a-1", "a:delete:a-1"}, log.ops)
	assert.Equal(t, 0, report.Sent())
}

func TestAnnounce_SharedNameKeepsSeparateHandles(t *testing.T) {
	log := &opLog{}
	// Two guilds with the same name, each with its own signals channel.
	a := &fakeDest{id: "discord:c1", name: "discord:Trading#bobbypro-signals", log: log}
	b := &fakeDest{id: "discord:c2", name: "discord:Trading#bobbypro-signals", log: log}
	d := New(zerolog.Nop(), nil)
	ctx := context.Background()
	dests := []notifier.Destination{a, b}

	_, ok := d.Announce(ctx, dests, closing("2026-10-13"), "first")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"discord:c1": "discord:c1-1", "discord:c2": "discord:c2-1"}, d.Handles())

	_, ok = d.Announce(ctx, dests, closing("2026-10-14"), "second")
	require.True(t, ok)
	assert.Equal(t, []string{
		"discord:c1:send:discord:c1-1",
		"discord:c2:send:discord:c2-1",
		"discord:c1:delete:discord:c1-1",
		"discord:c1:send:discord:c1-2",
		"discord:c2:delete:discord:c2-1",
		"discord:c2:send:discord:c2-2",
	}, log.ops)
	assert.Equal(t, map[string]string{"discord:c1": "discord:c1-2", "discord:c2": "discord:c2-2"}, d.Handles())
}
