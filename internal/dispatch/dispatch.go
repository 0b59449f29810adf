// Package dispatch fans formatted messages out to destinations, keeps the
// last status message per destination so it can be replaced, and remembers
// the last announcement so it is not repeated within a day.
package dispatch

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"SignalRelay/internal/metrics"
	"SignalRelay/internal/model"
	"SignalRelay/internal/notifier"
)

// Kind classifies a per-destination outcome.
type Kind string

const (
	KindOK           Kind = "ok"
	KindSendFailed   Kind = "send-failed"
	KindDeleteFailed Kind = "delete-failed"
)

type Op string

const (
	OpSend   Op = "send"
	OpDelete Op = "delete"
)

// Result is the outcome of one operation against one destination.
type Result struct {
	Destination string
	Op          Op
	MessageID   string
	Kind        Kind
	Err         error
}

// Report aggregates the results of one fan-out.
type Report []Result

// Sent counts successful sends.
func (r Report) Sent() int {
	n := 0
	for _, res := range r {
		if res.Op == OpSend && res.Kind == KindOK {
			n++
		}
	}
	return n
}

// Failed counts failed operations of any kind.
func (r Report) Failed() int {
	n := 0
	for _, res := range r {
		if res.Kind != KindOK {
			n++
		}
	}
	return n
}

// Dispatcher owns the in-memory, process-lifetime delivery state.
type Dispatcher struct {
	log     zerolog.Logger
	metrics *metrics.Recorder

	// announceMu serialises announcements so a handle is never raced by an
	// overlapping delete for the same destination.
	announceMu sync.Mutex

	mu      sync.RWMutex
	handles map[string]string
	last    *model.EventKey
}

func New(log zerolog.Logger, rec *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		log:     log.With().Str("component", "dispatch").Logger(),
		metrics: rec,
		handles: make(map[string]string),
	}
}

// SendSignal posts the signal and its disclaimer to every destination. A
// failure on one destination never stops the others.
func (d *Dispatcher) SendSignal(ctx context.Context, dests []notifier.Destination, sig *model.Signal) Report {
	type rendered struct{ text, disclaimer string }
	byMarkup := make(map[notifier.Markup]rendered)

	report := make(Report, 0, len(dests))
	for _, dest := range dests {
		m := dest.Markup()
		r, ok := byMarkup[m]
		if !ok {
			r = rendered{text: notifier.FormatSignal(sig, m), disclaimer: notifier.FormatDisclaimer(m)}
			byMarkup[m] = r
		}

		id, err := dest.SendRich(ctx, r.text, notifier.Embed{Description: r.disclaimer, Color: notifier.ColorDisclaimer})
		res := d.result(dest, OpSend, id, err)
		d.metrics.RecordDelivery("signal", res.Destination, string(res.Kind))
		report = append(report, res)
	}
	return report
}

// Seen reports whether key matches the last dispatched announcement.
func (d *Dispatcher) Seen(key model.EventKey) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last != nil && *d.last == key
}

// Announce replaces the status message on every destination: the previous
// message is deleted (failures ignored), then the new text is posted and the
// handle updated only if the post succeeds. A market-open reset deletes
// without posting. Returns false without touching anything if ev was already
// dispatched today.
func (d *Dispatcher) Announce(ctx context.Context, dests []notifier.Destination, ev model.AnnouncementEvent, text string) (Report, bool) {
	d.announceMu.Lock()
	defer d.announceMu.Unlock()

	if d.Seen(ev.Key()) {
		return nil, false
	}

	var report Report
	for _, dest := range dests {
		handleKey := dest.ID()

		d.mu.RLock()
		prev, hasPrev := d.handles[handleKey]
		d.mu.RUnlock()

		if hasPrev {
			err := dest.Delete(ctx, prev)
			report = append(report, d.result(dest, OpDelete, prev, err))
		}

		if !ev.Type.HasMessage() {
			continue
		}

		m := dest.Markup()
		id, err := dest.SendRich(ctx, "", notifier.Embed{
			Description: notifier.FormatAnnouncement(text, m),
			Color:       notifier.ColorAnnouncement,
		})
		res := d.result(dest, OpSend, id, err)
		report = append(report, res)
		d.metrics.RecordDelivery(string(ev.Type), res.Destination, string(res.Kind))
		if err != nil {
			continue
		}

		d.mu.Lock()
		d.handles[handleKey] = id
		d.mu.Unlock()
	}

	key := ev.Key()
	d.mu.Lock()
	d.last = &key
	d.mu.Unlock()
	d.metrics.RecordAnnouncement(string(ev.Type))

	return report, true
}

// LastEvent returns the last dispatched announcement key.
func (d *Dispatcher) LastEvent() (model.EventKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return model.EventKey{}, false
	}
	return *d.last, true
}

// Handles returns a copy of the destination ID to status-message map.
func (d *Dispatcher) Handles() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.handles)
}

func (d *Dispatcher) result(dest notifier.Destination, op Op, id string, err error) Result {
	res := Result{Destination: dest.Name(), Op: op, MessageID: id, Kind: KindOK, Err: err}
	if err == nil {
		return res
	}
	if op == OpDelete {
		res.Kind = KindDeleteFailed
	} else {
		res.Kind = KindSendFailed
	}
	d.log.Error().Err(err).Str("destination", res.Destination).Str("op", string(op)).Msg("destination operation failed")
	return res
}
