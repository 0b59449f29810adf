// Package signals reads ready-and-unsent rows from the Signals table and
// marks them sent once they have been distributed.
package signals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SignalRelay/internal/model"
	"SignalRelay/internal/rowstore"
)

const Table = "Signals"

// Column headers of the Signals table.
const (
	ColReady                 = "Ready"
	ColTrend                 = "Trend"
	ColTrendScore            = "Trend Score"
	ColTrendLockActivated    = "Trend Lock Activated"
	ColSecurities            = "Securities"
	ColMorningBreakerEntry   = "Morning Breaker Entry"
	ColStop                  = "Stop"
	ColEntry                 = "Entry"
	ColTarget                = "Target"
	ColReverseSignalDetected = "Reverse Signal Detected"
	ColSent                  = "Sent"
)

var Headers = []string{
	ColReady,
	ColTrend,
	ColTrendScore,
	ColTrendLockActivated,
	ColSecurities,
	ColMorningBreakerEntry,
	ColStop,
	ColEntry,
	ColTarget,
	ColReverseSignalDetected,
	ColSent,
}

// Queue is the signal queue over a row store.
type Queue struct {
	store rowstore.Store
	log   zerolog.Logger

	mu    sync.Mutex
	setup bool
}

func NewQueue(store rowstore.Store, log zerolog.Logger) *Queue {
	return &Queue{
		store: store,
		log:   log.With().Str("component", "signals").Logger(),
	}
}

// Setup creates the Signals table and any missing header columns.
func (q *Queue) Setup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.setup {
		return nil
	}
	if err := q.store.EnsureTable(ctx, Table, Headers); err != nil {
		return fmt.Errorf("ensure signals table: %w", err)
	}
	q.setup = true
	return nil
}

// ListReady returns every row with Ready truthy and Sent not truthy, in store
// order. An empty result is not an error.
func (q *Queue) ListReady(ctx context.Context) ([]model.QueuedSignal, error) {
	if err := q.Setup(ctx); err != nil {
		return nil, err
	}
	rows, err := q.store.ReadAll(ctx, Table)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}

	var ready []model.QueuedSignal
	for _, row := range rows {
		if !row.Truthy(ColReady) || row.Truthy(ColSent) {
			continue
		}
		ready = append(ready, model.QueuedSignal{Signal: parseRow(row, q.log), RowID: row.ID})
	}
	return ready, nil
}

// MarkSent sets Sent=TRUE on the row. A row that no longer exists is treated
// as already handled.
func (q *Queue) MarkSent(ctx context.Context, rowID int64) error {
	err := q.store.Update(ctx, Table, rowID, ColSent, true)
	if errors.Is(err, rowstore.ErrRowNotFound) {
		q.log.Debug().Int64("row", rowID).Msg("row gone before mark sent")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark signal row %d sent: %w", rowID, err)
	}
	return nil
}

// Enqueue appends a ready, unsent signal row.
func (q *Queue) Enqueue(ctx context.Context, sig model.Signal) error {
	if err := q.Setup(ctx); err != nil {
		return err
	}
	row := map[string]any{
		ColReady:                 true,
		ColTrend:                 sig.Trend,
		ColTrendScore:            sig.TrendScore.String(),
		ColTrendLockActivated:    sig.TrendLockActivated,
		ColSecurities:            sig.Securities,
		ColMorningBreakerEntry:   string(sig.MorningBreakerEntry),
		ColReverseSignalDetected: string(sig.ReverseSignalDetected),
		ColSent:                  false,
	}
	if sig.BreakerOn() {
		row[ColStop] = sig.Stop
		row[ColEntry] = sig.Entry
		row[ColTarget] = sig.Target
	}
	if err := q.store.Append(ctx, Table, row); err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// parseRow is best-effort: missing text fields stay empty and an unparsable
// Trend Score becomes zero.
func parseRow(row rowstore.Row, log zerolog.Logger) model.Signal {
	sig := model.Signal{
		Trend:                 row.String(ColTrend),
		TrendScore:            parseScore(row.Get(ColTrendScore)),
		TrendLockActivated:    row.String(ColTrendLockActivated),
		Securities:            row.String(ColSecurities),
		MorningBreakerEntry:   model.MorningBreaker(normalize(row.String(ColMorningBreakerEntry))),
		ReverseSignalDetected: model.ReverseSignal(normalize(row.String(ColReverseSignalDetected))),
		Ready:                 true,
	}
	if sig.BreakerOn() {
		sig.Stop = row.String(ColStop)
		sig.Entry = row.String(ColEntry)
		sig.Target = row.String(ColTarget)
	}
	if sig.Trend == "" || sig.Securities == "" {
		log.Warn().Int64("row", row.ID).Msg("signal row missing trend or securities")
	}
	return sig
}

func parseScore(v any) decimal.Decimal {
	switch t := v.(type) {
	case int64:
		return decimal.NewFromInt(t)
	case float64:
		return decimal.NewFromFloat(t)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(rowstore.Text(v)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
