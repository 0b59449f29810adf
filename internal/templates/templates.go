// Package templates loads announcement templates from the Messages table,
// writing back defaults for any type the table is missing.
package templates

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"SignalRelay/internal/model"
	"SignalRelay/internal/rowstore"
)

const (
	Table      = "Messages"
	ColType    = "Type"
	ColMessage = "Message"
)

var Headers = []string{ColType, ColMessage}

// Defaults holds the template for every message-bearing announcement type.
var Defaults = Set{
	model.EventMiddayClose:    "Bobby Trend Score reopens at 9:30am ET on {nextBusinessDay}.",
	model.EventMidnightReopen: "Bobby Trend Score will open at 9:30am ET today.",
	model.EventWeekend:        "Bobby is resting, see you on Monday morning. Bobby Trend Score reopens at 9:30am ET on {nextBusinessDay}.",
}

// order fixes the row order used when seeding defaults.
var order = []model.EventType{model.EventMiddayClose, model.EventMidnightReopen, model.EventWeekend}

// Set maps an announcement type to its template.
type Set map[model.EventType]string

// For returns the template for t, falling back to the default.
func (s Set) For(t model.EventType) string {
	if tpl, ok := s[t]; ok && tpl != "" {
		return tpl
	}
	return Defaults[t]
}

// Store reads templates fresh on every Load so operators can edit the table
// while the bot runs.
type Store struct {
	rows rowstore.Store
	log  zerolog.Logger
}

func NewStore(rows rowstore.Store, log zerolog.Logger) *Store {
	return &Store{
		rows: rows,
		log:  log.With().Str("component", "templates").Logger(),
	}
}

// Load returns the current templates. Types missing from the table are
// appended with their default text before returning.
func (s *Store) Load(ctx context.Context) (Set, error) {
	if err := s.rows.EnsureTable(ctx, Table, Headers); err != nil {
		return nil, fmt.Errorf("ensure messages table: %w", err)
	}
	rows, err := s.rows.ReadAll(ctx, Table)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	set := make(Set, len(Defaults))
	for t, tpl := range Defaults {
		set[t] = tpl
	}
	found := make(map[model.EventType]bool, len(Defaults))
	for _, row := range rows {
		t := model.EventType(row.String(ColType))
		msg := row.String(ColMessage)
		if _, known := Defaults[t]; !known || msg == "" {
			continue
		}
		set[t] = msg
		found[t] = true
	}

	var missing []map[string]any
	for _, t := range order {
		if found[t] {
			continue
		}
		missing = append(missing, map[string]any{ColType: string(t), ColMessage: Defaults[t]})
	}
	if len(missing) > 0 {
		if err := s.rows.Append(ctx, Table, missing...); err != nil {
			return nil, fmt.Errorf("write default messages: %w", err)
		}
		s.log.Info().Int("count", len(missing)).Msg("restored default announcement templates")
	}
	return set, nil
}
