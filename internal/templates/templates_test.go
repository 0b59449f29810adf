package templates

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalRelay/internal/model"
	"SignalRelay/internal/rowstore"
)

func TestLoad_SeedsDefaultsOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	rows := rowstore.NewMemoryStore()
	s := NewStore(rows, zerolog.Nop())

	set, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults[model.EventWeekend], set.For(model.EventWeekend))

	stored, err := rows.ReadAll(ctx, Table)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "closing", stored[0].String(ColType))
	assert.Equal(t, "midnight", stored[1].String(ColType))
	assert.Equal(t, "weekend", stored[2].String(ColType))
}

func TestLoad_UsesStoredAndHealsMissing(t *testing.T) {
	ctx := context.Background()
	rows := rowstore.NewMemoryStore()
	require.NoError(t, rows.EnsureTable(ctx, Table, Headers))
	require.NoError(t, rows.Append(ctx, Table,
		map[string]any{ColType: "closing", ColMessage: "Closed until {nextBusinessDay}"},
		map[string]any{ColType: "unknown", ColMessage: "ignored"},
	))
	s := NewStore(rows, zerolog.Nop())

	set, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Closed until {nextBusinessDay}", set.For(model.EventMiddayClose))
	assert.Equal(t, Defaults[model.EventMidnightReopen], set.For(model.EventMidnightReopen))

	stored, err := rows.ReadAll(ctx, Table)
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	// A second load finds everything and writes nothing.
	_, err = s.Load(ctx)
	require.NoError(t, err)
	stored, err = rows.ReadAll(ctx, Table)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestLoad_ReflectsExternalEdits(t *testing.T) {
	ctx := context.Background()
	rows := rowstore.NewMemoryStore()
	s := NewStore(rows, zerolog.Nop())

	_, err := s.Load(ctx)
	require.NoError(t, err)

	stored, err := rows.ReadAll(ctx, Table)
	require.NoError(t, err)
	require.NoError(t, rows.Update(ctx, Table, stored[2].ID, ColMessage, "Gone fishing"))

	set, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Gone fishing", set.For(model.EventWeekend))
}
