package rowstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MemoryStore is an in-process Store used for tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*memTable
	nextID int64
}

type memTable struct {
	headers []string
	rows    []Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable), nextID: 1}
}

func (m *MemoryStore) EnsureTable(_ context.Context, table string, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		m.tables[table] = &memTable{headers: append([]string(nil), headers...)}
		return nil
	}
	have := make(map[string]struct{}, len(t.headers))
	for _, h := range t.headers {
		have[h] = struct{}{}
	}
	for _, h := range headers {
		if _, ok := have[h]; !ok {
			t.headers = append(t.headers, h)
		}
	}
	return nil
}

func (m *MemoryStore) ReadAll(_ context.Context, table string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = Row{ID: r.ID, Fields: maps.Clone(r.Fields)}
	}
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, table string, rows ...map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	for _, r := range rows {
		t.rows = append(t.rows, Row{ID: m.nextID, Fields: maps.Clone(r)})
		m.nextID++
	}
	return nil
}

func (m *MemoryStore) Update(_ context.Context, table string, id int64, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	for i := range t.rows {
		if t.rows[i].ID == id {
			if t.rows[i].Fields == nil {
				t.rows[i].Fields = make(map[string]any)
			}
			t.rows[i].Fields[field] = value
			return nil
		}
	}
	return ErrRowNotFound
}

// Delete removes a row. It is a test helper that simulates a producer
// removing a row; the engine never deletes.
func (m *MemoryStore) Delete(table string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return
	}
	for i := range t.rows {
		if t.rows[i].ID == id {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return
		}
	}
}

func (m *MemoryStore) Close() error { return nil }
