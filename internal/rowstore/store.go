// Package rowstore is the tabular store that external producers write signal
// rows into. Tables have named columns; rows are addressed by a stable id.
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrRowNotFound   = errors.New("rowstore: row not found")
	ErrTableNotFound = errors.New("rowstore: table not found")
	ErrClosed        = errors.New("rowstore: store closed")
)

// Row is a single table row keyed by column header.
type Row struct {
	ID     int64
	Fields map[string]any
}

// Get returns the raw value of a column, nil when absent.
func (r Row) Get(column string) any {
	return r.Fields[column]
}

// String returns a column value rendered as text.
func (r Row) String(column string) string {
	return Text(r.Fields[column])
}

// Truthy reports whether a column holds boolean true or the string "true" in
// any case.
func (r Row) Truthy(column string) bool {
	switch v := r.Fields[column].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	case []byte:
		return strings.EqualFold(strings.TrimSpace(string(v)), "true")
	default:
		return false
	}
}

// Store is a queryable, mutable row store.
type Store interface {
	// EnsureTable creates the table if needed and adds any missing columns.
	EnsureTable(ctx context.Context, table string, headers []string) error
	ReadAll(ctx context.Context, table string) ([]Row, error)
	Append(ctx context.Context, table string, rows ...map[string]any) error
	// Update sets one field of one row. Returns ErrRowNotFound if the row is gone.
	Update(ctx context.Context, table string, id int64, field string, value any) error
	Close() error
}

// Text renders a stored value as a string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
