package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps each table as a SQLite table whose columns are the header
// names. The rowid is the row identity. The database handle is opened lazily
// on first use and shared by every caller.
type SQLiteStore struct {
	path string
	log  zerolog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStore returns a store backed by the database at dbPath. Nothing is
// opened until the first operation.
func NewSQLiteStore(dbPath string, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		path: dbPath,
		log:  log.With().Str("component", "rowstore").Logger(),
	}
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	// Producers write into the same file from other processes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s.db = db
	s.log.Info().Str("path", s.path).Msg("sqlite row store opened")
	return db, nil
}

func (s *SQLiteStore) EnsureTable(ctx context.Context, table string, headers []string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = quoteIdent(h) + " TEXT"
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	existing, err := s.columns(ctx, db, table)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if _, ok := existing[h]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdent(table), quoteIdent(h))
		if _, err := db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, h, err)
		}
		s.log.Info().Str("table", table).Str("column", h).Msg("added missing column")
	}
	return nil
}

func (s *SQLiteStore) columns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context, table string) ([]Row, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT rowid, * FROM %s ORDER BY rowid", quoteIdent(table)))
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := Row{Fields: make(map[string]any, len(names)-1)}
		switch id := vals[0].(type) {
		case int64:
			row.ID = id
		default:
			return nil, fmt.Errorf("scan %s: unexpected rowid type %T", table, vals[0])
		}
		for i := 1; i < len(names); i++ {
			if b, ok := vals[i].([]byte); ok {
				row.Fields[names[i]] = string(b)
				continue
			}
			row.Fields[names[i]] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, table string, rows ...map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append %s: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range rows {
		cols := make([]string, 0, len(r))
		marks := make([]string, 0, len(r))
		args := make([]any, 0, len(r))
		for k, v := range r {
			cols = append(cols, quoteIdent(k))
			marks = append(marks, "?")
			args = append(args, storable(v))
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Update(ctx context.Context, table string, id int64, field string, value any) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s = ? WHERE rowid = ?", quoteIdent(table), quoteIdent(field))
	res, err := db.ExecContext(ctx, stmt, storable(value), id)
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", table, id, err)
	}
	if n == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	s.log.Info().Msg("closing sqlite row store")
	err := s.db.Close()
	s.db = nil
	return err
}

// storable converts booleans to the TRUE/FALSE text producers use.
func storable(v any) any {
	if b, ok := v.(bool); ok {
		return Text(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
