package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cdlconv/internal/service"
)

// Record is one persisted conversion.
type Record struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Dialect    string    `json:"dialect"`
	Rewritten  string    `json:"rewritten"`
	ErrorCount int       `json:"error_count"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows a List call. Zero values mean "no filter".
type Filter struct {
	OnlyFailed bool // error_count > 0
	Limit      int
	Offset     int
}

const defaultListLimit = 50

// Store reads and writes conversion records.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one conversion entry.
func (s *Store) Record(ctx context.Context, entry service.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (query, dialect, rewritten, error_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Query, entry.Dialect, entry.Rewritten, entry.ErrorCount,
		entry.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// List returns records newest first, with the total count before paging.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, int64, error) {
	where := ""
	if filter.OnlyFailed {
		where = " WHERE error_count > 0"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversions"+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, dialect, rewritten, error_count, duration_ms, created_at
		 FROM conversions`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Query, &r.Dialect, &r.Rewritten,
			&r.ErrorCount, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Compile-time check that Store satisfies the recorder contract.
var _ service.HistoryRecorder = (*Store)(nil)
