// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite stores everything in a single file on disk. Several server
// processes may share that file, so seat accounting is done inside
// BEGIN IMMEDIATE transactions (the write lock is taken before the first
// read) instead of with in-process locks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/juwel66/eventreg/internal/storage"
	"github.com/juwel66/eventreg/internal/types"

	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with the application's SQL functions attached
// to every connection.
const driverName = "sqlite3_eventreg"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// contains_fold(haystack, needle) is a Unicode-aware,
			// case-insensitive substring test. SQLite's own LIKE only
			// folds ASCII.
			return conn.RegisterFunc("contains_fold", containsFold, true)
		},
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// DSN builds the connection string for the database file at path.
//
//	_txlock=immediate   every BeginTx issues BEGIN IMMEDIATE
//	_busy_timeout=5000  writers wait up to 5s for the lock instead of failing
//	_journal_mode=WAL   readers are not blocked by the writer
//	_foreign_keys=on    registrations.event_id must reference an event
func DSN(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

// New opens the SQLite database at path, applies pending migrations, and
// returns a ready-to-use *SQLite.
func New(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: ping: %w", err)
	}

	if _, err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

const eventColumns = "id, title, description, date, capacity, registered, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (types.Event, error) {
	var (
		e    types.Event
		date string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &date,
		&e.Capacity, &e.Registered, &e.CreatedAt); err != nil {
		return types.Event{}, err
	}
	d, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return types.Event{}, fmt.Errorf("event %d: bad date %q: %w", e.ID, date, err)
	}
	e.Date = d
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent inserts a new row into the events table.
func (s *SQLite) CreateEvent(ctx context.Context, e types.Event) (types.Event, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO events (title, description, date, capacity) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return types.Event{}, fmt.Errorf("CreateEvent: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, e.Title, e.Description, e.Date.Format(types.DateLayout), e.Capacity)
	if err != nil {
		return types.Event{}, fmt.Errorf("CreateEvent: exec: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return types.Event{}, fmt.Errorf("CreateEvent: last insert id: %w", err)
	}

	return s.GetEvent(ctx, id)
}

// GetEvent fetches exactly one event row matched by primary key.
func (s *SQLite) GetEvent(ctx context.Context, id int64) (types.Event, error) {
	row := s.Db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? LIMIT 1", id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, fmt.Errorf("GetEvent %d: %w", id, storage.ErrNotFound)
		}
		return types.Event{}, fmt.Errorf("GetEvent: scan: %w", err)
	}
	return e, nil
}

// ListEvents builds the WHERE clause from the filter. Dates are stored as
// fixed-width YYYY-MM-DD text, so string comparison is chronological.
func (s *SQLite) ListEvents(ctx context.Context, f types.EventFilter) ([]types.Event, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(contains_fold(title, ?) OR contains_fold(description, ?))")
		args = append(args, q, q)
	}
	if !f.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.Start.Format(types.DateLayout))
	}
	if !f.End.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.End.Format(types.DateLayout))
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: query: %w", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: scan: %w", err)
	}
	return events, nil
}

// LatestEvents returns the newest events by ID.
func (s *SQLite) LatestEvents(ctx context.Context, limit int) ([]types.Event, error) {
	rows, err := s.Db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("LatestEvents: query: %w", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("LatestEvents: scan: %w", err)
	}
	return events, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Register claims one seat in a single transaction.
//
// _txlock=immediate makes BeginTx take SQLite's write lock up front, so
// two attempts for the same event (from this process or another one on
// the same file) run one after the other. Inside the transaction:
//
//  1. the event must exist                          → ErrNotFound
//  2. the student must not hold a seat already      → ErrDuplicateRegistration
//  3. registered < capacity, bumped in one UPDATE   → ErrCapacityExceeded
//  4. the row is inserted; the unique index on
//     (event_id, student_id) backs step 2           → ErrDuplicateRegistration
//
// Any failure rolls back, so nothing is written.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Register(ctx context.Context, r types.Registration) (int64, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Register: begin: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", r.EventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("Register %d: %w", r.EventID, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("Register: lookup event: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = ? AND student_id = ?)",
		r.EventID, r.StudentID,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("Register: lookup registration: %w", err)
	}
	if exists {
		return 0, storage.ErrDuplicateRegistration
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE events SET registered = registered + 1 WHERE id = ? AND registered < capacity",
		r.EventID,
	)
	if err != nil {
		return 0, fmt.Errorf("Register: claim seat: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Register: rows affected: %w", err)
	}
	if claimed == 0 {
		return 0, storage.ErrCapacityExceeded
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO registrations (event_id, student_id, name, mobile) VALUES (?, ?, ?, ?)",
		r.EventID, r.StudentID, r.Name, r.Mobile,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrDuplicateRegistration
		}
		return 0, fmt.Errorf("Register: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("Register: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("Register: commit: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Registrations lists the registrants of one event.
func (s *SQLite) Registrations(ctx context.Context, eventID int64) ([]types.Registration, error) {
	rows, err := s.Db.QueryContext(ctx, `
		SELECT id, event_id, student_id, name, mobile, created_at
		FROM registrations
		WHERE event_id = ?
		ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("Registrations: query: %w", err)
	}
	defer rows.Close()

	regs := make([]types.Registration, 0)
	for rows.Next() {
		var r types.Registration
		if err := rows.Scan(&r.ID, &r.EventID, &r.StudentID, &r.Name, &r.Mobile, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("Registrations: scan row: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Registrations: rows iteration: %w", err)
	}
	return regs, nil
}

// RegistrationCounts counts the registration rows themselves rather than
// trusting events.registered.
func (s *SQLite) RegistrationCounts(ctx context.Context) ([]types.EventCount, error) {
	rows, err := s.Db.QueryContext(ctx, `
		SELECT e.id, e.title, e.date, e.capacity, COUNT(r.id)
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		GROUP BY e.id
		ORDER BY e.id`)
	if err != nil {
		return nil, fmt.Errorf("RegistrationCounts: query: %w", err)
	}
	defer rows.Close()

	counts := make([]types.EventCount, 0)
	for rows.Next() {
		var (
			c    types.EventCount
			date string
		)
		if err := rows.Scan(&c.ID, &c.Title, &date, &c.Capacity, &c.Count); err != nil {
			return nil, fmt.Errorf("RegistrationCounts: scan row: %w", err)
		}
		if c.Date, err = time.Parse(types.DateLayout, date); err != nil {
			return nil, fmt.Errorf("RegistrationCounts: event %d: bad date %q: %w", c.ID, date, err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RegistrationCounts: rows iteration: %w", err)
	}
	return counts, nil
}

// Stats returns the dashboard totals in one round trip.
func (s *SQLite) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	err := s.Db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM events), (SELECT COUNT(*) FROM registrations)",
	).Scan(&st.Events, &st.Registrations)
	if err != nil {
		return types.Stats{}, fmt.Errorf("Stats: scan: %w", err)
	}
	return st, nil
}
