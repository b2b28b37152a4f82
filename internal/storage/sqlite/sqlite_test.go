package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juwel66/eventreg/internal/storage"
	"github.com/juwel66/eventreg/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(types.DateLayout, s)
	require.NoError(t, err)
	return d
}

func mustEvent(t *testing.T, s *SQLite, title, date, desc string, capacity int) types.Event {
	t.Helper()
	e, err := s.CreateEvent(context.Background(), types.Event{
		Title:       title,
		Description: desc,
		Date:        day(t, date),
		Capacity:    capacity,
	})
	require.NoError(t, err)
	return e
}

func countRegistrations(t *testing.T, s *SQLite, eventID int64) int {
	t.Helper()
	var n int
	err := s.Db.QueryRow("SELECT COUNT(*) FROM registrations WHERE event_id = ?", eventID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	version, err := Migrate(s.Db)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	// The mobile column and the unique index exist after the upgrade path.
	var cols int
	require.NoError(t, s.Db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('registrations') WHERE name = 'mobile'").Scan(&cols))
	assert.Equal(t, 1, cols)

	var idx int
	require.NoError(t, s.Db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'ux_registrations_event_student'").Scan(&idx))
	assert.Equal(t, 1, idx)
}

func TestMigrateBackfillsCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open(driverName, DSN(path))
	require.NoError(t, err)
	defer db.Close()

	// A database created before the mobile column and the seat counter.
	m, err := newMigrator(db)
	require.NoError(t, err)
	require.NoError(t, m.Migrate(1))

	_, err = db.Exec(`INSERT INTO events (title, date, description, capacity) VALUES ('Old', '2024-01-01', 'd', 5)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO registrations (event_id, student_id, name) VALUES (1, 's1', 'A'), (1, 's2', 'B')`)
	require.NoError(t, err)

	version, err := Migrate(db)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	s := &SQLite{Db: db}
	e, err := s.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Registered)

	regs, err := s.Registrations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "", regs[0].Mobile)
}

func TestCreateAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := mustEvent(t, s, "Hackathon", "2025-03-14", "Build things", 40)
	assert.NotZero(t, e.ID)
	assert.Equal(t, "2025-03-14", e.DateString())
	assert.Equal(t, 40, e.Capacity)
	assert.Equal(t, 0, e.Registered)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.GetEvent(ctx, e.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventIDsAreNotReused(t *testing.T) {
	s := newTestStore(t)

	a := mustEvent(t, s, "A", "2025-01-01", "a", 1)
	_, err := s.Db.Exec("DELETE FROM events WHERE id = ?", a.ID)
	require.NoError(t, err)
	b := mustEvent(t, s, "B", "2025-01-01", "b", 1)

	assert.Greater(t, b.ID, a.ID)
}

func TestListEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEvent(t, s, "Spring Fest", "2025-04-10", "Music and food", 100)
	mustEvent(t, s, "Career Fair", "2025-02-01", "Meet employers", 50)
	mustEvent(t, s, "Robotics Workshop", "2025-03-05", "Hands-on MUSIC robots", 20)
	mustEvent(t, s, "Café Évening", "2025-05-20", "Poetry night", 30)

	titles := func(events []types.Event) []string {
		out := make([]string, 0, len(events))
		for _, e := range events {
			out = append(out, e.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		filter types.EventFilter
		want   []string
	}{
		{
			name: "no filter is date ascending",
			want: []string{"Career Fair", "Robotics Workshop", "Spring Fest", "Café Évening"},
		},
		{
			name:   "text matches title or description case-insensitively",
			filter: types.EventFilter{Query: "music"},
			want:   []string{"Robotics Workshop", "Spring Fest"},
		},
		{
			name:   "text folds non-ASCII",
			filter: types.EventFilter{Query: "évening"},
			want:   []string{"Café Évening"},
		},
		{
			name:   "wildcard characters are literal",
			filter: types.EventFilter{Query: "%"},
			want:   []string{},
		},
		{
			name:   "inclusive range",
			filter: types.EventFilter{Start: day(t, "2025-02-01"), End: day(t, "2025-04-10")},
			want:   []string{"Career Fair", "Robotics Workshop", "Spring Fest"},
		},
		{
			name:   "start only",
			filter: types.EventFilter{Start: day(t, "2025-03-06")},
			want:   []string{"Spring Fest", "Café Évening"},
		},
		{
			name:   "end only",
			filter: types.EventFilter{End: day(t, "2025-03-05")},
			want:   []string{"Career Fair", "Robotics Workshop"},
		},
		{
			name:   "text and range combined",
			filter: types.EventFilter{Query: "MUSIC", End: day(t, "2025-03-31")},
			want:   []string{"Robotics Workshop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEvents(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestLatestEvents(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 8; i++ {
		mustEvent(t, s, fmt.Sprintf("E%d", i), "2025-01-01", "d", 1)
	}

	got, err := s.LatestEvents(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "E7", got[0].Title)
	assert.Equal(t, "E2", got[5].Title)
}

func TestRegisterScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := mustEvent(t, s, "Seminar", "2025-06-01", "One seat", 1)

	id, err := s.Register(ctx, types.Registration{EventID: e.ID, StudentID: "S1", Name: "Ann", Mobile: "555"})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, 1, countRegistrations(t, s, e.ID))

	_, err = s.Register(ctx, types.Registration{EventID: e.ID, StudentID: "S1", Name: "Ann", Mobile: "555"})
	assert.ErrorIs(t, err, storage.ErrDuplicateRegistration)
	assert.Equal(t, 1, countRegistrations(t, s, e.ID))

	_, err = s.Register(ctx, types.Registration{EventID: e.ID, StudentID: "S2", Name: "Bob", Mobile: "556"})
	assert.ErrorIs(t, err, storage.ErrCapacityExceeded)
	assert.Equal(t, 1, countRegistrations(t, s, e.ID))

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Registered)
}

func TestRegisterUnknownEvent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(context.Background(), types.Registration{EventID: 42, StudentID: "S1", Name: "Ann", Mobile: "555"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var n int
	require.NoError(t, s.Db.QueryRow("SELECT COUNT(*) FROM registrations").Scan(&n))
	assert.Zero(t, n)
}

func TestRegisterUniqueIndexBacksDuplicateCheck(t *testing.T) {
	s := newTestStore(t)
	e := mustEvent(t, s, "Seminar", "2025-06-01", "d", 5)

	_, err := s.Db.Exec(
		"INSERT INTO registrations (event_id, student_id, name, mobile) VALUES (?, 'S1', 'Ann', '555')", e.ID)
	require.NoError(t, err)

	_, err = s.Db.Exec(
		"INSERT INTO registrations (event_id, student_id, name, mobile) VALUES (?, 'S1', 'Ann', '555')", e.ID)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

// TestRegisterConcurrent fires many registrations at an event with fewer
// seats and checks the database never hands out more than capacity.
func TestRegisterConcurrent(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		requests int
	}{
		{name: "two students one seat", capacity: 1, requests: 2},
		{name: "fifty students five seats", capacity: 5, requests: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			e := mustEvent(t, s, "Popular", "2025-09-09", "d", tt.capacity)

			var (
				success, full, other int32
				wg                   sync.WaitGroup
			)
			wg.Add(tt.requests)
			for i := 0; i < tt.requests; i++ {
				go func(i int) {
					defer wg.Done()
					_, err := s.Register(ctx, types.Registration{
						EventID:   e.ID,
						StudentID: fmt.Sprintf("S%d", i),
						Name:      "n",
						Mobile:    "m",
					})
					switch {
					case err == nil:
						atomic.AddInt32(&success, 1)
					case errors.Is(err, storage.ErrCapacityExceeded):
						atomic.AddInt32(&full, 1)
					default:
						t.Logf("request %d: %v", i, err)
						atomic.AddInt32(&other, 1)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(tt.capacity), success)
			assert.Equal(t, int32(tt.requests-tt.capacity), full)
			assert.Zero(t, other)
			assert.Equal(t, tt.capacity, countRegistrations(t, s, e.ID))
		})
	}
}

func TestRegisterConcurrentSameStudent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := mustEvent(t, s, "Popular", "2025-09-09", "d", 10)

	var (
		success, dup int32
		wg           sync.WaitGroup
	)
	const n = 20
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, types.Registration{EventID: e.ID, StudentID: "S1", Name: "n", Mobile: "m"})
			if err == nil {
				atomic.AddInt32(&success, 1)
			} else if errors.Is(err, storage.ErrDuplicateRegistration) {
				atomic.AddInt32(&dup, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success)
	assert.Equal(t, int32(n-1), dup)
	assert.Equal(t, 1, countRegistrations(t, s, e.ID))
}

func TestReporting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEvent(t, s, "A", "2025-01-02", "a", 3)
	b := mustEvent(t, s, "B", "2025-01-01", "b", 2)

	for _, sid := range []string{"S1", "S2"} {
		_, err := s.Register(ctx, types.Registration{EventID: a.ID, StudentID: sid, Name: "n", Mobile: "m"})
		require.NoError(t, err)
	}

	counts, err := s.RegistrationCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, types.EventCount{ID: a.ID, Title: "A", Date: day(t, "2025-01-02"), Count: 2, Capacity: 3}, counts[0])
	assert.Equal(t, types.EventCount{ID: b.ID, Title: "B", Date: day(t, "2025-01-01"), Count: 0, Capacity: 2}, counts[1])

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Stats{Events: 2, Registrations: 2}, st)

	regs, err := s.Registrations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "S1", regs[0].StudentID)
	assert.Equal(t, "S2", regs[1].StudentID)

	regs, err = s.Registrations(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)
}
