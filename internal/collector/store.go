package collector

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/earshot-dev/earshot/internal/report"
)

// Store persists a run's events in SQLite, one row per event in
// arrival order.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	lastSeq uint64
}

// OpenStore opens or creates an event store at the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.loadLastSeq(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq         INTEGER PRIMARY KEY,
			ts          TEXT NOT NULL,
			kind        TEXT NOT NULL,
			pid         INTEGER NOT NULL,
			ppid        INTEGER NOT NULL,
			command     TEXT NOT NULL,
			args        TEXT NOT NULL,
			working_dir TEXT NOT NULL,
			exit_code   INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_pid ON events(pid);
	`)
	return err
}

func (s *Store) loadLastSeq() error {
	row := s.db.QueryRow(`SELECT seq FROM events ORDER BY seq DESC LIMIT 1`)
	var seq uint64
	err := row.Scan(&seq)
	if err == sql.ErrNoRows {
		return nil // Empty store
	}
	if err != nil {
		return fmt.Errorf("loading last sequence: %w", err)
	}
	s.lastSeq = seq
	return nil
}

// Append assigns the next sequence number and stores the event. A zero
// timestamp is stamped on arrival.
func (s *Store) Append(ev report.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	args, err := json.Marshal(ev.Args)
	if err != nil {
		return 0, fmt.Errorf("marshaling args: %w", err)
	}

	var exit any
	if ev.ExitCode != nil {
		exit = *ev.ExitCode
	}

	_, err = s.db.Exec(`
		INSERT INTO events (seq, ts, kind, pid, ppid, command, args, working_dir, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.lastSeq+1, ev.Timestamp.Format(time.RFC3339Nano),
		string(ev.Kind), ev.PID, ev.PPID, ev.Command, string(args), ev.WorkingDir, exit)
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}

	s.lastSeq++
	return s.lastSeq, nil
}

// Events returns all stored events in sequence order.
func (s *Store) Events() ([]report.Event, error) {
	rows, err := s.db.Query(`
		SELECT ts, kind, pid, ppid, command, args, working_dir, exit_code
		FROM events ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []report.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *Store) Count() (uint64, error) {
	var count uint64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEvent(rows *sql.Rows) (report.Event, error) {
	var ev report.Event
	var tsStr, kind, argsStr string
	var exit sql.NullInt64
	err := rows.Scan(&tsStr, &kind, &ev.PID, &ev.PPID, &ev.Command, &argsStr, &ev.WorkingDir, &exit)
	if err != nil {
		return report.Event{}, fmt.Errorf("scanning event: %w", err)
	}

	ev.Timestamp, _ = time.Parse(time.RFC3339Nano, tsStr)
	ev.Kind = report.Kind(kind)
	if err := json.Unmarshal([]byte(argsStr), &ev.Args); err != nil {
		return report.Event{}, fmt.Errorf("unmarshaling args: %w", err)
	}
	if exit.Valid {
		code := int(exit.Int64)
		ev.ExitCode = &code
	}
	return ev, nil
}
