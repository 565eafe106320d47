package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event is a persisted vehicle event.
type Event struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Kind         string    `json:"kind"`
	Count        int       `json:"count"`
	SnapshotPath string    `json:"snapshot,omitempty"`
	Notified     bool      `json:"notified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EventRepository provides operations on events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event. An empty ID or zero CreatedAt is filled in.
// Times are stored in UTC so that text comparison orders them.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, session_id, kind, count, snapshot_path, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Kind, e.Count, e.SnapshotPath, e.Notified, e.CreatedAt.UTC(),
	)
	return err
}

// MarkNotified records that at least one notifier accepted the event.
func (r *EventRepository) MarkNotified(id string) error {
	result, err := r.db.Exec(`UPDATE events SET notified = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns up to limit events, newest first.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, count, snapshot_path, notified, created_at
		 FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Count, &e.SnapshotPath, &e.Notified, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CountSince returns how many events were created at or after t.
func (r *EventRepository) CountSince(t time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE created_at >= ?`, t.UTC()).Scan(&n)
	return n, err
}
