// Package ledger provides an append-only history of acquisition events.
// Every entry carries the id of the acquisition run that produced it.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventAcquisitionStarted EventType = "acquisition_started"
	EventAcquisitionStopped EventType = "acquisition_stopped"
	EventSampleWritten      EventType = "sample_written"
	EventSampleFailed       EventType = "sample_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventType EventType
	Timestamp time.Time
	Payload   map[string]any
	RunID     string
	LogDate   string // Daily log the event refers to, if any
}

// Ledger provides append-only event logging
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// New creates a new Ledger using the provided database connection.
// A fresh run id is generated for this process.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, runID: uuid.NewString(), now: time.Now}
}

// RunID returns the id stamped on entries appended by this ledger
func (l *Ledger) RunID() string {
	return l.runID
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, payload map[string]any) error {
	return l.AppendForDate(eventType, civil.Date{}, payload)
}

// AppendForDate adds a new event that refers to the daily log of date
func (l *Ledger) AppendForDate(eventType EventType, date civil.Date, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	var logDate string
	if !date.IsZero() {
		logDate = date.String()
	}

	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, payload, run_id, log_date) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), l.now().UTC().Unix(), string(payloadJSON), l.runID, logDate,
	)
	return err
}

// CountForDate returns the number of entries of a type for one daily log
func (l *Ledger) CountForDate(eventType EventType, date civil.Date) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM event_ledger
		WHERE event_type = ? AND log_date = ?
	`, string(eventType), date.String()).Scan(&n)
	return n, err
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, run_id, log_date
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByTimeRange returns entries within a time range
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, run_id, log_date
		FROM event_ledger
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.Unix(), end.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var runID, logDate sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &payloadStr, &runID, &logDate,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if runID.Valid {
			entry.RunID = runID.String
		}
		if logDate.Valid {
			entry.LogDate = logDate.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
