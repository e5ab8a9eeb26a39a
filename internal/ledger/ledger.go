// Package ledger keeps an append-only history of applied light commands.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/eventbus"
)

// Entry represents a single applied command
type Entry struct {
	ID        int64
	EventID   string
	Timestamp time.Time
	LightID   uint32
	DeviceID  int
	Source    string
	Payload   map[string]any
}

// Ledger provides append-only command logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record appends the state carried by a light.changed event and returns the
// generated event id.
func (l *Ledger) Record(e eventbus.Event) (string, error) {
	lightID, _ := e.Data["light_id"].(uint32)
	deviceID, _ := e.Data["device_id"].(int)
	source, _ := e.Data["source"].(string)

	payloadJSON, err := json.Marshal(e.Data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	ts := e.Time
	if ts.IsZero() {
		ts = l.now()
	}

	eventID := uuid.NewString()
	_, err = l.db.Exec(
		`INSERT INTO command_ledger (event_id, timestamp, light_id, device_id, source, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, ts.UTC().UnixMilli(), int64(lightID), deviceID, source, string(payloadJSON),
	)
	if err != nil {
		return "", err
	}
	return eventID, nil
}

// HandleEvent is the event bus subscriber.
func (l *Ledger) HandleEvent(e eventbus.Event) {
	if _, err := l.Record(e); err != nil {
		log.Error().Err(err).Msg("Failed to record command in ledger")
	}
}

// Recent returns the newest entries first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, timestamp, light_id, device_id, source, payload
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ForLight returns the newest entries of one light first
func (l *Ledger) ForLight(lightID uint32, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, timestamp, light_id, device_id, source, payload
		FROM command_ledger
		WHERE light_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, int64(lightID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunCleanup applies the retention policy every interval until ctx is done.
func (l *Ledger) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Ledger cleanup completed")
			}
		}
	}
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, source sql.NullString
		var timestamp, lightID int64

		err := rows.Scan(&entry.ID, &entry.EventID, &timestamp, &lightID, &entry.DeviceID, &source, &payloadStr)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		entry.LightID = uint32(lightID)
		if source.Valid {
			entry.Source = source.String
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
