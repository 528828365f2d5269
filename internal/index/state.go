package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ariadna/internal/models"
)

// MaxRecent bounds the recent-threads list.
const MaxRecent = 10

// TouchRecent moves location to the front of the recent-threads list and
// drops entries beyond limit (capped at MaxRecent).
func (db *DB) TouchRecent(location, title string, limit int) error {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO recent_threads (location, title, opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			title     = excluded.title,
			opened_at = excluded.opened_at
	`, location, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: touch recent: %w", err)
	}
	_, err = tx.Exec(`
		DELETE FROM recent_threads
		WHERE location NOT IN (
			SELECT location FROM recent_threads ORDER BY opened_at DESC, rowid DESC LIMIT ?
		)
	`, limit)
	if err != nil {
		return fmt.Errorf("index: trim recent: %w", err)
	}
	return tx.Commit()
}

// Recent returns the recent-threads list, most recent first.
func (db *DB) Recent() ([]models.RecentThread, error) {
	rows, err := db.conn.Query(`
		SELECT location, title, opened_at FROM recent_threads
		ORDER BY opened_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: recent: %w", err)
	}
	defer rows.Close()

	out := []models.RecentThread{}
	for rows.Next() {
		var r models.RecentThread
		if err := rows.Scan(&r.Location, &r.Title, &r.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForgetRecent drops location from the recent-threads list.
func (db *DB) ForgetRecent(location string) error {
	if _, err := db.conn.Exec(`DELETE FROM recent_threads WHERE location = ?`, location); err != nil {
		return fmt.Errorf("index: forget recent: %w", err)
	}
	return nil
}

// GetState returns the value stored under key, or "" when unset.
func (db *DB) GetState(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get state: %w", err)
	}
	return v, nil
}

// SetState stores value under key. An empty value deletes the key.
func (db *DB) SetState(key, value string) error {
	var err error
	if value == "" {
		_, err = db.conn.Exec(`DELETE FROM session_state WHERE key = ?`, key)
	} else {
		_, err = db.conn.Exec(`
			INSERT INTO session_state (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
	}
	if err != nil {
		return fmt.Errorf("index: set state: %w", err)
	}
	return nil
}
