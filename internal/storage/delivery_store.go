package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery is one send attempt made by a run
type Delivery struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Contact    string    `json:"contact"`
	DateType   string    `json:"date_type"`
	Rule       string    `json:"rule"`
	Recipients []string  `json:"recipients"`
	DryRun     bool      `json:"dry_run"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeliveryStore is an append-only log of send attempts
type DeliveryStore struct {
	db *DB
}

// NewDeliveryStore creates a delivery store
func NewDeliveryStore(db *DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// Record appends d, filling ID and CreatedAt when unset
func (s *DeliveryStore) Record(d *Delivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	recipients, err := json.Marshal(d.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}

	var errText sql.NullString
	if d.Error != "" {
		errText = sql.NullString{String: d.Error, Valid: true}
	}

	_, err = s.db.conn.Exec(`
		INSERT INTO deliveries (id, run_id, contact, date_type, rule, recipients, dry_run, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.RunID, d.Contact, d.DateType, d.Rule, string(recipients), d.DryRun, errText, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// ListRun returns the deliveries of a run in insertion order
func (s *DeliveryStore) ListRun(runID string) ([]Delivery, error) {
	return s.query(`
		SELECT id, run_id, contact, date_type, rule, recipients, dry_run, error, created_at
		FROM deliveries WHERE run_id = ? ORDER BY rowid
	`, runID)
}

// Recent returns the newest deliveries first
func (s *DeliveryStore) Recent(limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(`
		SELECT id, run_id, contact, date_type, rule, recipients, dry_run, error, created_at
		FROM deliveries ORDER BY rowid DESC LIMIT ?
	`, limit)
}

func (s *DeliveryStore) query(q string, args ...any) ([]Delivery, error) {
	rows, err := s.db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var recipients string
		var errText sql.NullString
		if err := rows.Scan(&d.ID, &d.RunID, &d.Contact, &d.DateType, &d.Rule, &recipients, &d.DryRun, &errText, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		if err := json.Unmarshal([]byte(recipients), &d.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients: %w", err)
		}
		d.Error = errText.String
		out = append(out, d)
	}
	return out, rows.Err()
}
