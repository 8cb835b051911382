package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ZipTimezone is a resolved postal code
type ZipTimezone struct {
	Country    string
	PostalCode string
	Timezone   string
	Latitude   float64
	Longitude  float64
	ResolvedAt time.Time
}

// TimezoneStore caches postal code lookups across runs
type TimezoneStore struct {
	db *DB
}

// NewTimezoneStore creates a timezone store
func NewTimezoneStore(db *DB) *TimezoneStore {
	return &TimezoneStore{db: db}
}

// Get returns the cached lookup or ErrNotFound
func (s *TimezoneStore) Get(country, postalCode string) (*ZipTimezone, error) {
	z := ZipTimezone{Country: country, PostalCode: postalCode}
	var lat, lng sql.NullFloat64
	err := s.db.conn.QueryRow(`
		SELECT timezone, latitude, longitude, resolved_at
		FROM zip_timezones WHERE country = ? AND postal_code = ?
	`, country, postalCode).Scan(&z.Timezone, &lat, &lng, &z.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query timezone: %w", err)
	}
	z.Latitude, z.Longitude = lat.Float64, lng.Float64
	return &z, nil
}

// Put inserts or replaces a lookup
func (s *TimezoneStore) Put(z ZipTimezone) error {
	if z.ResolvedAt.IsZero() {
		z.ResolvedAt = time.Now().UTC()
	}
	_, err := s.db.conn.Exec(`
		INSERT INTO zip_timezones (country, postal_code, timezone, latitude, longitude, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(country, postal_code) DO UPDATE SET
			timezone = excluded.timezone,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			resolved_at = excluded.resolved_at
	`, z.Country, z.PostalCode, z.Timezone, z.Latitude, z.Longitude, z.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save timezone: %w", err)
	}
	return nil
}
