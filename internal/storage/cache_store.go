package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantumlife/contactbot/internal/core"
)

const (
	cacheKeyProfile  = "profile"
	cacheKeyContacts = "contacts"
)

// ContactCache stores the last fetched profile and contact list
type ContactCache struct {
	db *DB
}

// NewContactCache creates a contact cache
func NewContactCache(db *DB) *ContactCache {
	return &ContactCache{db: db}
}

// SaveProfile replaces the cached profile
func (c *ContactCache) SaveProfile(p core.Profile) error {
	return c.put(cacheKeyProfile, p)
}

// LoadProfile returns the cached profile or ErrNotFound
func (c *ContactCache) LoadProfile() (core.Profile, error) {
	var p core.Profile
	err := c.get(cacheKeyProfile, &p)
	return p, err
}

// SaveContacts replaces the cached contact list
func (c *ContactCache) SaveContacts(contacts []core.Contact) error {
	if contacts == nil {
		contacts = []core.Contact{}
	}
	return c.put(cacheKeyContacts, contacts)
}

// LoadContacts returns the cached contacts or ErrNotFound
func (c *ContactCache) LoadContacts() ([]core.Contact, error) {
	var contacts []core.Contact
	err := c.get(cacheKeyContacts, &contacts)
	return contacts, err
}

// SavedAt reports when key was last written
func (c *ContactCache) SavedAt(key string) (time.Time, error) {
	var at time.Time
	err := c.db.conn.QueryRow(`SELECT saved_at FROM contact_cache WHERE key = ?`, key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return at, err
}

// Clear drops every cached entry
func (c *ContactCache) Clear() error {
	_, err := c.db.conn.Exec(`DELETE FROM contact_cache`)
	return err
}

func (c *ContactCache) put(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = c.db.conn.Exec(`
		INSERT INTO contact_cache (key, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, key, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (c *ContactCache) get(key string, v any) error {
	var payload []byte
	err := c.db.conn.QueryRow(`SELECT payload FROM contact_cache WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
