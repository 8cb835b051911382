// Package directory reads the user's contacts from Google People and
// normalizes them into core contacts.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/storage"
)

// Connector opens an authorized directory source
type Connector interface {
	Connect(ctx context.Context) (Source, error)
	// Invalidate discards credentials after an authorization failure
	Invalidate() error
}

// Cache persists the last fetched directory
type Cache interface {
	LoadProfile() (core.Profile, error)
	LoadContacts() ([]core.Contact, error)
	SaveProfile(core.Profile) error
	SaveContacts([]core.Contact) error
}

// Snapshot is a fetched, normalized directory
type Snapshot struct {
	Profile  core.Profile
	Contacts []core.Contact
}

// FetchOptions control cache use for one fetch
type FetchOptions struct {
	LoadCache bool
	SaveCache bool
}

// Service fetches the directory with cache and authorization retry
type Service struct {
	connector  Connector
	normalizer *Normalizer
	cache      Cache
	maxRetry   int

	mu   sync.Mutex
	slot *Snapshot
}

// NewService creates a directory service. cache may be nil.
func NewService(connector Connector, normalizer *Normalizer, cache Cache, maxRetry int) *Service {
	if maxRetry < 1 {
		maxRetry = 1
	}
	return &Service{
		connector:  connector,
		normalizer: normalizer,
		cache:      cache,
		maxRetry:   maxRetry,
	}
}

// Fetch returns the directory, loading it at most once per Service
func (s *Service) Fetch(ctx context.Context, opts FetchOptions) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil {
		return s.slot, nil
	}

	log := logging.FromContext(ctx)

	if opts.LoadCache && s.cache != nil {
		if snap, ok := s.loadCache(log); ok {
			log.Info("Loaded contacts from cache", "count", len(snap.Contacts))
			s.slot = snap
			return snap, nil
		}
	}

	snap, err := s.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Fetched contacts", "count", len(snap.Contacts))

	if opts.SaveCache && s.cache != nil {
		if err := s.cache.SaveProfile(snap.Profile); err != nil {
			log.Warn("Could not cache profile", "error", err)
		}
		if err := s.cache.SaveContacts(snap.Contacts); err != nil {
			log.Warn("Could not cache contacts", "error", err)
		}
	}

	s.slot = snap
	return snap, nil
}

// Reset empties the in-memory slot
func (s *Service) Reset() {
	s.mu.Lock()
	s.slot = nil
	s.mu.Unlock()
}

func (s *Service) loadCache(log *logging.Logger) (*Snapshot, bool) {
	profile, err := s.cache.LoadProfile()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("Could not read cached profile", "error", err)
		}
		return nil, false
	}
	contacts, err := s.cache.LoadContacts()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("Could not read cached contacts", "error", err)
		}
		return nil, false
	}
	return &Snapshot{Profile: profile, Contacts: contacts}, true
}

func (s *Service) fetchWithRetry(ctx context.Context) (*Snapshot, error) {
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.maxRetry; attempt++ {
		snap, err := s.fetch(ctx)
		if err == nil {
			return snap, nil
		}
		if !IsAuthError(err) {
			return nil, err
		}

		lastErr = err
		log.Error("Directory authorization failed", "attempt", attempt, "error", err)
		if err := s.connector.Invalidate(); err != nil {
			log.Warn("Could not invalidate token", "error", err)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", core.ErrAuthenticationFailed, s.maxRetry, lastErr)
}

func (s *Service) fetch(ctx context.Context) (*Snapshot, error) {
	src, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := src.Groups(ctx)
	if err != nil {
		return nil, err
	}
	records, err := src.Connections(ctx)
	if err != nil {
		return nil, err
	}
	self, err := src.Profile(ctx)
	if err != nil {
		return nil, err
	}

	pass := s.normalizer.NewPass(ctx, groups)
	profile, ok := pass.Profile(self)
	if !ok {
		logging.FromContext(ctx).Warn("Sender profile has no display name; emails will have no From address")
	}
	return &Snapshot{Profile: profile, Contacts: pass.Contacts(records)}, nil
}

// IsAuthError reports failures that a fresh token could fix
func IsAuthError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
	}
	return false
}

// PeopleConnector connects to the People API with a stored token
type PeopleConnector struct {
	Auth *Authenticator
	// Interactive runs the browser login when no token is stored
	Interactive  bool
	LoginTimeout time.Duration
	// Options are passed to NewClient
	Options []ClientOption
}

// Connect builds a People client from the stored token
func (c *PeopleConnector) Connect(ctx context.Context) (Source, error) {
	httpClient, err := c.Auth.HTTPClient(ctx)
	if errors.Is(err, core.ErrNotAuthenticated) && c.Interactive {
		timeout := c.LoginTimeout
		if timeout == 0 {
			timeout = 5 * time.Minute
		}
		if err := c.Auth.Login(ctx, timeout); err != nil {
			return nil, err
		}
		httpClient, err = c.Auth.HTTPClient(ctx)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, httpClient, c.Options...)
}

// Invalidate drops the stored token
func (c *PeopleConnector) Invalidate() error {
	return c.Auth.Invalidate()
}
