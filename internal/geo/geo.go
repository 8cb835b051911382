// Package geo resolves postal codes to IANA timezones.
//
// A postal code is geocoded through zippopotam.us and the coordinate is
// mapped to a timezone with an offline polygon finder. Results, including
// misses, are memoized for the life of the Resolver and optionally written
// to a persistent store.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ringsaturn/tzf"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/storage"
)

// DefaultBaseURL is the public zippopotam.us endpoint
const DefaultBaseURL = "https://api.zippopotam.us"

// Finder maps a coordinate to a timezone name, "" when none matches
type Finder interface {
	GetTimezoneName(lng, lat float64) string
}

// Store persists lookups across runs
type Store interface {
	Get(country, postalCode string) (*storage.ZipTimezone, error)
	Put(z storage.ZipTimezone) error
}

// Coordinate is a latitude/longitude pair
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Config for a Resolver
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
	Finder     Finder // nil loads the default tzf finder
	Store      Store  // nil disables persistence
}

// Resolver looks up timezones for postal codes
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	finder     Finder
	store      Store

	mu   sync.Mutex
	memo map[string]string
}

// NewResolver creates a resolver
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Finder == nil {
		f, err := tzf.NewDefaultFinder()
		if err != nil {
			return nil, fmt.Errorf("load timezone finder: %w", err)
		}
		cfg.Finder = f
	}

	return &Resolver{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		finder:     cfg.Finder,
		store:      cfg.Store,
		memo:       make(map[string]string),
	}, nil
}

// Timezone returns the IANA timezone for a postal code, or "" when it cannot be located.
// An error is returned only when the geocoder could not be reached.
func (r *Resolver) Timezone(ctx context.Context, country core.Country, postalCode string) (string, error) {
	if country == core.CountryUnknown {
		country = core.CountryUS
	}
	cc := strings.ToLower(string(country))
	// ZIP+4 resolves by its first five digits
	zip := strings.TrimSpace(strings.SplitN(postalCode, "-", 2)[0])
	key := cc + "/" + zip

	r.mu.Lock()
	tz, ok := r.memo[key]
	r.mu.Unlock()
	if ok {
		return tz, nil
	}

	log := logging.FromContext(ctx).WithField("postal_code", zip)

	if r.store != nil {
		cached, err := r.store.Get(cc, zip)
		switch {
		case err == nil:
			log.Debug("Loaded timezone from cache", "timezone", cached.Timezone)
			r.remember(key, cached.Timezone)
			return cached.Timezone, nil
		case !errors.Is(err, storage.ErrNotFound):
			log.Warn("Timezone cache read failed", "error", err)
		}
	}

	coord, err := r.Coordinate(ctx, country, zip)
	if err != nil {
		return "", err
	}

	if coord != nil {
		tz = r.finder.GetTimezoneName(coord.Longitude, coord.Latitude)
		if tz == "" {
			log.Warn("No timezone found for coordinate", "lat", coord.Latitude, "lng", coord.Longitude)
		}
	}

	r.remember(key, tz)
	if r.store != nil {
		z := storage.ZipTimezone{Country: cc, PostalCode: zip, Timezone: tz}
		if coord != nil {
			z.Latitude, z.Longitude = coord.Latitude, coord.Longitude
		}
		if err := r.store.Put(z); err != nil {
			log.Warn("Timezone cache write failed", "error", err)
		}
	}
	return tz, nil
}

func (r *Resolver) remember(key, tz string) {
	r.mu.Lock()
	r.memo[key] = tz
	r.mu.Unlock()
}

type placesResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Coordinate geocodes a postal code. A nil coordinate means the code is unknown.
func (r *Resolver) Coordinate(ctx context.Context, country core.Country, postalCode string) (*Coordinate, error) {
	url := fmt.Sprintf("%s/%s/%s", r.baseURL, strings.ToLower(string(country)), postalCode)
	log := logging.FromContext(ctx).WithField("postal_code", postalCode)

	var body placesResponse
	found := false

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return backoff.Permanent(fmt.Errorf("decode places: %w", err))
			}
			found = true
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("geocoder status %d", resp.StatusCode)
		default:
			return nil
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("geocode %s: %w", postalCode, err)
	}

	if !found {
		log.Warn("No coordinate found")
		return nil, nil
	}

	for _, p := range body.Places {
		lat, err1 := strconv.ParseFloat(p.Latitude, 64)
		lng, err2 := strconv.ParseFloat(p.Longitude, 64)
		if err1 == nil && err2 == nil {
			return &Coordinate{Latitude: lat, Longitude: lng}, nil
		}
	}

	log.Warn("No coordinate found")
	return nil, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
