// Package bot wires configuration into runs shared by the CLI and the HTTP server.
package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/quantumlife/contactbot/internal/config"
	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/directory"
	"github.com/quantumlife/contactbot/internal/email"
	"github.com/quantumlife/contactbot/internal/geo"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/messages"
	"github.com/quantumlife/contactbot/internal/messaging"
	"github.com/quantumlife/contactbot/internal/sms"
	"github.com/quantumlife/contactbot/internal/storage"
)

// LoginTimeout bounds the wait for the browser authorization
const LoginTimeout = 5 * time.Minute

// Directory loads the sender profile and contacts
type Directory interface {
	Fetch(ctx context.Context, opts directory.FetchOptions) (*directory.Snapshot, error)
	Reset()
}

// EngineFactory builds a dispatch engine for one run
type EngineFactory func(dryRun bool) (*messaging.Engine, error)

// Options for New
type Options struct {
	// Interactive allows the browser login when no token is stored
	Interactive bool
}

// Bot runs list and message operations
type Bot struct {
	directory  Directory
	newEngine  EngineFactory
	deliveries *storage.DeliveryStore
	auth       *directory.Authenticator
	authErr    error
	db         *storage.DB
}

// New opens the database and builds every collaborator from cfg
func New(cfg *config.Config, opts Options) (*Bot, error) {
	db, err := storage.OpenMigrated(storage.Config{Path: cfg.DBPath()})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b := &Bot{db: db, deliveries: storage.NewDeliveryStore(db)}
	registry := core.DefaultCarrierRegistry(cfg.Carriers.Disabled...)
	templates := messages.Default(nil)

	tokens := storage.NewTokenStore(db, storage.NewSealer(cfg.Google.TokenPassphrase))
	b.auth, b.authErr = directory.LoadAuthenticator(credentialsPath(cfg), tokens, cfg.Google.RedirectPort)

	var connector directory.Connector = unavailable{err: b.authErr}
	if b.authErr == nil {
		connector = &directory.PeopleConnector{
			Auth:         b.auth,
			Interactive:  opts.Interactive,
			LoginTimeout: LoginTimeout,
			Options:      []directory.ClientOption{directory.WithPageSize(cfg.Google.PageSize)},
		}
	}

	resolver, err := geo.NewResolver(geo.Config{Store: storage.NewTimezoneStore(db)})
	if err != nil {
		db.Close()
		return nil, err
	}
	normalizer := directory.NewNormalizer(resolver, registry)
	b.directory = directory.NewService(connector, normalizer, storage.NewContactCache(db), cfg.Google.MaxRetry)

	b.newEngine = func(dryRun bool) (*messaging.Engine, error) {
		mailer, err := email.NewSender(email.Config{
			Host:          cfg.Email.Host,
			Port:          cfg.Email.Port,
			Username:      cfg.Email.Username,
			Password:      cfg.Email.Password,
			TLSPolicy:     cfg.Email.TLSPolicy,
			RatePerMinute: cfg.Email.RatePerMinute,
			Timeout:       cfg.EmailTimeout(),
			DryRun:        dryRun,
		})
		if err != nil {
			return nil, err
		}
		texter := sms.NewSender(sms.Config{
			AccountSID: cfg.Text.AccountSID,
			AuthToken:  cfg.Text.AuthToken,
			Sender:     cfg.Text.Sender,
			MaxTries:   cfg.Text.MaxRetry,
			DryRun:     dryRun,
		})
		return messaging.NewEngine(messaging.Config{
			Email:     mailer,
			Text:      texter,
			Templates: templates,
			Registry:  registry,
			Recorder:  b.deliveries,
		})
	}
	return b, nil
}

func credentialsPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Google.CredentialsFile) {
		return cfg.Google.CredentialsFile
	}
	return filepath.Join(cfg.DataDir, cfg.Google.CredentialsFile)
}

// Close releases the database
func (b *Bot) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Login runs the browser authorization and stores the token
func (b *Bot) Login(ctx context.Context) error {
	if b.authErr != nil {
		return b.authErr
	}
	return b.auth.Login(ctx, LoginTimeout)
}

// CacheOptions control the contact cache for one operation
type CacheOptions struct {
	LoadCache bool
	SaveCache bool
}

// DefaultCacheOptions reads and writes the cache
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{LoadCache: true, SaveCache: true}
}

func (o CacheOptions) fetch() directory.FetchOptions {
	return directory.FetchOptions{LoadCache: o.LoadCache, SaveCache: o.SaveCache}
}

// ListContacts fetches and logs every contact
func (b *Bot) ListContacts(ctx context.Context, opts CacheOptions) ([]core.Contact, error) {
	b.directory.Reset()
	snap, err := b.directory.Fetch(ctx, opts.fetch())
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	for _, c := range snap.Contacts {
		log.Info("contact", "contact", c)
	}
	return snap.Contacts, nil
}

// MessageOptions for MessageContacts
type MessageOptions struct {
	CacheOptions
	Today  core.Date
	Groups []string
	DryRun bool
}

// MessageContacts sends today's congratulations. A dry run logs the
// reachable channels of every contact first.
func (b *Bot) MessageContacts(ctx context.Context, opts MessageOptions) (*messaging.Report, error) {
	engine, err := b.newEngine(opts.DryRun)
	if err != nil {
		return nil, err
	}

	b.directory.Reset()
	snap, err := b.directory.Fetch(ctx, opts.fetch())
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		engine.Preview(ctx, snap.Contacts, opts.Groups)
	}
	return engine.Run(ctx, snap.Profile, snap.Contacts, messaging.RunOptions{
		Today:  opts.Today,
		Groups: opts.Groups,
		DryRun: opts.DryRun,
	})
}

// SupportedProtocols lists the configured transports
func (b *Bot) SupportedProtocols() ([]messaging.Protocol, error) {
	engine, err := b.newEngine(true)
	if err != nil {
		return nil, err
	}
	return engine.SupportedProtocols(), nil
}

// RecentDeliveries returns the latest send attempts, newest first
func (b *Bot) RecentDeliveries(limit int) ([]storage.Delivery, error) {
	if b.deliveries == nil {
		return nil, nil
	}
	return b.deliveries.Recent(limit)
}

// unavailable is the connector used when the client credentials could not be loaded
type unavailable struct {
	err error
}

func (u unavailable) Connect(ctx context.Context) (directory.Source, error) {
	return nil, fmt.Errorf("%w: %v", core.ErrNotAuthenticated, u.err)
}

func (u unavailable) Invalidate() error {
	return nil
}
