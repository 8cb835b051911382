// Package email delivers congratulations over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

// ApplicationHeader value marks every message sent by the bot
const ApplicationHeader = "contact-messenger-bot"

// Config configures the email sender
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	TLSPolicy     string // mandatory, opportunistic, none
	RatePerMinute int
	Timeout       time.Duration
	DryRun        bool
}

// deliverer is the part of the go-mail client the sender uses
type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender handles email delivery
type Sender struct {
	config  Config
	client  deliverer
	limiter *rate.Limiter
}

// NewSender creates a sender. Without a host the sender is unsupported and never dials.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Sender{config: cfg, limiter: newLimiter(cfg.RatePerMinute)}
	if !s.IsSupported() {
		return s, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	s.client = client
	return s, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// IsSupported checks if SMTP delivery is configured
func (s *Sender) IsSupported() bool {
	return s.config.Host != ""
}

// Send emails body to the given addresses of recipient. From and Bcc are the sender.
// An empty subject leaves the header out.
func (s *Sender) Send(ctx context.Context, sender core.Profile, recipient core.Contact, to []core.EmailAddress, body, subject string) error {
	if !s.IsSupported() {
		return fmt.Errorf("%w: email", core.ErrUnsupportedProtocol)
	}

	msg, err := s.buildMessage(sender, recipient, to, body, subject)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	log := logging.FromContext(ctx).WithFields(map[string]any{
		"to":   addresses(to),
		"from": sender.EmailAddress.Address,
	})

	if s.config.DryRun {
		var buf bytes.Buffer
		if _, err := msg.WriteTo(&buf); err != nil {
			return fmt.Errorf("render message: %w", err)
		}
		log.Info("Sending email [dry-run]", "message", buf.String())
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	log.Info("Sending email", "subject", subject)
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// buildMessage constructs the message for recipient
func (s *Sender) buildMessage(sender core.Profile, recipient core.Contact, to []core.EmailAddress, body, subject string) (*mail.Msg, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	m := mail.NewMsg()
	m.SetGenHeader(mail.Header("X-Application"), ApplicationHeader)
	m.SetDate()

	from := sender.EmailAddress.Address
	if err := m.FromFormat(sender.DisplayName, from); err != nil {
		return nil, err
	}
	if err := m.AddBccFormat(sender.DisplayName, from); err != nil {
		return nil, err
	}
	for _, addr := range to {
		if err := m.AddToFormat(recipient.DisplayName, addr.Address); err != nil {
			return nil, err
		}
	}

	if subject != "" {
		m.Subject(subject)
	}
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

func addresses(to []core.EmailAddress) []string {
	out := make([]string, len(to))
	for i, a := range to {
		out[i] = a.Address
	}
	return out
}
