// Package sms delivers congratulations as Twilio text messages.
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

// Config configures the text sender
type Config struct {
	AccountSID string
	AuthToken  string
	// Sender is the Twilio number messages are sent from
	Sender string
	// MaxTries bounds attempts per message, including the first
	MaxTries int
	DryRun   bool
}

// messageCreator is the Twilio messages endpoint
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender handles text delivery
type Sender struct {
	config   Config
	messages messageCreator
	interval time.Duration
}

// NewSender creates a sender. Missing credentials leave it unsupported.
func NewSender(cfg Config) *Sender {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 2
	}
	s := &Sender{config: cfg, interval: 500 * time.Millisecond}
	if s.IsSupported() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		s.messages = client.Api
	}
	return s
}

// IsSupported checks if Twilio credentials and a sender number are configured
func (s *Sender) IsSupported() bool {
	return s.config.AccountSID != "" && s.config.AuthToken != "" && s.config.Sender != ""
}

// Send texts body to to. The configured Twilio number is the sender; from
// only identifies the bot owner in logs.
func (s *Sender) Send(ctx context.Context, from, to core.PhoneNumber, body string) error {
	if !s.IsSupported() {
		return fmt.Errorf("%w: text", core.ErrUnsupportedProtocol)
	}

	log := logging.FromContext(ctx).WithFields(map[string]any{
		"to":    to.Number,
		"from":  s.config.Sender,
		"owner": from.Number,
	})
	if s.config.DryRun {
		log.Info("Sending message [dry-run]", "body", body)
		return nil
	}

	log.Info("Sending message", "body", body)
	params := &openapi.CreateMessageParams{}
	params.SetTo(to.Number)
	params.SetFrom(s.config.Sender)
	params.SetBody(body)

	attempt := 0
	op := func() error {
		attempt++
		_, err := s.messages.CreateMessage(params)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		log.Warn("Text send failed", "attempt", attempt, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.config.MaxTries-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// retryable reports whether err is transient. Twilio rejections other than
// throttling and server errors are final.
func retryable(err error) bool {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status >= http.StatusInternalServerError || restErr.Status == http.StatusTooManyRequests
	}
	return true
}
