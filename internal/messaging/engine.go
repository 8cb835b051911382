// Package messaging picks a channel for every contact celebrating today and
// sends the congratulations through it.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/messages"
	"github.com/quantumlife/contactbot/internal/storage"
)

// Recorder stores send attempts
type Recorder interface {
	Record(d *storage.Delivery) error
}

// Config for an Engine. Nil transports are unsupported.
type Config struct {
	Email     EmailTransport
	Text      TextTransport
	Templates *messages.Templates
	Registry  *core.CarrierRegistry
	Recorder  Recorder
}

// Engine applies the ordered rule list to contacts
type Engine struct {
	email     EmailTransport
	text      TextTransport
	templates *messages.Templates
	registry  *core.CarrierRegistry
	recorder  Recorder
	rules     []rule
}

// NewEngine builds the rule list from the transports' capabilities
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Templates == nil {
		cfg.Templates = messages.Default(nil)
	}
	if err := cfg.Templates.Validate(); err != nil {
		return nil, err
	}
	if cfg.Registry == nil {
		cfg.Registry = core.DefaultCarrierRegistry()
	}

	e := &Engine{
		email:     cfg.Email,
		text:      cfg.Text,
		templates: cfg.Templates,
		registry:  cfg.Registry,
		recorder:  cfg.Recorder,
	}
	e.rules = e.buildRules()
	return e, nil
}

// Rules lists the active rules in evaluation order
func (e *Engine) Rules() []RuleKind {
	kinds := make([]RuleKind, len(e.rules))
	for i, r := range e.rules {
		kinds[i] = r.kind
	}
	return kinds
}

// SupportedProtocols lists the transports that can send
func (e *Engine) SupportedProtocols() []Protocol {
	var out []Protocol
	if e.email != nil && e.email.IsSupported() {
		out = append(out, ProtocolEmail)
	}
	if e.text != nil && e.text.IsSupported() {
		out = append(out, ProtocolText)
	}
	return out
}

// Status is the result of dispatching one contact
type Status string

const (
	StatusSent      Status = "sent"
	StatusOptedOut  Status = "opted-out"
	StatusNoDates   Status = "no-dates"
	StatusNotToday  Status = "not-today"
	StatusNoChannel Status = "no-channel"
)

// RuleFailure is a rule that raised while sending
type RuleFailure struct {
	Rule RuleKind
	Err  error
}

// Outcome describes what happened to one contact
type Outcome struct {
	Contact  string
	Status   Status
	Rule     RuleKind
	Events   []core.DateEvent
	Failures []RuleFailure
}

// RunOptions for one run
type RunOptions struct {
	RunID  string
	Today  core.Date
	Groups []string
	DryRun bool
}

// Report summarizes a run
type Report struct {
	RunID    string
	Today    core.Date
	Outcomes []Outcome
}

// Sent counts contacts that were messaged
func (r *Report) Sent() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSent {
			n++
		}
	}
	return n
}

// Run dispatches every contact in order. Only template configuration errors abort it.
func (e *Engine) Run(ctx context.Context, sender core.Profile, contacts []core.Contact, opts RunOptions) (*Report, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Today == (core.Date{}) {
		opts.Today = core.Today()
	}

	log := logging.FromContext(ctx).WithField("run", opts.RunID)
	ctx = logging.WithContext(ctx, log)
	report := &Report{RunID: opts.RunID, Today: opts.Today}

	if len(e.rules) == 0 {
		log.Info("No protocols found")
		return report, nil
	}

	contacts = FilterGroups(contacts, opts.Groups)
	if len(opts.Groups) > 0 && len(contacts) == 0 {
		log.Info("No contacts found", "groups", opts.Groups)
		return report, nil
	}

	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := e.dispatch(ctx, sender, c, opts)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Info("Run complete", "contacts", len(contacts), "sent", report.Sent())
	return report, nil
}

// Dispatch sends today's messages to one contact
func (e *Engine) Dispatch(ctx context.Context, sender core.Profile, c core.Contact, today core.Date) (Outcome, error) {
	return e.dispatch(ctx, sender, c, RunOptions{RunID: uuid.New().String(), Today: today})
}

func (e *Engine) dispatch(ctx context.Context, sender core.Profile, c core.Contact, opts RunOptions) (Outcome, error) {
	log := logging.FromContext(ctx).WithField("contact", c.DisplayName)
	outcome := Outcome{Contact: c.DisplayName}

	if c.OptedOut() {
		log.Debug("Contact has opt-out")
		outcome.Status = StatusOptedOut
		return outcome, nil
	}
	if len(c.Dates) == 0 {
		outcome.Status = StatusNoDates
		return outcome, nil
	}

	events := c.DatesOn(opts.Today)
	if len(events) == 0 {
		log.Debug("Contact has no applicable dates", "date", opts.Today.String())
		outcome.Status = StatusNotToday
		return outcome, nil
	}
	outcome.Events = events
	log.Info("Contact has events", "events", eventNames(events), "date", opts.Today.String())

	salutation := c.Salutation()
	for _, r := range e.rules {
		ch, ok := r.resolve(c)
		if !ok {
			continue
		}

		log.Debug("Using", "rule", string(r.kind), "recipients", ch.recipients())
		err := e.send(ctx, r, sender, c, ch, events, salutation, opts)
		if err == nil {
			outcome.Status = StatusSent
			outcome.Rule = r.kind
			return outcome, nil
		}
		if errors.Is(err, core.ErrNoTemplates) {
			return outcome, err
		}

		log.Error("Failed to notify", "rule", string(r.kind), "error", err)
		outcome.Failures = append(outcome.Failures, RuleFailure{Rule: r.kind, Err: err})
	}

	outcome.Status = StatusNoChannel
	return outcome, nil
}

// send issues one message per event through the rule's channel
func (e *Engine) send(ctx context.Context, r rule, sender core.Profile, c core.Contact, ch channel,
	events []core.DateEvent, salutation string, opts RunOptions) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rule %s panicked: %v", r.kind, p)
		}
	}()

	for _, ev := range events {
		body, err := e.templates.Body(ev.Type, salutation)
		if err != nil {
			return err
		}
		subject := ""
		if r.withSubject {
			if subject, err = e.templates.Subject(ev.Type, salutation); err != nil {
				return err
			}
		}

		switch r.protocol {
		case ProtocolEmail:
			err = e.email.Send(ctx, sender, c, ch.emails, body, subject)
		case ProtocolText:
			err = e.text.Send(ctx, sender.MobileNumber, ch.phone, body)
		default:
			err = fmt.Errorf("%w: %s", core.ErrUnsupportedProtocol, r.protocol)
		}

		e.record(ctx, r, c, ch, ev, opts, err)
		if err != nil {
			return fmt.Errorf("%s %s: %w", r.kind, ev.Type, err)
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, r rule, c core.Contact, ch channel, ev core.DateEvent, opts RunOptions, sendErr error) {
	if e.recorder == nil {
		return
	}
	d := &storage.Delivery{
		RunID:      opts.RunID,
		Contact:    c.DisplayName,
		DateType:   ev.Type.String(),
		Rule:       string(r.kind),
		Recipients: ch.recipients(),
		DryRun:     opts.DryRun,
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	}
	if err := e.recorder.Record(d); err != nil {
		logging.FromContext(ctx).Warn("Could not record delivery", "error", err)
	}
}

// FilterGroups keeps contacts in any of groups, compared case-insensitively. No groups keeps all.
func FilterGroups(contacts []core.Contact, groups []string) []core.Contact {
	if len(groups) == 0 {
		return contacts
	}
	set := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			set[strings.ToLower(g)] = true
		}
	}
	if len(set) == 0 {
		return contacts
	}

	var out []core.Contact
	for _, c := range contacts {
		if c.IsMember(set) {
			out = append(out, c)
		}
	}
	return out
}

func eventNames(events []core.DateEvent) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Type.String()
	}
	return names
}
