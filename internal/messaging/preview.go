package messaging

import (
	"context"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

// PreviewEntry lists every channel a contact could be reached on
type PreviewEntry struct {
	Contact    string           `json:"contact"`
	Salutation string           `json:"salutation"`
	Dates      []core.DateEvent `json:"dates"`
	Channels   []string         `json:"channels"`
}

// Preview reports, without sending, who could be notified and how.
// Contacts that opted out or have no dates are left out.
func (e *Engine) Preview(ctx context.Context, contacts []core.Contact, groups []string) []PreviewEntry {
	log := logging.FromContext(ctx)

	var entries []PreviewEntry
	for _, c := range FilterGroups(contacts, groups) {
		if c.OptedOut() || len(c.Dates) == 0 {
			continue
		}

		channels := e.channels(c)
		if len(channels) == 0 {
			continue
		}

		entry := PreviewEntry{Contact: c.DisplayName, Salutation: c.Salutation(), Dates: c.Dates, Channels: channels}
		log.Info("Will send notifications",
			"contact", entry.Contact,
			"salutation", entry.Salutation,
			"dates", eventNames(c.Dates),
			"notifications", channels,
		)
		entries = append(entries, entry)
	}
	return entries
}

func (e *Engine) channels(c core.Contact) []string {
	var out []string
	if addr, ok := c.PrimaryMobileEmail(); ok {
		out = append(out, addr.Address)
	}
	if n, ok := c.PreferredUSMobileNumber(); ok {
		out = append(out, n.Number)
	}
	if addr, ok := c.PrimaryEmail(); ok {
		out = append(out, addr.Address)
	}
	for _, addr := range c.AllMobileGatewayEmails(e.registry) {
		out = append(out, addr.Address)
	}
	return out
}
