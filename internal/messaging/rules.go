package messaging

import (
	"context"

	"github.com/quantumlife/contactbot/internal/core"
)

// RuleKind names a channel selection rule
type RuleKind string

const (
	RuleEmailMobile     RuleKind = "email-mobile"
	RuleText            RuleKind = "text"
	RuleEmailMobileWide RuleKind = "email-mobile-wide"
	RuleEmail           RuleKind = "email"
)

// Protocol is a transport capability
type Protocol string

const (
	ProtocolEmail Protocol = "email"
	ProtocolText  Protocol = "text"
)

// EmailTransport delivers email
type EmailTransport interface {
	IsSupported() bool
	Send(ctx context.Context, sender core.Profile, recipient core.Contact, to []core.EmailAddress, body, subject string) error
}

// TextTransport delivers text messages
type TextTransport interface {
	IsSupported() bool
	Send(ctx context.Context, from, to core.PhoneNumber, body string) error
}

// channel is what a rule resolved for a contact
type channel struct {
	emails []core.EmailAddress
	phone  core.PhoneNumber
}

func (c channel) recipients() []string {
	if len(c.emails) == 0 {
		return []string{c.phone.Number}
	}
	out := make([]string, len(c.emails))
	for i, e := range c.emails {
		out[i] = e.Address
	}
	return out
}

// rule pairs a channel selector with the transport that uses it
type rule struct {
	kind     RuleKind
	protocol Protocol
	// withSubject adds a rendered subject line
	withSubject bool
	resolve     func(c core.Contact) (channel, bool)
}

func (e *Engine) buildRules() []rule {
	emailOK := e.email != nil && e.email.IsSupported()
	textOK := e.text != nil && e.text.IsSupported()

	var rules []rule
	if emailOK {
		rules = append(rules, rule{
			kind:     RuleEmailMobile,
			protocol: ProtocolEmail,
			resolve: func(c core.Contact) (channel, bool) {
				addr, ok := c.PrimaryMobileEmail()
				return channel{emails: []core.EmailAddress{addr}}, ok
			},
		})
	}
	if textOK {
		rules = append(rules, rule{
			kind:     RuleText,
			protocol: ProtocolText,
			resolve: func(c core.Contact) (channel, bool) {
				n, ok := c.PreferredUSMobileNumber()
				return channel{phone: n}, ok
			},
		})
	}
	if emailOK {
		rules = append(rules,
			rule{
				kind:     RuleEmailMobileWide,
				protocol: ProtocolEmail,
				resolve: func(c core.Contact) (channel, bool) {
					addrs := c.AllMobileGatewayEmails(e.registry)
					return channel{emails: addrs}, len(addrs) > 0
				},
			},
			rule{
				kind:        RuleEmail,
				protocol:    ProtocolEmail,
				withSubject: true,
				resolve: func(c core.Contact) (channel, bool) {
					addr, ok := c.PrimaryEmail()
					return channel{emails: []core.EmailAddress{addr}}, ok
				},
			},
		)
	}
	return rules
}
